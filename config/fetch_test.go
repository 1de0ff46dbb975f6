package config_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	. "github.com/Cogwheel-Validator/spectra-step-by-step/config"
)

func TestFetchGenesis_Remote(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/networks/localterra/genesis.toml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(genesisTOML))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	path, err := FetchGenesis(context.Background(), srv.URL+"/networks/localterra/genesis.toml", dir)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if path != filepath.Join(dir, "genesis.toml") {
		t.Errorf("unexpected path %q", path)
	}

	g, err := LoadGenesis(path)
	if err != nil {
		t.Fatalf("expected downloaded genesis to load, got %v", err)
	}
	if g.ChainID != "localterra" || len(g.Pairs) != 1 {
		t.Errorf("unexpected genesis %q with %d pairs", g.ChainID, len(g.Pairs))
	}
}

func TestFetchGenesis_LocalPathUnchanged(t *testing.T) {
	path, err := FetchGenesis(context.Background(), "genesis.toml", t.TempDir())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if path != "genesis.toml" {
		t.Errorf("expected local path to be returned as is, got %q", path)
	}
}

func TestFetchGenesis_Invalid(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	cases := map[string]string{
		"unknown scheme": "s3://bucket/genesis.toml",
		"bad extension":  srv.URL + "/genesis.yaml",
		"not found":      srv.URL + "/genesis.json",
	}
	for name, src := range cases {
		if _, err := FetchGenesis(context.Background(), src, t.TempDir()); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}
