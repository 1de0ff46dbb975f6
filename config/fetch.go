package config

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	getter "github.com/hashicorp/go-getter"
)

const genesisDownloadTimeout = 60 * time.Second

// IsRemoteGenesis reports whether src names an http(s) URL rather than a local file.
func IsRemoteGenesis(src string) bool {
	u, err := url.Parse(src)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// FetchGenesis downloads a remote genesis into dir and returns the local path. Local paths are
// returned as given. The downloaded file keeps the extension of the URL path so LoadGenesis
// can pick the decoder.
func FetchGenesis(ctx context.Context, src, dir string) (string, error) {
	if !IsRemoteGenesis(src) {
		if strings.Contains(src, "://") {
			return "", fmt.Errorf("unsupported genesis source %q, use a local path or an http(s) url", src)
		}
		return src, nil
	}

	u, _ := url.Parse(src)
	ext := strings.ToLower(path.Ext(u.Path))
	if ext != ".toml" && ext != ".json" {
		return "", fmt.Errorf("unsupported genesis file format %q, use .toml or .json", ext)
	}
	dst := filepath.Join(dir, "genesis"+ext)

	ctx, cancel := context.WithTimeout(ctx, genesisDownloadTimeout)
	defer cancel()

	httpGetter := &getter.HttpGetter{}
	client := getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Mode: getter.ClientModeFile,
		Getters: map[string]getter.Getter{
			"http":  httpGetter,
			"https": httpGetter,
		},
	}
	if err := client.Get(); err != nil {
		return "", fmt.Errorf("failed to download genesis: %w", err)
	}

	log.Info().Str("source", u.Redacted()).Str("path", dst).Msg("Genesis downloaded")
	return dst, nil
}
