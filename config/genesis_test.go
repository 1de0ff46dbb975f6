package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/Cogwheel-Validator/spectra-step-by-step/config"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/asset"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/terraswap"
)

const genesisTOML = `
chain_id = "localterra"
prefix = "terra"
admin = "admin"
tax_rate = "0.01"
max_depth = 8

[tax_caps]
uusd = "1000000"

[exchange_rates]
uusd = "50"

[[accounts]]
address = "user"
coins = { uusd = "1000000", uluna = "1000" }

[[tokens]]
label = "mirror"
name = "Mirror"
symbol = "MIR"
decimals = 6
minter = "admin"
balances = { user = "5000" }

[[pairs]]
label = "uusd-mir"
assets = ["uusd", "token:mirror"]
liquidity = ["2000000", "1000000"]

[factory]
label = "factory"

[strategy]
label = "strategy"
commission = 1
`

func writeGenesis(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing temp genesis: %v", err)
	}
	return path
}

func TestLoadGenesis_Build(t *testing.T) {
	ctx := context.Background()
	g, err := LoadGenesis(writeGenesis(t, "genesis.toml", genesisTOML))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(g.Pairs) != 1 || g.Pairs[0].Assets[1] != "token:mirror" {
		t.Fatalf("unexpected pairs %+v", g.Pairs)
	}

	chain, d, err := g.Build(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if chain.ChainID() != "localterra" {
		t.Errorf("unexpected chain id %q", chain.ChainID())
	}
	user := chain.Address("user")
	if got := chain.Balance(user, "uusd").Int64(); got != 1_000_000 {
		t.Errorf("expected user uusd 1000000, got %d", got)
	}
	pair := d.Pairs["uusd-mir"]
	if got := chain.Balance(pair, "uusd").Int64(); got != 2_000_000 {
		t.Errorf("expected pair uusd 2000000, got %d", got)
	}

	mir := d.Tokens["mirror"]
	for holder, want := range map[string]int64{user: 5_000, pair: 1_000_000} {
		got, err := asset.QueryTokenBalance(ctx, chain.Querier(), mir, holder)
		if err != nil {
			t.Fatalf("token balance: %v", err)
		}
		if got.Int64() != want {
			t.Errorf("expected %s to hold %d MIR, got %s", holder, want, got)
		}
	}

	info, err := terraswap.QueryPair(ctx, chain.Querier(), d.Factory, asset.NewToken(mir), asset.NewNative("uusd"))
	if err != nil {
		t.Fatalf("pair not registered: %v", err)
	}
	if info.ContractAddr != pair {
		t.Errorf("expected pair %s, got %s", pair, info.ContractAddr)
	}
	if d.Strategy != chain.ContractAddress("strategy") || d.Admin != chain.Address("admin") {
		t.Errorf("unexpected deployment %+v", d)
	}
}

func TestLoadGenesis_JSON(t *testing.T) {
	content := `{
  "chain_id": "localterra",
  "prefix": "terra",
  "admin": "admin",
  "factory": {"label": "factory"},
  "strategy": {"label": "strategy"}
}`
	g, err := LoadGenesis(writeGenesis(t, "genesis.json", content))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	_, d, err := g.Build(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if d.Strategy == "" || d.Factory == "" {
		t.Errorf("expected factory and strategy, got %+v", d)
	}
}

func TestLoadGenesis_Invalid(t *testing.T) {
	cases := map[string]string{
		"no_chain.toml": "prefix = \"terra\"\nadmin = \"admin\"\n",
		"dup.toml":      "chain_id = \"c\"\nprefix = \"terra\"\nadmin = \"a\"\n[factory]\nlabel = \"x\"\n[strategy]\nlabel = \"x\"\n",
		"genesis.yaml":  "chain_id: c\n",
		"broken.toml":   "chain_id = \n",
	}
	for name, content := range cases {
		if _, err := LoadGenesis(writeGenesis(t, name, content)); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}

func TestBuild_Failures(t *testing.T) {
	base := func() *Genesis {
		return &Genesis{
			ChainID:  "localterra",
			Prefix:   "terra",
			Admin:    "admin",
			Factory:  GenesisContract{Label: "factory"},
			Strategy: GenesisStrategy{Label: "strategy"},
		}
	}

	unknownToken := base()
	unknownToken.Pairs = []GenesisPair{{Label: "p", Assets: [2]string{"uusd", "token:nope"}}}

	badAmount := base()
	badAmount.Accounts = []GenesisAccount{{Address: "user", Coins: map[string]string{"uusd": "-5"}}}

	badCommission := base()
	badCommission.Strategy.Commission = 101

	samePair := base()
	samePair.Pairs = []GenesisPair{{Label: "p", Assets: [2]string{"uusd", "uusd"}}}

	for name, g := range map[string]*Genesis{
		"unknown token":  unknownToken,
		"bad amount":     badAmount,
		"bad commission": badCommission,
		"same assets":    samePair,
	} {
		if _, _, err := g.Build(context.Background()); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}
