package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cosmossdk.io/math"
	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/asset"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/terraswap"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
	"github.com/Cogwheel-Validator/spectra-step-by-step/host"
)

const tokenRefPrefix = "token:"

// Deployment holds the addresses a genesis produced, keyed by their genesis labels.
type Deployment struct {
	Admin    string            `json:"admin"`
	Factory  string            `json:"factory"`
	Strategy string            `json:"strategy"`
	Tokens   map[string]string `json:"tokens"`
	Pairs    map[string]string `json:"pairs"`
}

// LoadGenesis reads a genesis from a toml or json file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis file: %w", err)
	}

	var g Genesis
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("failed to unmarshal toml genesis: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("failed to unmarshal json genesis: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported genesis file format %q, use .toml or .json", filepath.Ext(path))
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}
	return &g, nil
}

// Validate checks the static shape of the genesis. Addresses and amounts are checked by Build.
func (g *Genesis) Validate() error {
	if g.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}
	if g.Prefix == "" {
		return fmt.Errorf("prefix is required")
	}
	if g.Admin == "" {
		return fmt.Errorf("admin is required")
	}
	if g.Factory.Label == "" || g.Strategy.Label == "" {
		return fmt.Errorf("factory and strategy labels are required")
	}
	if g.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative")
	}
	labels := map[string]bool{g.Factory.Label: true}
	if labels[g.Strategy.Label] {
		return fmt.Errorf("duplicate contract label %q", g.Strategy.Label)
	}
	labels[g.Strategy.Label] = true
	for _, t := range g.Tokens {
		if t.Label == "" {
			return fmt.Errorf("token label is required")
		}
		if labels[t.Label] {
			return fmt.Errorf("duplicate contract label %q", t.Label)
		}
		labels[t.Label] = true
	}
	for _, p := range g.Pairs {
		if p.Label == "" {
			return fmt.Errorf("pair label is required")
		}
		if labels[p.Label] {
			return fmt.Errorf("duplicate contract label %q", p.Label)
		}
		labels[p.Label] = true
		if p.Assets[0] == "" || p.Assets[1] == "" {
			return fmt.Errorf("pair %s needs two assets", p.Label)
		}
	}
	return nil
}

// Build creates a chain from the genesis and deploys its contracts. Extra options are applied after
// the ones derived from the genesis.
func (g *Genesis) Build(ctx context.Context, opts ...host.Option) (*host.Chain, *Deployment, error) {
	chainOpts, err := g.chainOptions()
	if err != nil {
		return nil, nil, err
	}
	c := host.New(g.ChainID, g.Prefix, append(chainOpts, opts...)...)

	d := &Deployment{
		Admin:  resolveAddress(c, g.Admin),
		Tokens: make(map[string]string, len(g.Tokens)),
		Pairs:  make(map[string]string, len(g.Pairs)),
	}
	for _, t := range g.Tokens {
		d.Tokens[t.Label] = c.ContractAddress(t.Label)
	}
	for _, p := range g.Pairs {
		d.Pairs[p.Label] = c.ContractAddress(p.Label)
	}

	for _, acc := range g.Accounts {
		coins, err := parseCoins(acc.Coins)
		if err != nil {
			return nil, nil, fmt.Errorf("account %s: %w", acc.Address, err)
		}
		if err := c.Mint(resolveAddress(c, acc.Address), coins...); err != nil {
			return nil, nil, fmt.Errorf("account %s: %w", acc.Address, err)
		}
	}

	// pair liquidity lands before the pairs exist, token liquidity is part of the token genesis
	tokenLiquidity := make(map[string][]wasm.Cw20Coin)
	pairAssets := make(map[string][2]asset.AssetInfo, len(g.Pairs))
	for _, p := range g.Pairs {
		var infos [2]asset.AssetInfo
		for i, ref := range p.Assets {
			info, err := resolveAsset(d, ref)
			if err != nil {
				return nil, nil, fmt.Errorf("pair %s: %w", p.Label, err)
			}
			infos[i] = info
			if p.Liquidity[i] == "" {
				continue
			}
			amount, err := parseAmount(p.Liquidity[i])
			if err != nil {
				return nil, nil, fmt.Errorf("pair %s liquidity: %w", p.Label, err)
			}
			if info.IsNative() {
				if err := c.Mint(d.Pairs[p.Label], wasm.NewCoin(info.NativeToken.Denom, amount)); err != nil {
					return nil, nil, fmt.Errorf("pair %s liquidity: %w", p.Label, err)
				}
				continue
			}
			label := strings.TrimPrefix(ref, tokenRefPrefix)
			tokenLiquidity[label] = append(tokenLiquidity[label], wasm.Cw20Coin{Address: d.Pairs[p.Label], Amount: amount})
		}
		pairAssets[p.Label] = infos
	}

	for _, t := range g.Tokens {
		init := wasm.Cw20InstantiateMsg{Name: t.Name, Symbol: t.Symbol, Decimals: t.Decimals}
		init.InitialBalances = append(init.InitialBalances, tokenLiquidity[t.Label]...)
		for _, holder := range sortedKeys(t.Balances) {
			amount, err := parseAmount(t.Balances[holder])
			if err != nil {
				return nil, nil, fmt.Errorf("token %s balance of %s: %w", t.Label, holder, err)
			}
			init.InitialBalances = append(init.InitialBalances, wasm.Cw20Coin{Address: resolveAddress(c, holder), Amount: amount})
		}
		if t.Minter != "" {
			init.Mint = &wasm.Cw20MinterInfo{Minter: resolveAddress(c, t.Minter)}
		}
		if _, _, err := c.Instantiate(ctx, d.Admin, t.Label, host.Cw20Token{}, init); err != nil {
			return nil, nil, fmt.Errorf("token %s: %w", t.Label, err)
		}
	}

	for _, p := range g.Pairs {
		init := host.PairInstantiateMsg{AssetInfos: pairAssets[p.Label]}
		if p.Commission != "" {
			commission, err := decimal.NewFromString(p.Commission)
			if err != nil {
				return nil, nil, fmt.Errorf("pair %s commission: %w", p.Label, err)
			}
			init.Commission = &commission
		}
		if _, _, err := c.Instantiate(ctx, d.Admin, p.Label, host.XykPair{}, init); err != nil {
			return nil, nil, fmt.Errorf("pair %s: %w", p.Label, err)
		}
	}

	d.Factory, _, err = c.Instantiate(ctx, d.Admin, g.Factory.Label, host.Factory{}, struct{}{})
	if err != nil {
		return nil, nil, fmt.Errorf("factory: %w", err)
	}
	for _, p := range g.Pairs {
		_, err := c.Execute(ctx, d.Admin, d.Factory, terraswap.FactoryExecuteMsg{RegisterPair: &terraswap.RegisterPair{
			AssetInfos:   pairAssets[p.Label],
			ContractAddr: d.Pairs[p.Label],
		}})
		if err != nil {
			return nil, nil, fmt.Errorf("register pair %s: %w", p.Label, err)
		}
	}

	d.Strategy, _, err = c.Instantiate(ctx, d.Admin, g.Strategy.Label, host.StrategyContract{}, contract.InstantiateMsg{Commission: g.Strategy.Commission})
	if err != nil {
		return nil, nil, fmt.Errorf("strategy: %w", err)
	}

	log.Info().
		Str("chain_id", g.ChainID).
		Int("accounts", len(g.Accounts)).
		Int("tokens", len(g.Tokens)).
		Int("pairs", len(g.Pairs)).
		Str("strategy", d.Strategy).
		Msg("Genesis deployed")
	return c, d, nil
}

func (g *Genesis) chainOptions() ([]host.Option, error) {
	var opts []host.Option
	if g.TaxRate != "" || len(g.TaxCaps) > 0 {
		rate := decimal.Zero
		if g.TaxRate != "" {
			var err error
			if rate, err = decimal.NewFromString(g.TaxRate); err != nil {
				return nil, fmt.Errorf("tax_rate: %w", err)
			}
		}
		caps := make(map[string]math.Int, len(g.TaxCaps))
		for denom, raw := range g.TaxCaps {
			amount, err := parseAmount(raw)
			if err != nil {
				return nil, fmt.Errorf("tax cap of %s: %w", denom, err)
			}
			caps[denom] = amount
		}
		opts = append(opts, host.WithTax(rate, caps))
	}
	if len(g.ExchangeRates) > 0 {
		rates := make(map[string]decimal.Decimal, len(g.ExchangeRates))
		for denom, raw := range g.ExchangeRates {
			rate, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("exchange rate of %s: %w", denom, err)
			}
			if !rate.IsPositive() {
				return nil, fmt.Errorf("exchange rate of %s must be positive", denom)
			}
			rates[denom] = rate
		}
		opts = append(opts, host.WithExchangeRates(rates))
	}
	if g.MarketSpread != "" {
		spread, err := decimal.NewFromString(g.MarketSpread)
		if err != nil {
			return nil, fmt.Errorf("market_spread: %w", err)
		}
		opts = append(opts, host.WithMarketSpread(spread))
	}
	if g.MaxDepth > 0 {
		opts = append(opts, host.WithMaxDepth(g.MaxDepth))
	}
	return opts, nil
}

// resolveAddress keeps bech32 addresses of the chain and derives one from anything else.
func resolveAddress(c *host.Chain, ref string) string {
	if c.API().AddrValidate(ref) == nil {
		return ref
	}
	return c.Address(ref)
}

func resolveAsset(d *Deployment, ref string) (asset.AssetInfo, error) {
	if !strings.HasPrefix(ref, tokenRefPrefix) {
		return asset.NewNative(ref), nil
	}
	label := strings.TrimPrefix(ref, tokenRefPrefix)
	addr, ok := d.Tokens[label]
	if !ok {
		return asset.AssetInfo{}, fmt.Errorf("unknown token %q", label)
	}
	return asset.NewToken(addr), nil
}

func parseAmount(raw string) (math.Int, error) {
	amount, ok := math.NewIntFromString(raw)
	if !ok || amount.IsNegative() {
		return math.Int{}, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func parseCoins(raw map[string]string) ([]wasm.Coin, error) {
	coins := make([]wasm.Coin, 0, len(raw))
	for _, denom := range sortedKeys(raw) {
		amount, err := parseAmount(raw[denom])
		if err != nil {
			return nil, fmt.Errorf("coin %s: %w", denom, err)
		}
		coins = append(coins, wasm.NewCoin(denom, amount))
	}
	return coins, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
