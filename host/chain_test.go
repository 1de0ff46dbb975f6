package host_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/asset"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/operations"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/terraswap"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
	"github.com/Cogwheel-Validator/spectra-step-by-step/host"
)

var (
	uusd  = asset.NewNative("uusd")
	uluna = asset.NewNative("uluna")
)

type fixture struct {
	chain    *host.Chain
	admin    string
	user     string
	mirror   string
	pair     string
	factory  string
	strategy string
}

// newFixture builds a chain with a uusd/MIR pool priced at 2 uusd per MIR, a factory that knows it
// and the strategy contract. The user holds uusd, uluna and MIR.
func newFixture(t *testing.T, opts ...host.Option) fixture {
	t.Helper()
	ctx := context.Background()
	opts = append([]host.Option{
		host.WithTax(decimal.RequireFromString("0.01"), nil),
		host.WithExchangeRates(map[string]decimal.Decimal{"uusd": decimal.NewFromInt(50)}),
	}, opts...)
	c := host.New("localterra", "terra", opts...)

	f := fixture{chain: c, admin: c.Address("admin"), user: c.Address("user")}
	f.pair = c.ContractAddress("uusd-mir")

	assert.NoError(t, c.Mint(f.user, wasm.NewCoin("uusd", math.NewInt(1_000_000)), wasm.NewCoin("uluna", math.NewInt(1_000))))
	assert.NoError(t, c.Mint(f.pair, wasm.NewCoin("uusd", math.NewInt(2_000_000))))

	var err error
	f.mirror, _, err = c.Instantiate(ctx, f.admin, "mirror", host.Cw20Token{}, wasm.Cw20InstantiateMsg{
		Name: "Mirror", Symbol: "MIR", Decimals: 6,
		InitialBalances: []wasm.Cw20Coin{
			{Address: f.pair, Amount: math.NewInt(1_000_000)},
			{Address: f.user, Amount: math.NewInt(5_000)},
		},
	})
	assert.NoError(t, err)

	pair, _, err := c.Instantiate(ctx, f.admin, "uusd-mir", host.XykPair{}, host.PairInstantiateMsg{
		AssetInfos: [2]asset.AssetInfo{uusd, asset.NewToken(f.mirror)},
	})
	assert.NoError(t, err)
	assert.Equal(t, pair, f.pair)

	f.factory, _, err = c.Instantiate(ctx, f.admin, "factory", host.Factory{}, struct{}{})
	assert.NoError(t, err)
	_, err = c.Execute(ctx, f.admin, f.factory, terraswap.FactoryExecuteMsg{RegisterPair: &terraswap.RegisterPair{
		AssetInfos:   [2]asset.AssetInfo{asset.NewToken(f.mirror), uusd},
		ContractAddr: f.pair,
	}})
	assert.NoError(t, err)

	f.strategy, _, err = c.Instantiate(ctx, f.admin, "strategy", host.StrategyContract{}, contract.InstantiateMsg{Commission: 1})
	assert.NoError(t, err)
	return f
}

func (f fixture) tokenBalance(t *testing.T, holder string) int64 {
	t.Helper()
	amount, err := asset.QueryTokenBalance(context.Background(), f.chain.Querier(), f.mirror, holder)
	assert.NoError(t, err)
	return amount.Int64()
}

func (f fixture) lunaToMirror(minimum int64) contract.ExecuteMsg {
	return contract.ExecuteMsg{ExecuteStrategy: &contract.ExecuteStrategy{
		Steps: []contract.StrategyStep{
			contract.NewStrategyStep(uluna, uusd, operations.NewMarketSwap()),
			contract.NewStrategyStep(uusd, asset.NewToken(f.mirror), operations.NewLiquidityPoolSwap(f.factory)),
		},
		MinimumReceive: math.NewInt(minimum),
	}}
}

func TestStrategy_MultiHop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.chain.Execute(ctx, f.user, f.strategy, f.lunaToMirror(2_000), wasm.NewCoin("uluna", math.NewInt(100)))
	assert.NoError(t, err)
	assert.Equal(t, res.Messages, 7)

	// 100 uluna -> 5000 uusd on the market, 4950 uusd net of tax into the pool -> 2462 MIR
	assert.Equal(t, f.tokenBalance(t, f.user), int64(5_000+2_462))
	assert.Equal(t, f.chain.Balance(f.user, "uluna").Int64(), int64(900))
	assert.Equal(t, f.chain.Balance(f.strategy, "uusd").Int64(), int64(1))
	assert.Equal(t, f.chain.Balance(f.chain.Treasury(), "uusd").Int64(), int64(49))

	initial, ok := res.Attribute(f.strategy, "initial_balance")
	assert.True(t, ok)
	assert.Equal(t, initial, "5000")
	final, _ := res.Attribute(f.strategy, "final_balance")
	assert.Equal(t, final, "7462")
	target, _ := res.Attribute(f.strategy, "target_asset")
	assert.Equal(t, target, f.mirror)
}

func TestStrategy_MinimumReceiveRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	height := f.chain.Height()

	_, err := f.chain.Execute(ctx, f.user, f.strategy, f.lunaToMirror(2_463), wasm.NewCoin("uluna", math.NewInt(100)))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrAssertion))

	assert.Equal(t, f.chain.Height(), height)
	assert.Equal(t, f.chain.Balance(f.user, "uluna").Int64(), int64(1_000))
	assert.Equal(t, f.chain.Balance(f.strategy, "uluna").Int64(), int64(0))
	assert.Equal(t, f.chain.Balance(f.strategy, "uusd").Int64(), int64(0))
	assert.Equal(t, f.chain.Balance(f.pair, "uusd").Int64(), int64(2_000_000))
	assert.Equal(t, f.tokenBalance(t, f.user), int64(5_000))
	assert.Equal(t, f.tokenBalance(t, f.pair), int64(1_000_000))
}

func TestStrategy_TokenInputThroughReceive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hook, err := json.Marshal(contract.Cw20HookMsg{ExecuteStrategy: &contract.ExecuteStrategy{
		Steps: []contract.StrategyStep{
			contract.NewStrategyStep(asset.NewToken(f.mirror), uusd, operations.NewLiquidityPoolSwap(f.factory)),
		},
		MinimumReceive: math.NewInt(1_900),
	}})
	assert.NoError(t, err)

	res, err := f.chain.Execute(ctx, f.user, f.mirror, wasm.Cw20ExecuteMsg{Send: &wasm.Cw20Send{
		Contract: f.strategy,
		Amount:   math.NewInt(1_000),
		Msg:      hook,
	}})
	assert.NoError(t, err)
	assert.Equal(t, res.Messages, 7)

	// 1000 MIR -> 1994 uusd from the pool, sent on net of the 20 uusd the transfer costs
	assert.Equal(t, f.chain.Balance(f.user, "uusd").Int64(), int64(1_000_000+1_974))
	assert.Equal(t, f.tokenBalance(t, f.user), int64(4_000))
	assert.Equal(t, f.tokenBalance(t, f.strategy), int64(0))
}

func TestStrategy_StepCannotBeCalledDirectly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.NoError(t, f.chain.Mint(f.strategy, wasm.NewCoin("uusd", math.NewInt(1_000))))

	step := contract.NewStrategyStep(uusd, uluna, operations.NewMarketSwap())
	to := f.user
	_, err := f.chain.Execute(ctx, f.user, f.strategy, contract.ExecuteMsg{
		ExecuteStrategyStep: &contract.ExecuteStrategyStep{Step: step, To: &to},
	})
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))
	assert.Equal(t, f.chain.Balance(f.strategy, "uusd").Int64(), int64(1_000))
}

func TestStrategy_DepthLimit(t *testing.T) {
	f := newFixture(t, host.WithMaxDepth(1))
	_, err := f.chain.Execute(context.Background(), f.user, f.strategy, f.lunaToMirror(1), wasm.NewCoin("uluna", math.NewInt(100)))
	assert.True(t, errors.Is(err, errs.ErrDepthExceeded))
	assert.Equal(t, f.chain.Balance(f.user, "uluna").Int64(), int64(1_000))
}

func TestChain_TransferTax(t *testing.T) {
	c := host.New("localterra", "terra",
		host.WithTax(decimal.RequireFromString("0.01"), map[string]math.Int{"ukrw": math.NewInt(3)}))
	alice, bob := c.Address("alice"), c.Address("bob")
	assert.NoError(t, c.Mint(alice,
		wasm.NewCoin("uusd", math.NewInt(2_000)),
		wasm.NewCoin("ukrw", math.NewInt(2_000)),
		wasm.NewCoin("uluna", math.NewInt(2_000))))

	_, err := c.Dispatch(context.Background(), alice, wasm.NewBankSend(bob,
		wasm.NewCoin("uusd", math.NewInt(1_000)),
		wasm.NewCoin("ukrw", math.NewInt(1_000)),
		wasm.NewCoin("uluna", math.NewInt(1_000))))
	assert.NoError(t, err)

	assert.Equal(t, c.Balance(alice, "uusd").Int64(), int64(990))
	assert.Equal(t, c.Balance(alice, "ukrw").Int64(), int64(997))
	assert.Equal(t, c.Balance(alice, "uluna").Int64(), int64(1_000))
	assert.Equal(t, c.Balance(bob, "uusd").Int64(), int64(1_000))
	assert.Equal(t, c.Balance(c.Treasury(), "uusd").Int64(), int64(10))

	_, err = c.Dispatch(context.Background(), alice, wasm.NewBankSend(bob, wasm.NewCoin("uusd", math.NewInt(990))))
	assert.True(t, errors.Is(err, errs.ErrInsufficientFunds))
	assert.Equal(t, c.Balance(alice, "uusd").Int64(), int64(990))
}

func TestChain_SimulateDoesNotCommit(t *testing.T) {
	f := newFixture(t)
	res, err := f.chain.Simulate(context.Background(), f.user, f.strategy, f.lunaToMirror(1), wasm.NewCoin("uluna", math.NewInt(100)))
	assert.NoError(t, err)
	final, _ := res.Attribute(f.strategy, "final_balance")
	assert.Equal(t, final, "7462")
	assert.Equal(t, f.tokenBalance(t, f.user), int64(5_000))
	assert.Equal(t, f.chain.Balance(f.user, "uluna").Int64(), int64(1_000))
}

func TestChain_UnknownContract(t *testing.T) {
	f := newFixture(t)
	_, err := f.chain.Execute(context.Background(), f.user, f.chain.ContractAddress("nothing"), struct{}{})
	assert.True(t, errors.Is(err, errs.ErrUnknownContract))
}

func TestChain_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, host.WithMetrics(host.NewMetrics(reg)))
	_, err := f.chain.Execute(context.Background(), f.user, f.strategy, f.lunaToMirror(1), wasm.NewCoin("uluna", math.NewInt(100)))
	assert.NoError(t, err)

	families, err := reg.Gather()
	assert.NoError(t, err)
	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["stepbystep_host_units_total"])
	assert.True(t, names["stepbystep_host_messages_total"])
	assert.True(t, names["stepbystep_host_unit_seconds"])
}

func TestChain_QuerierReadsTreasury(t *testing.T) {
	capped := newFixture(t, host.WithTax(decimal.RequireFromString("0.02"), map[string]math.Int{"uusd": math.NewInt(300)}))
	ctx := context.Background()
	var querier wasm.Querier = capped.chain.Querier()

	rate, err := querier.QueryTaxRate(ctx)
	assert.NoError(t, err)
	assert.Equal(t, rate.String(), "0.02")

	cp, err := querier.QueryTaxCap(ctx, "uusd")
	assert.NoError(t, err)
	assert.Equal(t, cp.Int64(), int64(300))

	uncapped, err := querier.QueryTaxCap(ctx, "ukrw")
	assert.NoError(t, err)
	assert.True(t, uncapped.IsNil())

	balance, err := querier.QueryBalance(ctx, capped.user, "uluna")
	assert.NoError(t, err)
	assert.Equal(t, balance.Int64(), int64(1_000))
}
