package host_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cosmossdk.io/math"
	"github.com/shopspring/decimal"
	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/asset"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/terraswap"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
	"github.com/Cogwheel-Validator/spectra-step-by-step/host"
)

func TestPair_Simulation(t *testing.T) {
	f := newFixture(t)
	bz, err := f.chain.QuerySmart(context.Background(), f.pair, terraswap.PairQueryMsg{
		Simulation: &terraswap.SimulationQuery{OfferAsset: asset.New(uusd, math.NewInt(4_950))},
	})
	assert.NoError(t, err)

	var sim terraswap.SimulationResponse
	assert.NoError(t, json.Unmarshal(bz, &sim))
	assert.Equal(t, sim.ReturnAmount.Int64(), int64(2_462))
	assert.Equal(t, sim.CommissionAmount.Int64(), int64(7))
	assert.Equal(t, sim.SpreadAmount.Int64(), int64(6))
}

func TestPair_Pool(t *testing.T) {
	f := newFixture(t)
	bz, err := f.chain.QuerySmart(context.Background(), f.pair, terraswap.PairQueryMsg{Pool: &struct{}{}})
	assert.NoError(t, err)

	var pool terraswap.PoolResponse
	assert.NoError(t, json.Unmarshal(bz, &pool))
	assert.Equal(t, pool.Assets[0].Amount.Int64(), int64(2_000_000))
	assert.Equal(t, pool.Assets[1].Amount.Int64(), int64(1_000_000))
}

func TestPair_MaxSpread(t *testing.T) {
	f := newFixture(t)
	spread := decimal.RequireFromString("0.001")
	offer := asset.New(uusd, math.NewInt(500_000))

	_, err := f.chain.Execute(context.Background(), f.user, f.pair, terraswap.PairExecuteMsg{
		Swap: &terraswap.SwapMsg{OfferAsset: offer, MaxSpread: &spread},
	}, wasm.NewCoin("uusd", math.NewInt(500_000)))
	assert.True(t, errors.Is(err, errs.ErrMaxSpread))

	belief := decimal.RequireFromString("2")
	_, err = f.chain.Execute(context.Background(), f.user, f.pair, terraswap.PairExecuteMsg{
		Swap: &terraswap.SwapMsg{OfferAsset: offer, BeliefPrice: &belief, MaxSpread: &spread},
	}, wasm.NewCoin("uusd", math.NewInt(500_000)))
	assert.True(t, errors.Is(err, errs.ErrMaxSpread))
	assert.Equal(t, f.chain.Balance(f.user, "uusd").Int64(), int64(1_000_000))
}

func TestPair_FundsMustMatchOffer(t *testing.T) {
	f := newFixture(t)
	_, err := f.chain.Execute(context.Background(), f.user, f.pair, terraswap.PairExecuteMsg{
		Swap: &terraswap.SwapMsg{OfferAsset: asset.New(uusd, math.NewInt(1_000))},
	}, wasm.NewCoin("uusd", math.NewInt(900)))
	assert.True(t, errors.Is(err, errs.ErrInvalidRequest))
}

func TestFactory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	info, err := terraswap.QueryPair(ctx, f.chain.Querier(), f.factory, uusd, asset.NewToken(f.mirror))
	assert.NoError(t, err)
	assert.Equal(t, info.ContractAddr, f.pair)

	_, err = terraswap.QueryPair(ctx, f.chain.Querier(), f.factory, uusd, uluna)
	assert.True(t, errors.Is(err, errs.ErrQuery))

	_, err = f.chain.Execute(ctx, f.user, f.factory, terraswap.FactoryExecuteMsg{RegisterPair: &terraswap.RegisterPair{
		AssetInfos:   [2]asset.AssetInfo{uusd, uluna},
		ContractAddr: f.pair,
	}})
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))

	_, err = f.chain.Execute(ctx, f.admin, f.factory, terraswap.FactoryExecuteMsg{RegisterPair: &terraswap.RegisterPair{
		AssetInfos:   [2]asset.AssetInfo{uusd, uluna},
		ContractAddr: f.pair,
	}})
	assert.True(t, errors.Is(err, errs.ErrInvalidRequest))
}

func TestCw20_Mint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token, _, err := f.chain.Instantiate(ctx, f.admin, "anchor", host.Cw20Token{}, wasm.Cw20InstantiateMsg{
		Name: "Anchor", Symbol: "ANC", Decimals: 6, Mint: &wasm.Cw20MinterInfo{Minter: f.admin},
	})
	assert.NoError(t, err)

	mint := wasm.Cw20ExecuteMsg{Mint: &wasm.Cw20Mint{Recipient: f.user, Amount: math.NewInt(42)}}
	_, err = f.chain.Execute(ctx, f.user, token, mint)
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))
	_, err = f.chain.Execute(ctx, f.admin, token, mint)
	assert.NoError(t, err)

	amount, err := asset.QueryTokenBalance(ctx, f.chain.Querier(), token, f.user)
	assert.NoError(t, err)
	assert.Equal(t, amount.Int64(), int64(42))
}
