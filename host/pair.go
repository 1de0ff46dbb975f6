package host

import (
	"context"
	"encoding/json"

	"cosmossdk.io/math"
	"github.com/shopspring/decimal"

	errorsmod "cosmossdk.io/errors"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/asset"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/terraswap"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

// DefaultPairCommission is the share of every swap return kept by the pool.
var DefaultPairCommission = decimal.RequireFromString("0.003")

var pairConfigKey = []byte("pair_config")

// PairInstantiateMsg creates a pair. The pool is whatever the pair address holds of both assets.
type PairInstantiateMsg struct {
	AssetInfos [2]asset.AssetInfo `json:"asset_infos"`
	Commission *decimal.Decimal   `json:"commission,omitempty"`
}

type pairConfig struct {
	AssetInfos [2]asset.AssetInfo `json:"asset_infos"`
	Commission decimal.Decimal    `json:"commission"`
}

// XykPair is a terraswap constant product pair.
type XykPair struct{}

func (XykPair) Instantiate(_ context.Context, deps wasm.Deps, _ wasm.Env, _ wasm.MessageInfo, msg []byte) (*wasm.Response, error) {
	var init PairInstantiateMsg
	if err := json.Unmarshal(msg, &init); err != nil {
		return nil, errorsmod.Wrapf(errs.ErrSerialization, "pair instantiate: %v", err)
	}
	for _, info := range init.AssetInfos {
		if err := info.Validate(deps.API); err != nil {
			return nil, err
		}
	}
	if init.AssetInfos[0].Equal(init.AssetInfos[1]) {
		return nil, errorsmod.Wrapf(errs.ErrInvalidRequest, "pair assets must differ, got %s twice", init.AssetInfos[0])
	}
	cfg := pairConfig{AssetInfos: init.AssetInfos, Commission: DefaultPairCommission}
	if init.Commission != nil {
		if init.Commission.IsNegative() || init.Commission.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, errorsmod.Wrapf(errs.ErrInvalidRequest, "pair commission must be within [0, 1), got %s", init.Commission)
		}
		cfg.Commission = *init.Commission
	}
	if err := saveJSON(deps.Storage, pairConfigKey, cfg); err != nil {
		return nil, err
	}
	return wasm.NewResponse().
		AddAttribute("action", "instantiate_pair").
		AddAttribute("pair", init.AssetInfos[0].String()+"-"+init.AssetInfos[1].String()), nil
}

func (p XykPair) Execute(ctx context.Context, deps wasm.Deps, env wasm.Env, info wasm.MessageInfo, msg []byte) (*wasm.Response, error) {
	var exec terraswap.PairExecuteMsg
	if err := json.Unmarshal(msg, &exec); err != nil {
		return nil, errorsmod.Wrapf(errs.ErrSerialization, "pair execute: %v", err)
	}
	cfg, err := loadPairConfig(deps.Storage)
	if err != nil {
		return nil, err
	}

	switch {
	case exec.Swap != nil:
		offer := exec.Swap.OfferAsset
		if !offer.Info.IsNative() {
			return nil, errorsmod.Wrap(errs.ErrUnauthorized, "token offers must arrive through a cw20 send")
		}
		if err := offer.Validate(deps.API); err != nil {
			return nil, err
		}
		if !sentAmount(info.Funds, offer.Info.NativeToken.Denom).Equal(offer.Amount) {
			return nil, errorsmod.Wrapf(errs.ErrInvalidRequest, "native token balance mismatch between the argument (%s) and the transferred (%s)",
				offer.Amount, sentAmount(info.Funds, offer.Info.NativeToken.Denom))
		}
		receiver := info.Sender
		if exec.Swap.To != nil {
			receiver = *exec.Swap.To
		}
		return p.swap(ctx, deps, env, cfg, info.Sender, receiver, offer, exec.Swap.BeliefPrice, exec.Swap.MaxSpread)

	case exec.Receive != nil:
		token := asset.NewToken(info.Sender)
		if !cfg.AssetInfos[0].Equal(token) && !cfg.AssetInfos[1].Equal(token) {
			return nil, errorsmod.Wrapf(errs.ErrUnauthorized, "token %s is not traded by this pair", info.Sender)
		}
		var hook terraswap.Cw20HookMsg
		if err := json.Unmarshal(exec.Receive.Msg, &hook); err != nil {
			return nil, errorsmod.Wrapf(errs.ErrSerialization, "pair hook: %v", err)
		}
		if hook.Swap == nil {
			return nil, errorsmod.Wrap(errs.ErrInvalidRequest, "pair hook: unknown message")
		}
		receiver := exec.Receive.Sender
		if hook.Swap.To != nil {
			receiver = *hook.Swap.To
		}
		offer := asset.New(token, exec.Receive.Amount)
		return p.swap(ctx, deps, env, cfg, exec.Receive.Sender, receiver, offer, hook.Swap.BeliefPrice, hook.Swap.MaxSpread)
	}
	return nil, errorsmod.Wrap(errs.ErrInvalidRequest, "pair execute: unknown message")
}

// swap runs after the offer already sits on the pair, so the offer pool excludes it.
func (XykPair) swap(
	ctx context.Context,
	deps wasm.Deps,
	env wasm.Env,
	cfg pairConfig,
	sender, receiver string,
	offer asset.Asset,
	beliefPrice, maxSpread *decimal.Decimal,
) (*wasm.Response, error) {
	if err := deps.API.AddrValidate(receiver); err != nil {
		return nil, errorsmod.Wrapf(errs.ErrInvalidRequest, "swap receiver: %v", err)
	}
	offerInfo, askInfo, err := cfg.sides(offer.Info)
	if err != nil {
		return nil, err
	}
	pools, err := pairPools(ctx, deps.Querier, env.Contract.Address, cfg)
	if err != nil {
		return nil, err
	}
	offerPool := pools[offerInfo].Amount
	offerPool, err = asset.CheckedSub(offerPool, offer.Amount)
	if err != nil {
		return nil, err
	}
	askPool := pools[askInfo].Amount

	sim, err := computeSwap(offerPool, askPool, offer.Amount, cfg.Commission)
	if err != nil {
		return nil, err
	}
	if err := assertMaxSpread(beliefPrice, maxSpread, offer.Amount, sim.ReturnAmount, sim.SpreadAmount); err != nil {
		return nil, err
	}

	ask := asset.New(cfg.AssetInfos[askInfo], sim.ReturnAmount)
	payout, err := payoutMsg(ctx, deps.Querier, ask, receiver)
	if err != nil {
		return nil, err
	}
	return wasm.NewResponse().
		AddMessage(payout).
		AddAttribute("action", "swap").
		AddAttribute("sender", sender).
		AddAttribute("receiver", receiver).
		AddAttribute("offer_asset", offer.Info.String()).
		AddAttribute("ask_asset", ask.Info.String()).
		AddAttribute("offer_amount", offer.Amount.String()).
		AddAttribute("return_amount", sim.ReturnAmount.String()).
		AddAttribute("spread_amount", sim.SpreadAmount.String()).
		AddAttribute("commission_amount", sim.CommissionAmount.String()), nil
}

func (XykPair) Query(ctx context.Context, deps wasm.Deps, env wasm.Env, msg []byte) ([]byte, error) {
	var query terraswap.PairQueryMsg
	if err := json.Unmarshal(msg, &query); err != nil {
		return nil, errorsmod.Wrapf(errs.ErrSerialization, "pair query: %v", err)
	}
	cfg, err := loadPairConfig(deps.Storage)
	if err != nil {
		return nil, err
	}
	switch {
	case query.Pair != nil:
		return json.Marshal(terraswap.PairInfo{AssetInfos: cfg.AssetInfos, ContractAddr: env.Contract.Address})
	case query.Pool != nil:
		pools, err := pairPools(ctx, deps.Querier, env.Contract.Address, cfg)
		if err != nil {
			return nil, err
		}
		return json.Marshal(terraswap.PoolResponse{Assets: pools, TotalShare: math.ZeroInt()})
	case query.Simulation != nil:
		offer := query.Simulation.OfferAsset
		offerInfo, askInfo, err := cfg.sides(offer.Info)
		if err != nil {
			return nil, err
		}
		pools, err := pairPools(ctx, deps.Querier, env.Contract.Address, cfg)
		if err != nil {
			return nil, err
		}
		sim, err := computeSwap(pools[offerInfo].Amount, pools[askInfo].Amount, offer.Amount, cfg.Commission)
		if err != nil {
			return nil, err
		}
		return json.Marshal(sim)
	}
	return nil, errorsmod.Wrap(errs.ErrInvalidRequest, "pair query: unknown query")
}

func loadPairConfig(store wasm.Storage) (pairConfig, error) {
	var cfg pairConfig
	err := loadJSON(store, pairConfigKey, &cfg)
	return cfg, err
}

// sides returns the pool index of offer and of the other asset.
func (cfg pairConfig) sides(offer asset.AssetInfo) (int, int, error) {
	switch {
	case cfg.AssetInfos[0].Equal(offer):
		return 0, 1, nil
	case cfg.AssetInfos[1].Equal(offer):
		return 1, 0, nil
	}
	return 0, 0, errorsmod.Wrapf(errs.ErrInvalidRequest, "asset %s is not traded by pair %s-%s", offer, cfg.AssetInfos[0], cfg.AssetInfos[1])
}

func pairPools(ctx context.Context, querier wasm.Querier, pairAddr string, cfg pairConfig) ([2]asset.Asset, error) {
	var pools [2]asset.Asset
	for i, info := range cfg.AssetInfos {
		amount, err := asset.QueryBalance(ctx, querier, info, pairAddr)
		if err != nil {
			return pools, err
		}
		pools[i] = asset.New(info, amount)
	}
	return pools, nil
}

// computeSwap is the constant product formula with the commission taken from the return.
func computeSwap(offerPool, askPool, offerAmount math.Int, commission decimal.Decimal) (terraswap.SimulationResponse, error) {
	if offerAmount.IsNil() || !offerAmount.IsPositive() {
		return terraswap.SimulationResponse{}, errorsmod.Wrapf(errs.ErrInvalidRequest, "invalid offer amount %s", offerAmount)
	}
	if !offerPool.IsPositive() || !askPool.IsPositive() {
		return terraswap.SimulationResponse{}, errorsmod.Wrapf(errs.ErrInvalidRequest, "pool is empty: offer pool %s, ask pool %s", offerPool, askPool)
	}
	cp := offerPool.Mul(askPool)
	returnAmount := askPool.Sub(cp.Quo(offerPool.Add(offerAmount)))
	spread := offerAmount.Mul(askPool).Quo(offerPool).Sub(returnAmount)
	if spread.IsNegative() {
		spread = math.ZeroInt()
	}
	fee := math.NewIntFromBigInt(decimal.NewFromBigInt(returnAmount.BigInt(), 0).Mul(commission).Floor().BigInt())
	returnAmount = returnAmount.Sub(fee)
	if !returnAmount.IsPositive() {
		return terraswap.SimulationResponse{}, errorsmod.Wrapf(errs.ErrInvalidRequest, "swap of %s returns nothing", offerAmount)
	}
	return terraswap.SimulationResponse{ReturnAmount: returnAmount, SpreadAmount: spread, CommissionAmount: fee}, nil
}

// assertMaxSpread checks the realised spread only when a max spread is given. With a belief price
// the spread is measured against the believed return, otherwise against the pool price.
func assertMaxSpread(beliefPrice, maxSpread *decimal.Decimal, offerAmount, returnAmount, spreadAmount math.Int) error {
	if maxSpread == nil {
		return nil
	}
	if beliefPrice != nil {
		expected := decimal.NewFromBigInt(offerAmount.BigInt(), 0).Div(*beliefPrice).Floor()
		got := decimal.NewFromBigInt(returnAmount.BigInt(), 0)
		if got.LessThan(expected) {
			spread := expected.Sub(got)
			if spread.Div(expected).GreaterThan(*maxSpread) {
				return errorsmod.Wrapf(errs.ErrMaxSpread, "return %s is below belief %s by more than %s", got, expected, maxSpread)
			}
		}
		return nil
	}
	total := returnAmount.Add(spreadAmount)
	if total.IsZero() {
		return nil
	}
	ratio := decimal.NewFromBigInt(spreadAmount.BigInt(), 0).Div(decimal.NewFromBigInt(total.BigInt(), 0))
	if ratio.GreaterThan(*maxSpread) {
		return errorsmod.Wrapf(errs.ErrMaxSpread, "spread %s exceeds max spread %s", ratio.StringFixed(4), maxSpread)
	}
	return nil
}

// payoutMsg sends a swap return. Native returns are reduced by the transfer tax the send costs.
func payoutMsg(ctx context.Context, querier wasm.Querier, ret asset.Asset, receiver string) (wasm.CosmosMsg, error) {
	if ret.Info.IsNative() {
		net, err := asset.DeductTax(ctx, querier, ret)
		if err != nil {
			return wasm.CosmosMsg{}, err
		}
		coin, err := net.ToCoin()
		if err != nil {
			return wasm.CosmosMsg{}, err
		}
		return wasm.NewBankSend(receiver, coin), nil
	}
	msg, err := wasm.NewExecuteMsg(ret.Info.Token.ContractAddr, wasm.Cw20ExecuteMsg{
		Transfer: &wasm.Cw20Transfer{Recipient: receiver, Amount: ret.Amount},
	})
	if err != nil {
		return wasm.CosmosMsg{}, errorsmod.Wrap(errs.ErrSerialization, err.Error())
	}
	return msg, nil
}

func sentAmount(funds []wasm.Coin, denom string) math.Int {
	for _, coin := range funds {
		if coin.Denom == denom {
			return coin.Amount
		}
	}
	return math.ZeroInt()
}
