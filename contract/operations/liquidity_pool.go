package operations

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	errorsmod "cosmossdk.io/errors"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/asset"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/terraswap"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

const LiquidityPoolSwapTag = "liquidity_pool_swap"

func init() {
	Register(LiquidityPoolSwapTag, func() Operation { return &LiquidityPoolSwap{} })
}

// LiquidityPoolSwap routes a hop through the terraswap pair registered for the asset pair on FactoryAddr.
// BeliefPrice and MaxSpread are handed to the pair untouched.
type LiquidityPoolSwap struct {
	FactoryAddr string           `json:"factory_addr"`
	BeliefPrice *decimal.Decimal `json:"belief_price,omitempty"`
	MaxSpread   *decimal.Decimal `json:"max_spread,omitempty"`
}

func NewLiquidityPoolSwap(factoryAddr string) *LiquidityPoolSwap {
	return &LiquidityPoolSwap{FactoryAddr: factoryAddr}
}

// WithPriceGuard sets the belief price and max spread the pair checks the swap against.
func (op *LiquidityPoolSwap) WithPriceGuard(beliefPrice, maxSpread *decimal.Decimal) *LiquidityPoolSwap {
	op.BeliefPrice = beliefPrice
	op.MaxSpread = maxSpread
	return op
}

func (op *LiquidityPoolSwap) Tag() string {
	return LiquidityPoolSwapTag
}

func (op *LiquidityPoolSwap) Validate(api wasm.API) error {
	if op.FactoryAddr == "" {
		return errorsmod.Wrap(errs.ErrInvalidRequest, "liquidity pool swap: factory_addr is required")
	}
	if api != nil {
		if err := api.AddrValidate(op.FactoryAddr); err != nil {
			return errorsmod.Wrapf(errs.ErrInvalidRequest, "liquidity pool swap: %v", err)
		}
	}
	if op.BeliefPrice != nil && !op.BeliefPrice.IsPositive() {
		return errorsmod.Wrapf(errs.ErrInvalidRequest, "liquidity pool swap: belief_price must be positive, got %s", op.BeliefPrice)
	}
	if op.MaxSpread != nil && (op.MaxSpread.IsNegative() || op.MaxSpread.GreaterThan(decimal.NewFromInt(1))) {
		return errorsmod.Wrapf(errs.ErrInvalidRequest, "liquidity pool swap: max_spread must be within [0, 1], got %s", op.MaxSpread)
	}
	return nil
}

// CreateExecutionMessage swaps on the pair resolved from the factory. A native offer is sent as funds
// net of transfer tax so that the pair receives exactly what the swap message states; a token offer is
// wrapped in a cw20 send to the pair, because only the token contract can move the tokens.
func (op *LiquidityPoolSwap) CreateExecutionMessage(
	ctx context.Context,
	deps Deps,
	offer asset.Asset,
	ask asset.AssetInfo,
	to *string,
) (wasm.CosmosMsg, error) {
	pair, err := terraswap.QueryPair(ctx, deps.Querier, op.FactoryAddr, offer.Info, ask)
	if err != nil {
		return wasm.CosmosMsg{}, err
	}

	if offer.Info.IsNative() {
		net, err := asset.DeductTax(ctx, deps.Querier, offer)
		if err != nil {
			return wasm.CosmosMsg{}, err
		}
		coin, err := net.ToCoin()
		if err != nil {
			return wasm.CosmosMsg{}, err
		}
		msg, err := wasm.NewExecuteMsg(pair.ContractAddr, terraswap.PairExecuteMsg{
			Swap: &terraswap.SwapMsg{
				OfferAsset:  net,
				BeliefPrice: op.BeliefPrice,
				MaxSpread:   op.MaxSpread,
				To:          to,
			},
		}, coin)
		if err != nil {
			return wasm.CosmosMsg{}, errorsmod.Wrap(errs.ErrSerialization, err.Error())
		}
		return msg, nil
	}

	hook, err := json.Marshal(terraswap.Cw20HookMsg{
		Swap: &terraswap.SwapHook{
			BeliefPrice: op.BeliefPrice,
			MaxSpread:   op.MaxSpread,
			To:          to,
		},
	})
	if err != nil {
		return wasm.CosmosMsg{}, errorsmod.Wrap(errs.ErrSerialization, err.Error())
	}
	msg, err := wasm.NewExecuteMsg(offer.Info.Token.ContractAddr, wasm.Cw20ExecuteMsg{
		Send: &wasm.Cw20Send{
			Contract: pair.ContractAddr,
			Amount:   offer.Amount,
			Msg:      hook,
		},
	})
	if err != nil {
		return wasm.CosmosMsg{}, errorsmod.Wrap(errs.ErrSerialization, err.Error())
	}
	return msg, nil
}
