package operations

import (
	"context"

	errorsmod "cosmossdk.io/errors"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/asset"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

const MarketSwapTag = "market_swap"

func init() {
	Register(MarketSwapTag, func() Operation { return &MarketSwap{} })
}

// MarketSwap swaps native coins on the chain's oracle market. It carries no configuration.
type MarketSwap struct{}

func NewMarketSwap() *MarketSwap {
	return &MarketSwap{}
}

func (op *MarketSwap) Tag() string {
	return MarketSwapTag
}

func (op *MarketSwap) Validate(wasm.API) error {
	return nil
}

// CreateExecutionMessage builds a market swap. With a target the proceeds are sent there directly,
// which is a transfer, so the offer is reduced by the transfer tax first.
func (op *MarketSwap) CreateExecutionMessage(
	ctx context.Context,
	deps Deps,
	offer asset.Asset,
	ask asset.AssetInfo,
	to *string,
) (wasm.CosmosMsg, error) {
	if !offer.Info.IsNative() {
		return wasm.CosmosMsg{}, errorsmod.Wrapf(errs.ErrUnsupportedAsset, "market swap: offer %s is a token, only native coins are supported", offer.Info)
	}
	if !ask.IsNative() {
		return wasm.CosmosMsg{}, errorsmod.Wrapf(errs.ErrUnsupportedAsset, "market swap: ask %s is a token, only native coins are supported", ask)
	}

	if to != nil {
		net, err := asset.DeductTax(ctx, deps.Querier, offer)
		if err != nil {
			return wasm.CosmosMsg{}, err
		}
		coin, err := net.ToCoin()
		if err != nil {
			return wasm.CosmosMsg{}, err
		}
		return wasm.NewMarketSwapSendMsg(*to, coin, ask.NativeToken.Denom), nil
	}

	coin, err := offer.ToCoin()
	if err != nil {
		return wasm.CosmosMsg{}, err
	}
	return wasm.NewMarketSwapMsg(coin, ask.NativeToken.Denom), nil
}
