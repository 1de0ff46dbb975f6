// Package terraswap holds the message shapes of terraswap style pair and factory contracts,
// the liquidity pools a strategy step can route through.
package terraswap

import (
	"context"
	"encoding/json"

	"cosmossdk.io/math"
	"github.com/shopspring/decimal"

	errorsmod "cosmossdk.io/errors"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/asset"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

// PairExecuteMsg is the execute interface of a pair.
type PairExecuteMsg struct {
	Swap    *SwapMsg             `json:"swap,omitempty"`
	Receive *wasm.Cw20ReceiveMsg `json:"receive,omitempty"`
}

// SwapMsg swaps a native offer asset sent along as funds.
type SwapMsg struct {
	OfferAsset  asset.Asset      `json:"offer_asset"`
	BeliefPrice *decimal.Decimal `json:"belief_price,omitempty"`
	MaxSpread   *decimal.Decimal `json:"max_spread,omitempty"`
	To          *string          `json:"to,omitempty"`
}

// Cw20HookMsg is embedded in a cw20 send to a pair.
type Cw20HookMsg struct {
	Swap *SwapHook `json:"swap,omitempty"`
}

type SwapHook struct {
	BeliefPrice *decimal.Decimal `json:"belief_price,omitempty"`
	MaxSpread   *decimal.Decimal `json:"max_spread,omitempty"`
	To          *string          `json:"to,omitempty"`
}

// PairQueryMsg is the query interface of a pair.
type PairQueryMsg struct {
	Pair       *struct{}        `json:"pair,omitempty"`
	Pool       *struct{}        `json:"pool,omitempty"`
	Simulation *SimulationQuery `json:"simulation,omitempty"`
}

type SimulationQuery struct {
	OfferAsset asset.Asset `json:"offer_asset"`
}

type SimulationResponse struct {
	ReturnAmount     math.Int `json:"return_amount"`
	SpreadAmount     math.Int `json:"spread_amount"`
	CommissionAmount math.Int `json:"commission_amount"`
}

// PairInfo describes a pair as reported by the pair itself and by the factory.
type PairInfo struct {
	AssetInfos     [2]asset.AssetInfo `json:"asset_infos"`
	ContractAddr   string             `json:"contract_addr"`
	LiquidityToken string             `json:"liquidity_token"`
}

type PoolResponse struct {
	Assets     [2]asset.Asset `json:"assets"`
	TotalShare math.Int       `json:"total_share"`
}

// FactoryQueryMsg is the query interface of a factory.
type FactoryQueryMsg struct {
	Pair *PairQuery `json:"pair,omitempty"`
}

// PairQuery looks a pair up by its two assets, in any order.
type PairQuery struct {
	AssetInfos [2]asset.AssetInfo `json:"asset_infos"`
}

// FactoryExecuteMsg is the execute interface of a factory.
type FactoryExecuteMsg struct {
	RegisterPair *RegisterPair `json:"register_pair,omitempty"`
}

// RegisterPair records an existing pair contract under its asset pair.
type RegisterPair struct {
	AssetInfos   [2]asset.AssetInfo `json:"asset_infos"`
	ContractAddr string             `json:"contract_addr"`
}

// QueryPair resolves the pair contract trading a and b through factory.
func QueryPair(ctx context.Context, querier wasm.Querier, factory string, a, b asset.AssetInfo) (PairInfo, error) {
	query, err := json.Marshal(FactoryQueryMsg{Pair: &PairQuery{AssetInfos: [2]asset.AssetInfo{a, b}}})
	if err != nil {
		return PairInfo{}, errorsmod.Wrap(errs.ErrSerialization, err.Error())
	}
	bz, err := querier.QueryWasmSmart(ctx, factory, query)
	if err != nil {
		return PairInfo{}, errorsmod.Wrapf(errs.ErrQuery, "pair %s-%s on factory %s: %v", a, b, factory, err)
	}
	var info PairInfo
	if err := json.Unmarshal(bz, &info); err != nil {
		return PairInfo{}, errorsmod.Wrapf(errs.ErrSerialization, "pair response of factory %s: %v", factory, err)
	}
	if info.ContractAddr == "" {
		return PairInfo{}, errorsmod.Wrapf(errs.ErrQuery, "factory %s returned no pair for %s-%s", factory, a, b)
	}
	return info, nil
}
