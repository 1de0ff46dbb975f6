package asset

import (
	"context"
	"encoding/json"

	"cosmossdk.io/math"
	"github.com/shopspring/decimal"

	errorsmod "cosmossdk.io/errors"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

// TaxExemptDenom is never taxed on transfer.
const TaxExemptDenom = "uluna"

// decimalFraction scales the tax rate to an integer ratio, matching an 18 digit fixed point decimal.
var decimalFraction = math.NewIntFromBigInt(decimal.New(1, 18).BigInt())

// QueryBalance returns how much of info holder owns: the bank balance for native assets,
// the cw20 balance reported by the token contract otherwise.
func QueryBalance(ctx context.Context, querier wasm.Querier, info AssetInfo, holder string) (math.Int, error) {
	if info.NativeToken != nil {
		amount, err := querier.QueryBalance(ctx, holder, info.NativeToken.Denom)
		if err != nil {
			return math.Int{}, errorsmod.Wrapf(errs.ErrQuery, "balance of %s for %s: %v", info, holder, err)
		}
		return amount, nil
	}
	if info.Token == nil {
		return math.Int{}, errorsmod.Wrap(errs.ErrInvalidRequest, "asset info is empty")
	}
	return QueryTokenBalance(ctx, querier, info.Token.ContractAddr, holder)
}

// QueryTokenBalance asks a cw20 contract for the balance of holder.
func QueryTokenBalance(ctx context.Context, querier wasm.Querier, tokenAddr, holder string) (math.Int, error) {
	query, err := json.Marshal(wasm.Cw20QueryMsg{Balance: &wasm.Cw20BalanceQuery{Address: holder}})
	if err != nil {
		return math.Int{}, errorsmod.Wrap(errs.ErrSerialization, err.Error())
	}
	bz, err := querier.QueryWasmSmart(ctx, tokenAddr, query)
	if err != nil {
		return math.Int{}, errorsmod.Wrapf(errs.ErrQuery, "token balance of %s for %s: %v", tokenAddr, holder, err)
	}
	var resp wasm.Cw20BalanceResponse
	if err := json.Unmarshal(bz, &resp); err != nil {
		return math.Int{}, errorsmod.Wrapf(errs.ErrSerialization, "token balance response of %s: %v", tokenAddr, err)
	}
	if resp.Balance.IsNil() {
		return math.ZeroInt(), nil
	}
	return resp.Balance, nil
}

// ComputeTax returns the part of a native amount the host withholds when the remainder is transferred,
// so that (amount - tax) plus the tax charged on it never exceeds amount:
//
//	tax = min(amount - amount / (1 + rate), cap)
//
// Tokens and the exempt denom pay nothing.
func ComputeTax(ctx context.Context, querier wasm.Querier, a Asset) (math.Int, error) {
	if a.Info.NativeToken == nil || a.Info.NativeToken.Denom == TaxExemptDenom || !a.Amount.IsPositive() {
		return math.ZeroInt(), nil
	}
	denom := a.Info.NativeToken.Denom

	rate, err := querier.QueryTaxRate(ctx)
	if err != nil {
		return math.Int{}, errorsmod.Wrapf(errs.ErrQuery, "tax rate: %v", err)
	}
	if !rate.IsPositive() {
		return math.ZeroInt(), nil
	}
	taxCap, err := querier.QueryTaxCap(ctx, denom)
	if err != nil {
		return math.Int{}, errorsmod.Wrapf(errs.ErrQuery, "tax cap of %s: %v", denom, err)
	}

	scaledRate := math.NewIntFromBigInt(rate.Mul(decimal.New(1, 18)).Floor().BigInt())
	net := a.Amount.Mul(decimalFraction).Quo(decimalFraction.Add(scaledRate))
	tax, err := CheckedSub(a.Amount, net)
	if err != nil {
		return math.Int{}, err
	}
	if taxCap.IsNil() {
		return tax, nil
	}
	return math.MinInt(tax, taxCap), nil
}

// DeductTax returns the asset with the transfer tax removed from its amount.
func DeductTax(ctx context.Context, querier wasm.Querier, a Asset) (Asset, error) {
	tax, err := ComputeTax(ctx, querier, a)
	if err != nil {
		return Asset{}, err
	}
	net, err := CheckedSub(a.Amount, tax)
	if err != nil {
		return Asset{}, err
	}
	return New(a.Info, net), nil
}
