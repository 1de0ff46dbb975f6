// Package asset models what a strategy moves around: native coins held by the bank module and cw20
// tokens held by their own contracts, with balance lookup and the native transfer tax.
package asset

import (
	"fmt"

	"cosmossdk.io/math"

	errorsmod "cosmossdk.io/errors"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

// NativeToken identifies a coin of the host chain by denom.
type NativeToken struct {
	Denom string `json:"denom"`
}

// Token identifies a cw20 token by its contract address.
type Token struct {
	ContractAddr string `json:"contract_addr"`
}

// AssetInfo is a tagged variant, exactly one of Token and NativeToken is set.
type AssetInfo struct {
	Token       *Token       `json:"token,omitempty"`
	NativeToken *NativeToken `json:"native_token,omitempty"`
}

func NewNative(denom string) AssetInfo {
	return AssetInfo{NativeToken: &NativeToken{Denom: denom}}
}

func NewToken(contractAddr string) AssetInfo {
	return AssetInfo{Token: &Token{ContractAddr: contractAddr}}
}

func (a AssetInfo) IsNative() bool {
	return a.NativeToken != nil
}

// Equal compares variant and identifying field.
func (a AssetInfo) Equal(b AssetInfo) bool {
	switch {
	case a.NativeToken != nil && b.NativeToken != nil:
		return a.NativeToken.Denom == b.NativeToken.Denom
	case a.Token != nil && b.Token != nil:
		return a.Token.ContractAddr == b.Token.ContractAddr
	default:
		return false
	}
}

// String returns the denom of a native asset or the contract address of a token.
func (a AssetInfo) String() string {
	switch {
	case a.NativeToken != nil:
		return a.NativeToken.Denom
	case a.Token != nil:
		return a.Token.ContractAddr
	default:
		return ""
	}
}

// Validate checks that exactly one variant is set and that its identifier is usable.
// A nil api skips address validation of tokens.
func (a AssetInfo) Validate(api wasm.API) error {
	if (a.NativeToken == nil) == (a.Token == nil) {
		return errorsmod.Wrap(errs.ErrInvalidRequest, "asset info must set exactly one of native_token or token")
	}
	if a.NativeToken != nil {
		if a.NativeToken.Denom == "" {
			return errorsmod.Wrap(errs.ErrInvalidRequest, "native token denom is empty")
		}
		return nil
	}
	if a.Token.ContractAddr == "" {
		return errorsmod.Wrap(errs.ErrInvalidRequest, "token contract address is empty")
	}
	if api != nil {
		if err := api.AddrValidate(a.Token.ContractAddr); err != nil {
			return errorsmod.Wrap(errs.ErrInvalidRequest, err.Error())
		}
	}
	return nil
}

// Asset is an amount of a given asset. Amount is never negative.
type Asset struct {
	Info   AssetInfo `json:"info"`
	Amount math.Int  `json:"amount"`
}

func New(info AssetInfo, amount math.Int) Asset {
	return Asset{Info: info, Amount: amount}
}

func (a Asset) Validate(api wasm.API) error {
	if err := a.Info.Validate(api); err != nil {
		return err
	}
	return ValidateAmount(a.Amount, "amount")
}

func (a Asset) String() string {
	return fmt.Sprintf("%s%s", a.Amount, a.Info)
}

// ToCoin converts a native asset into a coin.
func (a Asset) ToCoin() (wasm.Coin, error) {
	if !a.Info.IsNative() {
		return wasm.Coin{}, errorsmod.Wrapf(errs.ErrUnsupportedAsset, "%s is not a native asset", a.Info)
	}
	return wasm.NewCoin(a.Info.NativeToken.Denom, a.Amount), nil
}

// ValidateAmount rejects unset and negative amounts; field names the value in the error.
func ValidateAmount(amount math.Int, field string) error {
	if amount.IsNil() {
		return errorsmod.Wrapf(errs.ErrInvalidRequest, "%s is required", field)
	}
	if amount.IsNegative() {
		return errorsmod.Wrapf(errs.ErrInvalidRequest, "%s must not be negative, got %s", field, amount)
	}
	return nil
}

// CheckedSub returns a - b, failing instead of going below zero.
func CheckedSub(a, b math.Int) (math.Int, error) {
	if a.LT(b) {
		return math.Int{}, errorsmod.Wrapf(errs.ErrOverflow, "cannot subtract %s from %s", b, a)
	}
	return a.Sub(b), nil
}
