package host

import (
	"context"

	"cosmossdk.io/math"
	"github.com/shopspring/decimal"

	errorsmod "cosmossdk.io/errors"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/asset"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

const lunaDenom = asset.TaxExemptDenom

func (c *Chain) balance(address, denom string) math.Int {
	if amount, ok := c.state.bank[address][denom]; ok {
		return amount
	}
	return math.ZeroInt()
}

func (c *Chain) credit(address, denom string, amount math.Int) {
	if c.state.bank[address] == nil {
		c.state.bank[address] = make(map[string]math.Int)
	}
	c.state.bank[address][denom] = c.balance(address, denom).Add(amount)
}

func (c *Chain) debit(address, denom string, amount math.Int) error {
	if amount.IsZero() {
		return nil
	}
	held := c.balance(address, denom)
	if held.LT(amount) {
		return errorsmod.Wrapf(errs.ErrInsufficientFunds, "%s holds %s%s, needs %s%s", address, held, denom, amount, denom)
	}
	c.state.bank[address][denom] = held.Sub(amount)
	return nil
}

// transferTax is the tax charged on top of a native transfer of amount: min(floor(amount * rate), cap).
// uluna is exempt.
func (c *Chain) transferTax(denom string, amount math.Int) math.Int {
	if denom == lunaDenom || c.taxRate.IsZero() || amount.IsZero() {
		return math.ZeroInt()
	}
	tax := math.NewIntFromBigInt(decimal.NewFromBigInt(amount.BigInt(), 0).Mul(c.taxRate).Floor().BigInt())
	if cp, ok := c.taxCaps[denom]; ok && !cp.IsNil() {
		tax = math.MinInt(tax, cp)
	}
	return tax
}

// sendCoins moves native coins and charges the transfer tax to the sender.
func (c *Chain) sendCoins(_ context.Context, from, to string, coins []wasm.Coin, res *Result) error {
	if len(coins) == 0 {
		return nil
	}
	if err := c.api.AddrValidate(to); err != nil {
		return errorsmod.Wrapf(errs.ErrInvalidRequest, "send recipient: %v", err)
	}
	attrs := []wasm.Attribute{{Key: "sender", Value: from}, {Key: "recipient", Value: to}}
	for _, coin := range coins {
		if coin.Amount.IsNil() || coin.Amount.IsNegative() {
			return errorsmod.Wrapf(errs.ErrInvalidRequest, "invalid coin amount %s%s", coin.Amount, coin.Denom)
		}
		if coin.Amount.IsZero() {
			continue
		}
		tax := c.transferTax(coin.Denom, coin.Amount)
		if err := c.debit(from, coin.Denom, coin.Amount.Add(tax)); err != nil {
			return err
		}
		c.credit(to, coin.Denom, coin.Amount)
		if tax.IsPositive() {
			c.credit(c.treasury, coin.Denom, tax)
		}
		attrs = append(attrs,
			wasm.Attribute{Key: "amount", Value: coin.Amount.String() + coin.Denom},
			wasm.Attribute{Key: "tax", Value: tax.String() + coin.Denom},
		)
	}
	res.Events = append(res.Events, Event{Type: "transfer", Attributes: attrs})
	return nil
}
