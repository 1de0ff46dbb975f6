package host

import (
	"context"

	"cosmossdk.io/math"
	"github.com/shopspring/decimal"

	errorsmod "cosmossdk.io/errors"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

func (c *Chain) dispatchCustom(ctx context.Context, sender string, msg *wasm.TerraMsg, res *Result) error {
	if msg.Route != wasm.TerraRouteMarket {
		return errorsmod.Wrapf(errs.ErrInvalidRequest, "unsupported custom route %q", msg.Route)
	}
	switch {
	case msg.MsgData.Swap != nil:
		return c.marketSwap(ctx, sender, sender, msg.MsgData.Swap.OfferCoin, msg.MsgData.Swap.AskDenom, false, res)
	case msg.MsgData.SwapSend != nil:
		s := msg.MsgData.SwapSend
		if err := c.api.AddrValidate(s.ToAddress); err != nil {
			return errorsmod.Wrapf(errs.ErrInvalidRequest, "swap_send recipient: %v", err)
		}
		return c.marketSwap(ctx, sender, s.ToAddress, s.OfferCoin, s.AskDenom, true, res)
	default:
		return errorsmod.Wrap(errs.ErrInvalidRequest, "empty market message")
	}
}

// SimulateMarketSwap returns what the oracle market pays for offer in askDenom.
func (c *Chain) SimulateMarketSwap(offer wasm.Coin, askDenom string) (math.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.marketReturn(offer, askDenom)
}

func (c *Chain) marketReturn(offer wasm.Coin, askDenom string) (math.Int, error) {
	if offer.Denom == askDenom {
		return math.Int{}, errorsmod.Wrapf(errs.ErrInvalidRequest, "cannot swap %s into itself", offer.Denom)
	}
	offerRate, ok := c.rates[offer.Denom]
	if !ok {
		return math.Int{}, errorsmod.Wrapf(errs.ErrNotFound, "no exchange rate for %s", offer.Denom)
	}
	askRate, ok := c.rates[askDenom]
	if !ok {
		return math.Int{}, errorsmod.Wrapf(errs.ErrNotFound, "no exchange rate for %s", askDenom)
	}
	gross := decimal.NewFromBigInt(offer.Amount.BigInt(), 0).Mul(askRate).Div(offerRate)
	net := gross.Mul(decimal.NewFromInt(1).Sub(c.marketSpread)).Floor()
	out := math.NewIntFromBigInt(net.BigInt())
	if !out.IsPositive() {
		return math.Int{}, errorsmod.Wrapf(errs.ErrInvalidRequest, "swap of %s%s into %s returns nothing", offer.Amount, offer.Denom, askDenom)
	}
	return out, nil
}

// marketSwap burns the offer from sender and mints the ask to recipient. swap_send is a transfer
// as well, so its offer carries the transfer tax.
func (c *Chain) marketSwap(_ context.Context, sender, recipient string, offer wasm.Coin, askDenom string, taxed bool, res *Result) error {
	if offer.Amount.IsNil() || !offer.Amount.IsPositive() {
		return errorsmod.Wrapf(errs.ErrInvalidRequest, "invalid offer amount %s%s", offer.Amount, offer.Denom)
	}
	out, err := c.marketReturn(offer, askDenom)
	if err != nil {
		return err
	}
	tax := math.ZeroInt()
	if taxed {
		tax = c.transferTax(offer.Denom, offer.Amount)
	}
	if err := c.debit(sender, offer.Denom, offer.Amount.Add(tax)); err != nil {
		return err
	}
	if tax.IsPositive() {
		c.credit(c.treasury, offer.Denom, tax)
	}
	c.credit(recipient, askDenom, out)

	res.Events = append(res.Events, Event{Type: "swap", Attributes: []wasm.Attribute{
		{Key: "trader", Value: sender},
		{Key: "recipient", Value: recipient},
		{Key: "offer", Value: offer.Amount.String() + offer.Denom},
		{Key: "swap_coin", Value: out.String() + askDenom},
		{Key: "tax", Value: tax.String() + offer.Denom},
	}})
	return nil
}
