package asset

import (
	"cosmossdk.io/math"

	errorsmod "cosmossdk.io/errors"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
)

const bpsDenominator = 10_000

// MinOutput applies a slippage tolerance in basis points (100 = 1%) to an expected output:
// expected * (10000 - slippageBps) / 10000, rounded down.
func MinOutput(expected math.Int, slippageBps uint32) (math.Int, error) {
	if expected.IsNil() || expected.IsNegative() {
		return math.Int{}, errorsmod.Wrapf(errs.ErrInvalidRequest, "expected output %s must not be negative", expected)
	}
	if slippageBps > bpsDenominator {
		return math.Int{}, errorsmod.Wrapf(errs.ErrInvalidRequest, "slippage %d bps exceeds %d", slippageBps, bpsDenominator)
	}
	return expected.MulRaw(int64(bpsDenominator - slippageBps)).QuoRaw(bpsDenominator), nil
}
