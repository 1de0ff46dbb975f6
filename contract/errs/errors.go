// Package errs holds the registered error kinds shared by the strategy contract and the host it runs on.
// Every failure is terminal for the current attempt; the host rolls back the whole unit instead of
// compensating, so callers only ever need errors.Is against these sentinels.
package errs

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace is the error codespace of the step-by-step contract.
const Codespace = "stepbystep"

var (
	// ErrInvalidRequest covers validation failures such as an empty step list or a commission out of range.
	ErrInvalidRequest = errorsmod.Register(Codespace, 2, "invalid request")
	// ErrUnauthorized is returned when an internal entry point is called by anyone but the contract itself.
	ErrUnauthorized = errorsmod.Register(Codespace, 3, "unauthorized")
	// ErrOverflow is returned by checked arithmetic on amounts.
	ErrOverflow = errorsmod.Register(Codespace, 4, "arithmetic overflow")
	// ErrAssertion is returned when the strategy output is below the minimum receive amount.
	ErrAssertion = errorsmod.Register(Codespace, 5, "assertion failed")
	// ErrUnsupportedAsset is returned when an operation is offered an asset kind it cannot handle.
	ErrUnsupportedAsset = errorsmod.Register(Codespace, 6, "unsupported asset")
	// ErrQuery wraps failures of balance, tax or registry queries.
	ErrQuery = errorsmod.Register(Codespace, 7, "query failed")
	// ErrSerialization wraps JSON encode/decode failures of contract messages.
	ErrSerialization = errorsmod.Register(Codespace, 8, "serialization failed")

	// host side

	ErrInsufficientFunds = errorsmod.Register(Codespace, 20, "insufficient funds")
	ErrUnknownContract   = errorsmod.Register(Codespace, 21, "unknown contract")
	ErrNotFound          = errorsmod.Register(Codespace, 22, "not found")
	ErrMaxSpread         = errorsmod.Register(Codespace, 23, "max spread assertion")
	ErrDepthExceeded     = errorsmod.Register(Codespace, 24, "message depth exceeded")
)
