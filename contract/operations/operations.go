// Package operations holds the swap operations a strategy step can use. Each operation turns the
// asset the contract holds into exactly one outbound message; the orchestrator only ever sees the
// Operation interface, so new kinds of swap are added here by registering a tag.
package operations

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	errorsmod "cosmossdk.io/errors"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/asset"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

// Deps is the read-only view an operation gets: it may query balances and registries but
// has no storage to write to.
type Deps struct {
	Querier wasm.Querier
	API     wasm.API
}

// Operation builds the single message that executes one hop.
type Operation interface {
	// Tag is the JSON key the operation is encoded under, e.g. "market_swap".
	Tag() string
	// Validate checks the operation configuration.
	Validate(api wasm.API) error
	// CreateExecutionMessage converts offer into ask. A nil to leaves the proceeds with the caller,
	// otherwise the proceeds go to *to.
	CreateExecutionMessage(ctx context.Context, deps Deps, offer asset.Asset, ask asset.AssetInfo, to *string) (wasm.CosmosMsg, error)
}

// Factory returns a zero value operation ready to be decoded into.
type Factory func() Operation

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes an operation decodable under tag. It panics on duplicates, registration
// happens from init functions.
func Register(tag string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[tag]; ok {
		panic(fmt.Sprintf("operation %q already registered", tag))
	}
	registry[tag] = factory
}

// Registered returns the known tags in lexical order.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	tags := make([]string, 0, len(registry))
	for tag := range registry {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func lookup(tag string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[tag]
	return f, ok
}

// StrategyStepOperation is the tagged variant carried by a strategy step:
// {"liquidity_pool_swap":{...}} or {"market_swap":{}}.
type StrategyStepOperation struct {
	Operation
}

func NewStrategyStepOperation(op Operation) StrategyStepOperation {
	return StrategyStepOperation{Operation: op}
}

func (o StrategyStepOperation) MarshalJSON() ([]byte, error) {
	if o.Operation == nil {
		return nil, errorsmod.Wrap(errs.ErrInvalidRequest, "strategy step operation is empty")
	}
	return json.Marshal(map[string]Operation{o.Tag(): o.Operation})
}

func (o *StrategyStepOperation) UnmarshalJSON(bz []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(bz, &raw); err != nil {
		return errorsmod.Wrapf(errs.ErrSerialization, "strategy step operation: %v", err)
	}
	if len(raw) != 1 {
		return errorsmod.Wrapf(errs.ErrInvalidRequest, "strategy step operation must have exactly one variant, got %d", len(raw))
	}
	for tag, body := range raw {
		factory, ok := lookup(tag)
		if !ok {
			return errorsmod.Wrapf(errs.ErrInvalidRequest, "unknown operation %q, known: %v", tag, Registered())
		}
		op := factory()
		if err := json.Unmarshal(body, op); err != nil {
			return errorsmod.Wrapf(errs.ErrSerialization, "operation %s: %v", tag, err)
		}
		o.Operation = op
	}
	return nil
}

// Validate checks that an operation is set and that its configuration is valid.
func (o StrategyStepOperation) Validate(api wasm.API) error {
	if o.Operation == nil {
		return errorsmod.Wrap(errs.ErrInvalidRequest, "strategy step operation is empty")
	}
	return o.Operation.Validate(api)
}
