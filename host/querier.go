package host

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

var (
	_ wasm.Querier = unitQuerier{}
	_ wasm.Querier = lockedQuerier{}
)

// unitQuerier reads live state from inside a unit, the chain lock is already held.
type unitQuerier struct {
	c *Chain
}

func (q unitQuerier) QueryBalance(_ context.Context, address, denom string) (math.Int, error) {
	return q.c.balance(address, denom), nil
}

func (q unitQuerier) QueryWasmSmart(ctx context.Context, contractAddr string, msg []byte) ([]byte, error) {
	return q.c.querySmart(ctx, contractAddr, msg)
}

func (q unitQuerier) QueryTaxRate(context.Context) (decimal.Decimal, error) {
	return q.c.taxRate, nil
}

// QueryTaxCap returns a nil Int for uncapped denoms.
func (q unitQuerier) QueryTaxCap(_ context.Context, denom string) (math.Int, error) {
	if cp, ok := q.c.taxCaps[denom]; ok {
		return cp, nil
	}
	return math.Int{}, nil
}

// lockedQuerier is the same view for callers outside a unit.
type lockedQuerier struct {
	c *Chain
}

func (q lockedQuerier) QueryBalance(ctx context.Context, address, denom string) (math.Int, error) {
	q.c.mu.Lock()
	defer q.c.mu.Unlock()
	return unitQuerier(q).QueryBalance(ctx, address, denom)
}

func (q lockedQuerier) QueryWasmSmart(ctx context.Context, contractAddr string, msg []byte) ([]byte, error) {
	q.c.mu.Lock()
	defer q.c.mu.Unlock()
	bz, err := unitQuerier(q).QueryWasmSmart(ctx, contractAddr, msg)
	if err != nil {
		return nil, fmt.Errorf("smart query %s: %w", contractAddr, err)
	}
	return bz, nil
}

func (q lockedQuerier) QueryTaxRate(ctx context.Context) (decimal.Decimal, error) {
	q.c.mu.Lock()
	defer q.c.mu.Unlock()
	return unitQuerier(q).QueryTaxRate(ctx)
}

func (q lockedQuerier) QueryTaxCap(ctx context.Context, denom string) (math.Int, error) {
	q.c.mu.Lock()
	defer q.c.mu.Unlock()
	return unitQuerier(q).QueryTaxCap(ctx, denom)
}
