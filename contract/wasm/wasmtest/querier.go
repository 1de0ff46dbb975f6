// Package wasmtest provides in-memory doubles of the wasm host interfaces for unit tests.
package wasmtest

import (
	"context"
	"encoding/json"
	"fmt"

	"cosmossdk.io/math"
	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

// Prefix is the bech32 prefix used by fixtures.
const Prefix = "terra"

// Addr derives a valid fixture address from a label.
func Addr(label string) string {
	return wasm.MustDeriveAddress(Prefix, label)
}

// SmartHandler answers a smart query sent to one contract.
type SmartHandler func(msg []byte) ([]byte, error)

// MockQuerier is a wasm.Querier backed by maps. The zero value is not usable, use NewMockQuerier.
type MockQuerier struct {
	Balances map[string]map[string]math.Int // address -> denom -> amount
	Tokens   map[string]map[string]math.Int // token contract -> holder -> amount
	Handlers map[string]SmartHandler        // contract -> handler, checked before Tokens
	TaxRate  decimal.Decimal
	TaxCaps  map[string]math.Int

	// Err, when set, is returned by every query.
	Err error
	// Calls counts queries, useful to assert that nothing was read.
	Calls int
}

func NewMockQuerier() *MockQuerier {
	return &MockQuerier{
		Balances: make(map[string]map[string]math.Int),
		Tokens:   make(map[string]map[string]math.Int),
		Handlers: make(map[string]SmartHandler),
		TaxRate:  decimal.Zero,
		TaxCaps:  make(map[string]math.Int),
	}
}

func (q *MockQuerier) SetBalance(address, denom string, amount int64) *MockQuerier {
	if q.Balances[address] == nil {
		q.Balances[address] = make(map[string]math.Int)
	}
	q.Balances[address][denom] = math.NewInt(amount)
	return q
}

func (q *MockQuerier) SetTokenBalance(token, holder string, amount int64) *MockQuerier {
	if q.Tokens[token] == nil {
		q.Tokens[token] = make(map[string]math.Int)
	}
	q.Tokens[token][holder] = math.NewInt(amount)
	return q
}

func (q *MockQuerier) SetTax(rate string, caps map[string]int64) *MockQuerier {
	q.TaxRate = decimal.RequireFromString(rate)
	for denom, c := range caps {
		q.TaxCaps[denom] = math.NewInt(c)
	}
	return q
}

func (q *MockQuerier) QueryBalance(_ context.Context, address, denom string) (math.Int, error) {
	q.Calls++
	if q.Err != nil {
		return math.Int{}, q.Err
	}
	if amount, ok := q.Balances[address][denom]; ok {
		return amount, nil
	}
	return math.ZeroInt(), nil
}

func (q *MockQuerier) QueryWasmSmart(_ context.Context, contractAddr string, msg []byte) ([]byte, error) {
	q.Calls++
	if q.Err != nil {
		return nil, q.Err
	}
	if handler, ok := q.Handlers[contractAddr]; ok {
		return handler(msg)
	}
	holders, ok := q.Tokens[contractAddr]
	if !ok {
		return nil, fmt.Errorf("no contract at %s", contractAddr)
	}
	var query wasm.Cw20QueryMsg
	if err := json.Unmarshal(msg, &query); err != nil {
		return nil, err
	}
	if query.Balance == nil {
		return nil, fmt.Errorf("unsupported token query %s", string(msg))
	}
	amount, ok := holders[query.Balance.Address]
	if !ok {
		amount = math.ZeroInt()
	}
	return json.Marshal(wasm.Cw20BalanceResponse{Balance: amount})
}

func (q *MockQuerier) QueryTaxRate(context.Context) (decimal.Decimal, error) {
	q.Calls++
	if q.Err != nil {
		return decimal.Zero, q.Err
	}
	return q.TaxRate, nil
}

func (q *MockQuerier) QueryTaxCap(_ context.Context, denom string) (math.Int, error) {
	q.Calls++
	if q.Err != nil {
		return math.Int{}, q.Err
	}
	if c, ok := q.TaxCaps[denom]; ok {
		return c, nil
	}
	return math.Int{}, nil
}

// Deps returns contract dependencies around q with a fresh store and a terra address validator.
func Deps(q *MockQuerier) wasm.Deps {
	return wasm.Deps{
		Storage: wasm.NewMemoryStore(),
		Querier: q,
		API:     wasm.NewBech32API(Prefix),
	}
}
