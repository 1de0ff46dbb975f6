// Package host is an in-memory Terra style chain that runs contracts the way a CosmWasm host does:
// every signed message opens an atomic unit, messages returned by a contract are dispatched
// depth-first in the order they were returned, and the first failure rolls back every effect of
// the unit. It models the bank with the treasury transfer tax and the oracle market, which is
// enough to run strategies end to end without a node.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	errorsmod "cosmossdk.io/errors"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

const DefaultMaxDepth = 10

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "host").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l
}

// Contract is code the chain can run. Each instance gets its own store through deps.
type Contract interface {
	Instantiate(ctx context.Context, deps wasm.Deps, env wasm.Env, info wasm.MessageInfo, msg []byte) (*wasm.Response, error)
	Execute(ctx context.Context, deps wasm.Deps, env wasm.Env, info wasm.MessageInfo, msg []byte) (*wasm.Response, error)
	Query(ctx context.Context, deps wasm.Deps, env wasm.Env, msg []byte) ([]byte, error)
}

// ContractInfo describes an instantiated contract.
type ContractInfo struct {
	Address string `json:"address"`
	Label   string `json:"label"`
	Creator string `json:"creator"`
	Code    string `json:"code"`
}

type instance struct {
	info ContractInfo
	code Contract
}

// state is everything a unit may change.
type state struct {
	bank      map[string]map[string]math.Int
	stores    map[string]*wasm.MemoryStore
	contracts map[string]instance
	height    int64
}

func newState() *state {
	return &state{
		bank:      make(map[string]map[string]math.Int),
		stores:    make(map[string]*wasm.MemoryStore),
		contracts: make(map[string]instance),
	}
}

func (s *state) clone() *state {
	out := &state{
		bank:      make(map[string]map[string]math.Int, len(s.bank)),
		stores:    make(map[string]*wasm.MemoryStore, len(s.stores)),
		contracts: make(map[string]instance, len(s.contracts)),
		height:    s.height,
	}
	for addr, coins := range s.bank {
		c := make(map[string]math.Int, len(coins))
		for denom, amount := range coins {
			c[denom] = amount
		}
		out.bank[addr] = c
	}
	for addr, store := range s.stores {
		out.stores[addr] = store.Clone()
	}
	for addr, inst := range s.contracts {
		out.contracts[addr] = inst
	}
	return out
}

// Event is emitted for every executed contract call and every bank or market movement.
type Event struct {
	Type       string           `json:"type"`
	Contract   string           `json:"contract,omitempty"`
	Attributes []wasm.Attribute `json:"attributes"`
}

// Result summarizes a committed or simulated unit.
type Result struct {
	UnitID   string  `json:"unit_id"`
	Height   int64   `json:"height"`
	Messages int     `json:"messages"`
	Events   []Event `json:"events"`
	Data     []byte  `json:"data,omitempty"`
}

// Attribute returns the last value of key emitted by contract.
func (r *Result) Attribute(contract, key string) (string, bool) {
	for i := len(r.Events) - 1; i >= 0; i-- {
		ev := r.Events[i]
		if ev.Contract != contract {
			continue
		}
		for _, attr := range ev.Attributes {
			if attr.Key == key {
				return attr.Value, true
			}
		}
	}
	return "", false
}

// Events of the given type, in emission order.
func (r *Result) EventsOf(typ string) []Event {
	var out []Event
	for _, ev := range r.Events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// Chain is safe for concurrent use; units are serialized.
type Chain struct {
	mu sync.Mutex

	chainID  string
	prefix   string
	api      wasm.Bech32API
	treasury string

	taxRate      decimal.Decimal
	taxCaps      map[string]math.Int
	rates        map[string]decimal.Decimal
	marketSpread decimal.Decimal

	maxDepth int
	now      func() time.Time
	tracer   trace.Tracer
	metrics  *Metrics

	state *state
}

type Option func(*Chain)

// WithTax sets the transfer tax rate and per denom caps. Denoms without a cap are uncapped.
func WithTax(rate decimal.Decimal, caps map[string]math.Int) Option {
	return func(c *Chain) {
		c.taxRate = rate
		for denom, cp := range caps {
			c.taxCaps[denom] = cp
		}
	}
}

// WithExchangeRates sets oracle prices as units of denom per one uluna.
func WithExchangeRates(rates map[string]decimal.Decimal) Option {
	return func(c *Chain) {
		for denom, rate := range rates {
			c.rates[denom] = rate
		}
	}
}

// WithMarketSpread sets the fee the market keeps from every swap.
func WithMarketSpread(spread decimal.Decimal) Option {
	return func(c *Chain) { c.marketSpread = spread }
}

func WithMaxDepth(depth int) Option {
	return func(c *Chain) { c.maxDepth = depth }
}

func WithClock(now func() time.Time) Option {
	return func(c *Chain) { c.now = now }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Chain) { c.tracer = tracer }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Chain) { c.metrics = m }
}

func New(chainID, prefix string, opts ...Option) *Chain {
	c := &Chain{
		chainID:      chainID,
		prefix:       prefix,
		api:          wasm.NewBech32API(prefix),
		treasury:     wasm.MustDeriveAddress(prefix, "module/treasury"),
		taxRate:      decimal.Zero,
		taxCaps:      make(map[string]math.Int),
		rates:        map[string]decimal.Decimal{lunaDenom: decimal.NewFromInt(1)},
		marketSpread: decimal.Zero,
		maxDepth:     DefaultMaxDepth,
		now:          time.Now,
		tracer:       otel.Tracer("github.com/Cogwheel-Validator/spectra-step-by-step/host"),
		state:        newState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Chain) ChainID() string { return c.chainID }

func (c *Chain) Prefix() string { return c.prefix }

// API validates addresses of this chain.
func (c *Chain) API() wasm.API { return c.api }

// Treasury is the account collecting transfer tax.
func (c *Chain) Treasury() string { return c.treasury }

func (c *Chain) Height() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.height
}

// Address derives the address of an account or contract label.
func (c *Chain) Address(label string) string {
	return wasm.MustDeriveAddress(c.prefix, label)
}

// ContractAddress is the address a contract instantiated under label gets.
func (c *Chain) ContractAddress(label string) string {
	return c.Address("contract/" + label)
}

// Contracts lists instantiated contracts ordered by label.
func (c *Chain) Contracts() []ContractInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ContractInfo, 0, len(c.state.contracts))
	for _, inst := range c.state.contracts {
		out = append(out, inst.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Mint credits native coins out of thin air, for genesis and tests.
func (c *Chain) Mint(address string, coins ...wasm.Coin) error {
	if err := c.api.AddrValidate(address); err != nil {
		return errorsmod.Wrap(errs.ErrInvalidRequest, err.Error())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, coin := range coins {
		if coin.Amount.IsNil() || coin.Amount.IsNegative() {
			return errorsmod.Wrapf(errs.ErrInvalidRequest, "invalid mint amount %s%s", coin.Amount, coin.Denom)
		}
		c.credit(address, coin.Denom, coin.Amount)
	}
	return nil
}

// Balance returns the native balance of address.
func (c *Chain) Balance(address, denom string) math.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance(address, denom)
}

// Balances returns every non-zero native balance of address.
func (c *Chain) Balances(address string) []wasm.Coin {
	c.mu.Lock()
	defer c.mu.Unlock()
	denoms := make([]string, 0, len(c.state.bank[address]))
	for denom, amount := range c.state.bank[address] {
		if !amount.IsZero() {
			denoms = append(denoms, denom)
		}
	}
	sort.Strings(denoms)
	out := make([]wasm.Coin, 0, len(denoms))
	for _, denom := range denoms {
		out = append(out, wasm.NewCoin(denom, c.state.bank[address][denom]))
	}
	return out
}

// Querier returns a read-only view of the chain for callers outside a unit.
func (c *Chain) Querier() wasm.Querier {
	return lockedQuerier{c: c}
}

// Instantiate creates a contract under label and runs its instantiate entry point as one unit.
func (c *Chain) Instantiate(ctx context.Context, creator, label string, code Contract, msg any, funds ...wasm.Coin) (string, *Result, error) {
	bz, err := json.Marshal(msg)
	if err != nil {
		return "", nil, errorsmod.Wrap(errs.ErrSerialization, err.Error())
	}
	addr := c.ContractAddress(label)

	res, err := c.run(ctx, creator, true, "instantiate", func(ctx context.Context, res *Result) error {
		if _, ok := c.state.contracts[addr]; ok {
			return errorsmod.Wrapf(errs.ErrInvalidRequest, "contract label %s already in use", label)
		}
		c.state.contracts[addr] = instance{
			info: ContractInfo{Address: addr, Label: label, Creator: creator, Code: fmt.Sprintf("%T", code)},
			code: code,
		}
		c.state.stores[addr] = wasm.NewMemoryStore()
		if err := c.sendCoins(ctx, creator, addr, funds, res); err != nil {
			return err
		}
		resp, err := code.Instantiate(ctx, c.deps(addr), c.env(addr), wasm.MessageInfo{Sender: creator, Funds: coinsOrEmpty(funds)}, bz)
		if err != nil {
			return errorsmod.Wrapf(err, "instantiate %s", label)
		}
		return c.handleResponse(ctx, 0, addr, resp, res)
	})
	if err != nil {
		return "", nil, err
	}
	return addr, res, nil
}

// Execute signs msg from sender to contractAddr and commits the unit on success.
func (c *Chain) Execute(ctx context.Context, sender, contractAddr string, msg any, funds ...wasm.Coin) (*Result, error) {
	root, err := wasm.NewExecuteMsg(contractAddr, msg, funds...)
	if err != nil {
		return nil, errorsmod.Wrap(errs.ErrSerialization, err.Error())
	}
	return c.Dispatch(ctx, sender, root)
}

// Simulate runs msg like Execute but always rolls the unit back.
func (c *Chain) Simulate(ctx context.Context, sender, contractAddr string, msg any, funds ...wasm.Coin) (*Result, error) {
	root, err := wasm.NewExecuteMsg(contractAddr, msg, funds...)
	if err != nil {
		return nil, errorsmod.Wrap(errs.ErrSerialization, err.Error())
	}
	return c.run(ctx, sender, false, "simulate", func(ctx context.Context, res *Result) error {
		return c.dispatch(ctx, 0, sender, root, res)
	})
}

// Dispatch runs any message signed by sender as one committed unit.
func (c *Chain) Dispatch(ctx context.Context, sender string, msg wasm.CosmosMsg) (*Result, error) {
	return c.run(ctx, sender, true, "execute", func(ctx context.Context, res *Result) error {
		return c.dispatch(ctx, 0, sender, msg, res)
	})
}

// QuerySmart runs a smart query against a contract.
func (c *Chain) QuerySmart(ctx context.Context, contractAddr string, msg any) ([]byte, error) {
	bz, err := json.Marshal(msg)
	if err != nil {
		return nil, errorsmod.Wrap(errs.ErrSerialization, err.Error())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.querySmart(ctx, contractAddr, bz)
}

// run executes fn as one atomic unit. State is restored when fn fails or commit is false.
func (c *Chain) run(ctx context.Context, sender string, commit bool, kind string, fn func(context.Context, *Result) error) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	unitID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "host."+kind, trace.WithAttributes(
		attribute.String("unit.id", unitID),
		attribute.String("unit.sender", sender),
	))
	defer span.End()

	started := time.Now()
	saved := c.state.clone()
	c.state.height++
	res := &Result{UnitID: unitID, Height: c.state.height, Events: []Event{}}

	err := fn(ctx, res)
	if err != nil || !commit {
		c.state = saved
	}

	outcome := "committed"
	switch {
	case err != nil:
		outcome = "reverted"
	case !commit:
		outcome = "simulated"
	}
	c.metrics.observeUnit(kind, outcome, time.Since(started))
	span.SetAttributes(attribute.Int("unit.messages", res.Messages), attribute.String("unit.outcome", outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Debug().Err(err).Str("unit", unitID).Str("sender", sender).Int("messages", res.Messages).Msg("unit reverted")
		return nil, errorsmod.Wrapf(err, "unit %s reverted", unitID)
	}
	log.Debug().Str("unit", unitID).Str("sender", sender).Int("messages", res.Messages).Str("outcome", outcome).Msg("unit done")
	return res, nil
}

// dispatch runs msg sent by sender and then, depth-first, every message it produces.
func (c *Chain) dispatch(ctx context.Context, depth int, sender string, msg wasm.CosmosMsg, res *Result) error {
	if depth > c.maxDepth {
		return errorsmod.Wrapf(errs.ErrDepthExceeded, "message depth %d exceeds %d", depth, c.maxDepth)
	}
	kind := msg.Kind()
	ctx, span := c.tracer.Start(ctx, "host.dispatch", trace.WithAttributes(
		attribute.String("msg.kind", kind),
		attribute.String("msg.sender", sender),
		attribute.Int("msg.depth", depth),
	))
	defer span.End()

	res.Messages++
	c.metrics.observeMessage(kind)

	var err error
	switch {
	case msg.Bank != nil && msg.Bank.Send != nil:
		err = c.sendCoins(ctx, sender, msg.Bank.Send.ToAddress, msg.Bank.Send.Amount, res)
	case msg.Wasm != nil && msg.Wasm.Execute != nil:
		err = c.executeContract(ctx, depth, sender, msg.Wasm.Execute, res)
	case msg.Custom != nil:
		err = c.dispatchCustom(ctx, sender, msg.Custom, res)
	default:
		err = errorsmod.Wrap(errs.ErrInvalidRequest, "empty message")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Chain) executeContract(ctx context.Context, depth int, sender string, msg *wasm.ExecuteMsg, res *Result) error {
	inst, ok := c.state.contracts[msg.ContractAddr]
	if !ok {
		return errorsmod.Wrapf(errs.ErrUnknownContract, "no contract at %s", msg.ContractAddr)
	}
	if err := c.sendCoins(ctx, sender, msg.ContractAddr, msg.Funds, res); err != nil {
		return err
	}
	info := wasm.MessageInfo{Sender: sender, Funds: coinsOrEmpty(msg.Funds)}
	resp, err := inst.code.Execute(ctx, c.deps(msg.ContractAddr), c.env(msg.ContractAddr), info, msg.Msg)
	if err != nil {
		return errorsmod.Wrapf(err, "execute %s", inst.info.Label)
	}
	return c.handleResponse(ctx, depth, msg.ContractAddr, resp, res)
}

func (c *Chain) handleResponse(ctx context.Context, depth int, contractAddr string, resp *wasm.Response, res *Result) error {
	if resp == nil {
		return nil
	}
	res.Events = append(res.Events, Event{Type: "wasm", Contract: contractAddr, Attributes: resp.Attributes})
	if resp.Data != nil {
		res.Data = resp.Data
	}
	for _, sub := range resp.Messages {
		if err := c.dispatch(ctx, depth+1, contractAddr, sub, res); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chain) querySmart(ctx context.Context, contractAddr string, msg []byte) ([]byte, error) {
	inst, ok := c.state.contracts[contractAddr]
	if !ok {
		return nil, errorsmod.Wrapf(errs.ErrUnknownContract, "no contract at %s", contractAddr)
	}
	// queries get a throwaway copy of the store so they cannot write
	deps := wasm.Deps{Storage: c.state.stores[contractAddr].Clone(), Querier: unitQuerier{c: c}, API: c.api}
	return inst.code.Query(ctx, deps, c.env(contractAddr), msg)
}

func (c *Chain) deps(contractAddr string) wasm.Deps {
	return wasm.Deps{Storage: c.state.stores[contractAddr], Querier: unitQuerier{c: c}, API: c.api}
}

func (c *Chain) env(contractAddr string) wasm.Env {
	return wasm.Env{
		Block:    wasm.BlockInfo{Height: c.state.height, Time: c.now().UTC(), ChainID: c.chainID},
		Contract: wasm.ContractInfo{Address: contractAddr},
	}
}

func coinsOrEmpty(coins []wasm.Coin) []wasm.Coin {
	if coins == nil {
		return []wasm.Coin{}
	}
	return coins
}
