package wasm

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"

	"cosmossdk.io/math"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/shopspring/decimal"
)

// Storage is the contract's private key/value store. Reads of missing keys return nil.
type Storage interface {
	Get(key []byte) []byte
	Set(key, value []byte)
	Delete(key []byte)
}

// Querier gives read access to chain state. Implementations must not mutate anything.
type Querier interface {
	// QueryBalance returns the native balance of address in denom, zero when absent.
	QueryBalance(ctx context.Context, address, denom string) (math.Int, error)
	// QueryWasmSmart runs a JSON smart query against a contract and returns its raw JSON answer.
	QueryWasmSmart(ctx context.Context, contractAddr string, msg []byte) ([]byte, error)
	// QueryTaxRate returns the ad-valorem tax rate applied to native transfers.
	QueryTaxRate(ctx context.Context) (decimal.Decimal, error)
	// QueryTaxCap returns the per-transfer tax cap of denom.
	QueryTaxCap(ctx context.Context, denom string) (math.Int, error)
}

// API exposes address helpers of the host chain.
type API interface {
	AddrValidate(address string) error
}

// Deps bundles what a contract entry point may touch.
type Deps struct {
	Storage Storage
	Querier Querier
	API     API
}

// MemoryStore is a map backed Storage.
type MemoryStore struct {
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key []byte) []byte {
	v, ok := s.data[string(key)]
	if !ok {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (s *MemoryStore) Set(key, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	s.data[string(key)] = v
}

func (s *MemoryStore) Delete(key []byte) {
	delete(s.data, string(key))
}

// Keys returns the stored keys in lexical order.
func (s *MemoryStore) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy. Values are never mutated in place so they can be shared.
func (s *MemoryStore) Clone() *MemoryStore {
	data := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		data[k] = v
	}
	return &MemoryStore{data: data}
}

// Bech32API validates addresses against a fixed human readable prefix.
type Bech32API struct {
	Prefix string
}

func NewBech32API(prefix string) Bech32API {
	return Bech32API{Prefix: prefix}
}

func (a Bech32API) AddrValidate(address string) error {
	if address == "" {
		return fmt.Errorf("empty address")
	}
	hrp, _, err := bech32.Decode(address)
	if err != nil {
		return fmt.Errorf("invalid address %s: %w", address, err)
	}
	if a.Prefix != "" && hrp != a.Prefix {
		return fmt.Errorf("invalid address %s: expected prefix %s, got %s", address, a.Prefix, hrp)
	}
	return nil
}

// DeriveAddress builds a deterministic bech32 address from a label, the same way module accounts
// are derived: the first 20 bytes of sha256(label).
func DeriveAddress(prefix, label string) (string, error) {
	sum := sha256.Sum256([]byte(label))
	data, err := bech32.ConvertBits(sum[:20], 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert address bits: %w", err)
	}
	address, err := bech32.Encode(prefix, data)
	if err != nil {
		return "", fmt.Errorf("failed to encode address: %w", err)
	}
	return address, nil
}

// MustDeriveAddress is DeriveAddress for fixtures and genesis labels known to be valid.
func MustDeriveAddress(prefix, label string) string {
	address, err := DeriveAddress(prefix, label)
	if err != nil {
		panic(err)
	}
	return address
}
