// Package wasm mirrors the parts of cosmwasm-std the strategy contract speaks: outbound messages,
// the execution environment, storage, queries and address handling.
// The JSON shapes match what a CosmWasm host expects, so messages built here can be signed or
// dispatched as they are.
package wasm

import (
	"encoding/json"

	"cosmossdk.io/math"
)

// CosmosMsg is the union of messages a contract may return for the host to dispatch.
// Exactly one field is set.
type CosmosMsg struct {
	Bank   *BankMsg  `json:"bank,omitempty"`
	Wasm   *WasmMsg  `json:"wasm,omitempty"`
	Custom *TerraMsg `json:"custom,omitempty"`
}

// BankMsg moves native coins.
type BankMsg struct {
	Send *SendMsg `json:"send,omitempty"`
}

// SendMsg sends native coins from the contract to ToAddress.
type SendMsg struct {
	ToAddress string `json:"to_address"`
	Amount    []Coin `json:"amount"`
}

// WasmMsg calls other contracts.
type WasmMsg struct {
	Execute *ExecuteMsg `json:"execute,omitempty"`
}

// ExecuteMsg calls a contract at a known address. Msg is the JSON encoded message of the callee,
// serialized as base64 like cosmwasm Binary.
type ExecuteMsg struct {
	ContractAddr string `json:"contract_addr"`
	Msg          []byte `json:"msg"`
	Funds        []Coin `json:"funds"`
}

// Coin is a native denom with an integer amount, encoded as {"denom":..,"amount":"123"}.
type Coin struct {
	Denom  string   `json:"denom"`
	Amount math.Int `json:"amount"`
}

func NewCoin(denom string, amount math.Int) Coin {
	return Coin{Denom: denom, Amount: amount}
}

// NewExecuteMsg encodes msg as JSON and wraps it in a contract execution message.
func NewExecuteMsg(contractAddr string, msg any, funds ...Coin) (CosmosMsg, error) {
	bz, err := json.Marshal(msg)
	if err != nil {
		return CosmosMsg{}, err
	}
	if funds == nil {
		funds = []Coin{}
	}
	return CosmosMsg{
		Wasm: &WasmMsg{
			Execute: &ExecuteMsg{
				ContractAddr: contractAddr,
				Msg:          bz,
				Funds:        funds,
			},
		},
	}, nil
}

func NewBankSend(toAddress string, amount ...Coin) CosmosMsg {
	return CosmosMsg{
		Bank: &BankMsg{
			Send: &SendMsg{
				ToAddress: toAddress,
				Amount:    amount,
			},
		},
	}
}

// Kind names the set variant, used for logging and metrics labels.
func (m CosmosMsg) Kind() string {
	switch {
	case m.Bank != nil && m.Bank.Send != nil:
		return "bank_send"
	case m.Wasm != nil && m.Wasm.Execute != nil:
		return "wasm_execute"
	case m.Custom != nil:
		return "custom_" + m.Custom.Route
	default:
		return "unknown"
	}
}
