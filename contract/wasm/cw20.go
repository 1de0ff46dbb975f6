package wasm

import (
	"cosmossdk.io/math"
)

// Cw20ExecuteMsg is the subset of the cw20 execute interface used here.
type Cw20ExecuteMsg struct {
	Transfer *Cw20Transfer `json:"transfer,omitempty"`
	Send     *Cw20Send     `json:"send,omitempty"`
	Mint     *Cw20Mint     `json:"mint,omitempty"`
}

type Cw20Transfer struct {
	Recipient string   `json:"recipient"`
	Amount    math.Int `json:"amount"`
}

// Cw20Send moves tokens to Contract and calls its receive hook with Msg.
type Cw20Send struct {
	Contract string   `json:"contract"`
	Amount   math.Int `json:"amount"`
	Msg      []byte   `json:"msg"`
}

// Cw20Mint creates new tokens, only the minter may send it.
type Cw20Mint struct {
	Recipient string   `json:"recipient"`
	Amount    math.Int `json:"amount"`
}

// Cw20InstantiateMsg creates a token with its initial distribution.
type Cw20InstantiateMsg struct {
	Name            string          `json:"name"`
	Symbol          string          `json:"symbol"`
	Decimals        uint8           `json:"decimals"`
	InitialBalances []Cw20Coin      `json:"initial_balances"`
	Mint            *Cw20MinterInfo `json:"mint,omitempty"`
}

type Cw20Coin struct {
	Address string   `json:"address"`
	Amount  math.Int `json:"amount"`
}

type Cw20MinterInfo struct {
	Minter string `json:"minter"`
}

// Cw20ReceiveMsg is delivered to the recipient of a cw20 send as {"receive":{...}}.
// Sender is the account that initiated the send, not the token contract.
type Cw20ReceiveMsg struct {
	Sender string   `json:"sender"`
	Amount math.Int `json:"amount"`
	Msg    []byte   `json:"msg"`
}

// Cw20QueryMsg is the subset of the cw20 query interface used here.
type Cw20QueryMsg struct {
	Balance   *Cw20BalanceQuery   `json:"balance,omitempty"`
	TokenInfo *Cw20TokenInfoQuery `json:"token_info,omitempty"`
}

type Cw20BalanceQuery struct {
	Address string `json:"address"`
}

type Cw20TokenInfoQuery struct{}

type Cw20BalanceResponse struct {
	Balance math.Int `json:"balance"`
}

type Cw20TokenInfoResponse struct {
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Decimals    uint8    `json:"decimals"`
	TotalSupply math.Int `json:"total_supply"`
}
