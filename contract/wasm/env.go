package wasm

import (
	"time"
)

// Env is the execution environment the host passes to every entry point.
type Env struct {
	Block    BlockInfo    `json:"block"`
	Contract ContractInfo `json:"contract"`
}

type BlockInfo struct {
	Height  int64     `json:"height"`
	Time    time.Time `json:"time"`
	ChainID string    `json:"chain_id"`
}

// ContractInfo carries the address of the contract being executed.
type ContractInfo struct {
	Address string `json:"address"`
}

// MessageInfo describes who sent the message and which native funds came with it.
type MessageInfo struct {
	Sender string `json:"sender"`
	Funds  []Coin `json:"funds"`
}

// Attribute is a key/value pair recorded on the contract's wasm event.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Response is what an entry point hands back to the host: messages to dispatch in order
// after this call returns, and attributes for the emitted event.
type Response struct {
	Messages   []CosmosMsg `json:"messages"`
	Attributes []Attribute `json:"attributes"`
	Data       []byte      `json:"data,omitempty"`
}

func NewResponse() *Response {
	return &Response{
		Messages:   []CosmosMsg{},
		Attributes: []Attribute{},
	}
}

func (r *Response) AddMessage(msg CosmosMsg) *Response {
	r.Messages = append(r.Messages, msg)
	return r
}

func (r *Response) AddMessages(msgs ...CosmosMsg) *Response {
	r.Messages = append(r.Messages, msgs...)
	return r
}

func (r *Response) AddAttribute(key, value string) *Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

// Attribute returns the value recorded for key and whether it was present.
func (r *Response) Attribute(key string) (string, bool) {
	for _, attr := range r.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}
