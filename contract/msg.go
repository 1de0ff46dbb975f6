package contract

import (
	"cosmossdk.io/math"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/asset"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/operations"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

type InstantiateMsg struct {
	Commission int `json:"commission"`
}

// ExecuteMsg is the execute interface of the contract. Exactly one field is set.
// ExecuteStrategyStep and FinalizeStrategy are internal continuations and are only accepted from
// the contract itself.
type ExecuteMsg struct {
	Receive             *wasm.Cw20ReceiveMsg `json:"receive,omitempty"`
	ExecuteStrategy     *ExecuteStrategy     `json:"execute_strategy,omitempty"`
	ExecuteStrategyStep *ExecuteStrategyStep `json:"execute_strategy_step,omitempty"`
	FinalizeStrategy    *FinalizeStrategy    `json:"finalize_strategy,omitempty"`
}

// ExecuteStrategy runs steps in order and requires the sender to end up with at least
// MinimumReceive more of the last step's output asset.
type ExecuteStrategy struct {
	Steps          []StrategyStep `json:"steps"`
	MinimumReceive math.Int       `json:"minimum_receive"`
}

// ExecuteStrategyStep runs one hop on whatever the contract holds of the step's input asset.
// A nil To keeps the proceeds on the contract.
type ExecuteStrategyStep struct {
	Step StrategyStep `json:"step"`
	To   *string      `json:"to,omitempty"`
}

// FinalizeStrategy carries the balance snapshot taken when the strategy was planned.
type FinalizeStrategy struct {
	Receiver       string          `json:"receiver"`
	AssetInfo      asset.AssetInfo `json:"asset_info"`
	InitialBalance math.Int        `json:"initial_balance"`
	MinimumReceive math.Int        `json:"minimum_receive"`
}

// Cw20HookMsg is the msg embedded in a cw20 send to the contract.
type Cw20HookMsg struct {
	ExecuteStrategy *ExecuteStrategy `json:"execute_strategy,omitempty"`
}

type StrategyStep struct {
	FromAsset asset.AssetInfo                  `json:"from_asset"`
	ToAsset   asset.AssetInfo                  `json:"to_asset"`
	Operation operations.StrategyStepOperation `json:"operation"`
}

func NewStrategyStep(from, to asset.AssetInfo, op operations.Operation) StrategyStep {
	return StrategyStep{FromAsset: from, ToAsset: to, Operation: operations.NewStrategyStepOperation(op)}
}

type QueryMsg struct {
	Config *struct{} `json:"config,omitempty"`
}

type ConfigResponse struct {
	Commission int `json:"commission"`
}
