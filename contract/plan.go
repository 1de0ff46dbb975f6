package contract

import (
	"context"

	errorsmod "cosmossdk.io/errors"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/asset"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

// Plan is the batch a strategy call emits: one continuation per step and the finalize message last.
type Plan struct {
	Messages []wasm.CosmosMsg `json:"messages"`
	Finalize FinalizeStrategy `json:"finalize"`
}

// Steps returns the number of hop messages in the plan.
func (p Plan) Steps() int {
	return len(p.Messages) - 1
}

// ValidateStrategy checks a strategy request without touching chain state. A nil api skips
// address checks.
func ValidateStrategy(api wasm.API, msg ExecuteStrategy) error {
	if len(msg.Steps) == 0 {
		return errorsmod.Wrap(errs.ErrInvalidRequest, "must provide steps")
	}
	if err := asset.ValidateAmount(msg.MinimumReceive, "minimum_receive"); err != nil {
		return err
	}
	for i, step := range msg.Steps {
		if err := step.FromAsset.Validate(api); err != nil {
			return errorsmod.Wrapf(err, "step %d from_asset", i)
		}
		if err := step.ToAsset.Validate(api); err != nil {
			return errorsmod.Wrapf(err, "step %d to_asset", i)
		}
		if step.FromAsset.Equal(step.ToAsset) {
			return errorsmod.Wrapf(errs.ErrInvalidRequest, "step %d swaps %s into itself", i, step.FromAsset)
		}
		if err := step.Operation.Validate(api); err != nil {
			return errorsmod.Wrapf(err, "step %d", i)
		}
	}
	return nil
}

// BuildPlan validates msg, snapshots the receiver's balance of the final output asset and builds the
// messages contractAddr emits to run the strategy for receiver. Only the last hop routes its proceeds
// to the receiver; earlier hops leave them on the contract for the next one.
func BuildPlan(ctx context.Context, querier wasm.Querier, api wasm.API, contractAddr, receiver string, msg ExecuteStrategy) (Plan, error) {
	if err := ValidateStrategy(api, msg); err != nil {
		return Plan{}, err
	}
	if mismatches := HopMismatches(msg.Steps); len(mismatches) > 0 {
		log.Warn().Strs("mismatches", mismatches).Str("receiver", receiver).Msg("strategy hops are not chained")
	}

	target := msg.Steps[len(msg.Steps)-1].ToAsset
	initial, err := asset.QueryBalance(ctx, querier, target, receiver)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{Messages: make([]wasm.CosmosMsg, 0, len(msg.Steps)+1)}
	for i, step := range msg.Steps {
		var to *string
		if i == len(msg.Steps)-1 {
			to = &receiver
		}
		m, err := wasm.NewExecuteMsg(contractAddr, ExecuteMsg{
			ExecuteStrategyStep: &ExecuteStrategyStep{Step: step, To: to},
		})
		if err != nil {
			return Plan{}, errorsmod.Wrapf(errs.ErrSerialization, "step %d: %v", i, err)
		}
		plan.Messages = append(plan.Messages, m)
	}

	plan.Finalize = FinalizeStrategy{
		Receiver:       receiver,
		AssetInfo:      target,
		InitialBalance: initial,
		MinimumReceive: msg.MinimumReceive,
	}
	m, err := wasm.NewExecuteMsg(contractAddr, ExecuteMsg{FinalizeStrategy: &plan.Finalize})
	if err != nil {
		return Plan{}, errorsmod.Wrapf(errs.ErrSerialization, "finalize: %v", err)
	}
	plan.Messages = append(plan.Messages, m)
	return plan, nil
}
