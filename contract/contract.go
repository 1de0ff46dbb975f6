// Package contract is the step-by-step strategy contract. A strategy is planned in one call and
// carried out by self-addressed continuation messages, one per hop, followed by a finalize message
// that checks the receiver's gain against the balance snapshot taken at planning time. The host
// runs every emitted message in order inside one atomic unit, so a failing hop or a failed
// minimum receive check reverts the whole strategy.
package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	errorsmod "cosmossdk.io/errors"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/asset"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/operations"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "strategy").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l
}

// Instantiate records the owner and commission of a new contract.
func Instantiate(_ context.Context, deps wasm.Deps, _ wasm.Env, info wasm.MessageInfo, msg InstantiateMsg) (*wasm.Response, error) {
	if msg.Commission < 0 || msg.Commission > 100 {
		return nil, errorsmod.Wrapf(errs.ErrInvalidRequest, "commission should be between 0 and 100, got %d", msg.Commission)
	}
	if err := SetContractVersion(deps.Storage, ContractName, ContractVersion); err != nil {
		return nil, err
	}
	if err := SaveState(deps.Storage, State{Owner: info.Sender, Commission: msg.Commission}); err != nil {
		return nil, err
	}

	return wasm.NewResponse().
		AddAttribute("method", "instantiate").
		AddAttribute("owner", info.Sender), nil
}

// Execute dispatches msg to its handler.
func Execute(ctx context.Context, deps wasm.Deps, env wasm.Env, info wasm.MessageInfo, msg ExecuteMsg) (*wasm.Response, error) {
	set := 0
	for _, present := range []bool{msg.Receive != nil, msg.ExecuteStrategy != nil, msg.ExecuteStrategyStep != nil, msg.FinalizeStrategy != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, errorsmod.Wrapf(errs.ErrInvalidRequest, "execute message must have exactly one variant, got %d", set)
	}

	switch {
	case msg.Receive != nil:
		return receiveCw20(ctx, deps, env, info, *msg.Receive)
	case msg.ExecuteStrategy != nil:
		return executeStrategy(ctx, deps, env, info.Sender, *msg.ExecuteStrategy)
	case msg.ExecuteStrategyStep != nil:
		return executeStep(ctx, deps, env, info, *msg.ExecuteStrategyStep)
	default:
		return finalizeStrategy(ctx, deps, env, info, *msg.FinalizeStrategy)
	}
}

// Query answers read-only requests with JSON.
func Query(_ context.Context, deps wasm.Deps, _ wasm.Env, msg QueryMsg) ([]byte, error) {
	if msg.Config == nil {
		return nil, errorsmod.Wrap(errs.ErrInvalidRequest, "unknown query")
	}
	state, err := LoadState(deps.Storage)
	if err != nil {
		return nil, err
	}
	bz, err := json.Marshal(ConfigResponse{Commission: state.Commission})
	if err != nil {
		return nil, errorsmod.Wrap(errs.ErrSerialization, err.Error())
	}
	return bz, nil
}

func receiveCw20(ctx context.Context, deps wasm.Deps, env wasm.Env, info wasm.MessageInfo, msg wasm.Cw20ReceiveMsg) (*wasm.Response, error) {
	var hook Cw20HookMsg
	if err := json.Unmarshal(msg.Msg, &hook); err != nil {
		return nil, errorsmod.Wrapf(errs.ErrSerialization, "cw20 hook: %v", err)
	}
	if hook.ExecuteStrategy == nil {
		return nil, errorsmod.Wrap(errs.ErrInvalidRequest, "cw20 hook: unknown message")
	}
	if err := deps.API.AddrValidate(msg.Sender); err != nil {
		return nil, errorsmod.Wrapf(errs.ErrInvalidRequest, "cw20 hook sender: %v", err)
	}
	// info.Sender is the token contract; the tokens now sit on this contract and must feed the first hop.
	steps := hook.ExecuteStrategy.Steps
	if len(steps) > 0 && !steps[0].FromAsset.Equal(asset.NewToken(info.Sender)) {
		return nil, errorsmod.Wrapf(errs.ErrUnauthorized, "received token %s does not match first step input %s", info.Sender, steps[0].FromAsset)
	}
	return executeStrategy(ctx, deps, env, msg.Sender, *hook.ExecuteStrategy)
}

func executeStrategy(ctx context.Context, deps wasm.Deps, env wasm.Env, receiver string, msg ExecuteStrategy) (*wasm.Response, error) {
	plan, err := BuildPlan(ctx, deps.Querier, deps.API, env.Contract.Address, receiver, msg)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("receiver", receiver).
		Int("steps", len(msg.Steps)).
		Str("target", plan.Finalize.AssetInfo.String()).
		Str("initial_balance", plan.Finalize.InitialBalance.String()).
		Msg("strategy planned")

	return wasm.NewResponse().
		AddMessages(plan.Messages...).
		AddAttribute("method", "execute_strategy").
		AddAttribute("receiver", receiver).
		AddAttribute("steps", strconv.Itoa(len(msg.Steps))), nil
}

func executeStep(ctx context.Context, deps wasm.Deps, env wasm.Env, info wasm.MessageInfo, msg ExecuteStrategyStep) (*wasm.Response, error) {
	if err := authorizeSelf(env, info, "step"); err != nil {
		return nil, err
	}
	step := msg.Step
	if step.Operation.Operation == nil {
		return nil, errorsmod.Wrap(errs.ErrInvalidRequest, "strategy step operation is empty")
	}

	amount, err := asset.QueryBalance(ctx, deps.Querier, step.FromAsset, env.Contract.Address)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, errorsmod.Wrapf(errs.ErrInsufficientFunds, "contract holds no %s to swap", step.FromAsset)
	}
	offer := asset.New(step.FromAsset, amount)

	out, err := step.Operation.CreateExecutionMessage(ctx, operations.Deps{Querier: deps.Querier, API: deps.API}, offer, step.ToAsset, msg.To)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("operation", step.Operation.Tag()).
		Str("offer", offer.String()).
		Str("ask", step.ToAsset.String()).
		Str("msg", out.Kind()).
		Msg("strategy step")

	return wasm.NewResponse().
		AddMessage(out).
		AddAttribute("method", "execute_strategy_step").
		AddAttribute("offer_asset", offer.String()), nil
}

func finalizeStrategy(ctx context.Context, deps wasm.Deps, env wasm.Env, info wasm.MessageInfo, msg FinalizeStrategy) (*wasm.Response, error) {
	if err := authorizeSelf(env, info, "finalize"); err != nil {
		return nil, err
	}
	if err := deps.API.AddrValidate(msg.Receiver); err != nil {
		return nil, errorsmod.Wrapf(errs.ErrInvalidRequest, "receiver: %v", err)
	}
	if err := asset.ValidateAmount(msg.InitialBalance, "initial_balance"); err != nil {
		return nil, err
	}
	if err := asset.ValidateAmount(msg.MinimumReceive, "minimum_receive"); err != nil {
		return nil, err
	}

	current, err := asset.QueryBalance(ctx, deps.Querier, msg.AssetInfo, msg.Receiver)
	if err != nil {
		return nil, err
	}
	swapAmount, err := asset.CheckedSub(current, msg.InitialBalance)
	if err != nil {
		return nil, err
	}
	if swapAmount.LT(msg.MinimumReceive) {
		return nil, errorsmod.Wrapf(errs.ErrAssertion, "minimum receive amount: %s, swap amount: %s", msg.MinimumReceive, swapAmount)
	}

	log.Info().
		Str("receiver", msg.Receiver).
		Str("target", msg.AssetInfo.String()).
		Str("swap_amount", swapAmount.String()).
		Msg("strategy finalized")

	return wasm.NewResponse().
		AddAttribute("initial_balance", msg.InitialBalance.String()).
		AddAttribute("final_balance", current.String()).
		AddAttribute("target_asset", msg.AssetInfo.String()), nil
}

// authorizeSelf admits only messages the contract sent to itself.
func authorizeSelf(env wasm.Env, info wasm.MessageInfo, action string) error {
	if info.Sender != env.Contract.Address {
		return errorsmod.Wrapf(errs.ErrUnauthorized, "unauthorized %s; expected caller: %s, caller: %s", action, env.Contract.Address, info.Sender)
	}
	return nil
}

// HopMismatches describes every pair of adjacent steps where a step's output is not the next step's
// input. Such strategies are accepted; the later hop simply spends whatever the contract holds.
func HopMismatches(steps []StrategyStep) []string {
	var out []string
	for i := 0; i+1 < len(steps); i++ {
		if !steps[i].ToAsset.Equal(steps[i+1].FromAsset) {
			out = append(out, fmt.Sprintf("step %d outputs %s but step %d spends %s", i, steps[i].ToAsset, i+1, steps[i+1].FromAsset))
		}
	}
	return out
}
