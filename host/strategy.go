package host

import (
	"context"
	"encoding/json"

	errorsmod "cosmossdk.io/errors"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

// StrategyContract runs the step-by-step strategy contract on the chain.
type StrategyContract struct{}

func (StrategyContract) Instantiate(ctx context.Context, deps wasm.Deps, env wasm.Env, info wasm.MessageInfo, msg []byte) (*wasm.Response, error) {
	var init contract.InstantiateMsg
	if err := json.Unmarshal(msg, &init); err != nil {
		return nil, errorsmod.Wrapf(errs.ErrSerialization, "strategy instantiate: %v", err)
	}
	return contract.Instantiate(ctx, deps, env, info, init)
}

func (StrategyContract) Execute(ctx context.Context, deps wasm.Deps, env wasm.Env, info wasm.MessageInfo, msg []byte) (*wasm.Response, error) {
	var exec contract.ExecuteMsg
	if err := json.Unmarshal(msg, &exec); err != nil {
		return nil, errorsmod.Wrapf(errs.ErrSerialization, "strategy execute: %v", err)
	}
	return contract.Execute(ctx, deps, env, info, exec)
}

func (StrategyContract) Query(ctx context.Context, deps wasm.Deps, env wasm.Env, msg []byte) ([]byte, error) {
	var query contract.QueryMsg
	if err := json.Unmarshal(msg, &query); err != nil {
		return nil, errorsmod.Wrapf(errs.ErrSerialization, "strategy query: %v", err)
	}
	return contract.Query(ctx, deps, env, query)
}
