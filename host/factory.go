package host

import (
	"context"
	"encoding/json"
	"sort"

	errorsmod "cosmossdk.io/errors"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/asset"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/terraswap"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

var factoryOwnerKey = []byte("owner")

// pairKey is independent of asset order.
func pairKey(a, b asset.AssetInfo) []byte {
	keys := []string{assetKey(a), assetKey(b)}
	sort.Strings(keys)
	return []byte("pair/" + keys[0] + "/" + keys[1])
}

func assetKey(info asset.AssetInfo) string {
	if info.IsNative() {
		return "native:" + info.String()
	}
	return "token:" + info.String()
}

// Factory is a terraswap factory registry. Pairs are created separately and registered by the owner.
type Factory struct{}

func (Factory) Instantiate(_ context.Context, deps wasm.Deps, _ wasm.Env, info wasm.MessageInfo, _ []byte) (*wasm.Response, error) {
	deps.Storage.Set(factoryOwnerKey, []byte(info.Sender))
	return wasm.NewResponse().AddAttribute("action", "instantiate_factory").AddAttribute("owner", info.Sender), nil
}

func (Factory) Execute(ctx context.Context, deps wasm.Deps, _ wasm.Env, info wasm.MessageInfo, msg []byte) (*wasm.Response, error) {
	var exec terraswap.FactoryExecuteMsg
	if err := json.Unmarshal(msg, &exec); err != nil {
		return nil, errorsmod.Wrapf(errs.ErrSerialization, "factory execute: %v", err)
	}
	if exec.RegisterPair == nil {
		return nil, errorsmod.Wrap(errs.ErrInvalidRequest, "factory execute: unknown message")
	}
	if owner := string(deps.Storage.Get(factoryOwnerKey)); owner != info.Sender {
		return nil, errorsmod.Wrapf(errs.ErrUnauthorized, "only the factory owner %s may register pairs, caller: %s", owner, info.Sender)
	}

	reg := exec.RegisterPair
	a, b := reg.AssetInfos[0], reg.AssetInfos[1]
	key := pairKey(a, b)
	if deps.Storage.Get(key) != nil {
		return nil, errorsmod.Wrapf(errs.ErrInvalidRequest, "pair %s-%s already registered", a, b)
	}

	// the registered contract must actually trade the pair
	query, err := json.Marshal(terraswap.PairQueryMsg{Pair: &struct{}{}})
	if err != nil {
		return nil, errorsmod.Wrap(errs.ErrSerialization, err.Error())
	}
	bz, err := deps.Querier.QueryWasmSmart(ctx, reg.ContractAddr, query)
	if err != nil {
		return nil, errorsmod.Wrapf(errs.ErrQuery, "pair %s: %v", reg.ContractAddr, err)
	}
	var pair terraswap.PairInfo
	if err := json.Unmarshal(bz, &pair); err != nil {
		return nil, errorsmod.Wrapf(errs.ErrSerialization, "pair info: %v", err)
	}
	if string(pairKey(pair.AssetInfos[0], pair.AssetInfos[1])) != string(key) {
		return nil, errorsmod.Wrapf(errs.ErrInvalidRequest, "contract %s trades %s-%s, not %s-%s",
			reg.ContractAddr, pair.AssetInfos[0], pair.AssetInfos[1], a, b)
	}

	if err := saveJSON(deps.Storage, key, pair); err != nil {
		return nil, err
	}
	return wasm.NewResponse().
		AddAttribute("action", "register_pair").
		AddAttribute("pair", a.String()+"-"+b.String()).
		AddAttribute("contract_addr", reg.ContractAddr), nil
}

func (Factory) Query(_ context.Context, deps wasm.Deps, _ wasm.Env, msg []byte) ([]byte, error) {
	var query terraswap.FactoryQueryMsg
	if err := json.Unmarshal(msg, &query); err != nil {
		return nil, errorsmod.Wrapf(errs.ErrSerialization, "factory query: %v", err)
	}
	if query.Pair == nil {
		return nil, errorsmod.Wrap(errs.ErrInvalidRequest, "factory query: unknown query")
	}
	a, b := query.Pair.AssetInfos[0], query.Pair.AssetInfos[1]
	bz := deps.Storage.Get(pairKey(a, b))
	if bz == nil {
		return nil, errorsmod.Wrapf(errs.ErrNotFound, "pair %s-%s not found", a, b)
	}
	return bz, nil
}
