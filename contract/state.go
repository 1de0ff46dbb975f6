package contract

import (
	"encoding/json"

	errorsmod "cosmossdk.io/errors"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

const (
	ContractName    = "spectra.step-by-step"
	ContractVersion = "0.1.0"
)

var (
	stateKey   = []byte("state")
	versionKey = []byte("contract_info")
)

// State is written once at instantiation. The orchestration path never reads it.
type State struct {
	Owner      string `json:"owner"`
	Commission int    `json:"commission"`
}

// VersionInfo identifies the code that wrote the store, for migrations.
type VersionInfo struct {
	Contract string `json:"contract"`
	Version  string `json:"version"`
}

func saveJSON(store wasm.Storage, key []byte, v any) error {
	bz, err := json.Marshal(v)
	if err != nil {
		return errorsmod.Wrapf(errs.ErrSerialization, "encode %s: %v", key, err)
	}
	store.Set(key, bz)
	return nil
}

func loadJSON(store wasm.Storage, key []byte, v any) error {
	bz := store.Get(key)
	if bz == nil {
		return errorsmod.Wrapf(errs.ErrNotFound, "%s not found", key)
	}
	if err := json.Unmarshal(bz, v); err != nil {
		return errorsmod.Wrapf(errs.ErrSerialization, "decode %s: %v", key, err)
	}
	return nil
}

func SaveState(store wasm.Storage, state State) error {
	return saveJSON(store, stateKey, state)
}

func LoadState(store wasm.Storage) (State, error) {
	var state State
	err := loadJSON(store, stateKey, &state)
	return state, err
}

func SetContractVersion(store wasm.Storage, name, version string) error {
	return saveJSON(store, versionKey, VersionInfo{Contract: name, Version: version})
}

func GetContractVersion(store wasm.Storage) (VersionInfo, error) {
	var info VersionInfo
	err := loadJSON(store, versionKey, &info)
	return info, err
}
