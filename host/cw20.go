package host

import (
	"context"
	"encoding/json"

	"cosmossdk.io/math"

	errorsmod "cosmossdk.io/errors"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

var tokenInfoKey = []byte("token_info")

func balanceKey(address string) []byte {
	return []byte("balance/" + address)
}

type tokenInfo struct {
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Decimals    uint8    `json:"decimals"`
	TotalSupply math.Int `json:"total_supply"`
	Minter      string   `json:"minter,omitempty"`
}

// receiveHook is what a cw20 send delivers to the receiving contract.
type receiveHook struct {
	Receive wasm.Cw20ReceiveMsg `json:"receive"`
}

// Cw20Token is a cw20-base style token: transfer, send with receive hook, and mint.
type Cw20Token struct{}

func (Cw20Token) Instantiate(_ context.Context, deps wasm.Deps, _ wasm.Env, _ wasm.MessageInfo, msg []byte) (*wasm.Response, error) {
	var init wasm.Cw20InstantiateMsg
	if err := json.Unmarshal(msg, &init); err != nil {
		return nil, errorsmod.Wrapf(errs.ErrSerialization, "cw20 instantiate: %v", err)
	}
	if init.Symbol == "" {
		return nil, errorsmod.Wrap(errs.ErrInvalidRequest, "cw20 instantiate: symbol is required")
	}
	supply := math.ZeroInt()
	for _, coin := range init.InitialBalances {
		if err := deps.API.AddrValidate(coin.Address); err != nil {
			return nil, errorsmod.Wrapf(errs.ErrInvalidRequest, "cw20 initial balance: %v", err)
		}
		if coin.Amount.IsNil() || coin.Amount.IsNegative() {
			return nil, errorsmod.Wrapf(errs.ErrInvalidRequest, "cw20 initial balance of %s is invalid", coin.Address)
		}
		if err := addBalance(deps.Storage, coin.Address, coin.Amount); err != nil {
			return nil, err
		}
		supply = supply.Add(coin.Amount)
	}
	ti := tokenInfo{Name: init.Name, Symbol: init.Symbol, Decimals: init.Decimals, TotalSupply: supply}
	if init.Mint != nil {
		ti.Minter = init.Mint.Minter
	}
	if err := saveJSON(deps.Storage, tokenInfoKey, ti); err != nil {
		return nil, err
	}
	return wasm.NewResponse().AddAttribute("action", "instantiate").AddAttribute("symbol", ti.Symbol), nil
}

func (Cw20Token) Execute(_ context.Context, deps wasm.Deps, _ wasm.Env, info wasm.MessageInfo, msg []byte) (*wasm.Response, error) {
	var exec wasm.Cw20ExecuteMsg
	if err := json.Unmarshal(msg, &exec); err != nil {
		return nil, errorsmod.Wrapf(errs.ErrSerialization, "cw20 execute: %v", err)
	}
	switch {
	case exec.Transfer != nil:
		if err := moveTokens(deps, info.Sender, exec.Transfer.Recipient, exec.Transfer.Amount); err != nil {
			return nil, err
		}
		return wasm.NewResponse().
			AddAttribute("action", "transfer").
			AddAttribute("from", info.Sender).
			AddAttribute("to", exec.Transfer.Recipient).
			AddAttribute("amount", exec.Transfer.Amount.String()), nil

	case exec.Send != nil:
		if err := moveTokens(deps, info.Sender, exec.Send.Contract, exec.Send.Amount); err != nil {
			return nil, err
		}
		hook, err := wasm.NewExecuteMsg(exec.Send.Contract, receiveHook{Receive: wasm.Cw20ReceiveMsg{
			Sender: info.Sender,
			Amount: exec.Send.Amount,
			Msg:    exec.Send.Msg,
		}})
		if err != nil {
			return nil, errorsmod.Wrap(errs.ErrSerialization, err.Error())
		}
		return wasm.NewResponse().
			AddMessage(hook).
			AddAttribute("action", "send").
			AddAttribute("from", info.Sender).
			AddAttribute("to", exec.Send.Contract).
			AddAttribute("amount", exec.Send.Amount.String()), nil

	case exec.Mint != nil:
		var ti tokenInfo
		if err := loadJSON(deps.Storage, tokenInfoKey, &ti); err != nil {
			return nil, err
		}
		if ti.Minter == "" || ti.Minter != info.Sender {
			return nil, errorsmod.Wrapf(errs.ErrUnauthorized, "%s is not the minter of %s", info.Sender, ti.Symbol)
		}
		if err := validTokenAmount(exec.Mint.Amount); err != nil {
			return nil, err
		}
		if err := deps.API.AddrValidate(exec.Mint.Recipient); err != nil {
			return nil, errorsmod.Wrapf(errs.ErrInvalidRequest, "mint recipient: %v", err)
		}
		if err := addBalance(deps.Storage, exec.Mint.Recipient, exec.Mint.Amount); err != nil {
			return nil, err
		}
		ti.TotalSupply = ti.TotalSupply.Add(exec.Mint.Amount)
		if err := saveJSON(deps.Storage, tokenInfoKey, ti); err != nil {
			return nil, err
		}
		return wasm.NewResponse().
			AddAttribute("action", "mint").
			AddAttribute("to", exec.Mint.Recipient).
			AddAttribute("amount", exec.Mint.Amount.String()), nil
	}
	return nil, errorsmod.Wrap(errs.ErrInvalidRequest, "cw20 execute: unknown message")
}

func (Cw20Token) Query(_ context.Context, deps wasm.Deps, _ wasm.Env, msg []byte) ([]byte, error) {
	var query wasm.Cw20QueryMsg
	if err := json.Unmarshal(msg, &query); err != nil {
		return nil, errorsmod.Wrapf(errs.ErrSerialization, "cw20 query: %v", err)
	}
	switch {
	case query.Balance != nil:
		amount, err := tokenBalance(deps.Storage, query.Balance.Address)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wasm.Cw20BalanceResponse{Balance: amount})
	case query.TokenInfo != nil:
		var ti tokenInfo
		if err := loadJSON(deps.Storage, tokenInfoKey, &ti); err != nil {
			return nil, err
		}
		return json.Marshal(wasm.Cw20TokenInfoResponse{Name: ti.Name, Symbol: ti.Symbol, Decimals: ti.Decimals, TotalSupply: ti.TotalSupply})
	}
	return nil, errorsmod.Wrap(errs.ErrInvalidRequest, "cw20 query: unknown query")
}

func validTokenAmount(amount math.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return errorsmod.Wrapf(errs.ErrInvalidRequest, "invalid zero or negative amount %s", amount)
	}
	return nil
}

func moveTokens(deps wasm.Deps, from, to string, amount math.Int) error {
	if err := validTokenAmount(amount); err != nil {
		return err
	}
	if err := deps.API.AddrValidate(to); err != nil {
		return errorsmod.Wrapf(errs.ErrInvalidRequest, "token recipient: %v", err)
	}
	held, err := tokenBalance(deps.Storage, from)
	if err != nil {
		return err
	}
	if held.LT(amount) {
		return errorsmod.Wrapf(errs.ErrInsufficientFunds, "%s holds %s tokens, needs %s", from, held, amount)
	}
	if err := saveJSON(deps.Storage, balanceKey(from), held.Sub(amount)); err != nil {
		return err
	}
	return addBalance(deps.Storage, to, amount)
}

func tokenBalance(store wasm.Storage, address string) (math.Int, error) {
	bz := store.Get(balanceKey(address))
	if bz == nil {
		return math.ZeroInt(), nil
	}
	var amount math.Int
	if err := json.Unmarshal(bz, &amount); err != nil {
		return math.Int{}, errorsmod.Wrapf(errs.ErrSerialization, "balance of %s: %v", address, err)
	}
	return amount, nil
}

func addBalance(store wasm.Storage, address string, amount math.Int) error {
	held, err := tokenBalance(store, address)
	if err != nil {
		return err
	}
	return saveJSON(store, balanceKey(address), held.Add(amount))
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
