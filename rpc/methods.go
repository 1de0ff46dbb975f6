package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/go-chi/chi/v5"
	"github.com/sourcegraph/conc/iter"

	"github.com/Cogwheel-Validator/spectra-step-by-step/config"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/asset"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/errs"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/operations"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
	"github.com/Cogwheel-Validator/spectra-step-by-step/host"
)

const (
	maxBodyBytes    = 1 << 20
	maxTokenQueries = 4
)

// LiveQuerier reads a live chain, lcd.Client implements it.
type LiveQuerier interface {
	wasm.Querier
	Healthy(ctx context.Context) bool
}

// Service serves strategies against the in-memory chain deployed from a genesis.
// Signing is not checked: any valid address may be used as sender, the chain is a sandbox.
type Service struct {
	chain      *host.Chain
	deployment *config.Deployment
	live       LiveQuerier
}

// NewService creates the service. live may be nil when no LCD is configured.
func NewService(chain *host.Chain, deployment *config.Deployment, live LiveQuerier) *Service {
	return &Service{chain: chain, deployment: deployment, live: live}
}

type errorResponse struct {
	Error     string `json:"error"`
	Codespace string `json:"codespace,omitempty"`
	Code      uint32 `json:"code,omitempty"`
}

// ConfigResponse describes the deployment the server runs strategies on.
type ConfigResponse struct {
	ChainID    string             `json:"chain_id"`
	Height     int64              `json:"height"`
	Treasury   string             `json:"treasury"`
	Commission int                `json:"commission"`
	Operations []string           `json:"operations"`
	Deployment *config.Deployment `json:"deployment"`
}

type BalancesResponse struct {
	Address string        `json:"address"`
	Source  string        `json:"source"`
	Native  []wasm.Coin   `json:"native"`
	Tokens  []asset.Asset `json:"tokens,omitempty"`
}

// StrategyRequest runs Strategy for Sender. Native input is sent as Funds; token input sets
// TokenAmount and is sent to the strategy through the token of the first step.
type StrategyRequest struct {
	Sender      string                   `json:"sender"`
	Strategy    contract.ExecuteStrategy `json:"strategy"`
	Funds       []wasm.Coin              `json:"funds,omitempty"`
	TokenAmount *math.Int                `json:"token_amount,omitempty"`
	// Simulate runs the plan on the chain and rolls it back.
	Simulate bool `json:"simulate,omitempty"`
	// SlippageBps derives a suggested minimum receive from the simulated output.
	SlippageBps *uint32 `json:"slippage_bps,omitempty"`
}

type PlanResponse struct {
	Plan       contract.Plan    `json:"plan"`
	Steps      int              `json:"steps"`
	Warnings   []string         `json:"warnings,omitempty"`
	Simulation *ExecuteResponse `json:"simulation,omitempty"`
	// SuggestedMinimumReceive is set for simulated plans with a slippage tolerance.
	SuggestedMinimumReceive *math.Int `json:"suggested_minimum_receive,omitempty"`
}

type ExecuteResponse struct {
	*host.Result
	// Received is how much of the target asset the sender gained.
	Received string `json:"received,omitempty"`
}

func (s *Service) ready(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ready", "height": s.chain.Height()}
	if s.live != nil {
		healthy := s.live.Healthy(r.Context())
		body["lcd"] = healthy
		if !healthy {
			body["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Service) config(w http.ResponseWriter, r *http.Request) {
	bz, err := s.chain.QuerySmart(r.Context(), s.deployment.Strategy, contract.QueryMsg{Config: &struct{}{}})
	if err != nil {
		writeError(w, err)
		return
	}
	var cfg contract.ConfigResponse
	if err := json.Unmarshal(bz, &cfg); err != nil {
		writeError(w, errorsmod.Wrap(errs.ErrSerialization, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, ConfigResponse{
		ChainID:    s.chain.ChainID(),
		Height:     s.chain.Height(),
		Treasury:   s.chain.Treasury(),
		Commission: cfg.Commission,
		Operations: operations.Registered(),
		Deployment: s.deployment,
	})
}

// balances serves ?denoms=a,b&tokens=addr1,addr2&source=chain|lcd. Without denoms the chain
// source lists every native balance.
func (s *Service) balances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := chi.URLParam(r, "address")
	if err := s.chain.API().AddrValidate(address); err != nil {
		writeError(w, errorsmod.Wrap(errs.ErrInvalidRequest, err.Error()))
		return
	}

	source := r.URL.Query().Get("source")
	var querier wasm.Querier
	switch source {
	case "", "chain":
		source = "chain"
		querier = s.chain.Querier()
	case "lcd":
		if s.live == nil {
			writeError(w, errorsmod.Wrap(errs.ErrInvalidRequest, "no lcd endpoint configured"))
			return
		}
		querier = s.live
	default:
		writeError(w, errorsmod.Wrapf(errs.ErrInvalidRequest, "unknown source %q, use chain or lcd", source))
		return
	}

	resp := BalancesResponse{Address: address, Source: source, Native: []wasm.Coin{}}
	denoms := splitList(r.URL.Query().Get("denoms"))
	if len(denoms) == 0 && source == "chain" {
		resp.Native = s.chain.Balances(address)
	}
	for _, denom := range denoms {
		amount, err := querier.QueryBalance(ctx, address, denom)
		if err != nil {
			writeError(w, errorsmod.Wrapf(errs.ErrQuery, "balance of %s: %v", denom, err))
			return
		}
		resp.Native = append(resp.Native, wasm.NewCoin(denom, amount))
	}
	if tokens := splitList(r.URL.Query().Get("tokens")); len(tokens) > 0 {
		mapper := iter.Mapper[string, asset.Asset]{MaxGoroutines: maxTokenQueries}
		balances, err := mapper.MapErr(tokens, func(token *string) (asset.Asset, error) {
			amount, err := asset.QueryTokenBalance(ctx, querier, *token, address)
			if err != nil {
				return asset.Asset{}, err
			}
			return asset.New(asset.NewToken(*token), amount), nil
		})
		if err != nil {
			writeError(w, firstError(err))
			return
		}
		resp.Tokens = balances
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) plan(w http.ResponseWriter, r *http.Request) {
	var req StrategyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.chain.API().AddrValidate(req.Sender); err != nil {
		writeError(w, errorsmod.Wrapf(errs.ErrInvalidRequest, "sender: %v", err))
		return
	}

	plan, err := contract.BuildPlan(r.Context(), s.chain.Querier(), s.chain.API(), s.deployment.Strategy, req.Sender, req.Strategy)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := PlanResponse{Plan: plan, Steps: plan.Steps(), Warnings: contract.HopMismatches(req.Strategy.Steps)}
	if req.Simulate {
		sim, err := s.submit(r.Context(), req, false)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Simulation = sim
		if req.SlippageBps != nil && sim.Received != "" {
			expected, _ := math.NewIntFromString(sim.Received)
			minimum, err := asset.MinOutput(expected, *req.SlippageBps)
			if err != nil {
				writeError(w, err)
				return
			}
			resp.SuggestedMinimumReceive = &minimum
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) execute(w http.ResponseWriter, r *http.Request) {
	var req StrategyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.chain.API().AddrValidate(req.Sender); err != nil {
		writeError(w, errorsmod.Wrapf(errs.ErrInvalidRequest, "sender: %v", err))
		return
	}
	res, err := s.submit(r.Context(), req, !req.Simulate)
	if err != nil {
		writeError(w, err)
		return
	}
	Logger.Info().
		Str("unit", res.UnitID).
		Str("sender", req.Sender).
		Int("steps", len(req.Strategy.Steps)).
		Str("received", res.Received).
		Bool("committed", !req.Simulate).
		Msg("Strategy executed")
	writeJSON(w, http.StatusOK, res)
}

// submit sends the strategy to the chain, committing only when commit is set.
func (s *Service) submit(ctx context.Context, req StrategyRequest, commit bool) (*ExecuteResponse, error) {
	run := s.chain.Simulate
	if commit {
		run = s.chain.Execute
	}

	var (
		res *host.Result
		err error
	)
	if req.TokenAmount != nil {
		if len(req.Strategy.Steps) == 0 {
			return nil, errorsmod.Wrap(errs.ErrInvalidRequest, "must provide steps")
		}
		first := req.Strategy.Steps[0].FromAsset
		if first.IsNative() {
			return nil, errorsmod.Wrapf(errs.ErrInvalidRequest, "token_amount given but the first step offers %s", first)
		}
		if len(req.Funds) > 0 {
			return nil, errorsmod.Wrap(errs.ErrInvalidRequest, "token input does not take funds")
		}
		hook, merr := json.Marshal(contract.Cw20HookMsg{ExecuteStrategy: &req.Strategy})
		if merr != nil {
			return nil, errorsmod.Wrap(errs.ErrSerialization, merr.Error())
		}
		res, err = run(ctx, req.Sender, first.Token.ContractAddr, wasm.Cw20ExecuteMsg{Send: &wasm.Cw20Send{
			Contract: s.deployment.Strategy,
			Amount:   *req.TokenAmount,
			Msg:      hook,
		}})
	} else {
		res, err = run(ctx, req.Sender, s.deployment.Strategy, contract.ExecuteMsg{ExecuteStrategy: &req.Strategy}, req.Funds...)
	}
	if err != nil {
		return nil, err
	}
	return &ExecuteResponse{Result: res, Received: received(res, s.deployment.Strategy)}, nil
}

// received reads the balance delta the finalize step reported.
func received(res *host.Result, strategy string) string {
	initial, ok := res.Attribute(strategy, "initial_balance")
	if !ok {
		return ""
	}
	final, ok := res.Attribute(strategy, "final_balance")
	if !ok {
		return ""
	}
	i, ok1 := math.NewIntFromString(initial)
	f, ok2 := math.NewIntFromString(final)
	if !ok1 || !ok2 || f.LT(i) {
		return ""
	}
	return f.Sub(i).String()
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errorsmod.Wrap(errs.ErrInvalidRequest, "empty request body")
		}
		return errorsmod.Wrapf(errs.ErrInvalidRequest, "invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Error().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	codespace, code, _ := errorsmod.ABCIInfo(err, false)
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		Logger.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Codespace: codespace, Code: code})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrInvalidRequest),
		errors.Is(err, errs.ErrSerialization),
		errors.Is(err, errs.ErrUnsupportedAsset):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound),
		errors.Is(err, errs.ErrUnknownContract):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrAssertion),
		errors.Is(err, errs.ErrInsufficientFunds),
		errors.Is(err, errs.ErrMaxSpread),
		errors.Is(err, errs.ErrOverflow),
		errors.Is(err, errs.ErrDepthExceeded),
		errors.Is(err, errs.ErrQuery):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// firstError picks the first error out of a joined error so its code survives.
func firstError(err error) error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		if list := joined.Unwrap(); len(list) > 0 {
			return list[0]
		}
	}
	return err
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
