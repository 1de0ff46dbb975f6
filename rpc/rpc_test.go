package rpc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-step-by-step/config"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/asset"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/operations"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
	"github.com/Cogwheel-Validator/spectra-step-by-step/host"
	"github.com/Cogwheel-Validator/spectra-step-by-step/rpc"
)

type fakeLive struct {
	wasm.Querier
	healthy bool
}

func (f fakeLive) Healthy(context.Context) bool { return f.healthy }

type fixture struct {
	chain  *host.Chain
	d      *config.Deployment
	user   string
	mirror string
	srv    *httptest.Server
}

// newFixture deploys a uusd/MIR pool priced at 2 uusd per MIR with a 1% transfer tax and serves it.
func newFixture(t *testing.T, live rpc.LiveQuerier) fixture {
	t.Helper()
	g := &config.Genesis{
		ChainID:       "localterra",
		Prefix:        "terra",
		Admin:         "admin",
		TaxRate:       "0.01",
		ExchangeRates: map[string]string{"uusd": "50"},
		Accounts: []config.GenesisAccount{
			{Address: "user", Coins: map[string]string{"uusd": "1000000", "uluna": "1000"}},
		},
		Tokens: []config.GenesisToken{
			{Label: "mirror", Name: "Mirror", Symbol: "MIR", Decimals: 6, Balances: map[string]string{"user": "5000"}},
		},
		Pairs: []config.GenesisPair{
			{Label: "uusd-mir", Assets: [2]string{"uusd", "token:mirror"}, Liquidity: [2]string{"2000000", "1000000"}},
		},
		Factory:  config.GenesisContract{Label: "factory"},
		Strategy: config.GenesisStrategy{Label: "strategy", Commission: 1},
	}
	chain, d, err := g.Build(context.Background())
	assert.NoError(t, err)

	reg := prometheus.NewRegistry()
	server, err := rpc.NewServer(context.Background(), &rpc.ServerConfig{
		Address:        "127.0.0.1:0",
		AllowedOrigins: []string{"*"},
		EnableMetrics:  true,
		Registerer:     reg,
		Gatherer:       reg,
	}, rpc.NewService(chain, d, live))
	assert.NoError(t, err)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return fixture{chain: chain, d: d, user: chain.Address("user"), mirror: d.Tokens["mirror"], srv: srv}
}

func (f fixture) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f fixture) post(t *testing.T, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if raw, ok := body.(string); ok {
		buf.WriteString(raw)
	} else {
		assert.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(f.srv.URL+path, "application/json", &buf)
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f fixture) lunaToMirror(minimum int64) rpc.StrategyRequest {
	return rpc.StrategyRequest{
		Sender: f.user,
		Strategy: contract.ExecuteStrategy{
			Steps: []contract.StrategyStep{
				contract.NewStrategyStep(asset.NewNative("uluna"), asset.NewNative("uusd"), operations.NewMarketSwap()),
				contract.NewStrategyStep(asset.NewNative("uusd"), asset.NewToken(f.mirror), operations.NewLiquidityPoolSwap(f.d.Factory)),
			},
			MinimumReceive: math.NewInt(minimum),
		},
		Funds: []wasm.Coin{wasm.NewCoin("uluna", math.NewInt(100))},
	}
}

func (f fixture) tokenBalance(t *testing.T, holder string) int64 {
	t.Helper()
	amount, err := asset.QueryTokenBalance(context.Background(), f.chain.Querier(), f.mirror, holder)
	assert.NoError(t, err)
	return amount.Int64()
}

type errorBody struct {
	Error     string `json:"error"`
	Codespace string `json:"codespace"`
	Code      uint32 `json:"code"`
}

func TestServer_HealthAndReady(t *testing.T) {
	f := newFixture(t, nil)

	var health map[string]string
	assert.Equal(t, f.get(t, "/server/health", &health), http.StatusOK)
	assert.Equal(t, health["status"], "healthy")

	var ready map[string]any
	assert.Equal(t, f.get(t, "/server/ready", &ready), http.StatusOK)
	assert.Equal(t, ready["status"], "ready")
	_, hasLCD := ready["lcd"]
	assert.False(t, hasLCD)
}

func TestServer_ReadyReportsLCD(t *testing.T) {
	f := newFixture(t, fakeLive{healthy: false})

	var ready map[string]any
	assert.Equal(t, f.get(t, "/server/ready", &ready), http.StatusOK)
	assert.Equal(t, ready["status"], "degraded")
	assert.Equal(t, ready["lcd"], false)
}

func TestServer_Config(t *testing.T) {
	f := newFixture(t, nil)

	var cfg rpc.ConfigResponse
	assert.Equal(t, f.get(t, "/v1/config", &cfg), http.StatusOK)
	assert.Equal(t, cfg.ChainID, "localterra")
	assert.Equal(t, cfg.Commission, 1)
	assert.Equal(t, cfg.Treasury, f.chain.Treasury())
	assert.Equal(t, strings.Join(cfg.Operations, ","), "liquidity_pool_swap,market_swap")
	assert.Equal(t, cfg.Deployment.Strategy, f.d.Strategy)
	assert.Equal(t, cfg.Deployment.Pairs["uusd-mir"], f.d.Pairs["uusd-mir"])
}

func TestServer_Balances(t *testing.T) {
	f := newFixture(t, nil)

	var all rpc.BalancesResponse
	assert.Equal(t, f.get(t, "/v1/balances/"+f.user+"?tokens="+f.mirror, &all), http.StatusOK)
	assert.Equal(t, all.Source, "chain")
	assert.Equal(t, len(all.Native), 2)
	assert.Equal(t, all.Native[0].Denom, "uluna")
	assert.Equal(t, all.Native[1].Amount.Int64(), int64(1_000_000))
	assert.Equal(t, len(all.Tokens), 1)
	assert.Equal(t, all.Tokens[0].Amount.Int64(), int64(5_000))

	var one rpc.BalancesResponse
	assert.Equal(t, f.get(t, "/v1/balances/"+f.user+"?denoms=ukrw", &one), http.StatusOK)
	assert.Equal(t, len(one.Native), 1)
	assert.True(t, one.Native[0].Amount.IsZero())

	var bad errorBody
	assert.Equal(t, f.get(t, "/v1/balances/not-an-address", &bad), http.StatusBadRequest)
	assert.Equal(t, bad.Codespace, "stepbystep")

	assert.Equal(t, f.get(t, "/v1/balances/"+f.user+"?source=lcd", nil), http.StatusBadRequest)
	assert.Equal(t, f.get(t, "/v1/balances/"+f.user+"?source=mars", nil), http.StatusBadRequest)
}

func TestServer_BalancesFromLCD(t *testing.T) {
	var live fakeLive
	f := newFixture(t, &live)
	live.Querier = f.chain.Querier()
	live.healthy = true

	var resp rpc.BalancesResponse
	assert.Equal(t, f.get(t, "/v1/balances/"+f.user+"?source=lcd&denoms=uusd", &resp), http.StatusOK)
	assert.Equal(t, resp.Source, "lcd")
	assert.Equal(t, len(resp.Native), 1)
	assert.Equal(t, resp.Native[0].Amount.Int64(), int64(1_000_000))
}

func TestServer_Plan(t *testing.T) {
	f := newFixture(t, nil)
	height := f.chain.Height()

	var plan rpc.PlanResponse
	assert.Equal(t, f.post(t, "/v1/strategy/plan", f.lunaToMirror(2_000), &plan), http.StatusOK)
	assert.Equal(t, plan.Steps, 2)
	assert.Equal(t, len(plan.Plan.Messages), 3)
	assert.Equal(t, len(plan.Warnings), 0)
	assert.Equal(t, plan.Plan.Finalize.Receiver, f.user)
	assert.Equal(t, plan.Plan.Finalize.InitialBalance.Int64(), int64(5_000))
	assert.True(t, plan.Simulation == nil)
	assert.Equal(t, f.chain.Height(), height)
}

func TestServer_PlanSimulates(t *testing.T) {
	f := newFixture(t, nil)
	height := f.chain.Height()

	req := f.lunaToMirror(2_000)
	req.Simulate = true
	bps := uint32(100)
	req.SlippageBps = &bps
	var plan rpc.PlanResponse
	assert.Equal(t, f.post(t, "/v1/strategy/plan", req, &plan), http.StatusOK)
	assert.True(t, plan.Simulation != nil)
	assert.Equal(t, plan.Simulation.Received, "2462")
	assert.Equal(t, plan.Simulation.Messages, 7)
	assert.True(t, plan.SuggestedMinimumReceive != nil)
	assert.Equal(t, plan.SuggestedMinimumReceive.Int64(), int64(2_437))

	// nothing was committed
	assert.Equal(t, f.chain.Height(), height)
	assert.Equal(t, f.tokenBalance(t, f.user), int64(5_000))
	assert.Equal(t, f.chain.Balance(f.user, "uluna").Int64(), int64(1_000))
}

func TestServer_PlanWarnsOnMismatchedHops(t *testing.T) {
	f := newFixture(t, nil)

	req := f.lunaToMirror(1)
	req.Strategy.Steps = req.Strategy.Steps[1:]
	req.Strategy.Steps = append(req.Strategy.Steps,
		contract.NewStrategyStep(asset.NewNative("uluna"), asset.NewNative("uusd"), operations.NewMarketSwap()))

	var plan rpc.PlanResponse
	assert.Equal(t, f.post(t, "/v1/strategy/plan", req, &plan), http.StatusOK)
	assert.Equal(t, plan.Steps, 2)
	assert.Equal(t, len(plan.Warnings), 1)
}

func TestServer_PlanRejectsInvalid(t *testing.T) {
	f := newFixture(t, nil)

	empty := f.lunaToMirror(1)
	empty.Strategy.Steps = nil
	var body errorBody
	assert.Equal(t, f.post(t, "/v1/strategy/plan", empty, &body), http.StatusBadRequest)
	assert.True(t, strings.Contains(body.Error, "must provide steps"))

	noSender := f.lunaToMirror(1)
	noSender.Sender = ""
	assert.Equal(t, f.post(t, "/v1/strategy/plan", noSender, nil), http.StatusBadRequest)

	assert.Equal(t, f.post(t, "/v1/strategy/plan", `{"sender":"x","bogus":1}`, nil), http.StatusBadRequest)
	assert.Equal(t, f.post(t, "/v1/strategy/plan", ``, nil), http.StatusBadRequest)
}

func TestServer_Execute(t *testing.T) {
	f := newFixture(t, nil)

	var res rpc.ExecuteResponse
	assert.Equal(t, f.post(t, "/v1/strategy/execute", f.lunaToMirror(2_000), &res), http.StatusOK)
	assert.True(t, res.Result != nil)
	assert.Equal(t, res.Received, "2462")
	assert.True(t, res.UnitID != "")
	assert.Equal(t, f.tokenBalance(t, f.user), int64(5_000+2_462))
	assert.Equal(t, f.chain.Balance(f.user, "uluna").Int64(), int64(900))
}

func TestServer_ExecuteBelowMinimum(t *testing.T) {
	f := newFixture(t, nil)
	height := f.chain.Height()

	var body errorBody
	assert.Equal(t, f.post(t, "/v1/strategy/execute", f.lunaToMirror(2_463), &body), http.StatusUnprocessableEntity)
	assert.Equal(t, body.Codespace, "stepbystep")
	assert.Equal(t, body.Code, uint32(5))
	assert.True(t, strings.Contains(body.Error, "minimum receive amount: 2463"))
	assert.Equal(t, f.chain.Height(), height)
	assert.Equal(t, f.chain.Balance(f.user, "uluna").Int64(), int64(1_000))
}

func TestServer_ExecuteTokenInput(t *testing.T) {
	f := newFixture(t, nil)

	amount := math.NewInt(1_000)
	req := rpc.StrategyRequest{
		Sender: f.user,
		Strategy: contract.ExecuteStrategy{
			Steps: []contract.StrategyStep{
				contract.NewStrategyStep(asset.NewToken(f.mirror), asset.NewNative("uusd"), operations.NewLiquidityPoolSwap(f.d.Factory)),
			},
			MinimumReceive: math.NewInt(1_900),
		},
		TokenAmount: &amount,
	}
	var res rpc.ExecuteResponse
	assert.Equal(t, f.post(t, "/v1/strategy/execute", req, &res), http.StatusOK)
	assert.Equal(t, res.Received, "1974")
	assert.Equal(t, f.tokenBalance(t, f.user), int64(4_000))

	// token_amount needs a token input
	native := f.lunaToMirror(1)
	native.TokenAmount = &amount
	assert.Equal(t, f.post(t, "/v1/strategy/execute", native, nil), http.StatusBadRequest)
}

func TestServer_Metrics(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, f.get(t, "/server/health", nil), http.StatusOK)

	resp, err := http.Get(f.srv.URL + "/server/metrics")
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `stepbystep_rpc_requests_total{method="GET",route="/server/health",status="200"} 1`))
}

func TestServer_NoCacheOnAPI(t *testing.T) {
	f := newFixture(t, nil)
	resp, err := http.Get(f.srv.URL + "/v1/config")
	assert.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, resp.Header.Get("Cache-Control"), "no-store, no-cache, must-revalidate")
}
