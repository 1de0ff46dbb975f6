package lcd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"cosmossdk.io/math"
	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
)

var _ wasm.Querier = (*Client)(nil)

type balanceResponse struct {
	Balance wasm.Coin `json:"balance"`
}

type smartQueryResponse struct {
	Data json.RawMessage `json:"data"`
}

type taxRateResponse struct {
	TaxRate decimal.Decimal `json:"tax_rate"`
}

type taxCapResponse struct {
	TaxCap math.Int `json:"tax_cap"`
}

func (c *Client) QueryBalance(ctx context.Context, address, denom string) (math.Int, error) {
	path := fmt.Sprintf("/cosmos/bank/v1beta1/balances/%s/by_denom?denom=%s", url.PathEscape(address), url.QueryEscape(denom))
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return math.Int{}, err
	}
	var resp balanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return math.Int{}, fmt.Errorf("failed to parse balance response: %w", err)
	}
	if resp.Balance.Amount.IsNil() {
		return math.ZeroInt(), nil
	}
	return resp.Balance.Amount, nil
}

func (c *Client) QueryWasmSmart(ctx context.Context, contractAddr string, msg []byte) ([]byte, error) {
	body, err := c.doRequest(ctx, smartQueryPath(contractAddr, msg))
	if err != nil {
		return nil, err
	}
	var resp smartQueryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse smart query response: %w", err)
	}
	return resp.Data, nil
}

func (c *Client) QueryTaxRate(ctx context.Context) (decimal.Decimal, error) {
	body, err := c.doRequest(ctx, "/terra/treasury/v1beta1/tax_rate")
	if err != nil {
		return decimal.Zero, err
	}
	var resp taxRateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse tax rate response: %w", err)
	}
	return resp.TaxRate, nil
}

// QueryTaxCap returns a nil Int when the chain reports no cap for denom.
func (c *Client) QueryTaxCap(ctx context.Context, denom string) (math.Int, error) {
	body, err := c.doRequest(ctx, "/terra/treasury/v1beta1/tax_caps/"+url.PathEscape(denom))
	if err != nil {
		return math.Int{}, err
	}
	var resp taxCapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return math.Int{}, fmt.Errorf("failed to parse tax cap response: %w", err)
	}
	return resp.TaxCap, nil
}
