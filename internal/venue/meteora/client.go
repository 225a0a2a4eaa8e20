// Package meteora is the venue B adapter. Unlike raydium, the Meteora swap
// service computes quotes itself (its dynamic-fee curve is not a plain
// constant product), so the adapter consumes the service's quote endpoint
// directly. Fees come back denominated in the output token.
package meteora

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/ItshMoh/sol-sniper-engine/internal/telemetry"
	"github.com/ItshMoh/sol-sniper-engine/internal/venue"
)

const Name = "meteora"

type Client struct {
	baseURL      string
	httpClient   *http.Client
	readLimiter  *rate.Limiter
	writeLimiter *rate.Limiter
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		readLimiter:  rate.NewLimiter(rate.Limit(20), 20),
		writeLimiter: rate.NewLimiter(rate.Limit(5), 5),
	}
}

func (c *Client) Name() string { return Name }

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	lim := c.readLimiter
	if method != http.MethodGet {
		lim = c.writeLimiter
	}
	waitStart := time.Now()
	if err := lim.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}
	telemetry.Metrics.RateLimiterWait.Record(time.Since(waitStart))

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	telemetry.Debugf("meteora: %s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(start))

	return respBody, resp.StatusCode, nil
}

type poolItem struct {
	PoolAddress string `json:"pool_address"`
	TokenAMint  string `json:"token_a_mint"`
	TokenBMint  string `json:"token_b_mint"`
}

type poolsResponse struct {
	Pools []poolItem `json:"pools"`
}

func (c *Client) PoolExists(ctx context.Context, tokenMint string) (venue.PoolInfo, error) {
	telemetry.Metrics.PoolChecks.Inc()

	path := "/pools/search?token_mint=" + url.QueryEscape(tokenMint)
	body, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return venue.PoolInfo{}, venue.Unavailable(Name, err)
	}
	if status != http.StatusOK {
		return venue.PoolInfo{}, venue.Unavailable(Name, fmt.Errorf("pool search: status=%d", status))
	}

	var resp poolsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return venue.PoolInfo{}, venue.Unavailable(Name, fmt.Errorf("unmarshal pools: %w", err))
	}
	if len(resp.Pools) == 0 {
		return venue.PoolInfo{Exists: false}, nil
	}

	p := resp.Pools[0]
	return venue.PoolInfo{
		PoolID:     p.PoolAddress,
		TokenAMint: p.TokenAMint,
		TokenBMint: p.TokenBMint,
		Exists:     true,
	}, nil
}

type quoteRequest struct {
	PoolAddress string `json:"pool_address"`
	InputMint   string `json:"input_mint"`
	InAmount    string `json:"in_amount"`
	SlippageBps int    `json:"slippage_bps"`
}

type quoteResponse struct {
	SwapInAmount     string  `json:"swap_in_amount"`
	SwapOutAmount    string  `json:"swap_out_amount"`
	TotalFee         string  `json:"total_fee"` // output token units
	PriceImpact      float64 `json:"price_impact"`
	MinSwapOutAmount string  `json:"min_swap_out_amount"`
}

func (c *Client) Quote(ctx context.Context, poolID, inputMint string, amount *big.Int, slippageBps int) (venue.Quote, error) {
	telemetry.Metrics.QuotesFetched.Inc()
	start := time.Now()

	req := quoteRequest{
		PoolAddress: poolID,
		InputMint:   inputMint,
		InAmount:    amount.String(),
		SlippageBps: slippageBps,
	}

	body, status, err := c.do(ctx, http.MethodPost, "/quote", req)
	if err != nil {
		telemetry.Metrics.QuoteErrors.Inc()
		return venue.Quote{}, venue.Unavailable(Name, err)
	}
	if status != http.StatusOK {
		telemetry.Metrics.QuoteErrors.Inc()
		return venue.Quote{}, venue.Unavailable(Name, fmt.Errorf("quote: status=%d", status))
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		telemetry.Metrics.QuoteErrors.Inc()
		return venue.Quote{}, venue.Unavailable(Name, fmt.Errorf("unmarshal quote: %w", err))
	}

	out, ok := new(big.Int).SetString(resp.SwapOutAmount, 10)
	if !ok {
		telemetry.Metrics.QuoteErrors.Inc()
		return venue.Quote{}, venue.Unavailable(Name, fmt.Errorf("bad out amount %q", resp.SwapOutAmount))
	}
	fee, ok := new(big.Int).SetString(resp.TotalFee, 10)
	if !ok {
		fee = big.NewInt(0)
	}
	minOut, ok := new(big.Int).SetString(resp.MinSwapOutAmount, 10)
	if !ok {
		minOut = venue.MinOutput(out, slippageBps)
	}

	telemetry.Metrics.QuoteLatency.Record(time.Since(start))

	return venue.Quote{
		Venue:           Name,
		PoolID:          poolID,
		InputAmount:     new(big.Int).Set(amount),
		OutputAmount:    out,
		Fee:             fee,
		FeeDenomination: venue.FeeInOutputToken,
		PriceImpact:     resp.PriceImpact,
		MinOutputAmount: minOut,
	}, nil
}

type swapRequest struct {
	PoolAddress      string `json:"pool_address"`
	InputMint        string `json:"input_mint"`
	InAmount         string `json:"in_amount"`
	MinSwapOutAmount string `json:"min_swap_out_amount"`
}

type swapResponse struct {
	TxID      string `json:"tx_id"`
	OutAmount string `json:"out_amount"`
}

func (c *Client) ExecuteSwap(ctx context.Context, poolID, inputMint string, amount *big.Int, slippageBps int) (venue.SwapResult, error) {
	quote, err := c.Quote(ctx, poolID, inputMint, amount, slippageBps)
	if err != nil {
		return venue.SwapResult{}, err
	}

	req := swapRequest{
		PoolAddress:      poolID,
		InputMint:        inputMint,
		InAmount:         amount.String(),
		MinSwapOutAmount: quote.MinOutputAmount.String(),
	}

	body, status, err := c.do(ctx, http.MethodPost, "/swap", req)
	if err != nil {
		telemetry.Metrics.SwapErrors.Inc()
		return venue.SwapResult{}, venue.Unavailable(Name, err)
	}
	if status < 200 || status >= 300 {
		telemetry.Metrics.SwapErrors.Inc()
		return venue.SwapResult{}, fmt.Errorf("meteora: swap rejected: status=%d body=%s", status, string(body))
	}

	var resp swapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return venue.SwapResult{}, fmt.Errorf("meteora: unmarshal swap response: %w", err)
	}

	out, ok := new(big.Int).SetString(resp.OutAmount, 10)
	if !ok {
		out = big.NewInt(0)
	}

	telemetry.Metrics.SwapsExecuted.Inc()
	telemetry.Infof("meteora: swap executed pool=%s tx=%s out=%s", poolID, resp.TxID, resp.OutAmount)

	return venue.SwapResult{TxID: resp.TxID, OutputAmount: out}, nil
}
