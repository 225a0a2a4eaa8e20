// Package raydium is the venue A adapter. It talks to the Raydium swap
// service over HTTP: pool lookup and reserve fetches feed a local
// constant-product quote, and execution is delegated to the service, which
// owns the wallet, transaction construction, and chain submission.
package raydium

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

const Name = "raydium"

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

	telemetry.Debugf("raydium: %s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(start))

	return respBody, resp.StatusCode, nil
}

type poolItem struct {
	ID    string `json:"id"`
	MintA string `json:"mintA"`
	MintB string `json:"mintB"`
}

type poolsResponse struct {
	Pools []poolItem `json:"pools"`
}

// PoolExists looks up a CPMM pool pairing tokenMint with the base mint.
func (c *Client) PoolExists(ctx context.Context, tokenMint string) (venue.PoolInfo, error) {
	telemetry.Metrics.PoolChecks.Inc()

	path := "/pools?mint=" + url.QueryEscape(tokenMint)
	body, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return venue.PoolInfo{}, venue.Unavailable(Name, err)
	}
	if status != http.StatusOK {
		return venue.PoolInfo{}, venue.Unavailable(Name, fmt.Errorf("pool lookup: status=%d", status))
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
		PoolID:     p.ID,
		TokenAMint: p.MintA,
		TokenBMint: p.MintB,
		Exists:     true,
	}, nil
}

type reservesResponse struct {
	BaseMint     string `json:"baseMint"`
	QuoteMint    string `json:"quoteMint"`
	BaseReserve  string `json:"baseReserve"`
	QuoteReserve string `json:"quoteReserve"`
	TradeFeeRate int64  `json:"tradeFeeRate"` // parts per million
}

// Quote fetches the pool's current reserves and computes the swap output
// locally with the constant-product curve. The fee is denominated in the
// input token.
func (c *Client) Quote(ctx context.Context, poolID, inputMint string, amount *big.Int, slippageBps int) (venue.Quote, error) {
	telemetry.Metrics.QuotesFetched.Inc()
	start := time.Now()

	body, status, err := c.do(ctx, http.MethodGet, "/pools/"+url.PathEscape(poolID)+"/reserves", nil)
	if err != nil {
		telemetry.Metrics.QuoteErrors.Inc()
		return venue.Quote{}, venue.Unavailable(Name, err)
	}
	if status != http.StatusOK {
		telemetry.Metrics.QuoteErrors.Inc()
		return venue.Quote{}, venue.Unavailable(Name, fmt.Errorf("reserves: status=%d", status))
	}

	var resp reservesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		telemetry.Metrics.QuoteErrors.Inc()
		return venue.Quote{}, venue.Unavailable(Name, fmt.Errorf("unmarshal reserves: %w", err))
	}

	if inputMint != resp.BaseMint && inputMint != resp.QuoteMint {
		return venue.Quote{}, venue.Unavailable(Name, fmt.Errorf("input mint %s does not match pool %s", inputMint, poolID))
	}

	reserveIn, reserveOut, err := orientReserves(&resp, inputMint)
	if err != nil {
		telemetry.Metrics.QuoteErrors.Inc()
		return venue.Quote{}, venue.Unavailable(Name, err)
	}

	out, fee, err := venue.SwapBaseInput(amount, reserveIn, reserveOut, resp.TradeFeeRate)
	if err != nil {
		telemetry.Metrics.QuoteErrors.Inc()
		return venue.Quote{}, venue.Unavailable(Name, err)
	}

	telemetry.Metrics.QuoteLatency.Record(time.Since(start))

	return venue.Quote{
		Venue:           Name,
		PoolID:          poolID,
		InputAmount:     new(big.Int).Set(amount),
		OutputAmount:    out,
		Fee:             fee,
		FeeDenomination: venue.FeeInInputToken,
		PriceImpact:     venue.PriceImpact(amount, out, reserveIn, reserveOut),
		MinOutputAmount: venue.MinOutput(out, slippageBps),
	}, nil
}

func orientReserves(r *reservesResponse, inputMint string) (reserveIn, reserveOut *big.Int, err error) {
	base, ok := new(big.Int).SetString(r.BaseReserve, 10)
	if !ok {
		return nil, nil, fmt.Errorf("bad base reserve %q", r.BaseReserve)
	}
	quote, ok := new(big.Int).SetString(r.QuoteReserve, 10)
	if !ok {
		return nil, nil, fmt.Errorf("bad quote reserve %q", r.QuoteReserve)
	}
	if inputMint == r.BaseMint {
		return base, quote, nil
	}
	return quote, base, nil
}

type swapRequest struct {
	PoolID          string `json:"poolId"`
	InputMint       string `json:"inputMint"`
	Amount          string `json:"amount"`
	MinOutputAmount string `json:"minOutputAmount"`
}

type swapResponse struct {
	TxID         string `json:"txId"`
	OutputAmount string `json:"outputAmount"`
}

// ExecuteSwap submits the swap through the service, which signs and sends
// the transaction and waits for confirmation.
func (c *Client) ExecuteSwap(ctx context.Context, poolID, inputMint string, amount *big.Int, slippageBps int) (venue.SwapResult, error) {
	quote, err := c.Quote(ctx, poolID, inputMint, amount, slippageBps)
	if err != nil {
		return venue.SwapResult{}, err
	}

	req := swapRequest{
		PoolID:          poolID,
		InputMint:       inputMint,
		Amount:          amount.String(),
		MinOutputAmount: quote.MinOutputAmount.String(),
	}

	body, status, err := c.do(ctx, http.MethodPost, "/swap", req)
	if err != nil {
		telemetry.Metrics.SwapErrors.Inc()
		return venue.SwapResult{}, venue.Unavailable(Name, err)
	}
	if status < 200 || status >= 300 {
		telemetry.Metrics.SwapErrors.Inc()
		return venue.SwapResult{}, fmt.Errorf("raydium: swap rejected: status=%d body=%s", status, string(body))
	}

	var resp swapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return venue.SwapResult{}, fmt.Errorf("raydium: unmarshal swap response: %w", err)
	}

	out, ok := new(big.Int).SetString(resp.OutputAmount, 10)
	if !ok {
		out = big.NewInt(0)
	}

	telemetry.Metrics.SwapsExecuted.Inc()
	telemetry.Infof("raydium: swap executed pool=%s tx=%s out=%s", poolID, resp.TxID, resp.OutputAmount)

	return venue.SwapResult{TxID: resp.TxID, OutputAmount: out}, nil
}
