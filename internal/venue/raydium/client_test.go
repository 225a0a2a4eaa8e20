package raydium

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ItshMoh/sol-sniper-engine/internal/venue"
)

const (
	solMint   = "So11111111111111111111111111111111111111112"
	tokenMint = "TokenMint111111111111111111111111111111111"
)

func testService(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func TestPoolExists(t *testing.T) {
	c := testService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pools" || r.URL.Query().Get("mint") != tokenMint {
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
		}
		json.NewEncoder(w).Encode(poolsResponse{Pools: []poolItem{
			{ID: "pool-1", MintA: solMint, MintB: tokenMint},
		}})
	})

	info, err := c.PoolExists(context.Background(), tokenMint)
	if err != nil {
		t.Fatalf("pool exists: %v", err)
	}
	if !info.Exists || info.PoolID != "pool-1" {
		t.Errorf("info = %+v", info)
	}
}

func TestPoolExistsNoPool(t *testing.T) {
	c := testService(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(poolsResponse{})
	})

	info, err := c.PoolExists(context.Background(), tokenMint)
	if err != nil {
		t.Fatalf("pool exists: %v", err)
	}
	if info.Exists {
		t.Error("no pool should report Exists=false without error")
	}
}

func TestPoolExistsServiceDown(t *testing.T) {
	c := testService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.PoolExists(context.Background(), tokenMint)
	if !errors.Is(err, venue.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestQuoteFromReserves(t *testing.T) {
	c := testService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pools/pool-1/reserves" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(reservesResponse{
			BaseMint:     solMint,
			QuoteMint:    tokenMint,
			BaseReserve:  "1000000000000",
			QuoteReserve: "5000000000000",
			TradeFeeRate: 2500, // 0.25%
		})
	})

	amount := big.NewInt(1_000_000_000)
	q, err := c.Quote(context.Background(), "pool-1", solMint, amount, 100)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	wantOut, wantFee, err := venue.SwapBaseInput(amount, big.NewInt(1_000_000_000_000), big.NewInt(5_000_000_000_000), 2500)
	if err != nil {
		t.Fatalf("reference output: %v", err)
	}
	if q.OutputAmount.Cmp(wantOut) != 0 {
		t.Errorf("output = %s, want %s", q.OutputAmount, wantOut)
	}
	if q.Fee.Cmp(wantFee) != 0 {
		t.Errorf("fee = %s, want %s", q.Fee, wantFee)
	}
	if q.FeeDenomination != venue.FeeInInputToken {
		t.Errorf("fee denomination = %s", q.FeeDenomination)
	}
	if q.MinOutputAmount.Cmp(venue.MinOutput(wantOut, 100)) != 0 {
		t.Errorf("minOutput = %s", q.MinOutputAmount)
	}
	if q.PriceImpact <= 0 {
		t.Errorf("priceImpact = %f, want > 0", q.PriceImpact)
	}
}

func TestQuoteOrientsReserves(t *testing.T) {
	// The pool lists the traded token as base and SOL as quote; input side
	// must still be resolved by mint, not position.
	c := testService(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(reservesResponse{
			BaseMint:     tokenMint,
			QuoteMint:    solMint,
			BaseReserve:  "5000000000000",
			QuoteReserve: "1000000000000",
			TradeFeeRate: 2500,
		})
	})

	amount := big.NewInt(1_000_000_000)
	q, err := c.Quote(context.Background(), "pool-1", solMint, amount, 100)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	wantOut, _, _ := venue.SwapBaseInput(amount, big.NewInt(1_000_000_000_000), big.NewInt(5_000_000_000_000), 2500)
	if q.OutputAmount.Cmp(wantOut) != 0 {
		t.Errorf("output = %s, want %s", q.OutputAmount, wantOut)
	}
}

func TestQuoteWrongMint(t *testing.T) {
	c := testService(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(reservesResponse{
			BaseMint:     tokenMint,
			QuoteMint:    "OtherMint1111111111111111111111111111111111",
			BaseReserve:  "1",
			QuoteReserve: "1",
			TradeFeeRate: 2500,
		})
	})

	_, err := c.Quote(context.Background(), "pool-1", solMint, big.NewInt(100), 100)
	if !errors.Is(err, venue.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestExecuteSwap(t *testing.T) {
	var gotSwap swapRequest
	c := testService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pools/pool-1/reserves":
			json.NewEncoder(w).Encode(reservesResponse{
				BaseMint:     solMint,
				QuoteMint:    tokenMint,
				BaseReserve:  "1000000000000",
				QuoteReserve: "5000000000000",
				TradeFeeRate: 2500,
			})
		case "/swap":
			if err := json.NewDecoder(r.Body).Decode(&gotSwap); err != nil {
				t.Errorf("decode swap request: %v", err)
			}
			json.NewEncoder(w).Encode(swapResponse{TxID: "tx-abc", OutputAmount: "4970000000"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	res, err := c.ExecuteSwap(context.Background(), "pool-1", solMint, big.NewInt(1_000_000_000), 100)
	if err != nil {
		t.Fatalf("execute swap: %v", err)
	}
	if res.TxID != "tx-abc" {
		t.Errorf("txID = %s", res.TxID)
	}
	if res.OutputAmount.Cmp(big.NewInt(4_970_000_000)) != 0 {
		t.Errorf("output = %s", res.OutputAmount)
	}

	if gotSwap.PoolID != "pool-1" || gotSwap.InputMint != solMint {
		t.Errorf("swap request = %+v", gotSwap)
	}
	if gotSwap.Amount != "1000000000" {
		t.Errorf("swap amount = %s", gotSwap.Amount)
	}
	if gotSwap.MinOutputAmount == "" {
		t.Error("swap request missing min output")
	}
}

func TestExecuteSwapRejected(t *testing.T) {
	c := testService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/swap" {
			http.Error(w, `{"error":"slippage exceeded"}`, http.StatusConflict)
			return
		}
		json.NewEncoder(w).Encode(reservesResponse{
			BaseMint:     solMint,
			QuoteMint:    tokenMint,
			BaseReserve:  "1000000000000",
			QuoteReserve: "5000000000000",
			TradeFeeRate: 2500,
		})
	})

	_, err := c.ExecuteSwap(context.Background(), "pool-1", solMint, big.NewInt(1_000_000_000), 100)
	if err == nil {
		t.Fatal("rejected swap should return an error")
	}
}
