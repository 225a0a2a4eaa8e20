// sniperctl submits an order to the engine and streams its status events
// until the order reaches a terminal state.
//
//	go run ./cmd/sniperctl -token <mint> -amount 100000000 -slippage 100
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type submitResponse struct {
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	StreamURL string `json:"streamUrl"`
}

func main() {
	base := flag.String("base", "http://localhost:3000", "engine base URL")
	token := flag.String("token", "", "token mint address to snipe")
	amount := flag.Int64("amount", 100_000_000, "input amount in base units (lamports)")
	slippage := flag.Int("slippage", 100, "slippage tolerance in basis points")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "usage: sniperctl -token <mint> [-amount 100000000] [-slippage 100] [-base http://localhost:3000]")
		os.Exit(1)
	}

	body, _ := json.Marshal(map[string]any{
		"tokenAddress": *token,
		"amountIn":     *amount,
		"slippageBps":  *slippage,
	})

	resp, err := http.Post(*base+"/orders", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "submit: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		var raw json.RawMessage
		json.NewDecoder(resp.Body).Decode(&raw)
		fmt.Fprintf(os.Stderr, "submit rejected: status=%d body=%s\n", resp.StatusCode, raw)
		os.Exit(1)
	}

	var sub submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		fmt.Fprintf(os.Stderr, "decode response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("order %s submitted (%s)\n", sub.OrderID, sub.Status)

	wsURL, err := streamURL(*base, sub.StreamURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stream url: %v\n", err)
		os.Exit(1)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial stream: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Printf("streaming from %s\n", wsURL)

	for {
		conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			fmt.Printf("stream closed: %v\n", err)
			return
		}

		var evt struct {
			Status      string `json:"status"`
			Message     string `json:"message"`
			TxHash      string `json:"txHash"`
			ExplorerURL string `json:"explorerUrl"`
			Connected   bool   `json:"connected"`
		}
		if err := json.Unmarshal(msg, &evt); err != nil {
			fmt.Printf("%s\n", msg)
			continue
		}

		switch {
		case evt.Connected:
			fmt.Println("connected")
		case evt.TxHash != "":
			fmt.Printf("[%s] %s\n    tx: %s\n    %s\n", evt.Status, evt.Message, evt.TxHash, evt.ExplorerURL)
		default:
			fmt.Printf("[%s] %s\n", evt.Status, evt.Message)
		}

		if evt.Status == "confirmed" || evt.Status == "failed" {
			return
		}
	}
}

func streamURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String(), nil
}
