// Package gateway is the thin HTTP boundary: it validates submissions,
// creates order rows, enqueues jobs, and upgrades stream connections that
// receive broadcast events. It never mutates an order after creation.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/ItshMoh/sol-sniper-engine/internal/broadcast"
	"github.com/ItshMoh/sol-sniper-engine/internal/order"
	"github.com/ItshMoh/sol-sniper-engine/internal/store"
	"github.com/ItshMoh/sol-sniper-engine/internal/telemetry"
)

// Enqueuer admits one job per order into the processing queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, orderID string, params order.Params) error
}

// Pinger reports backend reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	store   store.Store
	hub     *broadcast.Hub
	queue   Enqueuer
	redis   Pinger
	handler http.Handler
}

func NewServer(st store.Store, hub *broadcast.Hub, q Enqueuer, redisPing Pinger) *Server {
	s := &Server{
		store: st,
		hub:   hub,
		queue: q,
		redis: redisPing,
	}

	r := mux.NewRouter()
	r.HandleFunc("/orders", s.handleSubmit).Methods("POST")
	r.HandleFunc("/orders/{id}", s.handleGet).Methods("GET")
	r.HandleFunc("/orders/{id}/stream", s.handleStream).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	s.handler = c.Handler(r)

	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

type submitRequest struct {
	TokenAddress string `json:"tokenAddress"`
	AmountIn     int64  `json:"amountIn"`
	SlippageBps  int    `json:"slippageBps"`
}

type submitResponse struct {
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	StreamURL string `json:"streamUrl"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "invalid_body",
			Message: "request body must be JSON",
		})
		return
	}

	if err := validate(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "invalid_order",
			Message: err.Error(),
		})
		return
	}

	ord := &order.Order{
		ID:           uuid.NewString(),
		TokenAddress: req.TokenAddress,
		AmountIn:     req.AmountIn,
		SlippageBps:  req.SlippageBps,
		Status:       order.StatusPending,
	}

	if err := s.store.CreateOrder(r.Context(), ord); err != nil {
		telemetry.Errorf("gateway: create order: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "store_error",
			Message: "could not persist order",
		})
		return
	}

	if err := s.queue.Enqueue(r.Context(), ord.ID, ord.Params()); err != nil {
		telemetry.Errorf("gateway: enqueue order %s: %v", ord.ID, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "queue_error",
			Message: "could not enqueue order",
		})
		return
	}

	telemetry.Metrics.OrdersSubmitted.Inc()
	telemetry.Infof("gateway: order submitted id=%s token=%s amount=%d slippage=%dbps",
		ord.ID, ord.TokenAddress, ord.AmountIn, ord.SlippageBps)

	writeJSON(w, http.StatusCreated, submitResponse{
		OrderID:   ord.ID,
		Status:    string(order.StatusPending),
		Message:   "Order queued. Connect to the stream URL for live updates.",
		StreamURL: fmt.Sprintf("/orders/%s/stream", ord.ID),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ord, err := s.store.GetOrder(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error:   "not_found",
			Message: "order not found",
		})
		return
	}
	if err != nil {
		telemetry.Errorf("gateway: get order %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "store_error",
			Message: "could not load order",
		})
		return
	}

	writeJSON(w, http.StatusOK, ord)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type component struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
	resp := map[string]component{
		"store": {Status: "ok"},
		"queue": {Status: "ok"},
	}
	code := http.StatusOK

	if err := s.store.Ping(r.Context()); err != nil {
		resp["store"] = component{Status: "down", Error: err.Error()}
		code = http.StatusServiceUnavailable
	}
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()); err != nil {
			resp["queue"] = component{Status: "down", Error: err.Error()}
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, resp)
}

// validate applies the submission rules: a plausible base58 mint address,
// a positive input amount, and a slippage tolerance within 0..10000 bps.
func validate(req submitRequest) error {
	if req.TokenAddress == "" {
		return errors.New("tokenAddress is required")
	}
	if len(req.TokenAddress) < 32 || len(req.TokenAddress) > 44 {
		return errors.New("tokenAddress must be a base58 mint address")
	}
	for _, c := range req.TokenAddress {
		if !isBase58(c) {
			return errors.New("tokenAddress must be a base58 mint address")
		}
	}
	if req.AmountIn <= 0 {
		return errors.New("amountIn must be a positive integer in base units")
	}
	if req.SlippageBps < 0 || req.SlippageBps > 10000 {
		return errors.New("slippageBps must be between 0 and 10000")
	}
	return nil
}

func isBase58(c rune) bool {
	switch {
	case c >= '1' && c <= '9':
		return true
	case c >= 'A' && c <= 'Z':
		return c != 'I' && c != 'O'
	case c >= 'a' && c <= 'z':
		return c != 'l'
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		telemetry.Warnf("gateway: write response: %v", err)
	}
}
