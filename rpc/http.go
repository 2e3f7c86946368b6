package rpc

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"kaiwu/core"
	"kaiwu/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeRateLimited    = -32020

	codeMarketInvalidParams = -32030
	codeMarketNotFound      = -32031
	codeMarketForbidden     = -32032
	codeMarketConflict      = -32033
	codeMarketInternal      = -32034
)

// Server exposes the ledger's transitions and read queries over JSON-RPC 2.0.
type Server struct {
	node *core.Node

	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	perSec   rate.Limit
	burst    int
}

// NewServer constructs an RPC server for the provided node. requestsPerMinute
// and burst bound each client's request rate.
func NewServer(node *core.Node, requestsPerMinute float64, burst int) *Server {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 600
	}
	if burst <= 0 {
		burst = 20
	}
	return &Server{
		node:     node,
		visitors: make(map[string]*rate.Limiter),
		perSec:   rate.Limit(requestsPerMinute / 60),
		burst:    burst,
	}
}

// Router assembles the HTTP routing tree: the JSON-RPC endpoint, prometheus
// metrics, and a liveness probe.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.rateLimit)
	r.Post("/", s.handle)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Start begins serving on the provided address and blocks.
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.Router())
}

// RPCRequest is a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError carries a JSON-RPC error code and message.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeRPC(w, RPCResponse{JSONRPC: jsonRPCVersion, Error: &RPCError{Code: codeServerError, Message: "failed to read request"}})
		return
	}
	if len(body) > maxRequestBytes {
		writeRPC(w, RPCResponse{JSONRPC: jsonRPCVersion, Error: &RPCError{Code: codeInvalidRequest, Message: "request body too large"}})
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPC(w, RPCResponse{JSONRPC: jsonRPCVersion, Error: &RPCError{Code: codeParseError, Message: "invalid JSON"}})
		return
	}
	if req.JSONRPC != jsonRPCVersion || req.Method == "" {
		writeRPC(w, RPCResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Error: &RPCError{Code: codeInvalidRequest, Message: "invalid request envelope"}})
		return
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		observability.Market().RecordRPCRequest(req.Method, "method_not_found")
		writeRPC(w, RPCResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Error: &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %s", req.Method)}})
		return
	}
	result, rpcErr := handler(req.Params)
	if rpcErr != nil {
		observability.Market().RecordRPCRequest(req.Method, "error")
		writeRPC(w, RPCResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Error: rpcErr})
		return
	}
	observability.Market().RecordRPCRequest(req.Method, "ok")
	writeRPC(w, RPCResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Result: result})
}

type handlerFunc func(params []json.RawMessage) (interface{}, *RPCError)

func (s *Server) methods() map[string]handlerFunc {
	return map[string]handlerFunc{
		"market_initConfig":    s.handleInitConfig,
		"market_updateConfig":  s.handleUpdateConfig,
		"market_intakeItem":    s.handleIntakeItem,
		"market_listItem":      s.handleListItem,
		"market_delistItem":    s.handleDelistItem,
		"market_buyItem":       s.handleBuyItem,
		"market_redeemRequest": s.handleRedeemRequest,
		"market_redeemConfirm": s.handleRedeemConfirm,
		"market_getConfig":     s.handleGetConfig,
		"market_getItem":       s.handleGetItem,
		"market_getListing":    s.handleGetListing,
		"market_getReceipt":    s.handleGetReceipt,
		"market_getAccount":    s.handleGetAccount,
		"market_events":        s.handleEvents,
	}
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.allow(clientID(r)) {
			writeRPC(w, RPCResponse{JSONRPC: jsonRPCVersion, Error: &RPCError{Code: codeRateLimited, Message: "rate limit exceeded"}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allow(client string) bool {
	s.mu.Lock()
	limiter, ok := s.visitors[client]
	if !ok {
		limiter = rate.NewLimiter(s.perSec, s.burst)
		s.visitors[client] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeRPC(w http.ResponseWriter, resp RPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
