package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"nasdaqstrategy/native/strategy"
	"nasdaqstrategy/observability"
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
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRejected       = -32030
)

// Server exposes the strategy engine's operations over JSON-RPC 2.0.
type Server struct {
	engine    *strategy.Engine
	authToken string
	logger    *slog.Logger
	metrics   *observability.EngineMetrics
}

// NewServer constructs a server bound to the supplied engine. A bearer token
// read from STRATEGY_RPC_TOKEN guards mutating methods when set.
func NewServer(engine *strategy.Engine, logger *slog.Logger) *Server {
	token := strings.TrimSpace(os.Getenv("STRATEGY_RPC_TOKEN"))
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    engine,
		authToken: token,
		logger:    logger,
		metrics:   observability.Engine(),
	}
}

// Handler returns the HTTP handler serving JSON-RPC requests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	return mux
}

// Start serves JSON-RPC on the supplied address, blocking until the listener
// fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
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

// RPCError is a JSON-RPC 2.0 error payload.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request", nil)
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request too large", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON", nil)
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", nil)
		return
	}
	if s.mutatingMethod(req.Method) && !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized", nil)
		return
	}
	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	handler(w, r, &req)
}

func (s *Server) mutatingMethod(method string) bool {
	switch method {
	case "strategy_initialize", "strategy_initializeTreasury", "strategy_setRule",
		"strategy_updateFee", "strategy_collectFee", "strategy_executePurchase",
		"strategy_redeem", "strategy_refreshValuation":
		return true
	}
	return false
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return false
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) == 1
}

type rpcHandler func(http.ResponseWriter, *http.Request, *RPCRequest)

func (s *Server) methods() map[string]rpcHandler {
	return map[string]rpcHandler{
		"strategy_initialize":         s.handleInitialize,
		"strategy_initializeTreasury": s.handleInitializeTreasury,
		"strategy_setRule":            s.handleSetRule,
		"strategy_updateFee":          s.handleUpdateFee,
		"strategy_collectFee":         s.handleCollectFee,
		"strategy_executePurchase":    s.handleExecutePurchase,
		"strategy_redeem":             s.handleRedeem,
		"strategy_refreshValuation":   s.handleRefreshValuation,
		"strategy_getNav":             s.handleGetNav,
		"strategy_getMetrics":         s.handleGetMetrics,
		"strategy_listHoldings":       s.handleListHoldings,
		"strategy_listEvents":         s.handleListEvents,
	}
}

// writeEngineError maps engine rejections to a JSON-RPC error carrying the
// exact rejection kind so callers can present the cause.
func (s *Server) writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	kind := rejectionKind(err)
	if kind == "" {
		s.logger.Error("engine operation failed", "err", err)
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal error", nil)
		return
	}
	writeError(w, http.StatusOK, id, codeRejected, err.Error(), kind)
}

func rejectionKind(err error) string {
	switch {
	case errors.Is(err, strategy.ErrNotInitialized):
		return "NotInitialized"
	case errors.Is(err, strategy.ErrAlreadyInitialized):
		return "AlreadyInitialized"
	case errors.Is(err, strategy.ErrInvalidConfig):
		return "InvalidConfig"
	case errors.Is(err, strategy.ErrInvalidFeePercentage):
		return "InvalidFeePercentage"
	case errors.Is(err, strategy.ErrAssetNotApproved):
		return "AssetNotApproved"
	case errors.Is(err, strategy.ErrBelowMinimumPurchase):
		return "BelowMinimumPurchase"
	case errors.Is(err, strategy.ErrInsufficientTreasuryFunds):
		return "InsufficientTreasuryFunds"
	case errors.Is(err, strategy.ErrAllocationLimitExceeded):
		return "AllocationLimitExceeded"
	case errors.Is(err, strategy.ErrInsufficientLiquidity):
		return "InsufficientLiquidity"
	case errors.Is(err, strategy.ErrInvalidAmount):
		return "InvalidAmount"
	case errors.Is(err, strategy.ErrUnknownHolding):
		return "UnknownHolding"
	}
	return ""
}
