// Package rpc serves the ledger over JSON-RPC 2.0 and streams its events over
// a websocket.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"

	"voteledger/core/events"
	"voteledger/core/types"
	"voteledger/indexer"
	"voteledger/native/checkpoints"
	"voteledger/native/votes"
	"voteledger/observability"
	telemetry "voteledger/observability/otel"
)

const (
	defaultMaxRequestBytes = 1 << 20 // 1 MiB
	defaultWriteTimeout    = 15 * time.Second
	shutdownTimeout        = 10 * time.Second
)

// Ledger is the ledger surface served over RPC.
type Ledger interface {
	BlockNumber() uint64
	Root() common.Hash
	PendingRoot() common.Hash
	Domain() votes.Domain
	DomainSeparator() ([]byte, error)

	Delegates(account types.AccountID) (types.AccountID, error)
	Delegate(delegator, delegatee types.AccountID) error
	DelegateBySig(delegatee types.AccountID, nonce uint64, expiry *uint256.Int, sig votes.Signature) (types.AccountID, error)
	ResetDelegation(delegator types.AccountID) error
	GetVotes(account types.AccountID) (*uint256.Int, error)
	GetPastVotes(account types.AccountID, block uint64) (*uint256.Int, error)
	GetPastTotalSupply(block uint64) (*uint256.Int, error)
	NumCheckpoints(account types.AccountID) (uint64, error)
	Checkpoint(account types.AccountID, pos uint64) (checkpoints.Checkpoint, error)
	Nonces(account types.AccountID) (uint64, error)

	BalanceOf(account types.AccountID) (*uint256.Int, error)
	AvailableBalance(account types.AccountID) (*uint256.Int, error)
	FrozenBalance(account types.AccountID) (*uint256.Int, error)
	TotalSupply() (*uint256.Int, error)
	Allowance(owner, spender types.AccountID) (*uint256.Int, error)
	Paused() (bool, error)
	Mint(to types.AccountID, amount *uint256.Int) error
	Burn(from types.AccountID, amount *uint256.Int) error
	Transfer(from, to types.AccountID, amount *uint256.Int) error
	TransferFrom(spender, from, to types.AccountID, amount *uint256.Int) error
	Approve(owner, spender types.AccountID, amount *uint256.Int) error
	Freeze(account types.AccountID, amount *uint256.Int) error
	Unfreeze(account types.AccountID, amount *uint256.Int) error
	Pause() error
	Unpause() error
}

// History answers indexed event queries.
type History interface {
	VotesHistory(ctx context.Context, delegate types.AccountID, q indexer.Query) ([]indexer.EventRecord, error)
	DelegationHistory(ctx context.Context, delegator types.AccountID, q indexer.Query) ([]indexer.EventRecord, error)
	Transfers(ctx context.Context, account types.AccountID, q indexer.Query) ([]indexer.EventRecord, error)
}

// ServerConfig tunes the RPC listener.
type ServerConfig struct {
	MaxRequestBytes    int64
	RateLimitPerMinute float64
	RateLimitBurst     int
	// JWTSecret signs HS256 bearer tokens. Empty disables every method that
	// requires authentication.
	JWTSecret      string
	JWTLeeway      time.Duration
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// Idempotency, when set, replays writes that carry an Idempotency-Key.
	Idempotency *IdempotencyStore
	Logger      *slog.Logger
}

type handlerFunc func(s *Server, r *http.Request, params json.RawMessage) (interface{}, error)

type method struct {
	handler handlerFunc
	// scope, when set, must be granted by the caller's token.
	scope string
	write bool
}

type Server struct {
	ledger  Ledger
	history History
	events  *events.Broadcaster

	cfg      ServerConfig
	auth     *authenticator
	limiter  *rateLimiter
	logger   *slog.Logger
	methods  map[string]method
	handler  http.Handler
	maxBytes int64

	idempotency *IdempotencyStore
	idemMu      sync.Mutex
}

// NewServer wires the JSON-RPC dispatcher for ledger. history and broadcaster
// may be nil, disabling indexer queries and the event stream.
func NewServer(ledger Ledger, history History, broadcaster *events.Broadcaster, cfg ServerConfig) (*Server, error) {
	if ledger == nil {
		return nil, fmt.Errorf("rpc: ledger required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBytes := cfg.MaxRequestBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxRequestBytes
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	s := &Server{
		ledger:      ledger,
		history:     history,
		events:      broadcaster,
		cfg:         cfg,
		auth:        newAuthenticator(cfg.JWTSecret, cfg.JWTLeeway),
		limiter:     newRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		logger:      logger.With(slog.String("component", "rpc")),
		maxBytes:    maxBytes,
		idempotency: cfg.Idempotency,
	}
	s.methods = map[string]method{
		"votes_delegates":          {handler: handleDelegates},
		"votes_getVotes":           {handler: handleGetVotes},
		"votes_getPastVotes":       {handler: handleGetPastVotes},
		"votes_getPastTotalSupply": {handler: handleGetPastTotalSupply},
		"votes_numCheckpoints":     {handler: handleNumCheckpoints},
		"votes_checkpoint":         {handler: handleCheckpoint},
		"votes_nonces":             {handler: handleNonces},
		"votes_domain":             {handler: handleDomain},
		"votes_delegate":           {handler: handleDelegate, write: true},
		"votes_delegateBySig":      {handler: handleDelegateBySig, write: true},
		"votes_resetDelegation":    {handler: handleResetDelegation, write: true},

		"token_balanceOf":    {handler: handleBalanceOf},
		"token_totalSupply":  {handler: handleTotalSupply},
		"token_allowance":    {handler: handleAllowance},
		"token_transfer":     {handler: handleTransfer, write: true},
		"token_transferFrom": {handler: handleTransferFrom, write: true},
		"token_approve":      {handler: handleApprove, write: true},
		"token_mint":         {handler: handleMint, scope: ScopeMint, write: true},
		"token_burn":         {handler: handleBurn, scope: ScopeBurn, write: true},
		"token_freeze":       {handler: handleFreeze, scope: ScopeFreeze, write: true},
		"token_unfreeze":     {handler: handleUnfreeze, scope: ScopeFreeze, write: true},
		"token_pause":        {handler: handlePause, scope: ScopePause, write: true},
		"token_unpause":      {handler: handleUnpause, scope: ScopePause, write: true},

		"chain_blockNumber":         {handler: handleBlockNumber},
		"indexer_votesHistory":      {handler: handleVotesHistory},
		"indexer_delegationHistory": {handler: handleDelegationHistory},
		"indexer_transfers":         {handler: handleTransfers},
	}
	s.handler = s.buildRouter()
	return s, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	if s.events != nil {
		r.Get("/ws/events", s.handleEventsWS)
	}
	rpcHandler := http.TimeoutHandler(http.HandlerFunc(s.handle), s.cfg.WriteTimeout, "request timed out")
	r.Post("/", otelhttp.NewHandler(rpcHandler, "voteledger.rpc").ServeHTTP)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("JSON-RPC server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
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
	start := time.Now()
	w.Header().Set("Content-Type", "application/json")

	if !s.limiter.allow(clientSource(r), start) {
		observability.ModuleMetrics().RecordThrottle("rpc", "rate_limit")
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	reader := http.MaxBytesReader(w, r.Body, s.maxBytes)
	defer func() {
		_ = reader.Close()
	}()
	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.maxBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}

	ctx, span := telemetry.Tracer().Start(r.Context(), "rpc."+req.Method)
	span.SetAttributes(attribute.String("rpc.method", req.Method))
	defer span.End()
	r = r.WithContext(ctx)

	var (
		result interface{}
		rpcErr *RPCError
	)
	if clientKey := strings.TrimSpace(r.Header.Get(headerIdempotency)); m.write && clientKey != "" && s.idempotency != nil {
		result, rpcErr = s.dispatchIdempotent(w, r, m, req, clientKey)
	} else {
		result, rpcErr = s.dispatch(r, m, req)
	}
	code := 0
	if rpcErr != nil {
		code = rpcErr.Code
		span.SetStatus(otelcodes.Error, rpcErr.Message)
		span.SetAttributes(attribute.Int("rpc.error_code", rpcErr.Code))
		writeError(w, rpcErr.status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	} else {
		writeResult(w, req.ID, result)
	}
	module, _, _ := strings.Cut(req.Method, "_")
	observability.ModuleMetrics().Observe(module, req.Method, code, time.Since(start))
}

func (s *Server) dispatch(r *http.Request, m method, req *RPCRequest) (interface{}, *RPCError) {
	if m.scope != "" {
		if _, authErr := s.auth.requireScope(r, m.scope); authErr != nil {
			return nil, authErr
		}
	}
	if len(req.Params) > 1 {
		return nil, invalidParams("at most one parameter object expected", nil)
	}
	var params json.RawMessage
	if len(req.Params) == 1 {
		params = req.Params[0]
	}
	result, err := m.handler(s, r, params)
	if err != nil {
		rpcErr := toRPCError(err)
		if rpcErr.status >= http.StatusInternalServerError {
			s.logger.Error("rpc method failed", slog.String("method", req.Method), slog.Any("error", err))
		}
		return nil, rpcErr
	}
	return result, nil
}
