package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"voteledger/core"
	"voteledger/core/state"
	"voteledger/indexer"
	"voteledger/native/bank"
	"voteledger/native/checkpoints"
	"voteledger/native/votes"
)

const jsonRPCVersion = "2.0"

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeForbidden      = -32003
	codeRateLimited    = -32020

	codeBlockNotMined      = -32030
	codeInvalidSignature   = -32031
	codeSignatureExpired   = -32032
	codeInvalidNonce       = -32033
	codeSupplyOverflow     = -32034
	codeCheckpointNotFound = -32035

	codeInsufficientFunds = -32040
	codePaused            = -32041
	codeInvalidRecipient  = -32042
	codeAllowance         = -32043

	codeIndexerUnavailable  = -32050
	codeIdempotencyConflict = -32051
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	status int
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func invalidParams(message string, data interface{}) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: message, Data: data, status: http.StatusBadRequest}
}

func unauthorized(message string) *RPCError {
	return &RPCError{Code: codeUnauthorized, Message: message, status: http.StatusUnauthorized}
}

func forbidden(message string) *RPCError {
	return &RPCError{Code: codeForbidden, Message: message, status: http.StatusForbidden}
}

var errorCodes = []struct {
	target error
	code   int
}{
	{votes.ErrBlockNotMined, codeBlockNotMined},
	{votes.ErrInvalidSignature, codeInvalidSignature},
	{votes.ErrSignatureExpired, codeSignatureExpired},
	{votes.ErrInvalidNonce, codeInvalidNonce},
	{votes.ErrSupplyOverflow, codeSupplyOverflow},
	{bank.ErrBalanceOverflow, codeSupplyOverflow},
	{state.ErrSupplyOverflow, codeSupplyOverflow},
	{votes.ErrCheckpointNotFound, codeCheckpointNotFound},
	{checkpoints.ErrUnorderedCheckpoint, codeServerError},
	{bank.ErrInsufficientBalance, codeInsufficientFunds},
	{bank.ErrUnavailableBalance, codeInsufficientFunds},
	{bank.ErrInsufficientFrozen, codeInsufficientFunds},
	{bank.ErrInsufficientAllowance, codeAllowance},
	{bank.ErrAllowanceUnderflow, codeAllowance},
	{bank.ErrPaused, codePaused},
	{bank.ErrZeroAddress, codeInvalidRecipient},
	{bank.ErrSelfTransfer, codeInvalidRecipient},
	{core.ErrLedgerMismatch, codeServerError},
	{indexer.ErrUnknownDriver, codeIndexerUnavailable},
}

// toRPCError maps ledger errors onto JSON-RPC error objects. Domain
// rejections are reported with HTTP 200; only unexpected failures use 500.
func toRPCError(err error) *RPCError {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.target) {
			status := http.StatusOK
			if entry.code == codeServerError {
				status = http.StatusInternalServerError
			}
			return &RPCError{Code: entry.code, Message: err.Error(), status: status}
		}
	}
	return &RPCError{Code: codeServerError, Message: err.Error(), status: http.StatusInternalServerError}
}
