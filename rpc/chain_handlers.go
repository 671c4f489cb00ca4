package rpc

import (
	"encoding/json"
	"net/http"

	"voteledger/indexer"
)

type votesHistoryParams struct {
	Delegate   string `json:"delegate"`
	FromHeight uint64 `json:"fromHeight,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type delegationHistoryParams struct {
	Delegator  string `json:"delegator"`
	FromHeight uint64 `json:"fromHeight,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type transfersParams struct {
	Account    string `json:"account"`
	FromHeight uint64 `json:"fromHeight,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type BlockNumberResult struct {
	BlockNumber uint64 `json:"blockNumber"`
	Root        string `json:"root"`
	PendingRoot string `json:"pendingRoot"`
}

type VotesChange struct {
	Height   uint64 `json:"height"`
	Sequence uint64 `json:"sequence"`
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

type DelegationChange struct {
	Height   uint64 `json:"height"`
	Sequence uint64 `json:"sequence"`
	From     string `json:"from"`
	To       string `json:"to"`
}

type TransferRecord struct {
	Height   uint64 `json:"height"`
	Sequence uint64 `json:"sequence"`
	From     string `json:"from"`
	To       string `json:"to"`
	Amount   string `json:"amount"`
}

func handleBlockNumber(s *Server, _ *http.Request, _ json.RawMessage) (interface{}, error) {
	return BlockNumberResult{
		BlockNumber: s.ledger.BlockNumber(),
		Root:        s.ledger.Root().Hex(),
		PendingRoot: s.ledger.PendingRoot().Hex(),
	}, nil
}

var errIndexerDisabled = &RPCError{Code: codeIndexerUnavailable, Message: "event indexer not enabled", status: http.StatusServiceUnavailable}

func handleVotesHistory(s *Server, r *http.Request, raw json.RawMessage) (interface{}, error) {
	if s.history == nil {
		return nil, errIndexerDisabled
	}
	var params votesHistoryParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	delegate, err := parseAccount("delegate", params.Delegate)
	if err != nil {
		return nil, err
	}
	records, err := s.history.VotesHistory(r.Context(), delegate, indexer.Query{FromHeight: params.FromHeight, Limit: params.Limit})
	if err != nil {
		return nil, err
	}
	out := make([]VotesChange, 0, len(records))
	for _, rec := range records {
		out = append(out, VotesChange{Height: rec.Height, Sequence: rec.Sequence, Previous: rec.Previous, Current: rec.Current})
	}
	return out, nil
}

func handleDelegationHistory(s *Server, r *http.Request, raw json.RawMessage) (interface{}, error) {
	if s.history == nil {
		return nil, errIndexerDisabled
	}
	var params delegationHistoryParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	delegator, err := parseAccount("delegator", params.Delegator)
	if err != nil {
		return nil, err
	}
	records, err := s.history.DelegationHistory(r.Context(), delegator, indexer.Query{FromHeight: params.FromHeight, Limit: params.Limit})
	if err != nil {
		return nil, err
	}
	out := make([]DelegationChange, 0, len(records))
	for _, rec := range records {
		out = append(out, DelegationChange{Height: rec.Height, Sequence: rec.Sequence, From: rec.From, To: rec.To})
	}
	return out, nil
}

func handleTransfers(s *Server, r *http.Request, raw json.RawMessage) (interface{}, error) {
	if s.history == nil {
		return nil, errIndexerDisabled
	}
	var params transfersParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		return nil, err
	}
	records, err := s.history.Transfers(r.Context(), account, indexer.Query{FromHeight: params.FromHeight, Limit: params.Limit})
	if err != nil {
		return nil, err
	}
	out := make([]TransferRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, TransferRecord{Height: rec.Height, Sequence: rec.Sequence, From: rec.From, To: rec.To, Amount: rec.Amount})
	}
	return out, nil
}
