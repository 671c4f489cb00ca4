package rpc

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"voteledger/native/votes"
)

type accountParams struct {
	Account string `json:"account"`
}

type pastVotesParams struct {
	Account string `json:"account"`
	Block   uint64 `json:"block"`
}

type blockParams struct {
	Block uint64 `json:"block"`
}

type checkpointParams struct {
	Account string `json:"account"`
	Pos     uint64 `json:"pos"`
}

type delegateParams struct {
	Delegator string `json:"delegator"`
	Delegatee string `json:"delegatee"`
}

type delegateBySigParams struct {
	Delegatee string `json:"delegatee"`
	Nonce     uint64 `json:"nonce"`
	Expiry    string `json:"expiry"`
	Signature string `json:"signature"`
}

type resetDelegationParams struct {
	Delegator string `json:"delegator"`
}

type DelegatesResult struct {
	Account   string `json:"account"`
	Delegatee string `json:"delegatee"`
}

type VotesResult struct {
	Account string `json:"account,omitempty"`
	Block   uint64 `json:"block,omitempty"`
	Votes   string `json:"votes"`
}

type CheckpointResult struct {
	Block uint64 `json:"block"`
	Votes string `json:"votes"`
}

type DomainResult struct {
	Name              string `json:"name"`
	ChainID           uint64 `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
	Separator         string `json:"separator"`
}

type DelegateBySigResult struct {
	Signer    string `json:"signer"`
	Delegatee string `json:"delegatee"`
}

func handleDelegates(s *Server, _ *http.Request, raw json.RawMessage) (interface{}, error) {
	var params accountParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		return nil, err
	}
	delegatee, err := s.ledger.Delegates(account)
	if err != nil {
		return nil, err
	}
	return DelegatesResult{Account: formatAccount(account), Delegatee: formatAccount(delegatee)}, nil
}

func handleGetVotes(s *Server, _ *http.Request, raw json.RawMessage) (interface{}, error) {
	var params accountParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		return nil, err
	}
	power, err := s.ledger.GetVotes(account)
	if err != nil {
		return nil, err
	}
	return VotesResult{Account: formatAccount(account), Votes: formatAmount(power)}, nil
}

func handleGetPastVotes(s *Server, _ *http.Request, raw json.RawMessage) (interface{}, error) {
	var params pastVotesParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		return nil, err
	}
	power, err := s.ledger.GetPastVotes(account, params.Block)
	if err != nil {
		return nil, err
	}
	return VotesResult{Account: formatAccount(account), Block: params.Block, Votes: formatAmount(power)}, nil
}

func handleGetPastTotalSupply(s *Server, _ *http.Request, raw json.RawMessage) (interface{}, error) {
	var params blockParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	supply, err := s.ledger.GetPastTotalSupply(params.Block)
	if err != nil {
		return nil, err
	}
	return VotesResult{Block: params.Block, Votes: formatAmount(supply)}, nil
}

func handleNumCheckpoints(s *Server, _ *http.Request, raw json.RawMessage) (interface{}, error) {
	var params accountParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		return nil, err
	}
	n, err := s.ledger.NumCheckpoints(account)
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"numCheckpoints": n}, nil
}

func handleCheckpoint(s *Server, _ *http.Request, raw json.RawMessage) (interface{}, error) {
	var params checkpointParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		return nil, err
	}
	cp, err := s.ledger.Checkpoint(account, params.Pos)
	if err != nil {
		return nil, err
	}
	return CheckpointResult{Block: cp.Block, Votes: formatAmount(cp.Value)}, nil
}

func handleNonces(s *Server, _ *http.Request, raw json.RawMessage) (interface{}, error) {
	var params accountParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		return nil, err
	}
	nonce, err := s.ledger.Nonces(account)
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"nonce": nonce}, nil
}

func handleDomain(s *Server, _ *http.Request, _ json.RawMessage) (interface{}, error) {
	domain := s.ledger.Domain()
	separator, err := s.ledger.DomainSeparator()
	if err != nil {
		return nil, err
	}
	return DomainResult{
		Name:              domain.Name,
		ChainID:           domain.ChainID,
		VerifyingContract: domain.VerifyingContract.Hex(),
		Separator:         "0x" + hex.EncodeToString(separator),
	}, nil
}

func handleDelegate(s *Server, r *http.Request, raw json.RawMessage) (interface{}, error) {
	var params delegateParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	delegator, err := parseAccount("delegator", params.Delegator)
	if err != nil {
		return nil, err
	}
	delegatee, err := parseDelegatee(params.Delegatee)
	if err != nil {
		return nil, err
	}
	if authErr := s.auth.requireAccount(r, delegator); authErr != nil {
		return nil, authErr
	}
	if err := s.ledger.Delegate(delegator, delegatee); err != nil {
		return nil, err
	}
	return DelegatesResult{Account: formatAccount(delegator), Delegatee: formatAccount(delegatee)}, nil
}

func handleDelegateBySig(s *Server, _ *http.Request, raw json.RawMessage) (interface{}, error) {
	var params delegateBySigParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	delegatee, err := parseDelegatee(params.Delegatee)
	if err != nil {
		return nil, err
	}
	expiry, err := parseAmount("expiry", params.Expiry)
	if err != nil {
		return nil, err
	}
	sigHex := strings.TrimPrefix(strings.TrimSpace(params.Signature), "0x")
	sigBytes, decodeErr := hex.DecodeString(sigHex)
	if decodeErr != nil {
		return nil, invalidParams("invalid signature encoding", decodeErr.Error())
	}
	sig, err := votes.SignatureFromBytes(sigBytes)
	if err != nil {
		return nil, invalidParams("signature must be 65 bytes", nil)
	}
	signer, err := s.ledger.DelegateBySig(delegatee, params.Nonce, expiry, sig)
	if err != nil {
		return nil, err
	}
	return DelegateBySigResult{Signer: formatAccount(signer), Delegatee: formatAccount(delegatee)}, nil
}

func handleResetDelegation(s *Server, r *http.Request, raw json.RawMessage) (interface{}, error) {
	var params resetDelegationParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	delegator, err := parseAccount("delegator", params.Delegator)
	if err != nil {
		return nil, err
	}
	if authErr := s.auth.requireAccount(r, delegator); authErr != nil {
		return nil, authErr
	}
	if err := s.ledger.ResetDelegation(delegator); err != nil {
		return nil, err
	}
	return DelegatesResult{Account: formatAccount(delegator)}, nil
}
