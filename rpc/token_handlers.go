package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/holiman/uint256"

	"voteledger/core/types"
)

type allowanceParams struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
}

type transferParams struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type transferFromParams struct {
	Spender string `json:"spender"`
	From    string `json:"from"`
	To      string `json:"to"`
	Amount  string `json:"amount"`
}

type approveParams struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type mintParams struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type burnParams struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type freezeParams struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type BalanceResult struct {
	Account   string `json:"account"`
	Balance   string `json:"balance"`
	Available string `json:"available"`
	Frozen    string `json:"frozen"`
}

type SupplyResult struct {
	TotalSupply string `json:"totalSupply"`
	Paused      bool   `json:"paused"`
}

type AllowanceResult struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Allowance string `json:"allowance"`
}

type OKResult struct {
	OK bool `json:"ok"`
}

var okResult = OKResult{OK: true}

func handleBalanceOf(s *Server, _ *http.Request, raw json.RawMessage) (interface{}, error) {
	var params accountParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		return nil, err
	}
	balance, err := s.ledger.BalanceOf(account)
	if err != nil {
		return nil, err
	}
	available, err := s.ledger.AvailableBalance(account)
	if err != nil {
		return nil, err
	}
	frozen, err := s.ledger.FrozenBalance(account)
	if err != nil {
		return nil, err
	}
	return BalanceResult{
		Account:   formatAccount(account),
		Balance:   formatAmount(balance),
		Available: formatAmount(available),
		Frozen:    formatAmount(frozen),
	}, nil
}

func handleTotalSupply(s *Server, _ *http.Request, _ json.RawMessage) (interface{}, error) {
	supply, err := s.ledger.TotalSupply()
	if err != nil {
		return nil, err
	}
	paused, err := s.ledger.Paused()
	if err != nil {
		return nil, err
	}
	return SupplyResult{TotalSupply: formatAmount(supply), Paused: paused}, nil
}

func handleAllowance(s *Server, _ *http.Request, raw json.RawMessage) (interface{}, error) {
	var params allowanceParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	owner, err := parseAccount("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	spender, err := parseAccount("spender", params.Spender)
	if err != nil {
		return nil, err
	}
	allowance, err := s.ledger.Allowance(owner, spender)
	if err != nil {
		return nil, err
	}
	return AllowanceResult{Owner: formatAccount(owner), Spender: formatAccount(spender), Allowance: formatAmount(allowance)}, nil
}

func handleTransfer(s *Server, r *http.Request, raw json.RawMessage) (interface{}, error) {
	var params transferParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	from, err := parseAccount("from", params.From)
	if err != nil {
		return nil, err
	}
	to, err := parseAccount("to", params.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if authErr := s.auth.requireAccount(r, from); authErr != nil {
		return nil, authErr
	}
	if err := s.ledger.Transfer(from, to, amount); err != nil {
		return nil, err
	}
	return okResult, nil
}

func handleTransferFrom(s *Server, r *http.Request, raw json.RawMessage) (interface{}, error) {
	var params transferFromParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	spender, err := parseAccount("spender", params.Spender)
	if err != nil {
		return nil, err
	}
	from, err := parseAccount("from", params.From)
	if err != nil {
		return nil, err
	}
	to, err := parseAccount("to", params.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if authErr := s.auth.requireAccount(r, spender); authErr != nil {
		return nil, authErr
	}
	if err := s.ledger.TransferFrom(spender, from, to, amount); err != nil {
		return nil, err
	}
	return okResult, nil
}

func handleApprove(s *Server, r *http.Request, raw json.RawMessage) (interface{}, error) {
	var params approveParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	owner, err := parseAccount("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	spender, err := parseAccount("spender", params.Spender)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if authErr := s.auth.requireAccount(r, owner); authErr != nil {
		return nil, authErr
	}
	if err := s.ledger.Approve(owner, spender, amount); err != nil {
		return nil, err
	}
	return okResult, nil
}

func handleMint(s *Server, _ *http.Request, raw json.RawMessage) (interface{}, error) {
	var params mintParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	to, err := parseAccount("to", params.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Mint(to, amount); err != nil {
		return nil, err
	}
	return okResult, nil
}

func handleBurn(s *Server, _ *http.Request, raw json.RawMessage) (interface{}, error) {
	var params burnParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	from, err := parseAccount("from", params.From)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Burn(from, amount); err != nil {
		return nil, err
	}
	return okResult, nil
}

func handleFreeze(s *Server, _ *http.Request, raw json.RawMessage) (interface{}, error) {
	account, amount, err := decodeFreeze(raw)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Freeze(account, amount); err != nil {
		return nil, err
	}
	return okResult, nil
}

func handleUnfreeze(s *Server, _ *http.Request, raw json.RawMessage) (interface{}, error) {
	account, amount, err := decodeFreeze(raw)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Unfreeze(account, amount); err != nil {
		return nil, err
	}
	return okResult, nil
}

func handlePause(s *Server, _ *http.Request, _ json.RawMessage) (interface{}, error) {
	if err := s.ledger.Pause(); err != nil {
		return nil, err
	}
	return okResult, nil
}

func handleUnpause(s *Server, _ *http.Request, _ json.RawMessage) (interface{}, error) {
	if err := s.ledger.Unpause(); err != nil {
		return nil, err
	}
	return okResult, nil
}

func decodeFreeze(raw json.RawMessage) (types.AccountID, *uint256.Int, error) {
	var params freezeParams
	if err := decodeParams(raw, &params); err != nil {
		return types.NoAccount, nil, err
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		return types.NoAccount, nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return types.NoAccount, nil, err
	}
	return account, amount, nil
}
