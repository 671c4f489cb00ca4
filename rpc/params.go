package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"voteledger/core/types"
)

func decodeParams(raw json.RawMessage, out interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return invalidParams("parameter object required", nil)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}

func parseAccount(field, raw string) (types.AccountID, error) {
	if strings.TrimSpace(raw) == "" {
		return types.NoAccount, invalidParams(field+" is required", nil)
	}
	id, err := types.ParseAccountID(raw)
	if err != nil {
		return types.NoAccount, invalidParams(fmt.Sprintf("invalid %s", field), err.Error())
	}
	if id.IsNone() {
		return types.NoAccount, invalidParams(field+" must not be the zero account", nil)
	}
	return id, nil
}

// parseDelegatee accepts an empty string as "no delegatee".
func parseDelegatee(raw string) (types.AccountID, error) {
	if strings.TrimSpace(raw) == "" {
		return types.NoAccount, nil
	}
	id, err := types.ParseAccountID(raw)
	if err != nil {
		return types.NoAccount, invalidParams("invalid delegatee", err.Error())
	}
	return id, nil
}

func parseAmount(field, raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, invalidParams(field+" is required", nil)
	}
	value, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, invalidParams(fmt.Sprintf("invalid %s", field), err.Error())
	}
	return value, nil
}

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func formatAccount(id types.AccountID) string {
	return id.String()
}
