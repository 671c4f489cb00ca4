package events

import (
	"strings"

	"github.com/holiman/uint256"

	"voteledger/core/types"
)

func normalizeAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return ""
	}
	return strings.ToUpper(trimmed)
}

func formatAmount(amount *uint256.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.Dec()
}

func formatAccount(id types.AccountID) string {
	return id.String()
}
