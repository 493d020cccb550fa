package chain

import (
	"fmt"
	"strings"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// revertReasons maps contract revert strings to domain sentinels so callers
// can branch on errors.Is instead of parsing RPC messages.
var revertReasons = map[string]error{
	"sale is closed":                domain.ErrSaleClosed,
	"not entered":                   domain.ErrNotEntered,
	"ticket already claimed":        domain.ErrAlreadyClaimed,
	"not a winner":                  domain.ErrNotAWinner,
	"caller is not the winner":      domain.ErrNotCurrentWinner,
	"recipient is already a winner": domain.ErrBuyerAlreadyWinner,
	"stake already withdrawn":       domain.ErrAlreadyWithdrawn,
	"winners cannot withdraw":       domain.ErrIsWinner,
}

// mapRevert converts an RPC error into a domain sentinel when the revert
// reason is recognized. User rejections at the signer become
// ErrTransactionRejected; everything else is wrapped as ErrChain.
func mapRevert(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for reason, sentinel := range revertReasons {
		if strings.Contains(msg, reason) {
			return fmt.Errorf("chain: %s: %w", op, sentinel)
		}
	}
	if strings.Contains(msg, "user denied") || strings.Contains(msg, "user rejected") {
		return fmt.Errorf("chain: %s: %w", op, domain.ErrTransactionRejected)
	}
	return fmt.Errorf("chain: %s: %v: %w", op, err, domain.ErrChain)
}
