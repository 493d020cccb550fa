package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrChain               = errors.New("chain error")
	ErrTransactionRejected = errors.New("transaction rejected by signer")
	ErrDuplicateListing    = errors.New("active claim-right listing already exists")
	ErrPriceExceedsCap     = errors.New("price exceeds maximum transfer price")
	ErrCorruptLedgerRecord = errors.New("corrupt ledger record")
	ErrStaleTransfer       = errors.New("pending transfer past TTL")
	ErrInvalidInput        = errors.New("invalid input")
	ErrLockHeld            = errors.New("lock held by another party")

	// Contract revert conditions, mapped from revert reasons by the chain
	// adapter.
	ErrSaleClosed         = errors.New("sale closed")
	ErrNotEntered         = errors.New("not entered")
	ErrAlreadyClaimed     = errors.New("ticket already claimed")
	ErrNotAWinner         = errors.New("not a winner")
	ErrNotCurrentWinner   = errors.New("not the current winner")
	ErrBuyerAlreadyWinner = errors.New("buyer is already a winner")
	ErrAlreadyWithdrawn   = errors.New("stake already withdrawn")
	ErrRightSold          = errors.New("claim right already sold")
	ErrListingSold        = errors.New("listing already sold")
	ErrIsWinner           = errors.New("winners cannot withdraw their stake")
)
