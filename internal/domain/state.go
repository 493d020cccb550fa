package domain

import "time"

// ClaimState is the single state the engine derives for one (event, wallet)
// pair. Exactly one state holds at a time.
type ClaimState string

const (
	// StateNotEntered means the wallet never staked for the event.
	StateNotEntered ClaimState = "not_entered"
	// StateEntered means the wallet staked and the lottery has not run.
	StateEntered ClaimState = "entered"
	// StateLost means the lottery ran and the wallet did not win.
	StateLost ClaimState = "lost"
	// StateWonOriginal means the wallet won and still holds its claim.
	StateWonOriginal ClaimState = "won"
	// StateSoldRight means the wallet sold its claim right. Terminal for
	// this event; overrides everything else the records might suggest.
	StateSoldRight ClaimState = "sold_right"
	// StateAwaitingTransfer means the wallet bought a claim right but the
	// on-chain winner flag has not moved to it yet.
	StateAwaitingTransfer ClaimState = "awaiting_transfer"
	// StateClaimableAsTransferee means a bought right is now backed by the
	// on-chain winner flag and the ticket can be minted.
	StateClaimableAsTransferee ClaimState = "claimable_transferee"
	// StateClaimed means the ticket was minted by this wallet.
	StateClaimed ClaimState = "claimed"
)

// Terminal reports whether the state can never change for this event.
func (s ClaimState) Terminal() bool {
	return s == StateSoldRight || s == StateClaimed
}

// DerivedView is the full reconciled picture for one (event, wallet) pair,
// recomputed every reconciliation pass and served from cache between passes.
type DerivedView struct {
	EventID        uint64     `json:"eventId"`
	Wallet         string     `json:"wallet"`
	State          ClaimState `json:"state"`
	RefundEligible bool       `json:"refundEligible"`
	// ActiveRight is the newest claim right held by the wallet for this
	// event, nil when none.
	ActiveRight *ClaimRight `json:"activeRight,omitempty"`
	// OutstandingTransfer is the seller-side incomplete transfer duty, if
	// any, still within its TTL.
	OutstandingTransfer *PendingTransfer `json:"outstandingTransfer,omitempty"`
	DerivedAt           time.Time        `json:"derivedAt"`
}
