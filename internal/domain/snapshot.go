package domain

import "time"

// ParticipantSnapshot is the cached view of one wallet's on-chain sale state
// for one event. HasEntered and IsWinner mirror the contract and are
// overwritten on every refresh. HasClaimedRefund is engine-local: the chain
// does not expose it, so a refresh must preserve the stored value.
type ParticipantSnapshot struct {
	EventID          uint64    `json:"eventId"`
	Wallet           string    `json:"wallet"`
	HasEntered       bool      `json:"hasEntered"`
	IsWinner         bool      `json:"isWinner"`
	HasClaimedRefund bool      `json:"hasClaimedRefund"`
	RefreshedAt      time.Time `json:"refreshedAt"`
}

// RefundEligible reports whether the wallet may withdraw its stake after the
// lottery: it must actually have entered, must not have won, must not have
// sold a claim right for the event, and must not have already withdrawn.
// The soldKey argument is whether a sold-claim-right marker exists.
func (s ParticipantSnapshot) RefundEligible(soldKey bool) bool {
	return s.HasEntered && !s.IsWinner && !soldKey && !s.HasClaimedRefund
}
