// Package claim derives the reconciled claim state for a wallet from the
// on-chain snapshot and the local ledger records. Derivation is pure: the
// reconciliation engine gathers inputs and callers get the same answer for
// the same facts every time.
package claim

import (
	"time"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// Input carries everything needed to derive one (event, wallet) view.
type Input struct {
	EventID  uint64
	Wallet   string
	Snapshot domain.ParticipantSnapshot
	Sale     domain.SaleOverview

	// Rights are the wallet's claim-right records for the event, any order,
	// duplicates included.
	Rights []domain.ClaimRight

	// SoldKey is whether a sold-claim-right marker exists for the wallet.
	SoldKey bool

	// ReceiptExists is whether a mint receipt is recorded for the wallet.
	ReceiptExists bool

	// OpenTransfer is the wallet's oldest incomplete seller-side transfer
	// within its TTL, nil when none.
	OpenTransfer *domain.PendingTransfer

	Now time.Time
}

// Derive computes the claim view for one (event, wallet) pair.
//
// Precedence, highest first: a mint receipt, a sold-claim-right marker, a
// purchased right (backed or not by the on-chain winner flag), the raw
// winner flag, entry state.
func Derive(in Input) domain.DerivedView {
	wallet := domain.NormalizeAddress(in.Wallet)
	view := domain.DerivedView{
		EventID:   in.EventID,
		Wallet:    wallet,
		DerivedAt: in.Now,
	}

	right := newestPurchasedRight(in.EventID, wallet, in.Rights)
	view.ActiveRight = right
	view.OutstandingTransfer = in.OpenTransfer

	switch {
	case in.ReceiptExists:
		view.State = domain.StateClaimed
	case in.SoldKey:
		view.State = domain.StateSoldRight
		// A seller who sold their right keeps the transfer duty visible
		// until it completes; everything else about the win is gone.
	case right != nil && in.Snapshot.IsWinner:
		view.State = domain.StateClaimableAsTransferee
	case right != nil:
		view.State = domain.StateAwaitingTransfer
	case in.Snapshot.IsWinner:
		view.State = domain.StateWonOriginal
	case in.Snapshot.HasEntered && in.Sale.LotteryExecuted:
		view.State = domain.StateLost
	case in.Snapshot.HasEntered:
		view.State = domain.StateEntered
	default:
		view.State = domain.StateNotEntered
	}

	view.RefundEligible = in.Sale.LotteryExecuted && in.Snapshot.RefundEligible(in.SoldKey)
	return view
}

// newestPurchasedRight picks the wallet's newest bought right for the event.
// Duplicate records are expected; the newest timestamp wins. Rights a winner
// recorded for their own win do not make them a transferee.
func newestPurchasedRight(eventID uint64, wallet string, rights []domain.ClaimRight) *domain.ClaimRight {
	var newest *domain.ClaimRight
	for i := range rights {
		r := rights[i]
		if r.EventID != eventID || domain.NormalizeAddress(r.NewOwner) != wallet {
			continue
		}
		if !r.IsPurchased() {
			continue
		}
		if newest == nil || r.Timestamp.After(newest.Timestamp) {
			newest = &rights[i]
		}
	}
	if newest == nil {
		return nil
	}
	c := *newest
	c.NewOwner = domain.NormalizeAddress(c.NewOwner)
	c.OriginalWinner = domain.NormalizeAddress(c.OriginalWinner)
	return &c
}

// TransferFresh reports whether an incomplete transfer is still within the
// TTL. Completed transfers are never stale.
func TransferFresh(t domain.PendingTransfer, ttl time.Duration, now time.Time) bool {
	if t.Completed {
		return true
	}
	return now.Sub(t.Timestamp) <= ttl
}
