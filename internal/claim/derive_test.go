package claim

import (
	"testing"
	"time"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

const (
	wallet = "0xAbC0000000000000000000000000000000000001"
	winner = "0xdef0000000000000000000000000000000000002"
)

func baseInput() Input {
	return Input{
		EventID: 7,
		Wallet:  wallet,
		Snapshot: domain.ParticipantSnapshot{
			EventID: 7,
			Wallet:  wallet,
		},
		Sale: domain.SaleOverview{EventID: 7},
		Now:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func purchasedRight(ts time.Time, price string) domain.ClaimRight {
	return domain.ClaimRight{
		EventID:        7,
		NewOwner:       wallet,
		OriginalWinner: winner,
		PurchasePrice:  price,
		Timestamp:      ts,
	}
}

func TestDeriveNotEntered(t *testing.T) {
	view := Derive(baseInput())
	if view.State != domain.StateNotEntered {
		t.Errorf("state = %s, want %s", view.State, domain.StateNotEntered)
	}
	if view.RefundEligible {
		t.Error("refund eligible without entry")
	}
}

func TestDeriveEnteredBeforeLottery(t *testing.T) {
	in := baseInput()
	in.Snapshot.HasEntered = true
	view := Derive(in)
	if view.State != domain.StateEntered {
		t.Errorf("state = %s, want %s", view.State, domain.StateEntered)
	}
	if view.RefundEligible {
		t.Error("refund must wait for the lottery")
	}
}

func TestDeriveLostWithRefund(t *testing.T) {
	in := baseInput()
	in.Snapshot.HasEntered = true
	in.Sale.LotteryExecuted = true
	view := Derive(in)
	if view.State != domain.StateLost {
		t.Errorf("state = %s, want %s", view.State, domain.StateLost)
	}
	if !view.RefundEligible {
		t.Error("loser should be refund eligible")
	}
}

func TestDeriveRefundDeniedAfterWithdrawal(t *testing.T) {
	in := baseInput()
	in.Snapshot.HasEntered = true
	in.Snapshot.HasClaimedRefund = true
	in.Sale.LotteryExecuted = true
	if view := Derive(in); view.RefundEligible {
		t.Error("refund eligible after withdrawal")
	}
}

func TestDeriveRefundDeniedWithoutEntry(t *testing.T) {
	// A sold-right record alone must never unlock a refund.
	in := baseInput()
	in.Sale.LotteryExecuted = true
	in.SoldKey = true
	view := Derive(in)
	if view.RefundEligible {
		t.Error("refund eligible without on-chain entry")
	}
}

func TestDeriveWonOriginal(t *testing.T) {
	in := baseInput()
	in.Snapshot.HasEntered = true
	in.Snapshot.IsWinner = true
	in.Sale.LotteryExecuted = true
	view := Derive(in)
	if view.State != domain.StateWonOriginal {
		t.Errorf("state = %s, want %s", view.State, domain.StateWonOriginal)
	}
	if view.RefundEligible {
		t.Error("winners get tickets, not refunds")
	}
}

func TestDeriveSoldOverridesWinner(t *testing.T) {
	in := baseInput()
	in.Snapshot.HasEntered = true
	in.Snapshot.IsWinner = true
	in.Sale.LotteryExecuted = true
	in.SoldKey = true
	view := Derive(in)
	if view.State != domain.StateSoldRight {
		t.Errorf("state = %s, want %s", view.State, domain.StateSoldRight)
	}
	if view.RefundEligible {
		t.Error("seller must not double dip on a refund")
	}
}

func TestDeriveAwaitingTransfer(t *testing.T) {
	in := baseInput()
	in.Rights = []domain.ClaimRight{purchasedRight(in.Now.Add(-time.Minute), "0.05")}
	view := Derive(in)
	if view.State != domain.StateAwaitingTransfer {
		t.Errorf("state = %s, want %s", view.State, domain.StateAwaitingTransfer)
	}
	if view.ActiveRight == nil {
		t.Fatal("active right missing")
	}
	if view.ActiveRight.NewOwner != domain.NormalizeAddress(wallet) {
		t.Errorf("active right owner = %s", view.ActiveRight.NewOwner)
	}
}

func TestDeriveClaimableOnceWinnerFlagMoves(t *testing.T) {
	in := baseInput()
	in.Snapshot.IsWinner = true
	in.Rights = []domain.ClaimRight{purchasedRight(in.Now.Add(-time.Minute), "0.05")}
	view := Derive(in)
	if view.State != domain.StateClaimableAsTransferee {
		t.Errorf("state = %s, want %s", view.State, domain.StateClaimableAsTransferee)
	}
}

func TestDeriveNewestRightWins(t *testing.T) {
	in := baseInput()
	old := purchasedRight(in.Now.Add(-time.Hour), "0.01")
	fresh := purchasedRight(in.Now.Add(-time.Minute), "0.09")
	in.Rights = []domain.ClaimRight{old, fresh, old}
	view := Derive(in)
	if view.ActiveRight == nil || view.ActiveRight.PurchasePrice != "0.09" {
		t.Fatalf("active right = %+v, want the newest record", view.ActiveRight)
	}
}

func TestDeriveSelfRecordIsNotPurchase(t *testing.T) {
	in := baseInput()
	in.Snapshot.IsWinner = true
	in.Rights = []domain.ClaimRight{{
		EventID:        7,
		NewOwner:       wallet,
		OriginalWinner: wallet,
		Timestamp:      in.Now,
	}}
	view := Derive(in)
	if view.State != domain.StateWonOriginal {
		t.Errorf("state = %s, want %s", view.State, domain.StateWonOriginal)
	}
}

func TestDeriveReceiptOverridesEverything(t *testing.T) {
	in := baseInput()
	in.Snapshot.IsWinner = true
	in.SoldKey = true
	in.ReceiptExists = true
	view := Derive(in)
	if view.State != domain.StateClaimed {
		t.Errorf("state = %s, want %s", view.State, domain.StateClaimed)
	}
}

func TestTransferFresh(t *testing.T) {
	now := time.Now()
	ttl := 10 * time.Minute

	fresh := domain.PendingTransfer{Timestamp: now.Add(-5 * time.Minute)}
	if !TransferFresh(fresh, ttl, now) {
		t.Error("transfer within ttl reported stale")
	}

	stale := domain.PendingTransfer{Timestamp: now.Add(-11 * time.Minute)}
	if TransferFresh(stale, ttl, now) {
		t.Error("transfer past ttl reported fresh")
	}

	done := domain.PendingTransfer{Timestamp: now.Add(-time.Hour), Completed: true}
	if !TransferFresh(done, ttl, now) {
		t.Error("completed transfer reported stale")
	}
}
