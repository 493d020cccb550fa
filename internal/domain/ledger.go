package domain

import (
	"fmt"
	"strings"
	"time"
)

// NormalizeAddress lowercases a hex address so that ledger comparisons are
// case-insensitive. Checksummed and lowercased forms of the same address
// must hit the same records.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ClaimRight records that NewOwner bought the right to claim the ticket for
// an event from OriginalWinner. It becomes exercisable once the on-chain
// winner flag moves to NewOwner. Records are append-only; duplicates are
// possible and are filtered at read time (newest wins).
type ClaimRight struct {
	EventID        uint64    `json:"eventId"`
	NewOwner       string    `json:"newOwner"`
	OriginalWinner string    `json:"originalWinner"`
	PurchasePrice  string    `json:"purchasePrice"` // decimal ETH string
	Timestamp      time.Time `json:"timestamp"`
}

// IsPurchased reports whether the right was bought from somebody else, as
// opposed to a record a winner holds for their own win.
func (r ClaimRight) IsPurchased() bool {
	return NormalizeAddress(r.NewOwner) != NormalizeAddress(r.OriginalWinner)
}

// ResaleListing is a marketplace listing for either a minted ticket or an
// unminted claim right. Sold listings are kept (marked, not deleted) so the
// seller's sold state survives marketplace mutations.
type ResaleListing struct {
	ID            string     `json:"id"`
	EventID       uint64     `json:"eventId"`
	TokenID       *uint64    `json:"tokenId,omitempty"` // nil for unminted claim rights
	EventName     string     `json:"eventName"`
	Seller        string     `json:"seller"`
	Price         string     `json:"price"`    // decimal ETH string
	PriceWei      string     `json:"priceWei"` // canonical integer string, never an object
	Timestamp     time.Time  `json:"timestamp"`
	IsClaimRight  bool       `json:"isClaimRight"`
	Sold          bool       `json:"sold"`
	SoldTimestamp *time.Time `json:"soldTimestamp,omitempty"`
}

// PendingTransfer is the seller's outstanding obligation to move winner
// status on-chain after the off-chain payment leg. Completed flips to true
// exactly once, via the seller's own transfer action. Incomplete entries
// past the TTL are dropped during reconciliation.
type PendingTransfer struct {
	ID           string     `json:"id"`
	EventID      uint64     `json:"eventId"`
	Seller       string     `json:"seller"`
	Buyer        string     `json:"buyer"`
	Price        string     `json:"price"`
	Timestamp    time.Time  `json:"timestamp"`
	Completed    bool       `json:"completed"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	BuyerAddress string     `json:"buyerAddress,omitempty"` // set on completion
}

// Valid reports whether the transfer carries the fields required to ever be
// completable. Invalid entries are pruned.
func (t PendingTransfer) Valid() bool {
	return t.EventID != 0 && t.Seller != "" && t.Buyer != ""
}

// SoldClaimRightKey is the durable marker that a seller has irrevocably sold
// their claim right for an event. It is kept separate from the listing so
// that listing mutation or removal cannot make the engine forget the sale.
type SoldClaimRightKey struct {
	EventID   uint64    `json:"eventId"`
	Seller    string    `json:"seller"`
	CreatedAt time.Time `json:"createdAt"`
}

// Key returns the canonical "eventId-seller" form, seller lowercased.
func (k SoldClaimRightKey) Key() string {
	return FormatSoldKey(k.EventID, k.Seller)
}

// FormatSoldKey builds the canonical sold-claim-right key.
func FormatSoldKey(eventID uint64, seller string) string {
	return fmt.Sprintf("%d-%s", eventID, NormalizeAddress(seller))
}

// ClaimReceipt records a successful ticket mint for (event, wallet). Its
// existence permanently disables re-claiming in the engine regardless of
// what the contract would say.
type ClaimReceipt struct {
	EventID   uint64    `json:"eventId"`
	Wallet    string    `json:"wallet"`
	TokenID   *uint64   `json:"tokenId,omitempty"`
	TxHash    string    `json:"txHash"`
	ClaimedAt time.Time `json:"claimedAt"`
}
