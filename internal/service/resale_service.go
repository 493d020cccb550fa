package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// ResaleService handles the claim-right marketplace: listing, purchase, the
// seller's transfer obligation, and listing maintenance.
type ResaleService struct {
	contract  domain.SaleContract
	listings  domain.ListingStore
	rights    domain.ClaimRightStore
	transfers domain.TransferStore
	soldKeys  domain.SoldKeyStore
	views     domain.ViewCache
	events    domain.EventStore
	logger    *slog.Logger
}

// NewResaleService creates a ResaleService with all required dependencies.
func NewResaleService(
	contract domain.SaleContract,
	listings domain.ListingStore,
	rights domain.ClaimRightStore,
	transfers domain.TransferStore,
	soldKeys domain.SoldKeyStore,
	views domain.ViewCache,
	events domain.EventStore,
	logger *slog.Logger,
) *ResaleService {
	return &ResaleService{
		contract:  contract,
		listings:  listings,
		rights:    rights,
		transfers: transfers,
		soldKeys:  soldKeys,
		views:     views,
		events:    events,
		logger:    logger,
	}
}

// ListClaimRight puts the calling wallet's claim right up for sale. The
// seller must hold winner status, must not have sold the right already, and
// the price must not exceed the event's transfer cap. At most one active
// claim-right listing may exist per seller per event.
func (s *ResaleService) ListClaimRight(ctx context.Context, eventID uint64, priceEth string) (domain.ResaleListing, error) {
	seller := s.contract.CallerAddress()

	isWinner, err := s.contract.IsSaleWinner(ctx, eventID, seller)
	if err != nil {
		return domain.ResaleListing{}, fmt.Errorf("resale_service: list event %d: %w", eventID, err)
	}
	if !isWinner {
		return domain.ResaleListing{}, fmt.Errorf("resale_service: list event %d: %w", eventID, domain.ErrNotAWinner)
	}

	sold, err := s.soldKeys.Exists(ctx, eventID, seller)
	if err != nil {
		return domain.ResaleListing{}, fmt.Errorf("resale_service: list event %d: %w", eventID, err)
	}
	if sold {
		return domain.ResaleListing{}, fmt.Errorf("resale_service: list event %d: %w", eventID, domain.ErrRightSold)
	}

	priceWei, err := domain.ParseEther(priceEth)
	if err != nil {
		return domain.ResaleListing{}, fmt.Errorf("resale_service: list event %d: %w", eventID, err)
	}
	if priceWei.Sign() <= 0 {
		return domain.ResaleListing{}, fmt.Errorf("resale_service: list event %d: price %s: %w",
			eventID, priceEth, domain.ErrInvalidInput)
	}

	maxPrice, err := s.contract.GetEventMaxTransferPrice(ctx, eventID)
	if err != nil {
		return domain.ResaleListing{}, fmt.Errorf("resale_service: list event %d: %w", eventID, err)
	}
	if maxPrice.Sign() > 0 && priceWei.Cmp(maxPrice) > 0 {
		return domain.ResaleListing{}, fmt.Errorf("resale_service: list event %d: price %s wei over cap %s: %w",
			eventID, priceWei, maxPrice, domain.ErrPriceExceedsCap)
	}

	listing := domain.ResaleListing{
		ID:           uuid.NewString(),
		EventID:      eventID,
		EventName:    s.eventName(ctx, eventID),
		Seller:       seller,
		Price:        domain.FormatEther(priceWei),
		PriceWei:     priceWei.String(),
		Timestamp:    time.Now().UTC(),
		IsClaimRight: true,
	}
	if err := s.listings.Create(ctx, listing); err != nil {
		return domain.ResaleListing{}, fmt.Errorf("resale_service: list event %d: %w", eventID, err)
	}

	s.logger.InfoContext(ctx, "resale_service: claim right listed",
		slog.Uint64("event_id", eventID),
		slog.String("seller", seller),
		slog.String("price_wei", listing.PriceWei),
	)
	return listing, nil
}

// ListTicket puts a minted ticket up for sale. Minted tickets are free of
// the one-active-listing rule and the transfer cap.
func (s *ResaleService) ListTicket(ctx context.Context, eventID, tokenID uint64, priceEth string) (domain.ResaleListing, error) {
	priceWei, err := domain.ParseEther(priceEth)
	if err != nil {
		return domain.ResaleListing{}, fmt.Errorf("resale_service: list ticket event %d: %w", eventID, err)
	}
	if priceWei.Sign() <= 0 {
		return domain.ResaleListing{}, fmt.Errorf("resale_service: list ticket event %d: price %s: %w",
			eventID, priceEth, domain.ErrInvalidInput)
	}

	listing := domain.ResaleListing{
		ID:        uuid.NewString(),
		EventID:   eventID,
		TokenID:   &tokenID,
		EventName: s.eventName(ctx, eventID),
		Seller:    s.contract.CallerAddress(),
		Price:     domain.FormatEther(priceWei),
		PriceWei:  priceWei.String(),
		Timestamp: time.Now().UTC(),
	}
	if err := s.listings.Create(ctx, listing); err != nil {
		return domain.ResaleListing{}, fmt.Errorf("resale_service: list ticket event %d: %w", eventID, err)
	}
	return listing, nil
}

// PurchaseClaimRight executes the buyer side of a resale: pay the seller,
// mark the listing sold, record the durable sold marker, the buyer's claim
// right, and the seller's pending transfer obligation, in that order.
func (s *ResaleService) PurchaseClaimRight(ctx context.Context, listingID string) (domain.PendingTransfer, error) {
	buyer := s.contract.CallerAddress()

	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return domain.PendingTransfer{}, fmt.Errorf("resale_service: purchase %s: %w", listingID, err)
	}
	if !listing.IsClaimRight {
		return domain.PendingTransfer{}, fmt.Errorf("resale_service: purchase %s: not a claim-right listing: %w",
			listingID, domain.ErrNotFound)
	}
	if listing.Sold {
		return domain.PendingTransfer{}, fmt.Errorf("resale_service: purchase %s: %w", listingID, domain.ErrListingSold)
	}
	if domain.NormalizeAddress(listing.Seller) == buyer {
		return domain.PendingTransfer{}, fmt.Errorf("resale_service: purchase %s: buyer is the seller: %w",
			listingID, domain.ErrBuyerAlreadyWinner)
	}

	// A wallet that already holds winner status cannot receive a second win
	// for the event; the transfer would revert later.
	isWinner, err := s.contract.IsSaleWinner(ctx, listing.EventID, buyer)
	if err != nil {
		return domain.PendingTransfer{}, fmt.Errorf("resale_service: purchase %s: %w", listingID, err)
	}
	if isWinner {
		return domain.PendingTransfer{}, fmt.Errorf("resale_service: purchase %s: %w", listingID, domain.ErrBuyerAlreadyWinner)
	}

	priceWei, ok := new(big.Int).SetString(listing.PriceWei, 10)
	if !ok {
		repaired, repairErr := domain.RepairPriceWei(listing.PriceWei, listing.Price)
		if repairErr != nil {
			return domain.PendingTransfer{}, fmt.Errorf("resale_service: purchase %s: %w", listingID, repairErr)
		}
		priceWei, _ = new(big.Int).SetString(repaired, 10)
	}

	payTx, err := s.contract.SendPayment(ctx, listing.Seller, priceWei)
	if err != nil {
		return domain.PendingTransfer{}, fmt.Errorf("resale_service: purchase %s: payment: %w", listingID, err)
	}

	now := time.Now().UTC()

	// Ledger writes follow payment in a fixed order; each is safe to replay
	// if a later one fails.
	if err := s.listings.MarkSold(ctx, listingID, now); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.PendingTransfer{}, fmt.Errorf("resale_service: purchase %s: mark sold: %w", listingID, err)
	}
	if err := s.soldKeys.Add(ctx, domain.SoldClaimRightKey{
		EventID:   listing.EventID,
		Seller:    listing.Seller,
		CreatedAt: now,
	}); err != nil {
		return domain.PendingTransfer{}, fmt.Errorf("resale_service: purchase %s: sold key: %w", listingID, err)
	}
	if err := s.rights.Add(ctx, domain.ClaimRight{
		EventID:        listing.EventID,
		NewOwner:       buyer,
		OriginalWinner: listing.Seller,
		PurchasePrice:  listing.Price,
		Timestamp:      now,
	}); err != nil {
		return domain.PendingTransfer{}, fmt.Errorf("resale_service: purchase %s: claim right: %w", listingID, err)
	}

	transfer := domain.PendingTransfer{
		ID:        uuid.NewString(),
		EventID:   listing.EventID,
		Seller:    domain.NormalizeAddress(listing.Seller),
		Buyer:     buyer,
		Price:     listing.Price,
		Timestamp: now,
	}
	if err := s.transfers.Create(ctx, transfer); err != nil {
		return domain.PendingTransfer{}, fmt.Errorf("resale_service: purchase %s: pending transfer: %w", listingID, err)
	}

	s.invalidateViews(ctx, listing.EventID, listing.Seller, buyer)
	s.logger.InfoContext(ctx, "resale_service: claim right purchased",
		slog.Uint64("event_id", listing.EventID),
		slog.String("seller", listing.Seller),
		slog.String("buyer", buyer),
		slog.String("payment_tx", payTx.TxHash),
	)
	return transfer, nil
}

// CompleteTransfer fulfils the seller's obligation by moving winner status
// on-chain to the buyer, then marks the transfer done exactly once.
func (s *ResaleService) CompleteTransfer(ctx context.Context, transferID string) (domain.TxReceipt, error) {
	transfer, err := s.transfers.GetByID(ctx, transferID)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("resale_service: complete %s: %w", transferID, err)
	}
	if transfer.Completed {
		return domain.TxReceipt{}, fmt.Errorf("resale_service: complete %s: %w", transferID, domain.ErrAlreadyExists)
	}
	if seller := s.contract.CallerAddress(); seller != domain.NormalizeAddress(transfer.Seller) {
		return domain.TxReceipt{}, fmt.Errorf("resale_service: complete %s: caller %s is not the seller: %w",
			transferID, seller, domain.ErrNotCurrentWinner)
	}

	receipt, err := s.contract.TransferWinnerStatus(ctx, transfer.EventID, transfer.Buyer)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("resale_service: complete %s: %w", transferID, err)
	}

	if err := s.transfers.Complete(ctx, transferID, transfer.Buyer, time.Now().UTC()); err != nil &&
		!errors.Is(err, domain.ErrAlreadyExists) {
		return domain.TxReceipt{}, fmt.Errorf("resale_service: complete %s: %w", transferID, err)
	}

	s.invalidateViews(ctx, transfer.EventID, transfer.Seller, transfer.Buyer)
	s.logger.InfoContext(ctx, "resale_service: winner status transferred",
		slog.Uint64("event_id", transfer.EventID),
		slog.String("buyer", transfer.Buyer),
		slog.String("tx", receipt.TxHash),
	)
	return receipt, nil
}

// CancelListing removes the caller's unsold listing.
func (s *ResaleService) CancelListing(ctx context.Context, listingID string) error {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return fmt.Errorf("resale_service: cancel %s: %w", listingID, err)
	}
	if listing.Sold {
		return fmt.Errorf("resale_service: cancel %s: %w", listingID, domain.ErrListingSold)
	}
	if seller := s.contract.CallerAddress(); seller != domain.NormalizeAddress(listing.Seller) {
		return fmt.Errorf("resale_service: cancel %s: caller is not the seller: %w", listingID, domain.ErrNotFound)
	}

	if err := s.listings.Delete(ctx, listingID); err != nil {
		return fmt.Errorf("resale_service: cancel %s: %w", listingID, err)
	}
	s.invalidateViews(ctx, listing.EventID, listing.Seller)
	return nil
}

// ClearListings wipes every unsold listing. Sold rows are kept so sellers'
// sold state survives. Admin operation.
func (s *ResaleService) ClearListings(ctx context.Context) (int64, error) {
	n, err := s.listings.DeleteAllUnsold(ctx)
	if err != nil {
		return 0, fmt.Errorf("resale_service: clear listings: %w", err)
	}
	s.logger.InfoContext(ctx, "resale_service: listings cleared", slog.Int64("removed", n))
	return n, nil
}

// OpenListings returns the open marketplace. Listings with a missing or
// corrupt priceWei are repaired from the decimal price on the way out.
func (s *ResaleService) OpenListings(ctx context.Context, opts domain.ListOpts) ([]domain.ResaleListing, error) {
	listings, err := s.listings.ListOpen(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("resale_service: open listings: %w", err)
	}

	out := listings[:0]
	for _, l := range listings {
		repaired, err := domain.RepairPriceWei(l.PriceWei, l.Price)
		if err != nil {
			s.logger.WarnContext(ctx, "resale_service: dropping unrecoverable listing",
				slog.String("listing_id", l.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		l.PriceWei = repaired
		out = append(out, l)
	}
	return out, nil
}

// SellerListings returns everything a seller has listed, sold records
// included, with the same priceWei repair as OpenListings.
func (s *ResaleService) SellerListings(ctx context.Context, seller string) ([]domain.ResaleListing, error) {
	listings, err := s.listings.ListBySeller(ctx, seller)
	if err != nil {
		return nil, fmt.Errorf("resale_service: seller listings %s: %w", seller, err)
	}

	out := listings[:0]
	for _, l := range listings {
		repaired, err := domain.RepairPriceWei(l.PriceWei, l.Price)
		if err != nil {
			s.logger.WarnContext(ctx, "resale_service: dropping unrecoverable listing",
				slog.String("listing_id", l.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		l.PriceWei = repaired
		out = append(out, l)
	}
	return out, nil
}

// SellerObligations returns the seller's outstanding transfers that are
// still within the TTL, oldest first.
func (s *ResaleService) SellerObligations(ctx context.Context, seller string, ttl time.Duration) ([]domain.PendingTransfer, error) {
	transfers, err := s.transfers.ListIncompleteBySeller(ctx, seller)
	if err != nil {
		return nil, fmt.Errorf("resale_service: obligations %s: %w", seller, err)
	}

	now := time.Now().UTC()
	out := transfers[:0]
	for _, t := range transfers {
		if !t.Valid() {
			continue
		}
		if now.Sub(t.Timestamp) > ttl {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// eventName resolves the display name for listings; missing metadata is not
// an error.
func (s *ResaleService) eventName(ctx context.Context, eventID uint64) string {
	meta, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return ""
	}
	return meta.Name
}

func (s *ResaleService) invalidateViews(ctx context.Context, eventID uint64, wallets ...string) {
	for _, w := range wallets {
		if err := s.views.Invalidate(ctx, eventID, w); err != nil {
			s.logger.WarnContext(ctx, "resale_service: view cache invalidate failed",
				slog.Uint64("event_id", eventID),
				slog.String("wallet", w),
				slog.String("error", err.Error()),
			)
		}
	}
}
