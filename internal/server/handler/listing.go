package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// ResaleOps is what the listing handler needs from the resale service.
type ResaleOps interface {
	OpenListings(ctx context.Context, opts domain.ListOpts) ([]domain.ResaleListing, error)
	SellerListings(ctx context.Context, seller string) ([]domain.ResaleListing, error)
	SellerObligations(ctx context.Context, seller string, ttl time.Duration) ([]domain.PendingTransfer, error)
	ListClaimRight(ctx context.Context, eventID uint64, priceEth string) (domain.ResaleListing, error)
	ListTicket(ctx context.Context, eventID, tokenID uint64, priceEth string) (domain.ResaleListing, error)
	PurchaseClaimRight(ctx context.Context, listingID string) (domain.PendingTransfer, error)
	CompleteTransfer(ctx context.Context, transferID string) (domain.TxReceipt, error)
	CancelListing(ctx context.Context, listingID string) error
	ClearListings(ctx context.Context) (int64, error)
}

// ListingHandler serves resale listings, seller transfer obligations, and
// the resale actions executed with the configured wallet.
type ListingHandler struct {
	resale      ResaleOps
	transferTTL time.Duration
	logger      *slog.Logger
}

// NewListingHandler creates a ListingHandler. transferTTL bounds which
// outstanding transfers still count as obligations.
func NewListingHandler(resale ResaleOps, transferTTL time.Duration, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{
		resale:      resale,
		transferTTL: transferTTL,
		logger:      logger,
	}
}

type listListingsResponse struct {
	Listings []domain.ResaleListing `json:"listings"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
}

// ListOpen returns open resale listings with pagination.
// GET /api/listings?limit=50&offset=0
func (h *ListingHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	listings, err := h.resale.OpenListings(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list open listings failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list listings")
		return
	}
	if listings == nil {
		listings = []domain.ResaleListing{}
	}

	writeJSON(w, http.StatusOK, listListingsResponse{
		Listings: listings,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
}

// ListBySeller returns all of one seller's listings, sold ones included.
// GET /api/listings/sellers/{address}
func (h *ListingHandler) ListBySeller(w http.ResponseWriter, r *http.Request) {
	seller := domain.NormalizeAddress(r.PathValue("address"))
	if seller == "" {
		writeError(w, http.StatusBadRequest, "missing seller address")
		return
	}

	listings, err := h.resale.SellerListings(r.Context(), seller)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list seller listings failed",
			slog.String("seller", seller),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list listings")
		return
	}
	if listings == nil {
		listings = []domain.ResaleListing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

// SellerObligations returns the seller's outstanding transfer promises.
// GET /api/transfers/sellers/{address}
func (h *ListingHandler) SellerObligations(w http.ResponseWriter, r *http.Request) {
	seller := domain.NormalizeAddress(r.PathValue("address"))
	if seller == "" {
		writeError(w, http.StatusBadRequest, "missing seller address")
		return
	}

	transfers, err := h.resale.SellerObligations(r.Context(), seller, h.transferTTL)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: seller obligations failed",
			slog.String("seller", seller),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list transfers")
		return
	}
	if transfers == nil {
		transfers = []domain.PendingTransfer{}
	}
	writeJSON(w, http.StatusOK, transfers)
}

type createListingRequest struct {
	EventID uint64  `json:"eventId"`
	Price   string  `json:"price"`
	TokenID *uint64 `json:"tokenId,omitempty"`
}

// CreateListing lists the wallet's claim right, or a minted ticket when
// tokenId is present.
// POST /api/listings
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EventID == 0 {
		writeError(w, http.StatusBadRequest, "missing event id")
		return
	}

	var (
		listing domain.ResaleListing
		err     error
	)
	if req.TokenID != nil {
		listing, err = h.resale.ListTicket(r.Context(), req.EventID, *req.TokenID, req.Price)
	} else {
		listing, err = h.resale.ListClaimRight(r.Context(), req.EventID, req.Price)
	}
	if err != nil {
		if status, known := serviceStatus(err); known {
			writeError(w, status, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: create listing failed",
			slog.Uint64("event_id", req.EventID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create listing")
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

// Purchase buys a claim-right listing with the configured wallet and
// returns the seller's resulting transfer obligation.
// POST /api/listings/{id}/purchase
func (h *ListingHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	listingID := r.PathValue("id")
	if listingID == "" {
		writeError(w, http.StatusBadRequest, "missing listing id")
		return
	}

	transfer, err := h.resale.PurchaseClaimRight(r.Context(), listingID)
	if err != nil {
		if status, known := serviceStatus(err); known {
			writeError(w, status, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: purchase failed",
			slog.String("listing_id", listingID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to purchase listing")
		return
	}
	writeJSON(w, http.StatusOK, transfer)
}

// CancelListing removes an unsold listing.
// DELETE /api/listings/{id}
func (h *ListingHandler) CancelListing(w http.ResponseWriter, r *http.Request) {
	listingID := r.PathValue("id")
	if listingID == "" {
		writeError(w, http.StatusBadRequest, "missing listing id")
		return
	}

	if err := h.resale.CancelListing(r.Context(), listingID); err != nil {
		if status, known := serviceStatus(err); known {
			writeError(w, status, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: cancel listing failed",
			slog.String("listing_id", listingID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to cancel listing")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearListings drops every unsold listing. Sold records stay; they carry
// the resale history.
// DELETE /api/listings
func (h *ListingHandler) ClearListings(w http.ResponseWriter, r *http.Request) {
	n, err := h.resale.ClearListings(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: clear listings failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to clear listings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cleared": n})
}

// CompleteTransfer executes the seller's on-chain winner-status transfer.
// POST /api/transfers/{id}/complete
func (h *ListingHandler) CompleteTransfer(w http.ResponseWriter, r *http.Request) {
	transferID := r.PathValue("id")
	if transferID == "" {
		writeError(w, http.StatusBadRequest, "missing transfer id")
		return
	}

	receipt, err := h.resale.CompleteTransfer(r.Context(), transferID)
	if err != nil {
		if status, known := serviceStatus(err); known {
			writeError(w, status, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: complete transfer failed",
			slog.String("transfer_id", transferID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to complete transfer")
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
