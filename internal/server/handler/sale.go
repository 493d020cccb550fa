package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// SaleOps is what the sale handler needs from the service layer: the sale
// overview plus the chain-backed participant and organizer actions.
type SaleOps interface {
	GetSaleOverview(ctx context.Context, eventID uint64) (domain.SaleOverview, error)
	EnterSale(ctx context.Context, eventID uint64) (domain.TxReceipt, error)
	ClaimTicket(ctx context.Context, eventID uint64) (domain.ClaimReceipt, error)
	WithdrawEntry(ctx context.Context, eventID uint64) (domain.TxReceipt, error)
	WithdrawStake(ctx context.Context, eventID uint64) (domain.TxReceipt, error)
	ConfigureEventSale(ctx context.Context, eventID uint64, stakeEth string, supply, maxTransferPct uint64) (domain.TxReceipt, error)
	RunLottery(ctx context.Context, eventID uint64) (domain.TxReceipt, error)
}

// ViewReader reads derived claim views.
type ViewReader interface {
	Get(ctx context.Context, eventID uint64, wallet string) (domain.DerivedView, error)
}

// Tracker registers (event, wallet) pairs with the reconciliation engine.
type Tracker interface {
	Track(eventID uint64, wallet string)
}

// SaleHandler serves sale overviews, derived per-wallet claim state, and
// the sale actions executed with the configured wallet.
type SaleHandler struct {
	sales   SaleOps
	views   ViewReader
	tracker Tracker
	logger  *slog.Logger
}

// NewSaleHandler creates a SaleHandler.
func NewSaleHandler(sales SaleOps, views ViewReader, tracker Tracker, logger *slog.Logger) *SaleHandler {
	return &SaleHandler{
		sales:   sales,
		views:   views,
		tracker: tracker,
		logger:  logger,
	}
}

// GetSale returns the on-chain sale overview for one event.
// GET /api/sales/{eventId}
func (h *SaleHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathEventID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	overview, err := h.sales.GetSaleOverview(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "sale not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get sale failed",
			slog.Uint64("event_id", eventID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get sale")
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// GetState returns the derived claim state for a wallet on one event. When
// the pair has never been reconciled yet, the pair is registered with the
// engine and a 202 is returned; a subsequent request serves the view.
// GET /api/sales/{eventId}/state?wallet=0x...
func (h *SaleHandler) GetState(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathEventID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	wallet := queryWallet(r)
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "missing wallet")
		return
	}

	// Keep the pair hot regardless of cache state.
	h.tracker.Track(eventID, wallet)

	view, err := h.views.Get(r.Context(), eventID, wallet)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get state failed",
			slog.Uint64("event_id", eventID),
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get state")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// saleAction runs one chain-backed action and writes its receipt.
func (h *SaleHandler) saleAction(w http.ResponseWriter, r *http.Request, op string,
	action func(ctx context.Context, eventID uint64) (domain.TxReceipt, error),
) {
	eventID, ok := pathEventID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	receipt, err := action(r.Context(), eventID)
	if err != nil {
		if status, known := serviceStatus(err); known {
			writeError(w, status, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.Uint64("event_id", eventID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// EnterSale stakes the configured wallet into the event's lottery.
// POST /api/sales/{eventId}/enter
func (h *SaleHandler) EnterSale(w http.ResponseWriter, r *http.Request) {
	h.saleAction(w, r, "enter sale", h.sales.EnterSale)
}

// ClaimTicket mints the winner's ticket and records the receipt.
// POST /api/sales/{eventId}/claim
func (h *SaleHandler) ClaimTicket(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathEventID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	receipt, err := h.sales.ClaimTicket(r.Context(), eventID)
	if err != nil {
		if status, known := serviceStatus(err); known {
			writeError(w, status, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: claim ticket failed",
			slog.Uint64("event_id", eventID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to claim ticket")
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// WithdrawEntry pulls the wallet out of a lottery that has not run yet.
// POST /api/sales/{eventId}/withdraw-entry
func (h *SaleHandler) WithdrawEntry(w http.ResponseWriter, r *http.Request) {
	h.saleAction(w, r, "withdraw entry", h.sales.WithdrawEntry)
}

// WithdrawStake refunds a loser's stake after the lottery.
// POST /api/sales/{eventId}/withdraw-stake
func (h *SaleHandler) WithdrawStake(w http.ResponseWriter, r *http.Request) {
	h.saleAction(w, r, "withdraw stake", h.sales.WithdrawStake)
}

type configureSaleRequest struct {
	Stake          string `json:"stake"`
	Supply         uint64 `json:"supply"`
	MaxTransferPct uint64 `json:"maxTransferPct"`
}

// ConfigureSale sets up an event's sale parameters (organizer action).
// POST /api/sales/{eventId}/configure
func (h *SaleHandler) ConfigureSale(w http.ResponseWriter, r *http.Request) {
	var req configureSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.saleAction(w, r, "configure sale", func(ctx context.Context, eventID uint64) (domain.TxReceipt, error) {
		return h.sales.ConfigureEventSale(ctx, eventID, req.Stake, req.Supply, req.MaxTransferPct)
	})
}

// RunLottery executes the event's lottery (organizer action).
// POST /api/sales/{eventId}/lottery
func (h *SaleHandler) RunLottery(w http.ResponseWriter, r *http.Request) {
	h.saleAction(w, r, "run lottery", h.sales.RunLottery)
}
