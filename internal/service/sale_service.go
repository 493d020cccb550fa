package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// LotteryCompletedChannel carries lottery-completed broadcasts so every
// subscriber reconciles immediately instead of waiting for the next tick.
const LotteryCompletedChannel = "reconcile:lottery-completed"

// LotteryCompletedSignal is the payload published on LotteryCompletedChannel.
type LotteryCompletedSignal struct {
	EventID uint64 `json:"eventId"`
}

// ViewChannelPattern matches every per-pair view-update channel.
const ViewChannelPattern = "views:*"

// ViewChannel is the pub/sub channel carrying derived-view updates for one
// (event, wallet) pair.
func ViewChannel(eventID uint64, wallet string) string {
	return fmt.Sprintf("views:%d:%s", eventID, domain.NormalizeAddress(wallet))
}

// SaleService handles sale entry, ticket claiming, refunds and the owner
// operations that open sales and draw winners.
type SaleService struct {
	contract  domain.SaleContract
	snapshots domain.SnapshotCache
	sales     domain.SaleCache
	views     domain.ViewCache
	soldKeys  domain.SoldKeyStore
	receipts  domain.ReceiptStore
	bus       domain.SignalBus
	logger    *slog.Logger
}

// NewSaleService creates a SaleService with all required dependencies.
func NewSaleService(
	contract domain.SaleContract,
	snapshots domain.SnapshotCache,
	sales domain.SaleCache,
	views domain.ViewCache,
	soldKeys domain.SoldKeyStore,
	receipts domain.ReceiptStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *SaleService {
	return &SaleService{
		contract:  contract,
		snapshots: snapshots,
		sales:     sales,
		views:     views,
		soldKeys:  soldKeys,
		receipts:  receipts,
		bus:       bus,
		logger:    logger,
	}
}

// GetSaleOverview returns the sale record for an event, cache first.
func (s *SaleService) GetSaleOverview(ctx context.Context, eventID uint64) (domain.SaleOverview, error) {
	if overview, err := s.sales.Get(ctx, eventID); err == nil {
		return overview, nil
	}

	overview, err := s.contract.GetSaleOverview(ctx, eventID)
	if err != nil {
		return domain.SaleOverview{}, fmt.Errorf("sale_service: overview event %d: %w", eventID, err)
	}

	if cacheErr := s.sales.Put(ctx, overview); cacheErr != nil {
		s.logger.WarnContext(ctx, "sale_service: sale cache put failed",
			slog.Uint64("event_id", eventID),
			slog.String("error", cacheErr.Error()),
		)
	}
	return overview, nil
}

// RefreshSnapshot reads the wallet's entry and winner flags from the chain
// and stores them. The stored hasClaimedRefund flag survives the refresh.
func (s *SaleService) RefreshSnapshot(ctx context.Context, eventID uint64, wallet string) (domain.ParticipantSnapshot, error) {
	hasEntered, err := s.contract.HasEnteredSale(ctx, eventID, wallet)
	if err != nil {
		return domain.ParticipantSnapshot{}, fmt.Errorf("sale_service: refresh entered: %w", err)
	}
	isWinner, err := s.contract.IsSaleWinner(ctx, eventID, wallet)
	if err != nil {
		return domain.ParticipantSnapshot{}, fmt.Errorf("sale_service: refresh winner: %w", err)
	}

	snap := domain.ParticipantSnapshot{
		EventID:     eventID,
		Wallet:      domain.NormalizeAddress(wallet),
		HasEntered:  hasEntered,
		IsWinner:    isWinner,
		RefreshedAt: time.Now().UTC(),
	}
	if err := s.snapshots.Put(ctx, snap); err != nil {
		return domain.ParticipantSnapshot{}, fmt.Errorf("sale_service: store snapshot: %w", err)
	}

	// Read back to pick up the preserved refund flag.
	stored, err := s.snapshots.Get(ctx, eventID, snap.Wallet)
	if err != nil {
		return snap, nil
	}
	return stored, nil
}

// EnterSale stakes the event's entry amount into the lottery.
func (s *SaleService) EnterSale(ctx context.Context, eventID uint64) (domain.TxReceipt, error) {
	overview, err := s.GetSaleOverview(ctx, eventID)
	if err != nil {
		return domain.TxReceipt{}, err
	}
	if !overview.IsOpen {
		return domain.TxReceipt{}, fmt.Errorf("sale_service: enter event %d: %w", eventID, domain.ErrSaleClosed)
	}

	receipt, err := s.contract.EnterSale(ctx, eventID, overview.StakeAmount)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("sale_service: enter event %d: %w", eventID, err)
	}

	s.invalidate(ctx, eventID, s.contract.CallerAddress())
	s.logger.InfoContext(ctx, "sale_service: entered sale",
		slog.Uint64("event_id", eventID),
		slog.String("tx", receipt.TxHash),
	)
	return receipt, nil
}

// ClaimTicket mints the ticket for the calling wallet. A recorded receipt
// permanently blocks re-claiming, whatever the contract would accept.
func (s *SaleService) ClaimTicket(ctx context.Context, eventID uint64) (domain.ClaimReceipt, error) {
	wallet := s.contract.CallerAddress()

	claimed, err := s.receipts.Exists(ctx, eventID, wallet)
	if err != nil {
		return domain.ClaimReceipt{}, fmt.Errorf("sale_service: claim event %d: %w", eventID, err)
	}
	if claimed {
		return domain.ClaimReceipt{}, fmt.Errorf("sale_service: claim event %d: %w", eventID, domain.ErrAlreadyClaimed)
	}

	sold, err := s.soldKeys.Exists(ctx, eventID, wallet)
	if err != nil {
		return domain.ClaimReceipt{}, fmt.Errorf("sale_service: claim event %d: %w", eventID, err)
	}
	if sold {
		return domain.ClaimReceipt{}, fmt.Errorf("sale_service: claim event %d: %w", eventID, domain.ErrRightSold)
	}

	isWinner, err := s.contract.IsSaleWinner(ctx, eventID, wallet)
	if err != nil {
		return domain.ClaimReceipt{}, fmt.Errorf("sale_service: claim event %d: %w", eventID, err)
	}
	if !isWinner {
		return domain.ClaimReceipt{}, fmt.Errorf("sale_service: claim event %d: %w", eventID, domain.ErrNotAWinner)
	}

	txReceipt, err := s.contract.ClaimTicket(ctx, eventID)
	if err != nil {
		return domain.ClaimReceipt{}, fmt.Errorf("sale_service: claim event %d: %w", eventID, err)
	}

	receipt := domain.ClaimReceipt{
		EventID:   eventID,
		Wallet:    wallet,
		TxHash:    txReceipt.TxHash,
		ClaimedAt: time.Now().UTC(),
	}
	if err := s.receipts.Add(ctx, receipt); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		// The mint succeeded; losing the receipt would re-enable claiming.
		return domain.ClaimReceipt{}, fmt.Errorf("sale_service: record receipt event %d: %w", eventID, err)
	}

	s.invalidate(ctx, eventID, wallet)
	s.logger.InfoContext(ctx, "sale_service: ticket claimed",
		slog.Uint64("event_id", eventID),
		slog.String("wallet", wallet),
		slog.String("tx", txReceipt.TxHash),
	)
	return receipt, nil
}

// WithdrawEntry exits an open sale before the lottery and returns the stake.
func (s *SaleService) WithdrawEntry(ctx context.Context, eventID uint64) (domain.TxReceipt, error) {
	overview, err := s.GetSaleOverview(ctx, eventID)
	if err != nil {
		return domain.TxReceipt{}, err
	}
	if overview.LotteryExecuted {
		return domain.TxReceipt{}, fmt.Errorf("sale_service: withdraw entry event %d: %w", eventID, domain.ErrSaleClosed)
	}

	receipt, err := s.contract.WithdrawEntryBeforeLottery(ctx, eventID)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("sale_service: withdraw entry event %d: %w", eventID, err)
	}

	s.invalidate(ctx, eventID, s.contract.CallerAddress())
	return receipt, nil
}

// WithdrawStake refunds the stake of a losing entrant after the lottery.
// Eligibility is checked against fresh chain state: the wallet must have
// entered, must not hold winner status, must not have sold a claim right for
// the event, and must not have withdrawn already.
func (s *SaleService) WithdrawStake(ctx context.Context, eventID uint64) (domain.TxReceipt, error) {
	wallet := s.contract.CallerAddress()

	overview, err := s.GetSaleOverview(ctx, eventID)
	if err != nil {
		return domain.TxReceipt{}, err
	}
	if !overview.LotteryExecuted {
		return domain.TxReceipt{}, fmt.Errorf("sale_service: withdraw event %d: %w", eventID, domain.ErrSaleClosed)
	}

	snap, err := s.RefreshSnapshot(ctx, eventID, wallet)
	if err != nil {
		return domain.TxReceipt{}, err
	}
	if !snap.HasEntered {
		return domain.TxReceipt{}, fmt.Errorf("sale_service: withdraw event %d: %w", eventID, domain.ErrNotEntered)
	}
	if snap.IsWinner {
		return domain.TxReceipt{}, fmt.Errorf("sale_service: withdraw event %d: %w", eventID, domain.ErrIsWinner)
	}
	if snap.HasClaimedRefund {
		return domain.TxReceipt{}, fmt.Errorf("sale_service: withdraw event %d: %w", eventID, domain.ErrAlreadyWithdrawn)
	}

	sold, err := s.soldKeys.Exists(ctx, eventID, wallet)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("sale_service: withdraw event %d: %w", eventID, err)
	}
	if sold {
		return domain.TxReceipt{}, fmt.Errorf("sale_service: withdraw event %d: %w", eventID, domain.ErrRightSold)
	}

	receipt, err := s.contract.WithdrawStake(ctx, eventID)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("sale_service: withdraw event %d: %w", eventID, err)
	}

	if err := s.snapshots.MarkRefundClaimed(ctx, eventID, wallet); err != nil {
		// The chain enforces single withdrawal; losing the local flag only
		// costs a failed retry.
		s.logger.WarnContext(ctx, "sale_service: mark refund claimed failed",
			slog.Uint64("event_id", eventID),
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
	}

	s.invalidate(ctx, eventID, wallet)
	s.logger.InfoContext(ctx, "sale_service: stake withdrawn",
		slog.Uint64("event_id", eventID),
		slog.String("wallet", wallet),
		slog.String("tx", receipt.TxHash),
	)
	return receipt, nil
}

// ConfigureEventSale opens a sale for an event. Owner operation.
func (s *SaleService) ConfigureEventSale(ctx context.Context, eventID uint64, stakeEth string, supply, maxTransferPct uint64) (domain.TxReceipt, error) {
	stake, err := domain.ParseEther(stakeEth)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("sale_service: configure event %d: %w", eventID, err)
	}

	receipt, err := s.contract.ConfigureEventSale(ctx, eventID, stake, supply, maxTransferPct)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("sale_service: configure event %d: %w", eventID, err)
	}

	if cacheErr := s.sales.Invalidate(ctx, eventID); cacheErr != nil {
		s.logger.WarnContext(ctx, "sale_service: sale cache invalidate failed",
			slog.Uint64("event_id", eventID),
			slog.String("error", cacheErr.Error()),
		)
	}
	return receipt, nil
}

// RunLottery draws winners for an event and broadcasts the completion so
// every engine instance reconciles immediately. Owner operation.
func (s *SaleService) RunLottery(ctx context.Context, eventID uint64) (domain.TxReceipt, error) {
	receipt, err := s.contract.RunLottery(ctx, eventID)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("sale_service: run lottery event %d: %w", eventID, err)
	}

	if cacheErr := s.sales.Invalidate(ctx, eventID); cacheErr != nil {
		s.logger.WarnContext(ctx, "sale_service: sale cache invalidate failed",
			slog.Uint64("event_id", eventID),
			slog.String("error", cacheErr.Error()),
		)
	}

	payload, _ := json.Marshal(LotteryCompletedSignal{EventID: eventID})
	if err := s.bus.Publish(ctx, LotteryCompletedChannel, payload); err != nil {
		// Subscribers still pick up the result on their next tick.
		s.logger.WarnContext(ctx, "sale_service: lottery signal publish failed",
			slog.Uint64("event_id", eventID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "sale_service: lottery executed",
		slog.Uint64("event_id", eventID),
		slog.String("tx", receipt.TxHash),
	)
	return receipt, nil
}

// invalidate drops the cached state tied to (event, wallet) after a write.
func (s *SaleService) invalidate(ctx context.Context, eventID uint64, wallet string) {
	if err := s.sales.Invalidate(ctx, eventID); err != nil {
		s.logger.WarnContext(ctx, "sale_service: sale cache invalidate failed",
			slog.Uint64("event_id", eventID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.views.Invalidate(ctx, eventID, wallet); err != nil {
		s.logger.WarnContext(ctx, "sale_service: view cache invalidate failed",
			slog.Uint64("event_id", eventID),
			slog.String("error", err.Error()),
		)
	}
}
