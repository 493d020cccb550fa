// Package reconcile runs the periodic loop that aligns derived claim state
// with on-chain truth and prunes expired ledger records.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cryptoticketing/ticketd/internal/claim"
	"github.com/cryptoticketing/ticketd/internal/domain"
	"github.com/cryptoticketing/ticketd/internal/notify"
	"github.com/cryptoticketing/ticketd/internal/service"
)

// Config controls the engine's polling and retention behavior.
type Config struct {
	// Interval is the periodic reconciliation cadence.
	Interval time.Duration
	// TransferTTL is how long an incomplete pending transfer may live.
	TransferTTL time.Duration
	// SoldKeyRetention is how long sold listings and their markers are kept
	// after the sale.
	SoldKeyRetention time.Duration
}

// Defaults fills unset fields with production values.
func (c *Config) Defaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.TransferTTL <= 0 {
		c.TransferTTL = 10 * time.Minute
	}
	if c.SoldKeyRetention <= 0 {
		c.SoldKeyRetention = 7 * 24 * time.Hour
	}
}

// pair is one tracked (event, wallet) combination.
type pair struct {
	eventID uint64
	wallet  string
}

// Engine reconciles tracked wallet/event pairs on a timer and on demand.
// Every pass is idempotent: refresh chain state, prune expired records,
// rederive views. Triggers only shorten the wait, they never change the
// work done.
type Engine struct {
	contract  domain.SaleContract
	snapshots domain.SnapshotCache
	sales     domain.SaleCache
	views     domain.ViewCache
	rights    domain.ClaimRightStore
	listings  domain.ListingStore
	transfers domain.TransferStore
	soldKeys  domain.SoldKeyStore
	receipts  domain.ReceiptStore
	bus       domain.SignalBus
	archiver  domain.LedgerArchiver
	locks     domain.LockManager
	alerter   Alerter
	cfg       Config
	logger    *slog.Logger

	alerted map[string]struct{}

	mu      sync.Mutex
	tracked map[pair]struct{}

	trigger chan string
}

// NewEngine creates an Engine. cfg fields left zero take defaults.
func NewEngine(
	contract domain.SaleContract,
	snapshots domain.SnapshotCache,
	sales domain.SaleCache,
	views domain.ViewCache,
	rights domain.ClaimRightStore,
	listings domain.ListingStore,
	transfers domain.TransferStore,
	soldKeys domain.SoldKeyStore,
	receipts domain.ReceiptStore,
	bus domain.SignalBus,
	cfg Config,
	logger *slog.Logger,
) *Engine {
	cfg.Defaults()
	return &Engine{
		contract:  contract,
		snapshots: snapshots,
		sales:     sales,
		views:     views,
		rights:    rights,
		listings:  listings,
		transfers: transfers,
		soldKeys:  soldKeys,
		receipts:  receipts,
		bus:       bus,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "reconcile")),
		tracked:   map[pair]struct{}{},
		alerted:   map[string]struct{}{},
		trigger:   make(chan string, 16),
	}
}

// SetArchiver makes the engine archive records to cold storage before
// pruning them. With no archiver set, pruned records are simply deleted.
func (e *Engine) SetArchiver(a domain.LedgerArchiver) {
	e.archiver = a
}

// SetPruneLock makes the engine take a distributed lock around the prune
// phase so concurrent instances never archive or delete the same records
// twice. View derivation stays unguarded; it is idempotent.
func (e *Engine) SetPruneLock(lm domain.LockManager) {
	e.locks = lm
}

// Alerter delivers operator alerts. *notify.Notifier satisfies it.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// SetAlerter makes the engine nag about incomplete winner-status
// transfers. Each obligation alerts once, on the first pass that sees it
// open.
func (e *Engine) SetAlerter(a Alerter) {
	e.alerter = a
}

// Track registers an (event, wallet) pair for reconciliation and requests
// an immediate pass, the equivalent of a wallet connecting.
func (e *Engine) Track(eventID uint64, wallet string) {
	e.mu.Lock()
	e.tracked[pair{eventID, domain.NormalizeAddress(wallet)}] = struct{}{}
	e.mu.Unlock()
	e.Trigger("track")
}

// Untrack stops reconciling the pair.
func (e *Engine) Untrack(eventID uint64, wallet string) {
	e.mu.Lock()
	delete(e.tracked, pair{eventID, domain.NormalizeAddress(wallet)})
	e.mu.Unlock()
}

// Trigger requests an immediate reconciliation pass. Used for wallet
// connects and focus events; a full trigger queue is fine since a pass is
// already coming.
func (e *Engine) Trigger(reason string) {
	select {
	case e.trigger <- reason:
	default:
	}
}

// Run executes reconciliation passes until the context is cancelled: every
// Interval, on every Trigger call, and on every lottery-completed broadcast.
func (e *Engine) Run(ctx context.Context) error {
	signals, err := e.bus.Subscribe(ctx, service.LotteryCompletedChannel)
	if err != nil {
		return fmt.Errorf("reconcile: subscribe: %w", err)
	}

	e.logger.Info("engine started",
		slog.Duration("interval", e.cfg.Interval),
		slog.Duration("transfer_ttl", e.cfg.TransferTTL),
	)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	// Run once at startup so tracked pairs never wait a full interval.
	e.runPass(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopped")
			return ctx.Err()
		case <-ticker.C:
			e.runPass(ctx, "interval")
		case reason := <-e.trigger:
			e.runPass(ctx, reason)
		case _, ok := <-signals:
			if !ok {
				return fmt.Errorf("reconcile: signal subscription closed")
			}
			e.runPass(ctx, "lottery-completed")
		}
	}
}

func (e *Engine) runPass(ctx context.Context, reason string) {
	start := time.Now()
	if err := e.Pass(ctx); err != nil {
		e.logger.Error("pass failed",
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		return
	}
	e.logger.Debug("pass complete",
		slog.String("reason", reason),
		slog.Duration("took", time.Since(start)),
	)
}

// Pass performs one full reconciliation: prune expired records, then for
// every tracked pair refresh chain state and rederive the view. Running a
// pass twice in a row produces the same state.
func (e *Engine) Pass(ctx context.Context) error {
	now := time.Now().UTC()

	if err := e.prune(ctx, now); err != nil {
		return err
	}

	e.mu.Lock()
	pairs := make([]pair, 0, len(e.tracked))
	for p := range e.tracked {
		pairs = append(pairs, p)
	}
	e.mu.Unlock()

	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.reconcilePair(ctx, p, now); err != nil {
			// One bad pair must not starve the rest.
			e.logger.Warn("pair reconcile failed",
				slog.Uint64("event_id", p.eventID),
				slog.String("wallet", p.wallet),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// prune drops records that can no longer do any good: invalid transfers,
// incomplete transfers past the TTL, fulfilled transfers, and sold listings
// (with their markers) past the retention window.
const pruneLockKey = "reconcile:prune"

func (e *Engine) prune(ctx context.Context, now time.Time) error {
	if e.locks != nil {
		unlock, err := e.locks.Acquire(ctx, pruneLockKey, e.cfg.Interval)
		if errors.Is(err, domain.ErrLockHeld) {
			// Another instance is pruning; this pass only rederives views.
			return nil
		}
		if err != nil {
			return fmt.Errorf("reconcile: prune lock: %w", err)
		}
		defer unlock()
	}

	if n, err := e.transfers.DeleteInvalid(ctx); err != nil {
		return fmt.Errorf("reconcile: prune invalid transfers: %w", err)
	} else if n > 0 {
		e.logger.Info("pruned invalid transfers", slog.Int64("count", n))
	}

	e.alertOpenObligations(ctx, now)

	staleCutoff := now.Add(-e.cfg.TransferTTL)
	if e.archiver != nil {
		stale, err := e.transfers.ListStale(ctx, staleCutoff)
		if err != nil {
			return fmt.Errorf("reconcile: list stale transfers: %w", err)
		}
		if _, err := e.archiver.ArchiveTransfers(ctx, stale); err != nil {
			return fmt.Errorf("reconcile: archive stale transfers: %w", err)
		}
	}
	if n, err := e.transfers.DeleteStale(ctx, staleCutoff); err != nil {
		return fmt.Errorf("reconcile: prune stale transfers: %w", err)
	} else if n > 0 {
		e.logger.Info("pruned stale transfers", slog.Int64("count", n))
	}

	if n, err := e.transfers.DeleteCompleted(ctx); err != nil {
		return fmt.Errorf("reconcile: prune completed transfers: %w", err)
	} else if n > 0 {
		e.logger.Debug("pruned completed transfers", slog.Int64("count", n))
	}

	cutoff := now.Add(-e.cfg.SoldKeyRetention)
	expired, err := e.listings.ListSoldBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("reconcile: list expired sold listings: %w", err)
	}
	var expiredRights []domain.ResaleListing
	for _, l := range expired {
		if l.IsClaimRight {
			expiredRights = append(expiredRights, l)
		}
	}
	if e.archiver != nil {
		if _, err := e.archiver.ArchiveSoldListings(ctx, expiredRights); err != nil {
			return fmt.Errorf("reconcile: archive sold listings: %w", err)
		}
	}
	for _, l := range expiredRights {
		if err := e.soldKeys.Delete(ctx, l.EventID, l.Seller); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("reconcile: prune sold key: %w", err)
		}
		if err := e.listings.Delete(ctx, l.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("reconcile: prune sold listing: %w", err)
		}
		e.logger.Info("pruned expired sale record",
			slog.Uint64("event_id", l.EventID),
			slog.String("seller", l.Seller),
		)
	}

	// Keys whose listing survived were handled above. A key past retention
	// at this point has no correlating listing and would otherwise live
	// forever; drop it the same pass.
	keys, err := e.soldKeys.List(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: list sold keys: %w", err)
	}
	for _, k := range keys {
		if k.CreatedAt.IsZero() || !k.CreatedAt.Before(cutoff) {
			continue
		}
		if err := e.soldKeys.Delete(ctx, k.EventID, k.Seller); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("reconcile: prune orphaned sold key: %w", err)
		}
		e.logger.Info("pruned orphaned sold key",
			slog.Uint64("event_id", k.EventID),
			slog.String("seller", k.Seller),
		)
	}
	return nil
}

// alertOpenObligations nags about sellers who owe an on-chain transfer.
// Each obligation alerts at most once; a failed delivery is logged, never
// allowed to block the pass.
func (e *Engine) alertOpenObligations(ctx context.Context, now time.Time) {
	if e.alerter == nil {
		return
	}
	// Every incomplete transfer is older than now.
	open, err := e.transfers.ListStale(ctx, now)
	if err != nil {
		e.logger.Warn("list open obligations failed", slog.String("error", err.Error()))
		return
	}
	current := make(map[string]struct{}, len(open))
	for _, t := range open {
		if !t.Valid() {
			continue
		}
		current[t.ID] = struct{}{}
		if _, seen := e.alerted[t.ID]; seen {
			continue
		}
		e.alerted[t.ID] = struct{}{}
		deadline := t.Timestamp.Add(e.cfg.TransferTTL).UTC()
		message := fmt.Sprintf(
			"Seller %s owes the winner-status transfer for event %d to buyer %s. The obligation lapses at %s.",
			t.Seller, t.EventID, t.Buyer, deadline.Format(time.RFC3339),
		)
		if err := e.alerter.Notify(ctx, notify.EventTransferStale, "Transfer incomplete", message); err != nil {
			e.logger.Warn("obligation alert failed",
				slog.String("transfer_id", t.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	// Completed or pruned obligations cannot recur; drop their entries.
	for id := range e.alerted {
		if _, ok := current[id]; !ok {
			delete(e.alerted, id)
		}
	}
}

// reconcilePair refreshes one (event, wallet) pair from the chain and
// rewrites its derived view.
func (e *Engine) reconcilePair(ctx context.Context, p pair, now time.Time) error {
	overview, err := e.contract.GetSaleOverview(ctx, p.eventID)
	if err != nil {
		return err
	}
	if err := e.sales.Put(ctx, overview); err != nil {
		return err
	}

	hasEntered, err := e.contract.HasEnteredSale(ctx, p.eventID, p.wallet)
	if err != nil {
		return err
	}
	isWinner, err := e.contract.IsSaleWinner(ctx, p.eventID, p.wallet)
	if err != nil {
		return err
	}

	if err := e.snapshots.Put(ctx, domain.ParticipantSnapshot{
		EventID:     p.eventID,
		Wallet:      p.wallet,
		HasEntered:  hasEntered,
		IsWinner:    isWinner,
		RefreshedAt: now,
	}); err != nil {
		return err
	}
	snap, err := e.snapshots.Get(ctx, p.eventID, p.wallet)
	if err != nil {
		return err
	}

	rights, err := e.rights.ListByOwner(ctx, p.wallet)
	if err != nil {
		return err
	}
	soldKey, err := e.soldKeys.Exists(ctx, p.eventID, p.wallet)
	if err != nil {
		return err
	}
	receiptExists, err := e.receipts.Exists(ctx, p.eventID, p.wallet)
	if err != nil {
		return err
	}

	var openTransfer *domain.PendingTransfer
	if t, err := e.transfers.FindOpen(ctx, p.eventID, p.wallet); err == nil {
		if t.Valid() && claim.TransferFresh(t, e.cfg.TransferTTL, now) {
			openTransfer = &t
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	view := claim.Derive(claim.Input{
		EventID:       p.eventID,
		Wallet:        p.wallet,
		Snapshot:      snap,
		Sale:          overview,
		Rights:        rights,
		SoldKey:       soldKey,
		ReceiptExists: receiptExists,
		OpenTransfer:  openTransfer,
		Now:           now,
	})

	changed := true
	if prev, err := e.views.Get(ctx, p.eventID, p.wallet); err == nil {
		changed = prev.State != view.State || prev.RefundEligible != view.RefundEligible
	}

	if err := e.views.Put(ctx, view); err != nil {
		return err
	}

	if changed {
		payload, err := json.Marshal(view)
		if err != nil {
			return fmt.Errorf("reconcile: marshal view: %w", err)
		}
		if err := e.bus.Publish(ctx, service.ViewChannel(p.eventID, p.wallet), payload); err != nil {
			// Readers still see the cached view; only the push is lost.
			e.logger.WarnContext(ctx, "view publish failed",
				slog.Uint64("event_id", p.eventID),
				slog.String("wallet", p.wallet),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}
