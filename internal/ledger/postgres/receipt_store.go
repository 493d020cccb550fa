package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// ReceiptStore implements domain.ReceiptStore using PostgreSQL.
type ReceiptStore struct {
	pool *pgxpool.Pool
}

// NewReceiptStore creates a new ReceiptStore backed by the given pool.
func NewReceiptStore(pool *pgxpool.Pool) *ReceiptStore {
	return &ReceiptStore{pool: pool}
}

// Add records a mint receipt. A second receipt for the same (event, wallet)
// is rejected with domain.ErrAlreadyExists.
func (s *ReceiptStore) Add(ctx context.Context, r domain.ClaimReceipt) error {
	const query = `
		INSERT INTO claim_receipts (event_id, wallet, token_id, tx_hash, claimed_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		r.EventID, domain.NormalizeAddress(r.Wallet), r.TokenID, r.TxHash, r.ClaimedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: add receipt event %d wallet %s: %w",
				r.EventID, r.Wallet, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: add receipt event %d: %w", r.EventID, err)
	}
	return nil
}

// Exists reports whether a mint receipt is recorded for (event, wallet).
func (s *ReceiptStore) Exists(ctx context.Context, eventID uint64, wallet string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM claim_receipts WHERE event_id = $1 AND wallet = $2)`,
		eventID, domain.NormalizeAddress(wallet)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: receipt exists: %w", err)
	}
	return exists, nil
}

// ListByWallet returns the wallet's receipts, newest first.
func (s *ReceiptStore) ListByWallet(ctx context.Context, wallet string) ([]domain.ClaimReceipt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT event_id, wallet, token_id, tx_hash, claimed_at
		 FROM claim_receipts WHERE wallet = $1
		 ORDER BY claimed_at DESC`, domain.NormalizeAddress(wallet))
	if err != nil {
		return nil, fmt.Errorf("postgres: list receipts: %w", err)
	}
	defer rows.Close()

	var receipts []domain.ClaimReceipt
	for rows.Next() {
		var r domain.ClaimReceipt
		if err := rows.Scan(&r.EventID, &r.Wallet, &r.TokenID, &r.TxHash, &r.ClaimedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan receipt: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan receipts: %w", err)
	}
	return receipts, nil
}
