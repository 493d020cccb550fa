package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// TransferStore implements domain.TransferStore using PostgreSQL.
type TransferStore struct {
	pool *pgxpool.Pool
}

// NewTransferStore creates a new TransferStore backed by the given pool.
func NewTransferStore(pool *pgxpool.Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

// Create inserts a pending transfer.
func (s *TransferStore) Create(ctx context.Context, t domain.PendingTransfer) error {
	const query = `
		INSERT INTO pending_transfers (
			id, event_id, seller, buyer, price, created_at,
			completed, completed_at, buyer_address
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.EventID,
		domain.NormalizeAddress(t.Seller),
		domain.NormalizeAddress(t.Buyer),
		t.Price, t.Timestamp, t.Completed, t.CompletedAt, t.BuyerAddress,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create transfer %s: %w", t.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create transfer %s: %w", t.ID, err)
	}
	return nil
}

const transferSelectCols = `id, event_id, seller, buyer, price, created_at,
	completed, completed_at, buyer_address`

func scanTransferFromRow(scanner interface{ Scan(dest ...any) error }) (domain.PendingTransfer, error) {
	var t domain.PendingTransfer
	err := scanner.Scan(
		&t.ID, &t.EventID, &t.Seller, &t.Buyer, &t.Price, &t.Timestamp,
		&t.Completed, &t.CompletedAt, &t.BuyerAddress,
	)
	return t, err
}

func scanTransferRows(rows pgx.Rows) ([]domain.PendingTransfer, error) {
	var transfers []domain.PendingTransfer
	for rows.Next() {
		t, err := scanTransferFromRow(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// GetByID retrieves a single transfer.
func (s *TransferStore) GetByID(ctx context.Context, id string) (domain.PendingTransfer, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+transferSelectCols+` FROM pending_transfers WHERE id = $1`, id)

	t, err := scanTransferFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.PendingTransfer{}, domain.ErrNotFound
		}
		return domain.PendingTransfer{}, fmt.Errorf("postgres: get transfer %s: %w", id, err)
	}
	return t, nil
}

// Complete marks a transfer done exactly once. Completing a transfer that is
// already completed returns domain.ErrAlreadyExists; a missing transfer
// returns domain.ErrNotFound.
func (s *TransferStore) Complete(ctx context.Context, id string, buyerAddress string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pending_transfers
		 SET completed = TRUE, completed_at = $1, buyer_address = $2
		 WHERE id = $3 AND NOT completed`,
		at, domain.NormalizeAddress(buyerAddress), id)
	if err != nil {
		return fmt.Errorf("postgres: complete transfer %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var completed bool
		err := s.pool.QueryRow(ctx,
			`SELECT completed FROM pending_transfers WHERE id = $1`, id).Scan(&completed)
		if err == pgx.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: complete transfer %s: %w", id, err)
		}
		return domain.ErrAlreadyExists
	}
	return nil
}

// FindOpen returns the incomplete transfer for (event, seller), if any.
func (s *TransferStore) FindOpen(ctx context.Context, eventID uint64, seller string) (domain.PendingTransfer, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+transferSelectCols+` FROM pending_transfers
		 WHERE event_id = $1 AND seller = $2 AND NOT completed
		 ORDER BY created_at DESC LIMIT 1`,
		eventID, domain.NormalizeAddress(seller))

	t, err := scanTransferFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.PendingTransfer{}, domain.ErrNotFound
		}
		return domain.PendingTransfer{}, fmt.Errorf("postgres: find open transfer: %w", err)
	}
	return t, nil
}

// ListIncompleteBySeller returns a seller's outstanding transfers, oldest
// first so the longest-waiting buyer surfaces first.
func (s *TransferStore) ListIncompleteBySeller(ctx context.Context, seller string) ([]domain.PendingTransfer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+transferSelectCols+` FROM pending_transfers
		 WHERE seller = $1 AND NOT completed
		 ORDER BY created_at ASC`, domain.NormalizeAddress(seller))
	if err != nil {
		return nil, fmt.Errorf("postgres: list incomplete transfers: %w", err)
	}
	defer rows.Close()

	transfers, err := scanTransferRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan incomplete transfers: %w", err)
	}
	return transfers, nil
}

// ListStale returns incomplete transfers created before olderThan, i.e. the
// rows a subsequent DeleteStale with the same cutoff would remove.
func (s *TransferStore) ListStale(ctx context.Context, olderThan time.Time) ([]domain.PendingTransfer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+transferSelectCols+` FROM pending_transfers
		 WHERE NOT completed AND created_at < $1
		 ORDER BY created_at ASC`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("postgres: list stale transfers: %w", err)
	}
	defer rows.Close()

	transfers, err := scanTransferRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan stale transfers: %w", err)
	}
	return transfers, nil
}

// DeleteStale removes incomplete transfers created before olderThan.
func (s *TransferStore) DeleteStale(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM pending_transfers WHERE NOT completed AND created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete stale transfers: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteCompleted removes transfers that have been fulfilled.
func (s *TransferStore) DeleteCompleted(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pending_transfers WHERE completed`)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete completed transfers: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteInvalid removes rows missing the fields a transfer needs to ever
// complete.
func (s *TransferStore) DeleteInvalid(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM pending_transfers WHERE event_id = 0 OR seller = '' OR buyer = ''`)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete invalid transfers: %w", err)
	}
	return tag.RowsAffected(), nil
}
