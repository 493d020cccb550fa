package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// SoldKeyStore implements domain.SoldKeyStore using PostgreSQL.
type SoldKeyStore struct {
	pool *pgxpool.Pool
}

// NewSoldKeyStore creates a new SoldKeyStore backed by the given pool.
func NewSoldKeyStore(pool *pgxpool.Pool) *SoldKeyStore {
	return &SoldKeyStore{pool: pool}
}

// Add records a sold-claim-right marker. Adding an existing key is a no-op.
func (s *SoldKeyStore) Add(ctx context.Context, k domain.SoldClaimRightKey) error {
	const query = `
		INSERT INTO sold_claim_right_keys (event_id, seller, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id, seller) DO NOTHING`

	_, err := s.pool.Exec(ctx, query, k.EventID, domain.NormalizeAddress(k.Seller), k.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: add sold key %s: %w", k.Key(), err)
	}
	return nil
}

// Exists reports whether the marker is present.
func (s *SoldKeyStore) Exists(ctx context.Context, eventID uint64, seller string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM sold_claim_right_keys WHERE event_id = $1 AND seller = $2)`,
		eventID, domain.NormalizeAddress(seller)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: sold key exists: %w", err)
	}
	return exists, nil
}

func scanSoldKeyRows(rows pgx.Rows) ([]domain.SoldClaimRightKey, error) {
	var keys []domain.SoldClaimRightKey
	for rows.Next() {
		var k domain.SoldClaimRightKey
		if err := rows.Scan(&k.EventID, &k.Seller, &k.CreatedAt); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// List returns every sold-claim-right marker.
func (s *SoldKeyStore) List(ctx context.Context) ([]domain.SoldClaimRightKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT event_id, seller, created_at FROM sold_claim_right_keys`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sold keys: %w", err)
	}
	defer rows.Close()

	keys, err := scanSoldKeyRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan sold keys: %w", err)
	}
	return keys, nil
}

// ListBySeller returns the seller's markers across events.
func (s *SoldKeyStore) ListBySeller(ctx context.Context, seller string) ([]domain.SoldClaimRightKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT event_id, seller, created_at FROM sold_claim_right_keys WHERE seller = $1`,
		domain.NormalizeAddress(seller))
	if err != nil {
		return nil, fmt.Errorf("postgres: list sold keys by seller: %w", err)
	}
	defer rows.Close()

	keys, err := scanSoldKeyRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan sold keys by seller: %w", err)
	}
	return keys, nil
}

// Delete removes a marker, used only when pruning orphans.
func (s *SoldKeyStore) Delete(ctx context.Context, eventID uint64, seller string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sold_claim_right_keys WHERE event_id = $1 AND seller = $2`,
		eventID, domain.NormalizeAddress(seller))
	if err != nil {
		return fmt.Errorf("postgres: delete sold key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
