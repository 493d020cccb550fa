package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// ClaimRightStore implements domain.ClaimRightStore using PostgreSQL.
type ClaimRightStore struct {
	pool *pgxpool.Pool
}

// NewClaimRightStore creates a new ClaimRightStore backed by the given pool.
func NewClaimRightStore(pool *pgxpool.Pool) *ClaimRightStore {
	return &ClaimRightStore{pool: pool}
}

// Add appends a claim-right record. Duplicates for the same (event, owner)
// are allowed; readers resolve them newest-first.
func (s *ClaimRightStore) Add(ctx context.Context, r domain.ClaimRight) error {
	const query = `
		INSERT INTO claim_rights (event_id, new_owner, original_winner, purchase_price, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		r.EventID,
		domain.NormalizeAddress(r.NewOwner),
		domain.NormalizeAddress(r.OriginalWinner),
		r.PurchasePrice,
		r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: add claim right event %d: %w", r.EventID, err)
	}
	return nil
}

const claimRightSelectCols = `event_id, new_owner, original_winner, purchase_price, created_at`

func scanClaimRightRows(rows pgx.Rows) ([]domain.ClaimRight, error) {
	var rights []domain.ClaimRight
	for rows.Next() {
		var r domain.ClaimRight
		if err := rows.Scan(&r.EventID, &r.NewOwner, &r.OriginalWinner, &r.PurchasePrice, &r.Timestamp); err != nil {
			return nil, err
		}
		rights = append(rights, r)
	}
	return rights, rows.Err()
}

// ListByOwner returns all claim-right records held by a wallet, newest first.
func (s *ClaimRightStore) ListByOwner(ctx context.Context, owner string) ([]domain.ClaimRight, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+claimRightSelectCols+` FROM claim_rights
		 WHERE new_owner = $1
		 ORDER BY created_at DESC`, domain.NormalizeAddress(owner))
	if err != nil {
		return nil, fmt.Errorf("postgres: list claim rights by owner: %w", err)
	}
	defer rows.Close()

	rights, err := scanClaimRightRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan claim rights: %w", err)
	}
	return rights, nil
}

// ListByEvent returns all claim-right records for an event, newest first.
func (s *ClaimRightStore) ListByEvent(ctx context.Context, eventID uint64) ([]domain.ClaimRight, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+claimRightSelectCols+` FROM claim_rights
		 WHERE event_id = $1
		 ORDER BY created_at DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list claim rights by event: %w", err)
	}
	defer rows.Close()

	rights, err := scanClaimRightRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan claim rights: %w", err)
	}
	return rights, nil
}
