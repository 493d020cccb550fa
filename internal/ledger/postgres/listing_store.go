package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// ListingStore implements domain.ListingStore using PostgreSQL.
type ListingStore struct {
	pool *pgxpool.Pool
}

// NewListingStore creates a new ListingStore backed by the given pool.
func NewListingStore(pool *pgxpool.Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// Create inserts a listing. A second active claim-right listing for the same
// (event, seller) violates the partial unique index and is reported as
// domain.ErrDuplicateListing.
func (s *ListingStore) Create(ctx context.Context, l domain.ResaleListing) error {
	const query = `
		INSERT INTO resale_listings (
			id, event_id, token_id, event_name, seller,
			price, price_wei, created_at, is_claim_right, sold, sold_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, query,
		l.ID, l.EventID, l.TokenID, l.EventName,
		domain.NormalizeAddress(l.Seller),
		l.Price, l.PriceWei, l.Timestamp, l.IsClaimRight, l.Sold, l.SoldTimestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create listing event %d seller %s: %w",
				l.EventID, l.Seller, domain.ErrDuplicateListing)
		}
		return fmt.Errorf("postgres: create listing %s: %w", l.ID, err)
	}
	return nil
}

const listingSelectCols = `id, event_id, token_id, event_name, seller,
	price, price_wei, created_at, is_claim_right, sold, sold_at`

func scanListingFromRow(scanner interface{ Scan(dest ...any) error }) (domain.ResaleListing, error) {
	var l domain.ResaleListing
	err := scanner.Scan(
		&l.ID, &l.EventID, &l.TokenID, &l.EventName, &l.Seller,
		&l.Price, &l.PriceWei, &l.Timestamp, &l.IsClaimRight, &l.Sold, &l.SoldTimestamp,
	)
	return l, err
}

func scanListingRows(rows pgx.Rows) ([]domain.ResaleListing, error) {
	var listings []domain.ResaleListing
	for rows.Next() {
		l, err := scanListingFromRow(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// GetByID retrieves a single listing.
func (s *ListingStore) GetByID(ctx context.Context, id string) (domain.ResaleListing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+listingSelectCols+` FROM resale_listings WHERE id = $1`, id)

	l, err := scanListingFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ResaleListing{}, domain.ErrNotFound
		}
		return domain.ResaleListing{}, fmt.Errorf("postgres: get listing %s: %w", id, err)
	}
	return l, nil
}

// ActiveClaimRight returns the unsold claim-right listing for (event, seller).
func (s *ListingStore) ActiveClaimRight(ctx context.Context, eventID uint64, seller string) (domain.ResaleListing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+listingSelectCols+` FROM resale_listings
		 WHERE event_id = $1 AND seller = $2 AND is_claim_right AND NOT sold`,
		eventID, domain.NormalizeAddress(seller))

	l, err := scanListingFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ResaleListing{}, domain.ErrNotFound
		}
		return domain.ResaleListing{}, fmt.Errorf("postgres: active claim-right listing: %w", err)
	}
	return l, nil
}

// ListOpen returns unsold listings, newest first.
func (s *ListingStore) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.ResaleListing, error) {
	query := `SELECT ` + listingSelectCols + ` FROM resale_listings WHERE NOT sold ORDER BY created_at DESC`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open listings: %w", err)
	}
	defer rows.Close()

	listings, err := scanListingRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open listings: %w", err)
	}
	return listings, nil
}

// ListBySeller returns all of a seller's listings, sold included.
func (s *ListingStore) ListBySeller(ctx context.Context, seller string) ([]domain.ResaleListing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingSelectCols+` FROM resale_listings
		 WHERE seller = $1 ORDER BY created_at DESC`, domain.NormalizeAddress(seller))
	if err != nil {
		return nil, fmt.Errorf("postgres: list listings by seller: %w", err)
	}
	defer rows.Close()

	listings, err := scanListingRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan listings by seller: %w", err)
	}
	return listings, nil
}

// MarkSold flags a listing sold. The row is kept so the seller's sold state
// survives later marketplace edits.
func (s *ListingStore) MarkSold(ctx context.Context, id string, soldAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE resale_listings SET sold = TRUE, sold_at = $1 WHERE id = $2 AND NOT sold`,
		soldAt, id)
	if err != nil {
		return fmt.Errorf("postgres: mark listing %s sold: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a listing.
func (s *ListingStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM resale_listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete listing %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteAllUnsold clears the open marketplace. Sold rows stay.
func (s *ListingStore) DeleteAllUnsold(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM resale_listings WHERE NOT sold`)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete unsold listings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListSoldBefore returns sold listings whose sale happened before cutoff.
func (s *ListingStore) ListSoldBefore(ctx context.Context, cutoff time.Time) ([]domain.ResaleListing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingSelectCols+` FROM resale_listings
		 WHERE sold AND sold_at IS NOT NULL AND sold_at < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sold listings: %w", err)
	}
	defer rows.Close()

	listings, err := scanListingRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan sold listings: %w", err)
	}
	return listings, nil
}
