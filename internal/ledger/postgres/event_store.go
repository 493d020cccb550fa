package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Upsert inserts or updates event metadata.
func (s *EventStore) Upsert(ctx context.Context, m domain.EventMeta) error {
	const query = `
		INSERT INTO events (event_id, name, date, venue, description, image_url, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (event_id) DO UPDATE SET
			name = EXCLUDED.name,
			date = EXCLUDED.date,
			venue = EXCLUDED.venue,
			description = EXCLUDED.description,
			image_url = EXCLUDED.image_url,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		m.EventID, m.Name, m.Date, m.Venue, m.Description, m.ImageURL)
	if err != nil {
		return fmt.Errorf("postgres: upsert event %d: %w", m.EventID, err)
	}
	return nil
}

const eventSelectCols = `event_id, name, date, venue, description, image_url`

// GetByID retrieves event metadata.
func (s *EventStore) GetByID(ctx context.Context, eventID uint64) (domain.EventMeta, error) {
	var m domain.EventMeta
	err := s.pool.QueryRow(ctx,
		`SELECT `+eventSelectCols+` FROM events WHERE event_id = $1`, eventID).
		Scan(&m.EventID, &m.Name, &m.Date, &m.Venue, &m.Description, &m.ImageURL)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.EventMeta{}, domain.ErrNotFound
		}
		return domain.EventMeta{}, fmt.Errorf("postgres: get event %d: %w", eventID, err)
	}
	return m, nil
}

// List returns events ordered by id with pagination.
func (s *EventStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.EventMeta, error) {
	query := `SELECT ` + eventSelectCols + ` FROM events ORDER BY event_id`
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
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	var events []domain.EventMeta
	for rows.Next() {
		var m domain.EventMeta
		if err := rows.Scan(&m.EventID, &m.Name, &m.Date, &m.Venue, &m.Description, &m.ImageURL); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		events = append(events, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan events: %w", err)
	}
	return events, nil
}

// Delete removes event metadata.
func (s *EventStore) Delete(ctx context.Context, eventID uint64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE event_id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("postgres: delete event %d: %w", eventID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
