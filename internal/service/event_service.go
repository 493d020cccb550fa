package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// Catalog is the remote event catalog API.
type Catalog interface {
	ListEvents(ctx context.Context) ([]domain.EventMeta, error)
	GetEvent(ctx context.Context, eventID uint64) (domain.EventMeta, error)
	CreateEvent(ctx context.Context, meta domain.EventMeta) (domain.EventMeta, error)
	DeleteEvent(ctx context.Context, eventID uint64) error
}

// EventService merges the remote catalog with the locally created events
// mirror. The catalog stays authoritative for events it knows; local-only
// events fill the gaps so an unreachable catalog degrades to the mirror
// instead of failing.
type EventService struct {
	catalog Catalog
	events  domain.EventStore
	logger  *slog.Logger
}

// NewEventService creates an EventService.
func NewEventService(catalog Catalog, events domain.EventStore, logger *slog.Logger) *EventService {
	return &EventService{
		catalog: catalog,
		events:  events,
		logger:  logger,
	}
}

// List returns catalog events merged with locally created ones, ordered by
// event id. Pagination is applied after the merge.
func (s *EventService) List(ctx context.Context, opts domain.ListOpts) ([]domain.EventMeta, error) {
	local, err := s.events.List(ctx, domain.ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("event_service: list local events: %w", err)
	}

	merged := make(map[uint64]domain.EventMeta, len(local))
	for _, meta := range local {
		merged[meta.EventID] = meta
	}

	remote, err := s.catalog.ListEvents(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "event_service: catalog unreachable, serving local mirror",
			slog.String("error", err.Error()),
		)
	}
	for _, meta := range remote {
		merged[meta.EventID] = meta
	}

	out := make([]domain.EventMeta, 0, len(merged))
	for _, meta := range merged {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []domain.EventMeta{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

// GetByID returns one event, local mirror first, falling back to the
// catalog. A catalog hit is written back to the mirror.
func (s *EventService) GetByID(ctx context.Context, eventID uint64) (domain.EventMeta, error) {
	meta, err := s.events.GetByID(ctx, eventID)
	if err == nil {
		return meta, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.EventMeta{}, fmt.Errorf("event_service: get event %d: %w", eventID, err)
	}

	meta, err = s.catalog.GetEvent(ctx, eventID)
	if err != nil {
		return domain.EventMeta{}, fmt.Errorf("event_service: event %d: %w", eventID, domain.ErrNotFound)
	}

	if putErr := s.events.Upsert(ctx, meta); putErr != nil {
		s.logger.WarnContext(ctx, "event_service: mirror upsert failed",
			slog.Uint64("event_id", eventID),
			slog.String("error", putErr.Error()),
		)
	}
	return meta, nil
}

// Create persists a new event locally and registers it with the catalog.
// The local write happens first so a catalog outage never loses the event;
// the catalog POST is idempotent and safe to retry.
func (s *EventService) Create(ctx context.Context, meta domain.EventMeta) (domain.EventMeta, error) {
	if meta.EventID == 0 {
		return domain.EventMeta{}, fmt.Errorf("event_service: create: %w: event id required", domain.ErrInvalidInput)
	}
	if meta.Name == "" {
		return domain.EventMeta{}, fmt.Errorf("event_service: create: %w: name required", domain.ErrInvalidInput)
	}

	if err := s.events.Upsert(ctx, meta); err != nil {
		return domain.EventMeta{}, fmt.Errorf("event_service: create event %d: %w", meta.EventID, err)
	}

	created, err := s.catalog.CreateEvent(ctx, meta)
	if err != nil {
		s.logger.WarnContext(ctx, "event_service: catalog create failed, event kept locally",
			slog.Uint64("event_id", meta.EventID),
			slog.String("error", err.Error()),
		)
		return meta, nil
	}
	return created, nil
}

// Delete removes the event from the catalog and the local mirror. The
// mirror entry goes too; otherwise List would resurrect the event on the
// next merge.
func (s *EventService) Delete(ctx context.Context, eventID uint64) error {
	if err := s.catalog.DeleteEvent(ctx, eventID); err != nil {
		return fmt.Errorf("event_service: delete event %d: %w", eventID, err)
	}
	if err := s.events.Delete(ctx, eventID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("event_service: delete mirror %d: %w", eventID, err)
	}
	return nil
}
