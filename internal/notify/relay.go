package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// Relay bridges the redis signal bus to the notifier: every
// lottery-completed broadcast becomes an operator alert.
type Relay struct {
	bus      domain.SignalBus
	notifier *Notifier
	channel  string
	logger   *slog.Logger
}

// NewRelay creates a Relay listening on the given bus channel.
func NewRelay(bus domain.SignalBus, notifier *Notifier, channel string, logger *slog.Logger) *Relay {
	return &Relay{
		bus:      bus,
		notifier: notifier,
		channel:  channel,
		logger:   logger.With(slog.String("component", "notify_relay")),
	}
}

// Run consumes signals until the context is cancelled. Malformed payloads
// and sender failures are logged and skipped.
func (r *Relay) Run(ctx context.Context) error {
	signals, err := r.bus.Subscribe(ctx, r.channel)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", r.channel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-signals:
			if !ok {
				return fmt.Errorf("notify: signal subscription closed")
			}
			r.handle(ctx, payload)
		}
	}
}

func (r *Relay) handle(ctx context.Context, payload []byte) {
	var signal struct {
		EventID uint64 `json:"eventId"`
	}
	if err := json.Unmarshal(payload, &signal); err != nil {
		r.logger.WarnContext(ctx, "malformed signal payload",
			slog.String("channel", r.channel),
			slog.String("error", err.Error()),
		)
		return
	}

	title := "Lottery completed"
	message := fmt.Sprintf(
		"Lottery for event %d has run. Winners can now claim or resell; losers can withdraw their stake.",
		signal.EventID,
	)
	if err := r.notifier.Notify(ctx, EventLotteryCompleted, title, message); err != nil {
		r.logger.WarnContext(ctx, "alert delivery incomplete",
			slog.Uint64("event_id", signal.EventID),
			slog.String("error", err.Error()),
		)
	}
}
