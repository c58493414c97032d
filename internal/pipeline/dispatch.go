package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	mqcontracts "mailpilot/contracts/mq"
	"mailpilot/internal/model"
	"mailpilot/internal/notify"
	"mailpilot/pkg/logger"
	"mailpilot/pkg/metrics"
	"mailpilot/pkg/outbox"
	"mailpilot/pkg/trace"
)

// Dispatch modes.
const (
	DispatchInline = "inline"
	DispatchQueued = "queued"
)

// Notification is a side effect produced by Enrich, executed after the
// result has been cached.
type Notification struct {
	ID        string
	MessageID string
	Kind      model.NotificationKind
	Text      string
	Format    string
}

// NewNotification builds an HTML notification with a deterministic ID.
func NewNotification(messageID string, kind model.NotificationKind, text string) Notification {
	return Notification{
		ID:        mqcontracts.NotificationID(messageID, string(kind)),
		MessageID: messageID,
		Kind:      kind,
		Text:      text,
		Format:    model.FormatHTML,
	}
}

// Dispatcher executes pending notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, pending []Notification) error
}

// InlineDispatcher sends through the notifier immediately. Failures are
// logged and never returned.
type InlineDispatcher struct {
	notifier notify.Notifier
	logger   *zap.Logger
}

func NewInlineDispatcher(n notify.Notifier, logger *zap.Logger) *InlineDispatcher {
	return &InlineDispatcher{notifier: n, logger: logger}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, pending []Notification) error {
	log := logger.WithTrace(ctx, d.logger)
	for _, n := range pending {
		err := d.notifier.Send(ctx, n.Text, n.Format)
		switch {
		case err == nil:
			log.Info("notification sent", zap.String("id", n.ID))
		case errors.Is(err, notify.ErrDisabled):
			log.Debug("notification dropped, gateway disabled", zap.String("id", n.ID))
		default:
			log.Warn("notification failed", zap.String("id", n.ID), zap.Error(err))
		}
	}
	return nil
}

// EventWriter persists outbox events.
type EventWriter interface {
	InsertEvents(ctx context.Context, events []*outbox.Event) (int, error)
}

// OutboxDispatcher writes notifications to the outbox in one transaction.
// Intent ids are deterministic, so a repeated dispatch inserts nothing new.
type OutboxDispatcher struct {
	writer EventWriter
	logger *zap.Logger
	now    func() time.Time
}

func NewOutboxDispatcher(w EventWriter, logger *zap.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{writer: w, logger: logger, now: time.Now}
}

func (d *OutboxDispatcher) Dispatch(ctx context.Context, pending []Notification) error {
	traceID := trace.FromContext(ctx)
	events := make([]*outbox.Event, 0, len(pending))
	for _, n := range pending {
		ev, err := outbox.NewEvent(mqcontracts.AggregateNotification, n.ID, mqcontracts.RoutingKeyNotificationRequested,
			mqcontracts.NotificationRequestedPayload{
				ID:          n.ID,
				MessageID:   n.MessageID,
				Kind:        string(n.Kind),
				Text:        n.Text,
				Format:      n.Format,
				TraceID:     traceID,
				RequestedAt: d.now().UTC(),
			})
		if err != nil {
			return err
		}
		events = append(events, ev)
	}

	inserted, err := d.writer.InsertEvents(ctx, events)
	if err != nil {
		metrics.IncrementSideEffect("notification", "enqueue_failed")
		return fmt.Errorf("enqueue notifications: %w", err)
	}
	metrics.IncrementSideEffect("notification", "queued")
	logger.WithTrace(ctx, d.logger).Info("notifications queued",
		zap.Int("requested", len(pending)),
		zap.Int("inserted", inserted),
	)
	return nil
}
