// Package pipeline turns raw emails into enrichment results. A result is
// cached per message id; a cache hit returns it verbatim and triggers no
// calendar writes or notifications.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"mailpilot/internal/cache"
	"mailpilot/internal/calendar"
	"mailpilot/internal/inference"
	"mailpilot/internal/meeting"
	"mailpilot/internal/model"
	"mailpilot/internal/notify"
	"mailpilot/pkg/logger"
	"mailpilot/pkg/metrics"
	"mailpilot/pkg/otel"
)

var (
	ErrMissingMessageID = errors.New("email has no message id")
	ErrEmptyBody        = errors.New("email has no body")
)

// Substitutes used when an inference call fails.
const (
	FallbackSummary            = "unable to generate summary"
	FallbackSummaryOnly        = "Unable to generate summary"
	FallbackClassificationNote = "Error in Analysis"
)

// Options are per-call switches.
type Options struct {
	Notify bool
	// CalendarToken is the caller's OAuth access token; empty disables event creation.
	CalendarToken string
}

// Config holds process-wide settings.
type Config struct {
	ResultTTL       time.Duration
	SummaryTTL      time.Duration
	CalendarEnabled bool
	CalendarTimeout time.Duration
	NotifyEnabled   bool
	Location        *time.Location
}

// Enricher runs the enrichment pipeline.
type Enricher struct {
	cache      cache.Store
	llm        inference.Client
	calendars  calendar.Factory
	dispatcher Dispatcher
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time

	inflight singleflight.Group
}

// New builds an Enricher. calendars may be nil when calendar support is off.
func New(store cache.Store, llm inference.Client, calendars calendar.Factory, dispatcher Dispatcher, cfg Config, logger *zap.Logger) *Enricher {
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = time.Hour
	}
	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = time.Hour
	}
	if cfg.CalendarTimeout <= 0 {
		cfg.CalendarTimeout = 15 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Enricher{
		cache:      store,
		llm:        llm,
		calendars:  calendars,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

func validate(email model.RawEmail) error {
	if strings.TrimSpace(email.MessageID) == "" {
		return ErrMissingMessageID
	}
	if strings.TrimSpace(email.Body) == "" {
		return ErrEmptyBody
	}
	return nil
}

// Enrich returns the enrichment result for email, computing it on a cache
// miss. Concurrent calls for the same uncached message share one computation,
// and that computation runs with the Options of the caller that started it:
// a caller joining a flight started with Notify false gets no notification,
// and the cached result then suppresses it until the entry expires, exactly
// as a cache hit would. Each caller receives its own deep copy of the result.
func (e *Enricher) Enrich(ctx context.Context, email model.RawEmail, opts Options) (*model.EnrichmentResult, error) {
	if err := validate(email); err != nil {
		return nil, err
	}

	key := cache.Key(email.MessageID, cache.OpFullAnalysis)

	var cached model.EnrichmentResult
	if e.cache.Get(ctx, key, &cached) {
		metrics.IncrementEnrichment("cache_hit")
		return &cached, nil
	}

	// the computation is shared by every waiter, so one caller going away must not cancel it
	shared := context.WithoutCancel(ctx)
	v, err, _ := e.inflight.Do(key, func() (any, error) {
		return e.compute(shared, key, email, opts)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.EnrichmentResult).Clone(), nil
}

func (e *Enricher) compute(ctx context.Context, key string, email model.RawEmail, opts Options) (*model.EnrichmentResult, error) {
	// a flight that finished just before this one started has already stored the result
	var cached model.EnrichmentResult
	if e.cache.Get(ctx, key, &cached) {
		metrics.IncrementEnrichment("cache_hit")
		return &cached, nil
	}

	ctx, span := otel.StartSpan(ctx, "pipeline.enrich")
	defer span.End()
	span.SetAttributes(attribute.String("email.message_id", email.MessageID))

	log := logger.WithTrace(ctx, e.logger).With(zap.String("message_id", email.MessageID))
	log.Info("enriching email", zap.String("subject", email.Subject))

	res := &model.EnrichmentResult{
		MessageID: email.MessageID,
		Processed: true,
	}

	summary, err := e.llm.Summarize(ctx, email.Subject, email.Body)
	if err != nil {
		log.Warn("summary failed, using fallback", zap.Error(err))
		summary = FallbackSummary
	}
	res.Summary = summary

	cls, err := e.llm.Classify(ctx, email.Subject, email.Body)
	if err != nil {
		log.Warn("classification failed, using fallback", zap.Error(err))
		cls = model.Classification{
			Intent:    model.IntentInformation,
			Priority:  model.PriorityMedium,
			Reasoning: FallbackClassificationNote,
		}
	}
	res.Intent, res.Priority, res.Reasoning = cls.Intent, cls.Priority, cls.Reasoning

	entities, err := e.llm.ExtractEntities(ctx, email.Body)
	if err != nil {
		log.Warn("entity extraction failed, using empty entities", zap.Error(err))
		entities = model.EmptyEntities()
	}
	res.Entities = entities.Normalize()

	replies, err := e.llm.SuggestReplies(ctx, email.Subject, email.Body)
	if err != nil {
		log.Warn("reply suggestions failed, using none", zap.Error(err))
		replies = nil
	}
	if replies == nil {
		replies = []model.ReplySuggestion{}
	}
	res.ReplySuggestions = replies

	notifying := opts.Notify && e.cfg.NotifyEnabled
	var pending []Notification

	if res.Intent == model.IntentMeeting {
		res.MeetingInfo = meeting.Extract(email.Body, res.Entities)
		if res.MeetingInfo != nil {
			res.CalendarEvent = e.createEvent(ctx, log, email, res.MeetingInfo, opts)
			if res.CalendarEvent != nil && notifying {
				pending = append(pending, NewNotification(email.MessageID, model.NotificationMeetingDetected,
					notify.MeetingDetectedMessage(email, res.MeetingInfo)))
			}
		}
	}

	if notifying {
		pending = append(pending, NewNotification(email.MessageID, model.NotificationNewEmail,
			notify.NewEmailMessage(email, res)))
	}

	if !e.cache.Set(ctx, key, res, e.cfg.ResultTTL) {
		log.Warn("enrichment result not cached")
	}

	if len(pending) > 0 && e.dispatcher != nil {
		if err := e.dispatcher.Dispatch(ctx, pending); err != nil {
			log.Error("dispatching notifications failed", zap.Int("count", len(pending)), zap.Error(err))
		}
	}

	metrics.IncrementEnrichment("computed")
	log.Info("email enriched",
		zap.String("intent", string(res.Intent)),
		zap.String("priority", string(res.Priority)),
		zap.Bool("meeting", res.MeetingInfo != nil),
		zap.Bool("calendar_event", res.CalendarEvent != nil),
		zap.Int("notifications", len(pending)),
	)
	return res, nil
}

// createEvent returns nil on any calendar failure.
func (e *Enricher) createEvent(ctx context.Context, log *zap.Logger, email model.RawEmail, info *model.MeetingInfo, opts Options) *model.CalendarEvent {
	if !e.cfg.CalendarEnabled || opts.CalendarToken == "" || e.calendars == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.CalendarTimeout)
	defer cancel()

	gw, err := e.calendars(ctx, opts.CalendarToken)
	if err != nil {
		metrics.IncrementSideEffect("calendar", "unavailable")
		log.Warn("calendar unavailable", zap.Error(err))
		return nil
	}

	ev, err := calendar.CreateFromEmail(ctx, gw, email, info, e.now(), e.cfg.Location, log)
	if err != nil {
		metrics.IncrementSideEffect("calendar", "error")
		log.Warn("calendar event creation failed", zap.Error(err))
		return nil
	}
	if ev == nil {
		metrics.IncrementSideEffect("calendar", "skipped")
		return nil
	}
	metrics.IncrementSideEffect("calendar", "created")
	return ev
}

// SummaryOnly returns just a summary, cached under its own key. Failed
// summaries are not cached.
func (e *Enricher) SummaryOnly(ctx context.Context, email model.RawEmail) (string, error) {
	if err := validate(email); err != nil {
		return "", err
	}

	key := cache.Key(email.MessageID, cache.OpSummary)
	var summary string
	if e.cache.Get(ctx, key, &summary) {
		return summary, nil
	}

	summary, err := e.llm.Summarize(ctx, email.Subject, email.Body)
	if err != nil {
		logger.WithTrace(ctx, e.logger).Warn("summary failed",
			zap.String("message_id", email.MessageID),
			zap.Error(err),
		)
		return FallbackSummaryOnly, nil
	}
	e.cache.Set(ctx, key, summary, e.cfg.SummaryTTL)
	return summary, nil
}
