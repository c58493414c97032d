// Package mailsync fetches new mail for a user, enriches it, and stores it.
package mailsync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mailpilot/internal/mailsource"
	"mailpilot/internal/model"
	"mailpilot/internal/pipeline"
	"mailpilot/pkg/logger"
	"mailpilot/pkg/metrics"
)

// EmailStore is the persistence the sync needs.
type EmailStore interface {
	ExistingMessageIDs(ctx context.Context, ids []string) (map[string]bool, error)
	Save(ctx context.Context, userID *int64, email model.RawEmail, res *model.EnrichmentResult) (*model.StoredEmail, bool, error)
}

// Enricher processes a batch of emails.
type Enricher interface {
	ProcessAll(ctx context.Context, emails []model.RawEmail, opts pipeline.Options, concurrency int) []pipeline.BatchItem
}

// Report summarizes one sync run.
type Report struct {
	Fetched int                  `json:"fetched"`
	Skipped int                  `json:"skipped"`
	Saved   int                  `json:"saved"`
	Failed  int                  `json:"failed"`
	Items   []pipeline.BatchItem `json:"items"`
}

type Service struct {
	sources     mailsource.Factory
	enricher    Enricher
	emails      EmailStore
	concurrency int
	notify      bool
	logger      *zap.Logger
}

// NewService builds a sync service. notify controls whether newly
// enriched mail produces notifications.
func NewService(sources mailsource.Factory, enricher Enricher, emails EmailStore, concurrency int, notify bool, logger *zap.Logger) *Service {
	return &Service{
		sources:     sources,
		enricher:    enricher,
		emails:      emails,
		concurrency: concurrency,
		notify:      notify,
		logger:      logger,
	}
}

// Sync fetches up to max messages for id. Messages already stored are
// skipped before any inference runs.
func (s *Service) Sync(ctx context.Context, id model.Identity, max int) (*Report, error) {
	log := logger.WithTrace(ctx, s.logger).With(zap.Int64("user_id", id.UserID))

	src, err := s.sources(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mail source: %w", err)
	}
	fetched, err := src.Fetch(ctx, max)
	if err != nil {
		return nil, fmt.Errorf("fetch mail: %w", err)
	}

	ids := make([]string, 0, len(fetched))
	for _, e := range fetched {
		ids = append(ids, e.MessageID)
	}
	existing, err := s.emails.ExistingMessageIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("check stored mail: %w", err)
	}

	fresh := make([]model.RawEmail, 0, len(fetched))
	for _, e := range fetched {
		if !existing[e.MessageID] {
			fresh = append(fresh, e)
		}
	}

	report := &Report{Fetched: len(fetched), Skipped: len(fetched) - len(fresh)}
	report.Items = s.enricher.ProcessAll(ctx, fresh, pipeline.Options{
		Notify:        s.notify,
		CalendarToken: id.AccessToken,
	}, s.concurrency)

	userID := id.UserID
	for i, item := range report.Items {
		if !item.Processed {
			report.Failed++
			continue
		}
		if _, _, err := s.emails.Save(ctx, &userID, fresh[i], item.Result); err != nil {
			log.Error("saving enriched email failed", zap.String("message_id", item.MessageID), zap.Error(err))
			report.Items[i].Error = err.Error()
			report.Failed++
			continue
		}
		report.Saved++
	}

	metrics.IncrementSynced("saved", report.Saved)
	metrics.IncrementSynced("skipped", report.Skipped)
	metrics.IncrementSynced("failed", report.Failed)
	log.Info("mailbox synced",
		zap.Int("fetched", report.Fetched),
		zap.Int("skipped", report.Skipped),
		zap.Int("saved", report.Saved),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}
