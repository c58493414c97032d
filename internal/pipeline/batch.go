package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailpilot/internal/model"
	"mailpilot/pkg/metrics"
)

// BatchItem is the outcome for one email of a batch.
type BatchItem struct {
	MessageID string                  `json:"message_id"`
	Result    *model.EnrichmentResult `json:"result,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Processed bool                    `json:"processed"`
}

// ProcessAll enriches every email and returns one item per input, in input
// order. An error or panic while enriching one email is recorded on its item
// and does not affect the others. concurrency <= 1 processes sequentially.
func (e *Enricher) ProcessAll(ctx context.Context, emails []model.RawEmail, opts Options, concurrency int) []BatchItem {
	items := make([]BatchItem, len(emails))
	if concurrency < 1 {
		concurrency = 1
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i := range emails {
		g.Go(func() error {
			items[i] = e.processOne(ctx, emails[i], opts)
			return nil
		})
	}
	_ = g.Wait()
	return items
}

func (e *Enricher) processOne(ctx context.Context, email model.RawEmail, opts Options) (item BatchItem) {
	item.MessageID = email.MessageID
	defer func() {
		if r := recover(); r != nil {
			metrics.IncrementEnrichment("panic")
			e.logger.Error("panic while enriching email",
				zap.String("message_id", email.MessageID),
				zap.Any("panic", r),
			)
			item = BatchItem{MessageID: email.MessageID, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	res, err := e.Enrich(ctx, email, opts)
	if err != nil {
		metrics.IncrementEnrichment("failed")
		item.Error = err.Error()
		return item
	}
	item.Result = res
	item.Processed = true
	return item
}
