// Package inference turns email text into summaries, classifications,
// entities and reply drafts using a hosted language model.
package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"mailpilot/internal/model"
	"mailpilot/pkg/metrics"
	"mailpilot/pkg/util"
)

// Client is the inference contract used by the pipeline. Every method
// returns an error on transport failure or malformed model output.
type Client interface {
	Summarize(ctx context.Context, subject, body string) (string, error)
	Classify(ctx context.Context, subject, body string) (model.Classification, error)
	ExtractEntities(ctx context.Context, body string) (model.Entities, error)
	SuggestReplies(ctx context.Context, subject, body string) ([]model.ReplySuggestion, error)
}

// Completer sends one system+user prompt pair and returns the raw text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

var (
	ErrEmptyCompletion = errors.New("model returned no content")
	ErrMalformedOutput = errors.New("model output is malformed")
)

// Options bound how much of an email is sent to the model.
type Options struct {
	MaxBodyChars   int
	ReplyBodyChars int
}

// LLMClient implements Client on top of a Completer.
type LLMClient struct {
	completer Completer
	opts      Options
	logger    *zap.Logger
}

func NewClient(completer Completer, opts Options, logger *zap.Logger) *LLMClient {
	if opts.MaxBodyChars <= 0 {
		opts.MaxBodyChars = 4000
	}
	if opts.ReplyBodyChars <= 0 {
		opts.ReplyBodyChars = 2000
	}
	return &LLMClient{completer: completer, opts: opts, logger: logger}
}

func (c *LLMClient) Summarize(ctx context.Context, subject, body string) (string, error) {
	out, err := c.call(ctx, "summarize", summarizeSystem, subjectContent(subject, Truncate(body, c.opts.MaxBodyChars)))
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(out)
	if summary == "" {
		return "", ErrEmptyCompletion
	}
	return summary, nil
}

func (c *LLMClient) Classify(ctx context.Context, subject, body string) (model.Classification, error) {
	out, err := c.call(ctx, "classify", classifySystem, subjectContent(subject, Truncate(body, c.opts.MaxBodyChars)))
	if err != nil {
		return model.Classification{}, err
	}
	return parseClassification(out)
}

func (c *LLMClient) ExtractEntities(ctx context.Context, body string) (model.Entities, error) {
	out, err := c.call(ctx, "entities", entitiesSystem, Truncate(body, c.opts.MaxBodyChars))
	if err != nil {
		return model.Entities{}, err
	}
	return parseEntities(out)
}

func (c *LLMClient) SuggestReplies(ctx context.Context, subject, body string) ([]model.ReplySuggestion, error) {
	out, err := c.call(ctx, "replies", repliesSystem, subjectContent(subject, Truncate(body, c.opts.ReplyBodyChars)))
	if err != nil {
		return nil, err
	}
	return parseReplies(out)
}

func (c *LLMClient) call(ctx context.Context, op, system, user string) (string, error) {
	start := time.Now()
	out, err := c.completer.Complete(ctx, system, user)
	status := "ok"
	if err != nil {
		_, status = util.IsRetryableError(err)
		c.logger.Warn("inference call failed",
			zap.String("operation", op),
			zap.String("error_type", status),
			zap.Error(err),
		)
	}
	metrics.RecordInferenceLatency(op, status, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func subjectContent(subject, content string) string {
	return "Subject: " + subject + "\n\nContent:\n" + content
}

// Truncate cuts s to at most n runes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
