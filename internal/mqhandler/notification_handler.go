package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "mailpilot/contracts/mq"
	"mailpilot/internal/notify"
	"mailpilot/pkg/logger"
	"mailpilot/pkg/metrics"
	"mailpilot/pkg/util"
)

const (
	notifyHandlerName = "notify"
	maxRetries        = 5
)

// DeadLetterPublisher receives messages that will never be delivered.
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, routingKey string, payload []byte, originalError string) error
}

type NotificationRequestedHandler struct {
	notifier     notify.Notifier
	deduper      *util.Deduper
	retryCounter *util.RetryCounter
	dlq          DeadLetterPublisher
	logger       *zap.Logger
}

func NewNotificationRequestedHandler(
	notifier notify.Notifier,
	deduper *util.Deduper,
	retryCounter *util.RetryCounter,
	dlq DeadLetterPublisher,
	logger *zap.Logger,
) *NotificationRequestedHandler {
	return &NotificationRequestedHandler{
		notifier:     notifier,
		deduper:      deduper,
		retryCounter: retryCounter,
		dlq:          dlq,
		logger:       logger,
	}
}

// Handle delivers one notification intent.
// Returning an error nacks the message; nil acks it.
func (h *NotificationRequestedHandler) Handle(ctx context.Context, raw json.RawMessage) (err error) {
	log := logger.WithTrace(ctx, h.logger)

	// Panic 恢复：释放去重锁后交给 MQ 重投
	var p mqcontracts.NotificationRequestedPayload
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic in notification handler", zap.Any("panic", r), zap.String("id", p.ID))
			if p.ID != "" {
				h.deduper.Release(ctx, notifyHandlerName, p.ID)
			}
			err = fmt.Errorf("notification handler panic: %v", r)
		}
	}()

	if err := json.Unmarshal(raw, &p); err != nil {
		log.Error("Failed to unmarshal notification payload (non-retryable)",
			zap.Error(err),
			zap.String("raw_payload", string(raw)),
		)
		h.deadLetter(ctx, raw, err)
		return nil
	}
	if p.ID == "" {
		p.ID = mqcontracts.NotificationID(p.MessageID, p.Kind)
	}
	log = log.With(zap.String("id", p.ID), zap.String("kind", p.Kind))

	if !h.deduper.AcquireOnce(ctx, notifyHandlerName, p.ID) {
		return nil
	}

	retryKey := util.FormatRetryKey(notifyHandlerName, p.ID)
	sendErr := h.notifier.Send(ctx, p.Text, p.Format)
	if sendErr == nil {
		h.resetRetries(ctx, retryKey)
		log.Info("Notification delivered")
		return nil
	}

	if errors.Is(sendErr, notify.ErrDisabled) {
		log.Debug("Notifications disabled, dropping intent")
		metrics.IncrementSideEffect("notification", "skipped")
		return nil
	}

	isRetryable, errType := util.IsRetryableError(sendErr)
	retryCount, err := h.retryCounter.IncrementAndGet(ctx, retryKey)
	if err != nil {
		log.Warn("Failed to get retry count, continuing anyway", zap.Error(err))
		retryCount = 1
	}

	log.Error("Failed to deliver notification",
		zap.String("error_type", errType),
		zap.Bool("retryable", isRetryable),
		zap.Int64("retry_count", retryCount),
		zap.Error(sendErr),
	)

	if !util.ShouldRetry(retryCount, maxRetries, isRetryable) {
		log.Warn("Giving up on notification",
			zap.Int64("retry_count", retryCount),
			zap.String("error_type", errType),
		)
		h.deadLetter(ctx, raw, sendErr)
		h.resetRetries(ctx, retryKey)
		return nil
	}

	// 释放去重锁，重投时才能再次发送
	h.deduper.Release(ctx, notifyHandlerName, p.ID)
	return sendErr
}

func (h *NotificationRequestedHandler) deadLetter(ctx context.Context, raw []byte, cause error) {
	if h.dlq == nil {
		return
	}
	if err := h.dlq.PublishToDLQ(ctx, mqcontracts.RoutingKeyNotificationRequested, raw, cause.Error()); err != nil {
		logger.WithTrace(ctx, h.logger).Error("Failed to publish to DLQ", zap.Error(err))
	}
}

func (h *NotificationRequestedHandler) resetRetries(ctx context.Context, key string) {
	if err := h.retryCounter.Reset(ctx, key); err != nil {
		logger.WithTrace(ctx, h.logger).Warn("Failed to reset retry count", zap.String("key", key), zap.Error(err))
	}
}
