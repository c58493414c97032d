package mq

import "time"

// RoutingKeyNotificationRequested 通知意图的路由键
const RoutingKeyNotificationRequested = "notification.requested"

// AggregateNotification outbox 中通知事件的聚合类型
const AggregateNotification = "notification"

// NotificationRequestedPayload 流水线产生的通知意图
// ID 由 message_id 与 kind 决定，重复投递不会产生重复通知
type NotificationRequestedPayload struct {
	ID          string    `json:"id"`
	MessageID   string    `json:"message_id"`
	Kind        string    `json:"kind"`
	Text        string    `json:"text"`
	Format      string    `json:"format"`
	TraceID     string    `json:"trace_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// NotificationID 生成通知意图的确定性 ID
func NotificationID(messageID, kind string) string {
	return messageID + ":" + kind
}
