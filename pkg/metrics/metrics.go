package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailpilot_mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// 大模型调用延迟（毫秒）
	InferenceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailpilot_inference_latency_ms",
			Help:    "LLM call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"operation", "status"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailpilot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 慢查询计数与耗时
	SlowQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailpilot_db_slow_query_seconds",
			Help:    "Duration of queries above the slow query threshold",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
		},
	)

	// 邮件增强计数
	EnrichmentCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailpilot_enrichment_total",
			Help: "Total number of enrichment requests",
		},
		[]string{"outcome"}, // outcome: cached, processed, failed
	)

	// 缓存命中
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailpilot_cache_lookups_total",
			Help: "Cache lookups by operation and result",
		},
		[]string{"operation", "result"}, // result: hit, miss, error
	)

	// 副作用（通知、日历）
	SideEffectCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailpilot_side_effects_total",
			Help: "Side effects attempted by kind and status",
		},
		[]string{"kind", "status"},
	)

	// 熔断器状态变化
	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailpilot_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "to"},
	)

	// 邮件同步计数
	SyncedEmails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailpilot_synced_emails_total",
			Help: "Emails handled by mailbox sync",
		},
		[]string{"status"}, // status: saved, skipped, failed
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordInferenceLatency 记录大模型调用延迟
func RecordInferenceLatency(operation, status string, duration time.Duration) {
	InferenceLatency.WithLabelValues(operation, status).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementSlowQuery 记录一次慢查询
func IncrementSlowQuery(duration time.Duration) {
	SlowQueryDuration.Observe(duration.Seconds())
}

// IncrementEnrichment 增加邮件增强计数
func IncrementEnrichment(outcome string) {
	EnrichmentCount.WithLabelValues(outcome).Inc()
}

// IncrementCacheLookup 记录缓存查找结果
func IncrementCacheLookup(operation, result string) {
	CacheLookups.WithLabelValues(operation, result).Inc()
}

// IncrementSideEffect 记录副作用执行结果
func IncrementSideEffect(kind, status string) {
	SideEffectCount.WithLabelValues(kind, status).Inc()
}

// IncrementCircuitBreakerTransition 记录熔断器状态变化
func IncrementCircuitBreakerTransition(name, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, to).Inc()
}

// IncrementSynced 增加同步计数
func IncrementSynced(status string, n int) {
	SyncedEmails.WithLabelValues(status).Add(float64(n))
}
