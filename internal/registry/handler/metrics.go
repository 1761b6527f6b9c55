package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	agoraConversationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agora_conversations_total",
		Help: "Total conversations created.",
	})

	agoraStatementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agora_statements_total",
		Help: "Total statements added across all conversations.",
	})

	agoraVotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_votes_total",
		Help: "Total votes cast by choice.",
	}, []string{"choice"})

	agoraBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_batches_total",
		Help: "Total batch executions by outcome.",
	}, []string{"outcome"})

	agoraWebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_webhook_deliveries_total",
		Help: "Total webhook deliveries by success status.",
	}, []string{"status"})

	agoraRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	agoraRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agora_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		agoraRequestsTotal.WithLabelValues(method, path, status).Inc()
		agoraRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordConversationCreated records a conversation creation.
func RecordConversationCreated() {
	agoraConversationsTotal.Inc()
}

// RecordStatementAdded records a successfully added statement.
func RecordStatementAdded() {
	agoraStatementsTotal.Inc()
}

// RecordVoteCast records a successfully cast vote. choice may be empty for
// votes counted in aggregate (batch results).
func RecordVoteCast(choice string) {
	if choice == "" {
		choice = "batch"
	}
	agoraVotesTotal.WithLabelValues(choice).Inc()
}

// RecordBatch records a batch execution outcome.
func RecordBatch(success bool) {
	if success {
		agoraBatchesTotal.WithLabelValues("committed").Inc()
	} else {
		agoraBatchesTotal.WithLabelValues("rolled_back").Inc()
	}
}

// RecordWebhookDelivery records a webhook delivery attempt.
func RecordWebhookDelivery(success bool) {
	if success {
		agoraWebhookDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		agoraWebhookDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}
