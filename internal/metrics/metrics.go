package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Chat exchange metrics
	ChatExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskagent_chat_exchanges_total",
			Help: "Total number of chat exchanges processed",
		},
		[]string{"mode", "status"},
	)

	ChatExchangeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskagent_chat_exchange_duration_seconds",
			Help:    "End-to-end chat exchange duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Tool metrics
	ToolExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskagent_tool_executions_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "outcome"},
	)

	// Model capability metrics
	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskagent_model_calls_total",
			Help: "Total number of model capability calls",
		},
		[]string{"pass", "status"},
	)

	ModelCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskagent_model_call_duration_seconds",
			Help:    "Model capability call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// Conversation metrics
	ConversationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskagent_conversations_created_total",
			Help: "Total number of conversations created",
		},
	)

	HistoryCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskagent_history_cache_requests_total",
			Help: "History cache lookups by result",
		},
		[]string{"result"},
	)
)
