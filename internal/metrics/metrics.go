// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsCreated counts appended notifications by type.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readingclub_notifications_created_total",
		Help: "Total number of notifications appended, by type",
	}, []string{"type"})

	// FollowActions counts follow graph outcomes.
	FollowActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readingclub_follow_actions_total",
		Help: "Total follow graph actions by outcome",
	}, []string{"action"})

	// ModerationActions counts moderator actions.
	ModerationActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readingclub_moderation_actions_total",
		Help: "Total moderator actions by kind",
	}, []string{"action"})

	// LikeToggles counts like toggles by resulting state.
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readingclub_like_toggles_total",
		Help: "Total like toggles by resulting state",
	}, []string{"target_type", "state"})

	// EventsDelivered counts queue events handled by workers.
	EventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readingclub_events_delivered_total",
		Help: "Total queue events handled by workers, by type and result",
	}, []string{"event_type", "result"})

	// HTTPRequestDuration records request latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "readingclub_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
