// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "learnify"

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	// ReviewTransitions counts applied review-status changes. "to" is the
	// status the course entered.
	ReviewTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "review_transitions_total",
		Help:      "Course review transitions by event and target status.",
	}, []string{"event", "to"})

	// Notifications counts review-request deliveries; result is "sent" or
	// the failure reason.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "review_notifications_total",
		Help:      "Review request notifications by result.",
	}, []string{"result"})

	ChapterGenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chapter_generations_total",
		Help:      "Per-chapter generation calls by collaborator and outcome.",
	}, []string{"collaborator", "outcome"})
)
