// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "limitedwatch"

var (
	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_fetches_total",
		Help:      "Feed lookups by outcome (cached, ok, fetch_error, parse_error).",
	}, []string{"outcome"})
	FeedFetchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "feed_fetch_seconds",
		Help:      "Latency of upstream item table downloads.",
		Buckets:   prometheus.DefBuckets,
	})
	CatalogItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "catalog_items",
		Help:      "Number of items in the most recent catalog snapshot.",
	})
	Iterations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_iterations_total",
		Help:      "Polling iterations by result (ok, error, no_channel).",
	}, []string{"result"})
	Candidates = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "candidates",
		Help:      "Items matching the criteria in the last iteration.",
	})
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification sends by result (sent, failed).",
	}, []string{"result"})
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Chat commands handled, by command and result.",
	}, []string{"command", "result"})
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
