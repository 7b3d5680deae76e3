// Package metrics exposes Prometheus metrics for the storefront core.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics holds the registered collectors.
type PrometheusMetrics struct {
	// ValidationCounter counts license validations by outcome
	// (redeemed, invalid, error).
	ValidationCounter *prometheus.CounterVec
	// RedemptionCounter counts successful redemptions by product.
	RedemptionCounter *prometheus.CounterVec
	// ModerationCounter counts moderation actions by type.
	ModerationCounter *prometheus.CounterVec
	// BannedUsersGauge tracks the number of users with a recorded ban.
	BannedUsersGauge prometheus.Gauge
	// FeedClientsGauge tracks connected moderation feed clients.
	FeedClientsGauge prometheus.Gauge
	// HTTPDuration observes request latency by route and status.
	HTTPDuration *prometheus.HistogramVec
}

// NewPrometheusMetrics creates and registers the collectors on the given
// registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		ValidationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keygate_license_validations_total",
			Help: "License validation attempts by outcome.",
		}, []string{"outcome"}),
		RedemptionCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keygate_license_redemptions_total",
			Help: "Successful license redemptions by product.",
		}, []string{"product_id"}),
		ModerationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keygate_moderation_actions_total",
			Help: "Moderation actions recorded by type.",
		}, []string{"type"}),
		BannedUsersGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "keygate_banned_users",
			Help: "Users with a ban currently recorded.",
		}),
		FeedClientsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "keygate_moderation_feed_clients",
			Help: "Connected moderation feed WebSocket clients.",
		}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "keygate_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}

	collectors := []prometheus.Collector{
		m.ValidationCounter,
		m.RedemptionCounter,
		m.ModerationCounter,
		m.BannedUsersGauge,
		m.FeedClientsGauge,
		m.HTTPDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return m, nil
}

// RecordValidation increments the validation counter for an outcome.
func (m *PrometheusMetrics) RecordValidation(outcome string) {
	m.ValidationCounter.WithLabelValues(outcome).Inc()
}

// RecordRedemption increments the redemption counter for a product.
func (m *PrometheusMetrics) RecordRedemption(productID string) {
	m.RedemptionCounter.WithLabelValues(productID).Inc()
}

// RecordModerationAction increments the moderation counter for a type.
func (m *PrometheusMetrics) RecordModerationAction(actionType string) {
	m.ModerationCounter.WithLabelValues(actionType).Inc()
}

// SetBannedUsers sets the banned users gauge.
func (m *PrometheusMetrics) SetBannedUsers(n int64) {
	m.BannedUsersGauge.Set(float64(n))
}

// SetFeedClients sets the feed clients gauge.
func (m *PrometheusMetrics) SetFeedClients(n int) {
	m.FeedClientsGauge.Set(float64(n))
}

// ObserveHTTPRequest records one request's latency.
func (m *PrometheusMetrics) ObserveHTTPRequest(route, status string, seconds float64) {
	m.HTTPDuration.WithLabelValues(route, status).Observe(seconds)
}
