// Package metrics exposes Prometheus metrics for the API and its guards.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Booking outcomes.
const (
	BookingCreated   = "created"
	BookingDuplicate = "duplicate"
	BookingCapacity  = "capacity"
)

// Review mutations.
const (
	ReviewCreate = "create"
	ReviewUpdate = "update"
	ReviewDelete = "delete"
)

// Recorder is what the services and middleware report to.
type Recorder interface {
	RecordRequest(method, route string, status int, elapsed time.Duration)
	RecordBooking(outcome string)
	RecordReviewMutation(op string)
	RecordGateDenial(code string)
	RecordDispatch(kind string, ok bool)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	bookings   *prometheus.CounterVec
	reviews    *prometheus.CounterVec
	denials    *prometheus.CounterVec
	dispatches *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "natours_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "natours_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "natours_bookings_total",
			Help: "Booking attempts by outcome.",
		}, []string{"outcome"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "natours_review_mutations_total",
			Help: "Review mutations that triggered a rating recompute.",
		}, []string{"op"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "natours_gate_denials_total",
			Help: "Requests rejected by the access control gate, by error code.",
		}, []string{"code"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "natours_notifications_total",
			Help: "Notification dispatch attempts by kind and result.",
		}, []string{"kind", "result"}),
	}

	reg.MustRegister(c.requests, c.latency, c.bookings, c.reviews, c.denials, c.dispatches)
	return c
}

func (c *Collector) RecordRequest(method, route string, status int, elapsed time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (c *Collector) RecordBooking(outcome string) {
	c.bookings.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordReviewMutation(op string) {
	c.reviews.WithLabelValues(op).Inc()
}

func (c *Collector) RecordGateDenial(code string) {
	c.denials.WithLabelValues(code).Inc()
}

func (c *Collector) RecordDispatch(kind string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.dispatches.WithLabelValues(kind, result).Inc()
}

// Handler serves the registry for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Used when metrics are not wired, and in tests.
type Nop struct{}

func (Nop) RecordRequest(string, string, int, time.Duration) {}
func (Nop) RecordBooking(string)                             {}
func (Nop) RecordReviewMutation(string)                      {}
func (Nop) RecordGateDenial(string)                          {}
func (Nop) RecordDispatch(string, bool)                      {}
