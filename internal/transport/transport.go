// Package transport provides the http.RoundTripper chain used for all remote calls:
// request-id tagging, structured logging and Prometheus metrics.
package transport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// RequestIDHeader carries a per-call correlation id.
const RequestIDHeader = "X-Request-Id"

// Metrics holds the remote-call collectors.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates and registers collectors on reg (skipped if reg is nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskkeeper_remote_requests_total",
				Help: "Remote HTTP calls by host, method and result code",
			},
			[]string{"host", "method", "code"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskkeeper_remote_request_duration_seconds",
				Help:    "Latency of remote HTTP calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"host", "method"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Duration)
	}
	return m
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// New wraps base (http.DefaultTransport if nil). log and m may be nil.
func New(base http.RoundTripper, log *zap.Logger, m *Metrics) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if log == nil {
		log = zap.NewNop()
	}
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		req = withRequestID(req)
		start := time.Now()
		resp, err := base.RoundTrip(req)
		dur := time.Since(start)

		code := "error"
		if err == nil {
			code = strconv.Itoa(resp.StatusCode)
		}
		if m != nil {
			m.Requests.WithLabelValues(req.URL.Host, req.Method, code).Inc()
			m.Duration.WithLabelValues(req.URL.Host, req.Method).Observe(dur.Seconds())
		}

		// path only: the query carries the API key
		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("host", req.URL.Host),
			zap.String("path", req.URL.Path),
			zap.String("code", code),
			zap.Duration("dur", dur),
			zap.String("request_id", req.Header.Get(RequestIDHeader)),
		}
		if err != nil {
			log.Warn("http", append(fields, zap.Error(err))...)
		} else {
			log.Debug("http", fields...)
		}
		return resp, err
	})
}

// NewClient returns an http.Client using the wrapped transport. A zero timeout means none.
func NewClient(log *zap.Logger, m *Metrics, timeout time.Duration) *http.Client {
	return &http.Client{Transport: New(nil, log, m), Timeout: timeout}
}

func withRequestID(req *http.Request) *http.Request {
	if req.Header.Get(RequestIDHeader) != "" {
		return req
	}
	id, err := uuid.NewV4()
	if err != nil {
		return req
	}
	req = req.Clone(req.Context())
	req.Header.Set(RequestIDHeader, id.String())
	return req
}
