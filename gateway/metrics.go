package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK           = "ok"
	outcomeFailed       = "failed"
	outcomeNetwork      = "network"
	outcomeUnauthorized = "unauthorized"

	refreshSuccess    = "success"
	refreshRejected   = "rejected"
	refreshFailed     = "failed"
	refreshCoalesced  = "coalesced"
	refreshSuperseded = "superseded"
	refreshDiscarded  = "discarded"
)

// Metrics counts gateway traffic. Each outbound HTTP exchange is counted once,
// so a transparently retried call shows up twice in RequestsTotal.
type Metrics struct {
	RequestsTotal  *prometheus.CounterVec
	RefreshesTotal *prometheus.CounterVec
	RetriesTotal   prometheus.Counter
}

// NewMetrics registers the gateway collectors with reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "API responses by outcome.",
		}, []string{"outcome"}),
		RefreshesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "gateway",
			Name:      "refreshes_total",
			Help:      "Credential refresh attempts by result.",
		}, []string{"result"}),
		RetriesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "gateway",
			Name:      "retries_total",
			Help:      "Requests resent after a successful refresh.",
		}),
	}
}
