// Package metrics holds the prometheus collectors for the realtime layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	ActiveConnections prometheus.Gauge
	InboundEvents     *prometheus.CounterVec
	DroppedFrames     prometheus.Counter
	RoomMutation      *prometheus.HistogramVec
}

// New registers every collector on its own registry so tests can build as
// many instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "huddle",
			Name:      "active_websocket_connections",
			Help:      "Number of open websocket connections.",
		}),
		InboundEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "inbound_events_total",
			Help:      "Inbound realtime events by name and outcome.",
		}, []string{"event", "outcome"}),
		DroppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "dropped_frames_total",
			Help:      "Outbound frames dropped because a recipient buffer was full.",
		}),
		RoomMutation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "huddle",
			Name:      "room_mutation_duration_seconds",
			Help:      "Duration of serialized room read-modify-write operations.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"operation"}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.InboundEvents,
		m.DroppedFrames,
		m.RoomMutation,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
