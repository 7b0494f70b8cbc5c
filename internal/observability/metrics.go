package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's prometheus collectors on a private registry.
//
// All methods are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	roomsActive       prometheus.Gauge
	roomsCreated      prometheus.Counter
	connectionsActive prometheus.Gauge
	joins             prometheus.Counter
	framesRelayed     *prometheus.CounterVec
	framesDropped     prometheus.Counter
}

// NewMetrics registers the relay collectors plus Go runtime and process
// collectors on a fresh registry.
//
// Postcondition: Returns Metrics whose Handler serves every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		roomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flapper_rooms_active",
			Help: "Rooms currently held by the registry.",
		}),
		roomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flapper_rooms_created_total",
			Help: "Rooms created since process start.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flapper_connections_active",
			Help: "Open client connections.",
		}),
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flapper_joins_total",
			Help: "Successful joinRoom requests.",
		}),
		framesRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flapper_frames_relayed_total",
			Help: "Frames queued to peers, by message type.",
		}, []string{"type"}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flapper_frames_dropped_total",
			Help: "Frames dropped because a peer outbox was full or closed.",
		}),
	}

	m.registry.MustRegister(
		m.roomsActive,
		m.roomsCreated,
		m.connectionsActive,
		m.joins,
		m.framesRelayed,
		m.framesDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RoomCreated records a new room.
func (m *Metrics) RoomCreated(string) {
	m.roomsCreated.Inc()
	m.roomsActive.Inc()
}

// RoomReclaimed records removal of an emptied room.
func (m *Metrics) RoomReclaimed(string) {
	m.roomsActive.Dec()
}

// ConnectionOpened records a new client connection.
func (m *Metrics) ConnectionOpened() { m.connectionsActive.Inc() }

// ConnectionClosed records a closed client connection.
func (m *Metrics) ConnectionClosed() { m.connectionsActive.Dec() }

// PlayerJoined records a successful join.
func (m *Metrics) PlayerJoined() { m.joins.Inc() }

// FramesRelayed records n frames of the given message type queued to peers.
func (m *Metrics) FramesRelayed(msgType string, n int) {
	if n <= 0 {
		return
	}
	m.framesRelayed.WithLabelValues(msgType).Add(float64(n))
}

// FramesDropped records n frames that could not be queued.
func (m *Metrics) FramesDropped(n int) {
	if n <= 0 {
		return
	}
	m.framesDropped.Add(float64(n))
}
