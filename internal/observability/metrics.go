package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	connections   *prometheus.GaugeVec
	rooms         prometheus.Gauge
	dropped       prometheus.Counter
	transitions   *prometheus.CounterVec
	ragStreams    *prometheus.CounterVec
	degradations  *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
	messagesTotal *prometheus.CounterVec
	chunkSearch   *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "livechat_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "livechat_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "livechat_socket_connections",
			Help: "Open persistent connections by role.",
		}, []string{"role"}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "livechat_rooms_active",
			Help: "Conversation rooms with at least one member.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livechat_outbound_dropped_total",
			Help: "Events dropped from full connection queues.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "livechat_mode_transitions_total",
			Help: "Effective conversation mode transitions by target mode.",
		}, []string{"target"}),
		ragStreams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "livechat_rag_streams_total",
			Help: "Answer streams by outcome.",
		}, []string{"outcome"}),
		degradations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "livechat_retrieval_degraded_total",
			Help: "Retrieval steps that failed and were skipped.",
		}, []string{"stage"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "livechat_llm_stream_duration_seconds",
			Help:    "Time from stream open to completion.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"model", "outcome"}),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "livechat_messages_persisted_total",
			Help: "Persisted chat messages by role.",
		}, []string{"role"}),
		chunkSearch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "livechat_chunk_search_duration_seconds",
			Help:    "Similar-chunk lookups by index provider and status.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"provider", "status"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpLatency,
		m.connections,
		m.rooms,
		m.dropped,
		m.transitions,
		m.ragStreams,
		m.degradations,
		m.llmLatency,
		m.messagesTotal,
		m.chunkSearch,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ConnOpened(role string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(role).Inc()
}

func (m *Metrics) ConnClosed(role string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(role).Dec()
}

func (m *Metrics) RoomsActive(n int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(n))
}

func (m *Metrics) OutboundDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) ModeTransition(target string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(target).Inc()
}

func (m *Metrics) RAGStream(outcome string) {
	if m == nil {
		return
	}
	m.ragStreams.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RetrievalDegraded(stage string) {
	if m == nil {
		return
	}
	m.degradations.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveLLMStream(model, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(model, outcome).Observe(d.Seconds())
}

func (m *Metrics) MessagePersisted(role string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(role).Inc()
}

func (m *Metrics) ObserveChunkSearch(provider, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.chunkSearch.WithLabelValues(provider, status).Observe(d.Seconds())
}
