package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for the game server. Each
// instance has its own registry.
type Metrics struct {
	game      *Game
	startTime time.Time
	registry  *prometheus.Registry

	playersConnected *prometheus.GaugeVec
	connectionsTotal *prometheus.CounterVec
	commandsTotal    *prometheus.CounterVec
	commandSeconds   prometheus.Histogram
	tickSeconds      prometheus.Histogram
	ticksTotal       prometheus.Gauge
	bytesRecvTotal   prometheus.Counter
	entities         prometheus.Gauge
	rooms            prometheus.Gauge
	liveNPCs         prometheus.Gauge
	humans           prometheus.Gauge
	corpses          prometheus.Gauge
	uptimeSeconds    prometheus.Gauge
	memoryHeapBytes  prometheus.Gauge
	goroutines       prometheus.Gauge
}

// NewMetrics creates the metrics and installs them as the world's observer.
func NewMetrics(game *Game, startTime time.Time) *Metrics {
	m := &Metrics{
		game:      game,
		startTime: startTime,
		registry:  prometheus.NewRegistry(),
		playersConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "graphworld_players_connected",
			Help: "Number of currently connected players by transport.",
		}, []string{"transport"}),
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphworld_logins_total",
			Help: "Logins since server start by transport.",
		}, []string{"transport"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphworld_commands_total",
			Help: "Commands processed by verb and outcome.",
		}, []string{"verb", "outcome"}),
		commandSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "graphworld_command_seconds",
			Help:    "Time spent executing one command.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		tickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "graphworld_tick_seconds",
			Help:    "Time spent in one world tick.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		ticksTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "graphworld_ticks",
			Help: "Ticks run by the world clock.",
		}),
		bytesRecvTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphworld_bytes_received_total",
			Help: "Total command bytes received from clients.",
		}),
		entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "graphworld_entities",
			Help: "Entities in the world graph.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "graphworld_rooms",
			Help: "Rooms in the world graph.",
		}),
		liveNPCs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "graphworld_live_npcs",
			Help: "Living agents not controlled by a player.",
		}),
		humans: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "graphworld_player_bodies",
			Help: "Agents controlled by a player.",
		}),
		corpses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "graphworld_corpses",
			Help: "Dead agents waiting to decay.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "graphworld_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		memoryHeapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "graphworld_memory_heap_bytes",
			Help: "Go heap memory allocated in bytes.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "graphworld_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	m.registry.MustRegister(
		m.playersConnected,
		m.connectionsTotal,
		m.commandsTotal,
		m.commandSeconds,
		m.tickSeconds,
		m.ticksTotal,
		m.bytesRecvTotal,
		m.entities,
		m.rooms,
		m.liveNPCs,
		m.humans,
		m.corpses,
		m.uptimeSeconds,
		m.memoryHeapBytes,
		m.goroutines,
	)

	game.Metrics = m
	game.World.SetObserver(m)
	return m
}

// CommandDone implements world.Observer.
func (m *Metrics) CommandDone(verb string, ok bool, d time.Duration) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.commandsTotal.WithLabelValues(verb, outcome).Inc()
	m.commandSeconds.Observe(d.Seconds())
}

// TickDone implements world.Observer.
func (m *Metrics) TickDone(d time.Duration) {
	m.tickSeconds.Observe(d.Seconds())
}

// Update refreshes all gauge metrics from current game state.
func (m *Metrics) Update() {
	stats := m.game.ConnectionStats()
	m.playersConnected.WithLabelValues("tcp").Set(float64(stats.TCP))
	m.playersConnected.WithLabelValues("websocket").Set(float64(stats.WebSocket))

	ws := m.game.World.Stats()
	m.entities.Set(float64(ws.Entities))
	m.rooms.Set(float64(ws.Rooms))
	m.liveNPCs.Set(float64(ws.LiveNPCs))
	m.humans.Set(float64(ws.Humans))
	m.corpses.Set(float64(ws.Corpses))
	m.ticksTotal.Set(float64(m.game.World.Ticks()))

	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryHeapBytes.Set(float64(mem.HeapAlloc))
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Registry exposes the metric registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an http.Handler that updates metrics before serving them.
func (m *Metrics) Handler() http.Handler {
	inner := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		inner.ServeHTTP(w, r)
	})
}
