package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trading robot.
// Helper methods are safe to call on a nil *Metrics.
type Metrics struct {
	BarsTotal   prometheus.Counter
	QuotesTotal prometheus.Counter

	// Signal evaluation
	SignalsTotal        *prometheus.CounterVec // labels: strategy, side
	GateRejectionsTotal *prometheus.CounterVec // labels: gate
	NoSignalTotal       *prometheus.CounterVec // labels: reason
	SizingFailures      prometheus.Counter

	// Order lifecycle
	OrderCommandsTotal *prometheus.CounterVec // labels: kind
	OrderErrorsTotal   *prometheus.CounterVec // labels: kind
	Liquidations       prometheus.Counter
	OpenPositions      prometheus.Gauge
	PendingOrders      prometheus.Gauge

	// Indicator engine
	IndicatorUpdateDur prometheus.Histogram

	// Feed and storage
	FeedReconnects   prometheus.Counter
	FanoutDropsTotal *prometheus.CounterVec // labels: subscriber
	SQLiteCommitDur  prometheus.Histogram

	// Session state
	SessionOpen prometheus.Gauge // 0=closed, 1=open
}

// NewMetrics creates all metrics and registers them with reg.
// A nil reg skips registration (tests use prometheus.NewRegistry()).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BarsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "robot_bars_total",
			Help: "Total closed bars processed",
		}),
		QuotesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "robot_quotes_total",
			Help: "Total quotes processed",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robot_signals_total",
			Help: "Directional signals emitted (by strategy and side)",
		}, []string{"strategy", "side"}),
		GateRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robot_gate_rejections_total",
			Help: "Bars on which a pre-signal gate stopped evaluation",
		}, []string{"gate"}),
		NoSignalTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robot_no_signal_total",
			Help: "Bars evaluated to no signal because of an absorbed error",
		}, []string{"reason"}),
		SizingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "robot_sizing_failures_total",
			Help: "Signals dropped because sizing produced no valid order",
		}),
		OrderCommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robot_order_commands_total",
			Help: "Commands dispatched to the broker (by kind)",
		}, []string{"kind"}),
		OrderErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robot_order_errors_total",
			Help: "Broker commands that failed to dispatch (by kind)",
		}, []string{"kind"}),
		Liquidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "robot_liquidations_total",
			Help: "Spread-safety or reversal close-all events",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "robot_open_positions",
			Help: "Open positions at the last reconciliation",
		}),
		PendingOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "robot_pending_orders",
			Help: "Pending orders at the last reconciliation",
		}),
		IndicatorUpdateDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "robot_indicator_update_duration_seconds",
			Help:    "Indicator engine update latency per bar",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "robot_feed_reconnects_total",
			Help: "Total feed reconnection attempts",
		}),
		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robot_fanout_drops_total",
			Help: "Events dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "robot_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		SessionOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "robot_session_open",
			Help: "Trading session state (0=closed, 1=open)",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.BarsTotal,
			m.QuotesTotal,
			m.SignalsTotal,
			m.GateRejectionsTotal,
			m.NoSignalTotal,
			m.SizingFailures,
			m.OrderCommandsTotal,
			m.OrderErrorsTotal,
			m.Liquidations,
			m.OpenPositions,
			m.PendingOrders,
			m.IndicatorUpdateDur,
			m.FeedReconnects,
			m.FanoutDropsTotal,
			m.SQLiteCommitDur,
			m.SessionOpen,
		)
	}

	return m
}

// OrderCommand counts one broker command and its dispatch error, if any.
func (m *Metrics) OrderCommand(kind string, err error) {
	if m == nil {
		return
	}
	m.OrderCommandsTotal.WithLabelValues(kind).Inc()
	if err != nil {
		m.OrderErrorsTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveIndicatorUpdate records one engine update duration.
func (m *Metrics) ObserveIndicatorUpdate(d time.Duration) {
	if m == nil {
		return
	}
	m.IndicatorUpdateDur.Observe(d.Seconds())
}

// SetBook records the reconciled position and pending order counts.
func (m *Metrics) SetBook(positions, pending int) {
	if m == nil {
		return
	}
	m.OpenPositions.Set(float64(positions))
	m.PendingOrders.Set(float64(pending))
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	Symbol          string    `json:"symbol"`
	Strategy        string    `json:"strategy"`
	FeedConnected   bool      `json:"feed_connected"`
	LastEventTime   time.Time `json:"last_event_time"`
	IndicatorsReady bool      `json:"indicators_ready"`
	RedisConnected  bool      `json:"redis_connected"`
	SQLiteOK        bool      `json:"sqlite_ok"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(symbol, strategy string) *HealthStatus {
	return &HealthStatus{
		Symbol:    symbol,
		Strategy:  strategy,
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastEventTime(t time.Time) {
	h.mu.Lock()
	h.LastEventTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetIndicatorsReady(v bool) {
	h.mu.Lock()
	h.IndicatorsReady = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Nil clients are skipped.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.FeedConnected || !h.IndicatorsReady {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.FeedConnected && h.LastEventTime.IsZero() {
		overallStatus = "unhealthy"
	}

	eventAge := ""
	if !h.LastEventTime.IsZero() {
		eventAge = time.Since(h.LastEventTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		Symbol          string  `json:"symbol"`
		Strategy        string  `json:"strategy"`
		FeedConnected   bool    `json:"feed_connected"`
		LastEventTime   string  `json:"last_event_time"`
		EventAge        string  `json:"event_age"`
		IndicatorsReady bool    `json:"indicators_ready"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		Symbol:          h.Symbol,
		Strategy:        h.Strategy,
		FeedConnected:   h.FeedConnected,
		LastEventTime:   h.LastEventTime.Format(time.RFC3339),
		EventAge:        eventAge,
		IndicatorsReady: h.IndicatorsReady,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server. A nil gatherer serves the
// default registry.
func NewServer(addr string, health *HealthStatus, gatherer prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Handler returns the server's mux.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
