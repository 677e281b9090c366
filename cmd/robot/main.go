// cmd/robot runs the trading robot for one instrument against the paper
// broker: config, logging, metrics, warm-up, feed, fan-out, robot loop.
//
// Usage:
//
//	go run ./cmd/robot --config=robot.yaml
package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"trading-signalcore/config"
	"trading-signalcore/internal/execution"
	"trading-signalcore/internal/feed/redisstream"
	"trading-signalcore/internal/feed/ws"
	"trading-signalcore/internal/logger"
	"trading-signalcore/internal/marketdata/barbuilder"
	"trading-signalcore/internal/marketdata/bus"
	"trading-signalcore/internal/markethours"
	"trading-signalcore/internal/metrics"
	"trading-signalcore/internal/model"
	"trading-signalcore/internal/notification"
	"trading-signalcore/internal/risk"
	"trading-signalcore/internal/robot"
	"trading-signalcore/internal/store"
	sqlitestore "trading-signalcore/internal/store/sqlite"
	"trading-signalcore/internal/strategy"
)

func main() {
	configPath := flag.String("config", os.Getenv("ROBOT_CONFIG"), "Path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := logger.Init("robot", logger.ParseLevel(cfg.LogLevel))
	log.Info("starting", "symbol", cfg.Symbol, "strategy", string(cfg.Strategy.Variant), "feed", cfg.Feed.Kind)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus(cfg.Symbol, string(cfg.Strategy.Variant))
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health, nil)
	metricsSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	// ---- Trading core ----
	session, err := markethours.New(cfg.Session)
	if err != nil {
		fatal("session", err)
	}
	strat, err := strategy.New(cfg.Strategy, session)
	if err != nil {
		fatal("strategy", err)
	}
	sizer, err := risk.NewSizer(cfg.Risk)
	if err != nil {
		fatal("sizer", err)
	}
	broker := execution.NewPaperBroker(cfg.SymbolInfo(), cfg.PaperBalance)

	var next notification.Notifier = notification.NewLogNotifier()
	if cfg.WebhookURL != "" {
		next = notification.NewWebhookNotifier(cfg.WebhookURL)
	}
	notifier := notification.NewAsync(next, 64)
	defer notifier.Close()

	bot, err := robot.New(robot.Config{
		Symbol:      cfg.Symbol,
		BarPeriod:   cfg.BarPeriod,
		HistorySize: cfg.HistorySize,
	}, robot.Deps{
		Strategy:  strat,
		Broker:    broker,
		Sizer:     sizer,
		Execution: cfg.Execution,
		Notifier:  notifier,
		Metrics:   prom,
		Health:    health,
		QuoteSink: broker,
	})
	if err != nil {
		fatal("robot", err)
	}

	// ---- Warm-up ----
	history, from, err := store.LoadBars(ctx, store.Source{
		ParquetPath: cfg.Store.ParquetPath,
		SQLitePath:  cfg.Store.SQLitePath,
		Symbol:      cfg.Symbol,
		Period:      cfg.BarPeriod,
		Limit:       cfg.Store.WarmupBars,
	})
	if err != nil {
		log.Warn("warm-up skipped", "error", err)
	} else if len(history) > 0 {
		log.Info("warming up", "source", from, "bars", len(history))
		bot.Warmup(history)
	}

	// ---- Bar recorder (off the hot path) ----
	var recorder *sqlitestore.Writer
	if cfg.Store.RecordBars && cfg.Store.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.SQLitePath), 0o755); err != nil {
			log.Warn("data dir", "error", err)
		}
		recorder, err = sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.Store.SQLitePath, Period: cfg.BarPeriod})
		if err != nil {
			log.Warn("bar recording disabled", "error", err)
		} else {
			defer recorder.Close()
			recorder.OnCommit = func(_ int, d time.Duration) { prom.SQLiteCommitDur.Observe(d.Seconds()) }
			health.SetSQLiteOK(true)
		}
	}

	// ---- Feed ----
	rawCh := make(chan model.Event, 10000)
	var rdb *goredis.Client
	switch cfg.Feed.Kind {
	case config.FeedWebsocket:
		client, err := ws.New(ws.Config{URL: cfg.Feed.URL, Symbol: cfg.Symbol})
		if err != nil {
			fatal("feed", err)
		}
		client.OnConnect = health.SetFeedConnected
		client.OnReconnect = prom.FeedReconnects.Inc
		go client.Start(ctx, rawCh)

	case config.FeedRedis:
		rcfg := redisstream.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Stream:   cfg.StreamKey(),
		}
		rdb, err = redisstream.Connect(ctx, rcfg)
		if err != nil {
			fatal("redis", err)
		}
		defer rdb.Close()
		health.SetFeedConnected(true)
		reader := redisstream.NewReader(rdb, rcfg)
		reader.OnError = func(error) { prom.FeedReconnects.Inc() }
		go func() {
			if err := reader.Start(ctx, rawCh); err != nil {
				log.Error("redis feed stopped", "error", err)
				health.SetFeedConnected(false)
			}
		}()

	case config.FeedNone:
		log.Warn("no feed configured, serving metrics only")
	}

	var sqlDB *sql.DB
	if recorder != nil {
		sqlDB = recorder.DB()
	}
	health.StartLivenessChecker(ctx, rdb, sqlDB, 10*time.Second)

	// ---- Quote-built bars ----
	var feedCh <-chan model.Event = rawCh
	if cfg.Feed.BuildBars {
		builder := barbuilder.New(cfg.Symbol, cfg.BarPeriod)
		builder.OnStale = func() { log.Debug("stale quote rejected") }
		builtCh := make(chan model.Event, 10000)
		go builder.Run(ctx, rawCh, builtCh)
		feedCh = builtCh
	}

	// ---- Fan-out: robot (reliable) + recorder (lossy) ----
	fanout := bus.New(5000)
	fanout.OnDrop = func(name string) { prom.FanoutDropsTotal.WithLabelValues(name).Inc() }
	robotCh := fanout.SubscribeReliable("robot")
	if recorder != nil {
		go recorder.Run(ctx, cfg.Symbol, fanout.Subscribe("recorder"))
	}
	go fanout.Run(ctx, feedCh)

	// ---- Session gauge ----
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			open := 0.0
			if session.IsOpen(time.Now()) {
				open = 1
			}
			prom.SessionOpen.Set(open)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	log.Info("robot running", "session", session.StatusString(time.Now()))
	if err := bot.Run(ctx, robotCh); err != nil && ctx.Err() == nil {
		log.Error("robot stopped", "error", err)
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	metricsSrv.Stop(shutdownCtx)
	log.Info("stopped")
}

func fatal(what string, err error) {
	slog.Error("startup failed", "stage", what, "error", err)
	os.Exit(1)
}
