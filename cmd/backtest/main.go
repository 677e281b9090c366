// cmd/backtest replays stored bars (parquet or SQLite) through the robot and
// the paper broker, then prints the closed trades.
//
// Usage:
//
//	go run ./cmd/backtest --config=robot.yaml --speed=0 --bars=5000
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"trading-signalcore/config"
	"trading-signalcore/internal/execution"
	"trading-signalcore/internal/logger"
	"trading-signalcore/internal/markethours"
	"trading-signalcore/internal/marketdata/replay"
	"trading-signalcore/internal/metrics"
	"trading-signalcore/internal/model"
	"trading-signalcore/internal/notification"
	"trading-signalcore/internal/risk"
	"trading-signalcore/internal/robot"
	"trading-signalcore/internal/store"
	"trading-signalcore/internal/strategy"
)

func main() {
	configPath := flag.String("config", os.Getenv("ROBOT_CONFIG"), "Path to YAML config (optional)")
	speed := flag.Float64("speed", 0, "Playback speed multiplier (0=max, 1=realtime, 100=100x)")
	limit := flag.Int("bars", 0, "Replay only the last N bars (0=all)")
	parquetPath := flag.String("parquet", "", "Parquet bar file (overrides store.parquet_path)")
	warmup := flag.Int("warmup", 0, "Bars fed to indicators before trading starts")
	verbose := flag.Bool("v", false, "Log every decision")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[backtest] config: %v", err)
	}
	level := logger.ParseLevel("warn")
	if *verbose {
		level = logger.ParseLevel("debug")
	}
	logger.Init("backtest", level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	src := store.Source{
		ParquetPath: cfg.Store.ParquetPath,
		SQLitePath:  cfg.Store.SQLitePath,
		Symbol:      cfg.Symbol,
		Period:      cfg.BarPeriod,
		Limit:       *limit,
	}
	if *parquetPath != "" {
		src.ParquetPath = *parquetPath
	}
	bars, from, err := store.LoadBars(ctx, src)
	if err != nil {
		log.Fatalf("[backtest] load bars: %v", err)
	}
	if len(bars) == 0 {
		log.Fatalf("[backtest] no %s bars found (parquet=%q sqlite=%q)", cfg.Symbol, src.ParquetPath, src.SQLitePath)
	}
	if *warmup >= len(bars) {
		log.Fatalf("[backtest] warm-up of %d leaves nothing to replay (%d bars)", *warmup, len(bars))
	}

	session, err := markethours.New(cfg.Session)
	if err != nil {
		log.Fatalf("[backtest] session: %v", err)
	}
	strat, err := strategy.New(cfg.Strategy, session)
	if err != nil {
		log.Fatalf("[backtest] strategy: %v", err)
	}
	sizer, err := risk.NewSizer(cfg.Risk)
	if err != nil {
		log.Fatalf("[backtest] sizer: %v", err)
	}
	broker := execution.NewPaperBroker(cfg.SymbolInfo(), cfg.PaperBalance)
	prom := metrics.NewMetrics(prometheus.NewRegistry())

	bot, err := robot.New(robot.Config{
		Symbol:      cfg.Symbol,
		BarPeriod:   cfg.BarPeriod,
		HistorySize: cfg.HistorySize,
	}, robot.Deps{
		Strategy:  strat,
		Broker:    broker,
		Sizer:     sizer,
		Execution: cfg.Execution,
		Notifier:  notification.NewLogNotifier(),
		Metrics:   prom,
		QuoteSink: broker,
	})
	if err != nil {
		log.Fatalf("[backtest] robot: %v", err)
	}
	bot.Warmup(bars[:*warmup])
	bars = bars[*warmup:]

	replayer := replay.New(replay.Config{
		Symbol:    cfg.Symbol,
		BarPeriod: cfg.BarPeriod,
		Spread:    cfg.Instrument.Ask - cfg.Instrument.Bid,
		Speed:     *speed,
	})
	eventCh := make(chan model.Event, 10000)
	go func() {
		if err := replayer.Run(ctx, bars, eventCh); err != nil {
			log.Printf("[backtest] replay error: %v", err)
		}
		close(eventCh)
	}()
	if err := bot.Run(ctx, eventCh); err != nil {
		log.Printf("[backtest] interrupted: %v", err)
	}

	fills := broker.Fills()
	net := decimal.Zero
	wins := 0
	for _, f := range fills {
		pnl := decimal.NewFromFloat(f.PnL)
		net = net.Add(pnl)
		if pnl.IsPositive() {
			wins++
		}
		if *verbose {
			fmt.Printf("  %s %-4s vol=%-8.0f entry=%.5f exit=%.5f pnl=%s (%s)\n",
				f.ClosedAt.Format("2006-01-02 15:04"), f.Side, f.Volume, f.EntryPrice, f.ExitPrice,
				pnl.StringFixed(2), f.Reason)
		}
	}
	winRate := 0.0
	if len(fills) > 0 {
		winRate = float64(wins) / float64(len(fills)) * 100
	}
	acct := broker.Account(ctx)

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Strategy:          %-16s ║\n", strat.Name())
	fmt.Printf("║  Source:            %-16s ║\n", from)
	fmt.Printf("║  Bars replayed:     %-16d ║\n", len(bars))
	fmt.Printf("║  Trades closed:     %-16d ║\n", len(fills))
	fmt.Printf("║  Win rate:          %-15.1f%% ║\n", winRate)
	fmt.Printf("║  Net PnL:           %-16s ║\n", net.StringFixed(2))
	fmt.Printf("║  Final balance:     %-16.2f ║\n", acct.Balance)
	fmt.Printf("║  Open positions:    %-16d ║\n", len(broker.Positions(ctx)))
	fmt.Println("╚══════════════════════════════════════╝")
}
