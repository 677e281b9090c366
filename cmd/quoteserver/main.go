// cmd/quoteserver is a demo feed: it random-walks a bid/ask for one symbol
// and broadcasts quote events over WebSocket, so the robot can run without
// broker credentials. With REDIS_ADDR set, the same events are also
// appended to the symbol's redis stream.
//
// Config (env vars):
//
//	QUOTE_SERVER_ADDR  listen address (default ":8765")
//	QUOTE_SYMBOL       symbol (default "EURUSD")
//	QUOTE_START        starting bid (default 1.1000)
//	QUOTE_SPREAD       ask-bid in price units (default 0.0001)
//	QUOTE_INTERVAL_MS  broadcast interval (default 250)
//	REDIS_ADDR         optional redis address for stream publishing
package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"trading-signalcore/internal/feed/redisstream"
	"trading-signalcore/internal/feed/ws"
	"trading-signalcore/internal/logger"
	"trading-signalcore/internal/model"
)

// walker holds the simulated price state.
type walker struct {
	bid    float64
	spread float64
	rng    *rand.Rand
}

// next moves the bid by up to ±0.02% and returns the new quote.
func (w *walker) next(ts time.Time) model.Quote {
	pct := (w.rng.Float64()*0.04 - 0.02) / 100
	w.bid = math.Max(w.bid*(1+pct), w.spread)
	return model.Quote{Bid: w.bid, Ask: w.bid + w.spread, TS: ts}
}

func main() {
	log := logger.Init("quoteserver", logger.ParseLevel(envOrDefault("LOG_LEVEL", "info")))

	addr := envOrDefault("QUOTE_SERVER_ADDR", ":8765")
	symbol := envOrDefault("QUOTE_SYMBOL", "EURUSD")
	interval := time.Duration(envIntOrDefault("QUOTE_INTERVAL_MS", 250)) * time.Millisecond
	w := &walker{
		bid:    envFloatOrDefault("QUOTE_START", 1.1000),
		spread: envFloatOrDefault("QUOTE_SPREAD", 0.0001),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var pub *redisstream.Publisher
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		rcfg := redisstream.Config{Addr: redisAddr, Stream: "md:" + symbol}
		rdb, err := redisstream.Connect(ctx, rcfg)
		if err != nil {
			log.Warn("redis publishing disabled", "error", err)
		} else {
			defer rdb.Close()
			pub = redisstream.NewPublisher(rdb, rcfg)
			log.Info("publishing to redis", "stream", rcfg.Stream)
		}
	}

	hub := ws.NewHub()
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/health", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(rw, `{"status":"ok","service":"quoteserver","clients":%d}`+"\n", hub.Clients())
	})
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				ev := model.QuoteEvent(symbol, w.next(now.UTC()))
				if err := hub.Broadcast(ev); err != nil {
					log.Warn("broadcast failed", "error", err)
				}
				if pub != nil {
					if err := pub.Publish(ctx, ev); err != nil {
						log.Debug("redis publish failed", "error", err, "breaker", pub.Breaker().State().String())
					}
				}
			}
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("listening", "addr", addr, "symbol", symbol, "interval", interval.String())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envFloatOrDefault(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}
