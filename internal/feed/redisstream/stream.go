// Package redisstream moves market events through a Redis stream. One
// stream per symbol (md:{symbol}) carries JSON events in the "data" field.
// The Reader consumes it through a consumer group so a restarted robot
// resumes where it stopped; the Publisher appends to it.
package redisstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"trading-signalcore/internal/model"
)

// DefaultMaxLen trims the stream to roughly a day of one-second quotes.
const DefaultMaxLen = 100000

// Config configures the redis connection and stream.
type Config struct {
	Addr     string
	Password string
	DB       int

	Stream   string // e.g. "md:EURUSD"
	Group    string // consumer group, default "robot"
	Consumer string // consumer name, default "robot-1"
	MaxLen   int64  // publisher trim length, default DefaultMaxLen
}

func (c *Config) defaults() {
	if c.Group == "" {
		c.Group = "robot"
	}
	if c.Consumer == "" {
		c.Consumer = "robot-1"
	}
	if c.MaxLen == 0 {
		c.MaxLen = DefaultMaxLen
	}
}

// Connect creates a client and pings the server.
func Connect(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// decodeMessage extracts the event carried by a stream entry.
func decodeMessage(values map[string]interface{}) (model.Event, error) {
	data, ok := values["data"].(string)
	if !ok {
		return model.Event{}, errors.New("stream entry without data field")
	}
	return model.DecodeEvent([]byte(data))
}

// Reader consumes events from a stream through a consumer group.
type Reader struct {
	client *goredis.Client
	cfg    Config
	log    *slog.Logger

	// OnError is called for read errors and malformed entries (optional).
	OnError func(err error)
}

// NewReader wraps a connected client.
func NewReader(client *goredis.Client, cfg Config) *Reader {
	cfg.defaults()
	return &Reader{
		client: client,
		cfg:    cfg,
		log:    slog.With("component", "feed_redis", "stream", cfg.Stream, "group", cfg.Group),
	}
}

// EnsureGroup creates the consumer group (and stream) if missing. A fresh
// group starts at "$": only events published from now on.
func (r *Reader) EnsureGroup(ctx context.Context) error {
	err := r.client.XGroupCreateMkStream(ctx, r.cfg.Stream, r.cfg.Group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("xgroup create %s: %w", r.cfg.Stream, err)
	}
	return nil
}

// Start recovers entries delivered but never acknowledged, then streams
// new ones to out until ctx is cancelled. Entries are acknowledged after
// they are handed to out, so a crash re-delivers at most what was in
// flight.
func (r *Reader) Start(ctx context.Context, out chan<- model.Event) error {
	if err := r.EnsureGroup(ctx); err != nil {
		return err
	}
	// "0" re-reads this consumer's pending entries
	if err := r.consume(ctx, "0", out, false); err != nil {
		return err
	}
	r.log.Info("consuming")
	return r.consume(ctx, ">", out, true)
}

func (r *Reader) consume(ctx context.Context, id string, out chan<- model.Event, follow bool) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		res, err := r.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    r.cfg.Group,
			Consumer: r.cfg.Consumer,
			Streams:  []string{r.cfg.Stream, id},
			Count:    100,
			Block:    2 * time.Second,
		}).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, goredis.Nil) {
				if follow {
					continue
				}
				return nil
			}
			r.log.Warn("xreadgroup failed", "error", err)
			if r.OnError != nil {
				r.OnError(err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		n := 0
		for _, stream := range res {
			for _, msg := range stream.Messages {
				n++
				ev, err := decodeMessage(msg.Values)
				if err != nil {
					r.log.Warn("dropping malformed entry", "id", msg.ID, "error", err)
					if r.OnError != nil {
						r.OnError(err)
					}
					r.client.XAck(ctx, r.cfg.Stream, r.cfg.Group, msg.ID)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return nil
				}
				r.client.XAck(ctx, r.cfg.Stream, r.cfg.Group, msg.ID)
			}
		}
		if !follow && n == 0 {
			return nil
		}
	}
}

// Publisher appends events to a stream.
type Publisher struct {
	client  *goredis.Client
	cfg     Config
	breaker *Breaker
}

// NewPublisher wraps a connected client. Publishing stops for 10s after 5
// consecutive failures.
func NewPublisher(client *goredis.Client, cfg Config) *Publisher {
	cfg.defaults()
	b := NewBreaker(5, 10*time.Second)
	b.OnStateChange = func(from, to BreakerState) {
		slog.Warn("redis publisher breaker", "stream", cfg.Stream, "from", from.String(), "to", to.String())
	}
	return &Publisher{client: client, cfg: cfg, breaker: b}
}

// Publish appends ev to the stream.
func (p *Publisher) Publish(ctx context.Context, ev model.Event) error {
	data := ev.JSON()
	return p.breaker.Do(func() error {
		return p.client.XAdd(ctx, &goredis.XAddArgs{
			Stream: p.cfg.Stream,
			MaxLen: p.cfg.MaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": string(data)},
		}).Err()
	})
}

// Breaker exposes the publisher's breaker state.
func (p *Publisher) Breaker() *Breaker { return p.breaker }
