package redisstream

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-signalcore/internal/model"
)

func TestDecodeMessage(t *testing.T) {
	ev := model.QuoteEvent("EURUSD", model.Quote{Bid: 1.1, Ask: 1.1002})
	got, err := decodeMessage(map[string]interface{}{"data": string(ev.JSON())})
	require.NoError(t, err)
	assert.Equal(t, model.EventQuote, got.Kind)
	assert.Equal(t, "EURUSD", got.Symbol)
	assert.Equal(t, 1.1002, got.Quote.Ask)

	_, err = decodeMessage(map[string]interface{}{"payload": "x"})
	assert.Error(t, err)
	_, err = decodeMessage(map[string]interface{}{"data": `{"type":"tick"}`})
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	r := NewReader(nil, Config{Stream: "md:EURUSD"})
	assert.Equal(t, "robot", r.cfg.Group)
	assert.Equal(t, "robot-1", r.cfg.Consumer)
	assert.Equal(t, int64(DefaultMaxLen), r.cfg.MaxLen)
}

func TestPublisher_BreakerOpensOnUnreachableRedis(t *testing.T) {
	// nothing listens on port 1
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	p := NewPublisher(client, Config{Stream: "md:EURUSD"})

	ctx := context.Background()
	ev := model.QuoteEvent("EURUSD", model.Quote{Bid: 1.1, Ask: 1.1002})
	for i := 0; i < 5; i++ {
		err := p.Publish(ctx, ev)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrBreakerOpen))
	}
	assert.Equal(t, BreakerOpen, p.Breaker().State())
	assert.ErrorIs(t, p.Publish(ctx, ev), ErrBreakerOpen)
}

func TestConnect_FailsFast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Connect(ctx, Config{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
