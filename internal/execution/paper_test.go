package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-signalcore/internal/model"
)

func TestPaper_StopOrderFillsOnQuote(t *testing.T) {
	p := NewPaperBroker(eurusd(), 10000)
	ctx := context.Background()

	require.NoError(t, p.PlaceStopOrder(ctx, model.StopOrderRequest{
		Side: model.SideBuy, Volume: 10000, TriggerPrice: 1.1010, StopLossPips: 10, TakeProfitPips: 20,
	}))
	require.Len(t, p.PendingOrders(ctx), 1)

	p.OnQuote(model.Quote{Bid: 1.1005, Ask: 1.1006})
	assert.Len(t, p.PendingOrders(ctx), 1, "ask below trigger")

	p.OnQuote(model.Quote{Bid: 1.1010, Ask: 1.1011})
	assert.Empty(t, p.PendingOrders(ctx))
	positions := p.Positions(ctx)
	require.Len(t, positions, 1)
	assert.InDelta(t, 1.1011, positions[0].EntryPrice, 1e-12)
	assert.InDelta(t, 1.1031, positions[0].TakeProfit, 1e-12)

	// take profit
	p.OnQuote(model.Quote{Bid: 1.1032, Ask: 1.1033})
	assert.Empty(t, p.Positions(ctx))
	fills := p.Fills()
	require.Len(t, fills, 1)
	assert.Equal(t, "take_profit", fills[0].Reason)
	assert.InDelta(t, 10000+(1.1032-1.1011)*10000, p.Account(ctx).Balance, 1e-6)
}

func TestPaper_SellStopLoss(t *testing.T) {
	p := NewPaperBroker(eurusd(), 10000)
	ctx := context.Background()

	require.NoError(t, p.ExecuteMarketOrder(ctx, model.MarketOrderRequest{Side: model.SideSell, Volume: 1000, StopLossPips: 5}))
	p.OnQuote(model.Quote{Bid: 1.1005, Ask: 1.1006})
	assert.Empty(t, p.Positions(ctx))
	assert.Equal(t, "stop_loss", p.Fills()[0].Reason)
	assert.Less(t, p.Account(ctx).Balance, 10000.0)
}

func TestPaper_CancelAndCloseUnknown(t *testing.T) {
	p := NewPaperBroker(eurusd(), 10000)
	ctx := context.Background()

	assert.ErrorIs(t, p.CancelOrder(ctx, model.PendingOrder{ID: "nope"}), ErrUnknownOrder)
	assert.ErrorIs(t, p.ClosePosition(ctx, model.Position{ID: "nope"}), ErrUnknownOrder)
}

func TestPaper_FailCommands(t *testing.T) {
	p := NewPaperBroker(eurusd(), 10000)
	ctx := context.Background()
	boom := errors.New("rejected")

	p.FailCommands(boom)
	assert.ErrorIs(t, p.ExecuteMarketOrder(ctx, model.MarketOrderRequest{Side: model.SideBuy, Volume: 1000}), boom)
	assert.Empty(t, p.Positions(ctx))

	p.FailCommands(nil)
	assert.NoError(t, p.ExecuteMarketOrder(ctx, model.MarketOrderRequest{Side: model.SideBuy, Volume: 1000}))
	assert.Len(t, p.Positions(ctx), 1)
}

func TestPaper_EquityTracksOpenPositions(t *testing.T) {
	p := NewPaperBroker(eurusd(), 10000)
	ctx := context.Background()

	require.NoError(t, p.ExecuteMarketOrder(ctx, model.MarketOrderRequest{Side: model.SideBuy, Volume: 10000}))
	p.OnQuote(model.Quote{Bid: 1.1011, Ask: 1.1012})

	acct := p.Account(ctx)
	assert.Equal(t, 10000.0, acct.Balance)
	assert.InDelta(t, 10000+(1.1011-1.1001)*10000, acct.Equity, 1e-6)
	assert.InDelta(t, 1.1011, p.Symbol(ctx).Bid, 1e-12)
}
