package robot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-signalcore/internal/execution"
	"trading-signalcore/internal/metrics"
	"trading-signalcore/internal/model"
	"trading-signalcore/internal/notification"
	"trading-signalcore/internal/risk"
	"trading-signalcore/internal/strategy"
)

type recordingNotifier struct {
	alerts []notification.Alert
}

func (n *recordingNotifier) Send(_ context.Context, a notification.Alert) error {
	n.alerts = append(n.alerts, a)
	return nil
}

// staticBroker serves a fixed book and records commands without changing it.
type staticBroker struct {
	positions []model.Position
	symbol    model.SymbolInfo
	calls     []string
}

func (b *staticBroker) Positions(context.Context) []model.Position         { return b.positions }
func (b *staticBroker) PendingOrders(context.Context) []model.PendingOrder { return nil }
func (b *staticBroker) Account(context.Context) model.AccountState         { return model.AccountState{Balance: 10000} }
func (b *staticBroker) Symbol(context.Context) model.SymbolInfo            { return b.symbol }
func (b *staticBroker) ExecuteMarketOrder(_ context.Context, req model.MarketOrderRequest) error {
	b.calls = append(b.calls, "market:"+req.Side.String())
	return nil
}
func (b *staticBroker) PlaceStopOrder(_ context.Context, req model.StopOrderRequest) error {
	b.calls = append(b.calls, "stop:"+req.Side.String())
	return nil
}
func (b *staticBroker) CancelOrder(_ context.Context, po model.PendingOrder) error {
	b.calls = append(b.calls, "cancel:"+po.ID)
	return nil
}
func (b *staticBroker) ClosePosition(_ context.Context, p model.Position) error {
	b.calls = append(b.calls, "close:"+p.ID)
	return nil
}

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func eurusd() model.SymbolInfo {
	return model.SymbolInfo{Name: "EURUSD", PipSize: 0.0001, PipValue: 0.0001, Bid: 1.1000, Ask: 1.1001, Spread: 0.0001, LotStep: 1000, MinVolume: 1000}
}

func closeBar(i int, c float64) model.Bar {
	return model.Bar{OpenTime: t0.Add(time.Duration(i) * time.Minute), Open: c, High: c, Low: c, Close: c}
}

func crossBars() []model.Bar {
	// fast SMA(2) 1.15 -> 1.25 crosses slow SMA(3) 1.20 -> 1.2333
	return []model.Bar{closeBar(0, 1.3), closeBar(1, 1.2), closeBar(2, 1.1), closeBar(3, 1.4)}
}

func crossConfig(v strategy.Variant) strategy.Config {
	cfg := strategy.DefaultConfig(v)
	cfg.Fast = strategy.MASpec{Type: "SMA", Period: 2}
	cfg.Slow = strategy.MASpec{Type: "SMA", Period: 3}
	cfg.Trend = strategy.MASpec{Type: "SMA", Period: 3}
	cfg.ATRPeriod = 2
	return cfg
}

func engulfingConfig() strategy.Config {
	cfg := strategy.DefaultConfig(strategy.VariantEngulfing)
	cfg.Fast = strategy.MASpec{Type: "SMA", Period: 1}
	cfg.Mid = strategy.MASpec{Type: "SMA", Period: 2}
	cfg.Slow = strategy.MASpec{Type: "SMA", Period: 3}
	cfg.Trend = strategy.MASpec{Type: "SMA", Period: 4}
	cfg.ATRPeriod = 3
	cfg.EngulfingRatio = 30
	return cfg
}

func bullishEngulfingBars() []model.Bar {
	return []model.Bar{
		closeBar(0, 1.00), closeBar(1, 1.01), closeBar(2, 1.02), closeBar(3, 1.03),
		{OpenTime: t0.Add(4 * time.Minute), Open: 1.030, High: 1.031, Low: 1.024, Close: 1.025},
		{OpenTime: t0.Add(5 * time.Minute), Open: 1.024, High: 1.041, Low: 1.023, Close: 1.040},
	}
}

func fixedSizer(t *testing.T) *risk.Sizer {
	t.Helper()
	cfg := risk.DefaultConfig()
	cfg.Mode = risk.ModeFixed
	cfg.Volume = 10000
	s, err := risk.NewSizer(cfg)
	require.NoError(t, err)
	return s
}

type fixture struct {
	robot    *Robot
	notifier *recordingNotifier
	reg      *prometheus.Registry
}

func newRobot(t *testing.T, scfg strategy.Config, broker model.Broker, sizer *risk.Sizer) fixture {
	t.Helper()
	strat, err := strategy.New(scfg, nil)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	n := &recordingNotifier{}
	deps := Deps{
		Strategy:  strat,
		Broker:    broker,
		Sizer:     sizer,
		Execution: execution.DefaultConfig(),
		Notifier:  n,
		Metrics:   metrics.NewMetrics(reg),
		Health:    metrics.NewHealthStatus("EURUSD", strat.Name()),
	}
	if sink, ok := broker.(QuoteSink); ok {
		deps.QuoteSink = sink
	}
	r, err := New(Config{Symbol: "EURUSD", BarPeriod: time.Minute, HistorySize: 64}, deps)
	require.NoError(t, err)
	return fixture{robot: r, notifier: n, reg: reg}
}

// counter returns the value of a counter series whose labels include want.
func counter(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue next
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func feed(r *Robot, bars []model.Bar) {
	for _, b := range bars {
		r.OnBar(context.Background(), b)
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.Error(t, err)
}

func TestOnBar_ScalpingOpensMarketPosition(t *testing.T) {
	paper := execution.NewPaperBroker(eurusd(), 10000)
	f := newRobot(t, crossConfig(strategy.VariantScalping), paper, fixedSizer(t))

	feed(f.robot, crossBars())

	pos := paper.Positions(context.Background())
	require.Len(t, pos, 1)
	assert.Equal(t, model.SideBuy, pos[0].Side)
	assert.Equal(t, 10000.0, pos[0].Volume)
	assert.Equal(t, "BUY", pos[0].Label)
	assert.InDelta(t, 1.1001, pos[0].EntryPrice, 1e-9)
	assert.InDelta(t, 1.1001-0.0010, pos[0].StopLoss, 1e-9)

	assert.Equal(t, 4.0, counter(t, f.reg, "robot_bars_total", nil))
	assert.Equal(t, 1.0, counter(t, f.reg, "robot_signals_total", map[string]string{"side": "BUY"}))
	assert.Positive(t, counter(t, f.reg, "robot_no_signal_total", map[string]string{"reason": "insufficient_history"}))
}

func TestWarmup_NeverTrades(t *testing.T) {
	broker := &staticBroker{symbol: eurusd()}
	f := newRobot(t, crossConfig(strategy.VariantScalping), broker, fixedSizer(t))

	f.robot.Warmup(crossBars())

	assert.Empty(t, broker.calls)
	assert.Equal(t, 4, f.robot.Engine().BarCount())
	assert.True(t, f.robot.Engine().Ready())
}

func TestOnBar_EngulfingPlacesStopOrder(t *testing.T) {
	paper := execution.NewPaperBroker(eurusd(), 10000)
	f := newRobot(t, engulfingConfig(), paper, fixedSizer(t))

	feed(f.robot, bullishEngulfingBars())

	pending := paper.PendingOrders(context.Background())
	require.Len(t, pending, 1)
	assert.Equal(t, model.SideBuy, pending[0].Side)
	assert.Equal(t, "BUY", pending[0].Label)
	// narrow spread: bid + 2 pips
	assert.InDelta(t, 1.1002, pending[0].TargetPrice, 1e-9)
	assert.Empty(t, paper.Positions(context.Background()))
	assert.Empty(t, f.notifier.alerts)
}

func TestOnBar_SpreadSafetyClearsBook(t *testing.T) {
	ctx := context.Background()
	sym := eurusd()
	sym.Ask, sym.Spread = 1.1005, 0.0005 // 5 pips > 2.9
	paper := execution.NewPaperBroker(sym, 10000)
	require.NoError(t, paper.ExecuteMarketOrder(ctx, model.MarketOrderRequest{Side: model.SideBuy, Volume: 1000}))
	require.NoError(t, paper.PlaceStopOrder(ctx, model.StopOrderRequest{Side: model.SideSell, Volume: 1000, TriggerPrice: 1.0998}))
	f := newRobot(t, engulfingConfig(), paper, fixedSizer(t))

	f.robot.OnBar(ctx, closeBar(0, 1.1))

	assert.Empty(t, paper.Positions(ctx))
	assert.Empty(t, paper.PendingOrders(ctx))
	require.Len(t, f.notifier.alerts, 1)
	assert.Equal(t, notification.AlertWarning, f.notifier.alerts[0].Level)
	assert.Equal(t, "EURUSD", f.notifier.alerts[0].Symbol)
	assert.NotEmpty(t, f.notifier.alerts[0].TraceID)
	assert.Equal(t, notification.KindSpreadLiquidation, f.notifier.alerts[0].Kind)
	assert.InDelta(t, 5, f.notifier.alerts[0].SpreadPips, 1e-9)
	assert.False(t, f.notifier.alerts[0].BarTime.IsZero())
	assert.Equal(t, 1.0, counter(t, f.reg, "robot_liquidations_total", nil))
	assert.Equal(t, 1.0, counter(t, f.reg, "robot_gate_rejections_total", map[string]string{"gate": "spread"}))
}

func TestOnBar_PendingCapBlocksEntry(t *testing.T) {
	ctx := context.Background()
	paper := execution.NewPaperBroker(eurusd(), 10000)
	for _, trigger := range []float64{1.1003, 1.1004, 1.1005} {
		require.NoError(t, paper.PlaceStopOrder(ctx, model.StopOrderRequest{Side: model.SideBuy, Volume: 1000, TriggerPrice: trigger}))
	}
	f := newRobot(t, engulfingConfig(), paper, fixedSizer(t))

	feed(f.robot, bullishEngulfingBars())

	assert.Len(t, paper.PendingOrders(ctx), 3, "nothing cancelled or added while over the cap")
	assert.Equal(t, 0.0, counter(t, f.reg, "robot_signals_total", nil))
	assert.Equal(t, 6.0, counter(t, f.reg, "robot_gate_rejections_total", map[string]string{"gate": "pending_cap"}))
}

func TestOnBar_SizingFailureDropsSignal(t *testing.T) {
	paper := execution.NewPaperBroker(eurusd(), 1) // balance too small for the minimum volume
	sizer, err := risk.NewSizer(risk.DefaultConfig())
	require.NoError(t, err)
	bars := crossBars()
	for i := range bars {
		bars[i].High += 0.001
		bars[i].Low -= 0.001
	}
	f := newRobot(t, crossConfig(strategy.VariantScalping), paper, sizer)

	feed(f.robot, bars)

	assert.Empty(t, paper.Positions(context.Background()))
	assert.Equal(t, 1.0, counter(t, f.reg, "robot_sizing_failures_total", nil))
	require.Len(t, f.notifier.alerts, 1)
	assert.Equal(t, notification.AlertWarning, f.notifier.alerts[0].Level)
	assert.Equal(t, notification.KindSignalDropped, f.notifier.alerts[0].Kind)
	assert.Equal(t, model.SideBuy, f.notifier.alerts[0].Side)
}

func TestOnBar_BrokerFailuresAbsorbed(t *testing.T) {
	paper := execution.NewPaperBroker(eurusd(), 10000)
	paper.FailCommands(errors.New("trade context busy"))
	f := newRobot(t, crossConfig(strategy.VariantScalping), paper, fixedSizer(t))

	assert.NotPanics(t, func() { feed(f.robot, crossBars()) })
	assert.Empty(t, paper.Positions(context.Background()))
	assert.Equal(t, 1.0, counter(t, f.reg, "robot_order_errors_total", map[string]string{"kind": execution.KindMarket}))
}

func TestOnQuote_TrendExitIsIdempotentPerCycle(t *testing.T) {
	broker := &staticBroker{
		symbol:    eurusd(),
		positions: []model.Position{{ID: "s1", Side: model.SideSell}, {ID: "b1", Side: model.SideBuy}},
	}
	cfg := crossConfig(strategy.VariantBreakout)
	f := newRobot(t, cfg, broker, fixedSizer(t))
	f.robot.Warmup([]model.Bar{closeBar(0, 1.0), closeBar(1, 1.0), closeBar(2, 1.0)})

	ctx := context.Background()
	q := model.Quote{Bid: 1.2, Ask: 1.2001}
	f.robot.OnQuote(ctx, q)
	f.robot.OnQuote(ctx, q)
	assert.Equal(t, []string{"close:s1"}, broker.calls)

	// between the bands nothing happens
	broker.calls = nil
	f.robot.OnQuote(ctx, model.Quote{Bid: 0.99995, Ask: 1.00005})
	assert.Empty(t, broker.calls)
	assert.Equal(t, 3.0, counter(t, f.reg, "robot_quotes_total", nil))
}

func TestOnQuote_NoExitReference(t *testing.T) {
	broker := &staticBroker{symbol: eurusd(), positions: []model.Position{{ID: "s1", Side: model.SideSell}}}
	f := newRobot(t, crossConfig(strategy.VariantScalping), broker, fixedSizer(t))
	f.robot.Warmup(crossBars())

	f.robot.OnQuote(context.Background(), model.Quote{Bid: 9, Ask: 9.0001})
	assert.Empty(t, broker.calls)
}

func TestRun_ConsumesUntilClosed(t *testing.T) {
	paper := execution.NewPaperBroker(eurusd(), 10000)
	f := newRobot(t, crossConfig(strategy.VariantScalping), paper, fixedSizer(t))

	events := make(chan model.Event, 8)
	for _, b := range crossBars() {
		events <- model.BarEvent("EURUSD", b)
	}
	// the quote fills nothing but moves the paper book's prices
	events <- model.QuoteEvent("EURUSD", model.Quote{Bid: 1.1002, Ask: 1.1003, TS: t0.Add(5 * time.Minute)})
	close(events)

	require.NoError(t, f.robot.Run(context.Background(), events))
	assert.Equal(t, 4, f.robot.Engine().BarCount())
	assert.Len(t, paper.Positions(context.Background()), 1)
	assert.InDelta(t, 1.1003, paper.Symbol(context.Background()).Ask, 1e-9)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newRobot(t, crossConfig(strategy.VariantScalping), &staticBroker{symbol: eurusd()}, fixedSizer(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.robot.Run(ctx, make(chan model.Event))
	assert.ErrorIs(t, err, context.Canceled)
}
