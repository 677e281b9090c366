package strategy

import (
	"time"

	"trading-signalcore/internal/indicator"
	"trading-signalcore/internal/markethours"
	"trading-signalcore/internal/model"
	"trading-signalcore/internal/pattern"
)

// TrendEngulfing enters with a stop order when four moving averages are
// aligned and moving the same way and the last two bars form a matching
// engulfing pattern.
//
// Before evaluating, every bar it cancels stale pending orders, liquidates
// on a wide spread, and respects the pending-order cap and session window.
type TrendEngulfing struct {
	cfg     Config
	gates   Gates
	pattern pattern.Engulfing
}

// NewTrendEngulfing creates the trend-alignment + engulfing strategy.
func NewTrendEngulfing(cfg Config, session *markethours.Session) *TrendEngulfing {
	return &TrendEngulfing{
		cfg: cfg,
		gates: Gates{
			MaxSpreadPips: cfg.MaxSpreadPips,
			MaxPending:    cfg.MaxPendingOrders,
			AfterOpen:     time.Duration(cfg.AfterOpenMinutes) * time.Minute,
			BeforeClose:   time.Duration(cfg.BeforeCloseMinutes) * time.Minute,
			Session:       session,
		},
		pattern: pattern.Engulfing{MinRatio: cfg.EngulfingRatio},
	}
}

func (t *TrendEngulfing) Name() string { return string(VariantEngulfing) }

func (t *TrendEngulfing) Indicators() []indicator.IndicatorConfig { return t.cfg.indicatorConfigs() }

func (t *TrendEngulfing) ExitReference() string {
	if t.cfg.TrendExit {
		return Trend
	}
	return ""
}

func (t *TrendEngulfing) Evaluate(eng *indicator.Engine, snap Snapshot) (Decision, error) {
	d := Decision{CancelStale: true}

	if gate, ok := t.gates.Check(snap); !ok {
		d.Rejected = gate
		d.CloseAll = gate == GateSpread
		return d, nil
	}

	prev, err := eng.Bar(1)
	if err != nil {
		return d, err
	}
	last, err := eng.Bar(0)
	if err != nil {
		return d, err
	}

	bull, err := t.aligned(eng, model.SideBuy)
	if err != nil {
		return d, err
	}
	if bull && pattern.IsBullishEngulfing(prev, last, t.pattern.MinRatio) {
		d.Signal = Signal{Side: model.SideBuy, BarIndex: snap.BarIndex, Reason: "bullish trend + bullish engulfing"}
		d.Entry = EntryStop
		return d, nil
	}

	bear, err := t.aligned(eng, model.SideSell)
	if err != nil {
		return d, err
	}
	if bear && pattern.IsBearishEngulfing(prev, last, t.pattern.MinRatio) {
		d.Signal = Signal{Side: model.SideSell, BarIndex: snap.BarIndex, Reason: "bearish trend + bearish engulfing"}
		d.Entry = EntryStop
	}
	return d, nil
}

// aligned reports whether all four averages move toward side and are
// strictly ordered fast > mid > slow > trend (reversed for sells).
func (t *TrendEngulfing) aligned(eng *indicator.Engine, side model.Side) (bool, error) {
	names := [4]string{Fast, Mid, Slow, Trend}
	var last [4]float64
	for i, name := range names {
		var moving bool
		var err error
		if side == model.SideBuy {
			moving, err = eng.IsRising(name)
		} else {
			moving, err = eng.IsFalling(name)
		}
		if err != nil || !moving {
			return false, err
		}
		if last[i], err = eng.Value(name, 0); err != nil {
			return false, err
		}
	}
	for i := 0; i < len(last)-1; i++ {
		if side == model.SideBuy && last[i] <= last[i+1] {
			return false, nil
		}
		if side == model.SideSell && last[i] >= last[i+1] {
			return false, nil
		}
	}
	return true, nil
}
