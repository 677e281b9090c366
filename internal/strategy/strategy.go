// Package strategy turns indicator and pattern state into trading decisions.
//
// A Strategy is evaluated once per closed bar against the indicator Engine
// and a snapshot of broker state. It never talks to the broker itself: it
// returns a Decision describing the housekeeping (cancel stale orders,
// liquidate, close one side) and the entry the robot should carry out.
package strategy

import (
	"fmt"
	"time"

	"trading-signalcore/internal/indicator"
	"trading-signalcore/internal/markethours"
	"trading-signalcore/internal/model"
)

// Indicator names registered by the strategies.
const (
	Fast  = "fast"
	Mid   = "mid"
	Slow  = "slow"
	Trend = "trend"
	ATR   = "atr"
	SAR   = "sar"
)

// Signal is a directional decision for one bar.
type Signal struct {
	Side     model.Side `json:"side"`
	BarIndex int        `json:"bar_index"`
	Reason   string     `json:"reason"`
}

// EntryKind selects how a signal enters the market.
type EntryKind int

const (
	EntryNone EntryKind = iota
	EntryMarket
	EntryStop
)

func (k EntryKind) String() string {
	switch k {
	case EntryMarket:
		return "market"
	case EntryStop:
		return "stop"
	default:
		return "none"
	}
}

// Gate names a pre-signal check that stopped evaluation.
type Gate string

const (
	GateSpread     Gate = "spread"
	GatePendingCap Gate = "pending_cap"
	GateEarly      Gate = "too_early"
	GateLate       Gate = "too_late"
)

// Decision is everything a strategy wants done after one bar, applied in
// field order: stale cancels, liquidation, one-side close, then entry.
type Decision struct {
	CancelStale bool
	CloseAll    bool
	CloseSide   model.Side // close every position of this side
	Rejected    Gate       // set when a gate stopped evaluation

	Signal          Signal
	Entry           EntryKind
	ExtraTargetPips float64 // added to the sized take-profit
}

// HasEntry reports whether the decision opens a new order.
func (d Decision) HasEntry() bool {
	return d.Signal.Side.Valid() && d.Entry != EntryNone
}

// Snapshot is the broker state a strategy sees for one bar.
type Snapshot struct {
	BarIndex  int       // zero-based index of the last closed bar
	Time      time.Time // bar close time, used by session gates
	Symbol    model.SymbolInfo
	Positions []model.Position
	Pending   []model.PendingOrder
}

// Strategy is the interface all signal variants implement.
type Strategy interface {
	// Name returns the variant name.
	Name() string

	// Indicators lists what must be registered on the engine.
	Indicators() []indicator.IndicatorConfig

	// Evaluate decides on the last closed bar. Errors wrapping
	// indicator.ErrInsufficientHistory mean "no signal yet"; the returned
	// Decision still carries any housekeeping decided before the failure.
	Evaluate(eng *indicator.Engine, snap Snapshot) (Decision, error)

	// ExitReference names the series used by the quote-driven trend exit,
	// or "" when the variant has none.
	ExitReference() string
}

// New builds the strategy selected by cfg.Variant. session may be nil, in
// which case session gates always pass.
func New(cfg Config, session *markethours.Session) (Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Variant {
	case VariantScalping, VariantBreakout, VariantMABias:
		return NewCrossover(cfg), nil
	case VariantEngulfing:
		return NewTrendEngulfing(cfg, session), nil
	case VariantParabolic:
		return NewParabolic(cfg), nil
	}
	return nil, fmt.Errorf("unknown strategy variant %q", cfg.Variant)
}
