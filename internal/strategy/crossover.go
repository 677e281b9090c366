package strategy

import (
	"fmt"

	"trading-signalcore/internal/indicator"
	"trading-signalcore/internal/model"
)

// Crossover trades fast/slow moving average crossings at market.
//
//	scalping:  plain crossing
//	breakout:  crossing confirmed by price outside a band around the trend MA
//	ma-bias:   every bar closes positions against the fast/slow bias; new
//	           entries only while flat, target widened by the spread
type Crossover struct {
	name         string
	cfg          Config
	lookback     int
	bandPips     float64
	bias         bool
	flatOnly     bool
	spreadTarget bool
	exitRef      string
}

// NewCrossover creates a crossover strategy for a scalping, breakout or
// ma-bias config.
func NewCrossover(cfg Config) *Crossover {
	c := &Crossover{
		name:     string(cfg.Variant),
		cfg:      cfg,
		lookback: cfg.CrossLookback,
	}
	switch cfg.Variant {
	case VariantBreakout:
		c.bandPips = cfg.BufferPips
	case VariantMABias:
		c.bias = true
		c.flatOnly = true
		c.spreadTarget = true
	}
	if cfg.TrendExit && cfg.Variant == VariantBreakout {
		c.exitRef = Trend
	}
	return c
}

func (c *Crossover) Name() string { return c.name }

func (c *Crossover) Indicators() []indicator.IndicatorConfig { return c.cfg.indicatorConfigs() }

func (c *Crossover) ExitReference() string { return c.exitRef }

func (c *Crossover) Evaluate(eng *indicator.Engine, snap Snapshot) (Decision, error) {
	var d Decision

	if c.bias {
		fast, err := eng.Value(Fast, 0)
		if err != nil {
			return d, err
		}
		slow, err := eng.Value(Slow, 0)
		if err != nil {
			return d, err
		}
		switch {
		case fast > slow:
			d.CloseSide = model.SideSell
		case fast < slow:
			d.CloseSide = model.SideBuy
		}
	}

	if c.flatOnly && len(snap.Positions) > 0 {
		return d, nil
	}

	up, err := eng.HasCrossedAbove(Fast, Slow, c.lookback)
	if err != nil {
		return d, err
	}
	down, err := eng.HasCrossedBelow(Fast, Slow, c.lookback)
	if err != nil {
		return d, err
	}

	var side model.Side
	reason := Fast + " crossed "
	switch {
	case up:
		side = model.SideBuy
		reason += "above " + Slow
	case down:
		side = model.SideSell
		reason += "below " + Slow
	default:
		return d, nil
	}

	if c.bandPips > 0 {
		trend, err := eng.Value(Trend, 0)
		if err != nil {
			return d, err
		}
		band := snap.Symbol.PipsToPrice(c.bandPips)
		if side == model.SideBuy && !(snap.Symbol.Bid > trend+band) {
			return d, nil
		}
		if side == model.SideSell && !(snap.Symbol.Ask < trend-band) {
			return d, nil
		}
		reason += fmt.Sprintf(", outside %.0f pip band", c.bandPips)
	}

	d.Signal = Signal{Side: side, BarIndex: snap.BarIndex, Reason: reason}
	d.Entry = EntryMarket
	if c.spreadTarget {
		d.ExtraTargetPips = snap.Symbol.SpreadPips()
	}
	return d, nil
}
