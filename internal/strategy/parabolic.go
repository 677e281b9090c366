package strategy

import (
	"trading-signalcore/internal/indicator"
	"trading-signalcore/internal/model"
)

// Parabolic reverses on Parabolic SAR flips. A bar reads Sell when the SAR
// is above its high and Buy when below its low; when the last two closed
// bars read opposite directions every position is closed and a market
// order opens in the new direction.
type Parabolic struct {
	cfg Config
}

// NewParabolic creates the SAR reversal strategy.
func NewParabolic(cfg Config) *Parabolic {
	return &Parabolic{cfg: cfg}
}

func (p *Parabolic) Name() string { return string(VariantParabolic) }

func (p *Parabolic) Indicators() []indicator.IndicatorConfig { return p.cfg.indicatorConfigs() }

func (p *Parabolic) ExitReference() string { return "" }

func (p *Parabolic) Evaluate(eng *indicator.Engine, snap Snapshot) (Decision, error) {
	var d Decision

	prev, err := sarSide(eng, 1)
	if err != nil {
		return d, err
	}
	last, err := sarSide(eng, 0)
	if err != nil {
		return d, err
	}
	if !prev.Valid() || !last.Valid() || prev == last {
		return d, nil
	}

	d.CloseAll = true
	d.Signal = Signal{Side: last, BarIndex: snap.BarIndex, Reason: "parabolic SAR reversed to " + last.String()}
	d.Entry = EntryMarket
	return d, nil
}

// sarSide reads the SAR position relative to the bar offset places back.
func sarSide(eng *indicator.Engine, offset int) (model.Side, error) {
	sar, err := eng.Value(SAR, offset)
	if err != nil {
		return model.SideNone, err
	}
	bar, err := eng.Bar(offset)
	if err != nil {
		return model.SideNone, err
	}
	switch {
	case sar > bar.High:
		return model.SideSell, nil
	case sar < bar.Low:
		return model.SideBuy, nil
	}
	return model.SideNone, nil
}
