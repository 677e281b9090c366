// Package pattern detects two-bar candle patterns on closed bars.
package pattern

import (
	"math"

	"trading-signalcore/internal/model"
)

// DefaultMinRatio is the default baby-to-mother size ratio in percent.
const DefaultMinRatio = 50.0

// IsBullishEngulfing reports whether a bearish prev bar is engulfed by a
// bullish last bar. The ratio compares body sizes, prev over last, in
// percent.
func IsBullishEngulfing(prev, last model.Bar, minRatio float64) bool {
	if !prev.IsBearish() || !last.IsBullish() {
		return false
	}
	if prev.Open >= last.Close {
		return false
	}
	if prev.Close < last.Open {
		return false
	}
	return sizeRatio(prev.Body(), last.Body()) >= minRatio
}

// IsBearishEngulfing is the mirror of IsBullishEngulfing, except that the
// ratio compares full high-low ranges rather than bodies.
func IsBearishEngulfing(prev, last model.Bar, minRatio float64) bool {
	if !prev.IsBullish() || !last.IsBearish() {
		return false
	}
	if prev.Close > last.Open {
		return false
	}
	if prev.Open <= last.Close {
		return false
	}
	return sizeRatio(prev.Range(), last.Range()) >= minRatio
}

// Engulfing wraps both detectors behind one threshold.
type Engulfing struct {
	MinRatio float64
}

// Detect returns the direction of an engulfing pattern on (prev, last),
// or SideNone.
func (e Engulfing) Detect(prev, last model.Bar) model.Side {
	switch {
	case IsBullishEngulfing(prev, last, e.MinRatio):
		return model.SideBuy
	case IsBearishEngulfing(prev, last, e.MinRatio):
		return model.SideSell
	}
	return model.SideNone
}

func sizeRatio(baby, mother float64) float64 {
	if mother <= 0 {
		return math.Inf(-1)
	}
	return baby / mother * 100
}
