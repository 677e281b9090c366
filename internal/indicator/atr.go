package indicator

import (
	"math"
	"strconv"

	"trading-signalcore/internal/model"
)

// ATR - Average True Range, the chosen moving average of true range.
//
//	TR[t] = max(high-low, |high-prevClose|, |low-prevClose|)
//
// The first bar has no previous close, so its TR is high-low.
type ATR struct {
	period    int
	smoothing MAType
	avg       Averager
	prevClose float64
	hasPrev   bool
}

// NewATR creates an ATR over period bars smoothed by the given MA type.
func NewATR(period int, smoothing MAType) (*ATR, error) {
	avg, err := NewMovingAverage(smoothing, period)
	if err != nil {
		return nil, err
	}
	return &ATR{
		period:    period,
		smoothing: smoothing,
		avg:       avg,
	}, nil
}

func (a *ATR) Name() string {
	return "ATR(" + strconv.Itoa(a.period) + "," + string(a.smoothing) + ")"
}

func (a *ATR) Update(bar model.Bar) {
	tr := bar.High - bar.Low
	if a.hasPrev {
		tr = math.Max(tr, math.Max(math.Abs(bar.High-a.prevClose), math.Abs(bar.Low-a.prevClose)))
	}
	a.avg.Add(tr)
	a.prevClose = bar.Close
	a.hasPrev = true
}

func (a *ATR) Value() float64 { return a.avg.Value() }
func (a *ATR) Ready() bool    { return a.avg.Ready() }
