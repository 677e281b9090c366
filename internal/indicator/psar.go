package indicator

import (
	"fmt"
	"math"
	"strconv"

	"trading-signalcore/internal/model"
)

// ParabolicSAR is Wilder's stop-and-reverse indicator.
//
// The acceleration factor starts at step, grows by step every time the
// trend makes a new extreme point, and is capped at max. The trend is
// seeded on the second bar by comparing closes. On a reversal the SAR
// jumps to the prior extreme point.
type ParabolicSAR struct {
	step float64
	max  float64

	count int
	prev  model.Bar // last bar
	prev2 model.Bar // bar before last

	long    bool
	sar     float64
	ep      float64 // extreme point of the current trend
	af      float64
	current float64
}

// NewParabolicSAR validates the acceleration settings and returns a SAR.
func NewParabolicSAR(step, max float64) (*ParabolicSAR, error) {
	if step <= 0 || max <= 0 || step > max {
		return nil, fmt.Errorf("%w: psar step %.4f / max %.4f", ErrInvalidConfig, step, max)
	}
	return &ParabolicSAR{step: step, max: max}, nil
}

func (p *ParabolicSAR) Name() string {
	return "PSAR(" + strconv.FormatFloat(p.step, 'f', -1, 64) + "," + strconv.FormatFloat(p.max, 'f', -1, 64) + ")"
}

func (p *ParabolicSAR) Update(bar model.Bar) {
	p.count++

	switch p.count {
	case 1:
		p.prev = bar
		return
	case 2:
		p.long = bar.Close >= p.prev.Close
		if p.long {
			p.sar = math.Min(p.prev.Low, bar.Low)
			p.ep = math.Max(p.prev.High, bar.High)
		} else {
			p.sar = math.Max(p.prev.High, bar.High)
			p.ep = math.Min(p.prev.Low, bar.Low)
		}
		p.af = p.step
		p.current = p.sar
		p.prev2, p.prev = p.prev, bar
		return
	}

	next := p.sar + p.af*(p.ep-p.sar)
	if p.long {
		// SAR may never sit inside the last two bars' range
		next = math.Min(next, math.Min(p.prev.Low, p.prev2.Low))
		if bar.Low < next {
			p.long = false
			next = math.Max(p.ep, bar.High)
			p.ep = bar.Low
			p.af = p.step
		} else if bar.High > p.ep {
			p.ep = bar.High
			p.af = math.Min(p.af+p.step, p.max)
		}
	} else {
		next = math.Max(next, math.Max(p.prev.High, p.prev2.High))
		if bar.High > next {
			p.long = true
			next = math.Min(p.ep, bar.Low)
			p.ep = bar.High
			p.af = p.step
		} else if bar.Low < p.ep {
			p.ep = bar.Low
			p.af = math.Min(p.af+p.step, p.max)
		}
	}

	p.sar = next
	p.current = next
	p.prev2, p.prev = p.prev, bar
}

func (p *ParabolicSAR) Value() float64 { return p.current }
func (p *ParabolicSAR) Ready() bool    { return p.count >= 2 }

// Trend returns the current SAR direction, SideNone before Ready.
func (p *ParabolicSAR) Trend() model.Side {
	if !p.Ready() {
		return model.SideNone
	}
	if p.long {
		return model.SideBuy
	}
	return model.SideSell
}

// AccelerationFactor returns the factor used for the next step.
func (p *ParabolicSAR) AccelerationFactor() float64 { return p.af }
