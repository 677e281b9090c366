package indicator

import (
	"strconv"

	"trading-signalcore/internal/model"
)

// resumInterval bounds running-sum drift: every resumInterval updates the
// window sum is recomputed from the buffer.
const resumInterval = 1024

// SMA calculates Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer and a running sum.
type SMA struct {
	period     int
	buf        []float64 // preallocated circular buffer
	idx        int       // current write position
	count      int       // total values received
	sum        float64
	current    float64
	sinceResum int
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return "SMA(" + strconv.Itoa(s.period) + ")" }

func (s *SMA) Update(bar model.Bar) { s.Add(bar.Close) }

// Add feeds one raw value into the window.
func (s *SMA) Add(x float64) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.sum -= s.buf[s.idx]
	}

	s.buf[s.idx] = x
	s.sum += x
	s.idx = (s.idx + 1) % s.period
	s.count++

	s.sinceResum++
	if s.sinceResum >= resumInterval {
		s.resum()
	}

	if s.count >= s.period {
		s.current = s.sum / float64(s.period)
	}
}

// resum recomputes the window sum from scratch. Unfilled slots are zero.
func (s *SMA) resum() {
	sum := 0.0
	for _, v := range s.buf {
		sum += v
	}
	s.sum = sum
	s.sinceResum = 0
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.count >= s.period }
