// Package indicator provides incremental technical indicator calculations
// over closed bars.
//
// Every indicator is updated once per bar in O(1) (or O(window) on a
// periodic resum) and never recomputes history. The Engine appends each
// ready value to an append-only Series so callers can read "last",
// "last-1", ... in O(1).
package indicator

import (
	"errors"
	"fmt"
	"strings"

	"trading-signalcore/internal/model"
)

var (
	// ErrInsufficientHistory is returned when a value is requested further
	// back than the series holds.
	ErrInsufficientHistory = errors.New("insufficient indicator history")

	// ErrUnknownIndicator is returned for names that were never registered.
	ErrUnknownIndicator = errors.New("unknown indicator")

	// ErrInvalidConfig is returned by New for malformed indicator settings.
	ErrInvalidConfig = errors.New("invalid indicator config")
)

// Indicator is the interface for all technical indicators.
type Indicator interface {
	// Name returns the indicator label (e.g., "SMA(14)", "PSAR(0.02,0.2)").
	Name() string

	// Update feeds the next closed bar and recalculates.
	Update(bar model.Bar)

	// Value returns the current calculated value. Returns 0 if not ready.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}

// Averager is a moving average that can also smooth arbitrary inputs
// (ATR feeds true range through one).
type Averager interface {
	Indicator
	Add(x float64)
}

// MAType selects a moving average formula.
type MAType string

const (
	MASimple      MAType = "SMA"
	MAExponential MAType = "EMA"
	MASmoothed    MAType = "SMMA" // Wilder
)

// ParseMAType accepts the common spellings used in config files.
func ParseMAType(s string) (MAType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SMA", "SIMPLE":
		return MASimple, nil
	case "EMA", "EXPONENTIAL":
		return MAExponential, nil
	case "SMMA", "WILDER", "SMOOTHED":
		return MASmoothed, nil
	}
	return "", fmt.Errorf("%w: unknown moving average type %q", ErrInvalidConfig, s)
}

// NewMovingAverage creates an averager of the given type.
func NewMovingAverage(t MAType, period int) (Averager, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: %s period must be positive, got %d", ErrInvalidConfig, t, period)
	}
	switch t {
	case MASimple:
		return NewSMA(period), nil
	case MAExponential:
		return NewEMA(period), nil
	case MASmoothed:
		return NewSMMA(period), nil
	}
	return nil, fmt.Errorf("%w: unknown moving average type %q", ErrInvalidConfig, t)
}

// IndicatorConfig specifies a single indicator to compute.
type IndicatorConfig struct {
	Name      string  // registry key, e.g. "fast", "atr"
	Type      string  // "SMA", "EMA", "SMMA", "ATR", "PSAR"
	Period    int     // window for MAs and ATR
	Smoothing string  // ATR smoothing MA type (default EMA)
	Step      float64 // PSAR acceleration step (also the initial factor)
	Max       float64 // PSAR acceleration cap
}

// New builds an indicator from its config. Malformed settings fail here,
// at configuration time, never mid-stream.
func New(cfg IndicatorConfig) (Indicator, error) {
	switch strings.ToUpper(cfg.Type) {
	case "ATR":
		smoothing := MAExponential
		if cfg.Smoothing != "" {
			t, err := ParseMAType(cfg.Smoothing)
			if err != nil {
				return nil, err
			}
			smoothing = t
		}
		return NewATR(cfg.Period, smoothing)
	case "PSAR", "SAR":
		return NewParabolicSAR(cfg.Step, cfg.Max)
	}
	t, err := ParseMAType(cfg.Type)
	if err != nil {
		return nil, err
	}
	return NewMovingAverage(t, cfg.Period)
}
