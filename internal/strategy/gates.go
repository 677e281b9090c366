package strategy

import (
	"time"

	"trading-signalcore/internal/markethours"
	"trading-signalcore/internal/model"
)

// Gates are the pre-signal checks of the trend/pattern style.
type Gates struct {
	MaxSpreadPips float64
	MaxPending    int
	AfterOpen     time.Duration
	BeforeClose   time.Duration
	Session       *markethours.Session // nil disables the session checks
}

// SpreadTooWide reports whether the spread exceeds the maximum by at least
// one pip-size tolerance.
func (g Gates) SpreadTooWide(sym model.SymbolInfo) bool {
	return model.ExceedsByPips(sym.SpreadPips(), g.MaxSpreadPips, sym.PipSize)
}

// PendingCapExceeded reports whether more orders are pending than allowed.
func (g Gates) PendingCapExceeded(pending int) bool {
	return pending > g.MaxPending
}

// TooEarly reports whether the session opened less than AfterOpen ago.
func (g Gates) TooEarly(t time.Time) bool {
	if g.Session == nil {
		return false
	}
	return g.Session.TimeSinceOpen(t) <= g.AfterOpen
}

// TooLate reports whether the session closes within BeforeClose.
func (g Gates) TooLate(t time.Time) bool {
	if g.Session == nil {
		return false
	}
	return g.Session.TimeUntilClose(t) <= g.BeforeClose
}

// Check runs the gates in order and returns the first that fails.
func (g Gates) Check(snap Snapshot) (Gate, bool) {
	switch {
	case g.SpreadTooWide(snap.Symbol):
		return GateSpread, false
	case g.PendingCapExceeded(len(snap.Pending)):
		return GatePendingCap, false
	case g.TooEarly(snap.Time):
		return GateEarly, false
	case g.TooLate(snap.Time):
		return GateLate, false
	}
	return "", true
}
