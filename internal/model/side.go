package model

// Side is the direction of a signal, order or position.
type Side int

const (
	SideNone Side = iota
	SideBuy
	SideSell
)

// String returns the broker-facing label for the side.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "NONE"
	}
}

// Opposite returns the reverse direction. SideNone has no opposite.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return SideNone
	}
}

// Valid reports whether s is Buy or Sell.
func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// ParseSide converts a label ("BUY"/"SELL", any case) to a Side.
func ParseSide(label string) Side {
	switch label {
	case "BUY", "buy", "Buy":
		return SideBuy
	case "SELL", "sell", "Sell":
		return SideSell
	default:
		return SideNone
	}
}
