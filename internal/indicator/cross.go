package indicator

// IsRising reports whether the last value is strictly above the previous one.
func IsRising(s *Series) (bool, error) {
	last, prev, err := lastTwo(s)
	if err != nil {
		return false, err
	}
	return last > prev, nil
}

// IsFalling reports whether the last value is strictly below the previous one.
func IsFalling(s *Series) (bool, error) {
	last, prev, err := lastTwo(s)
	if err != nil {
		return false, err
	}
	return last < prev, nil
}

// HasCrossedAbove reports whether a is above b now and was at or below b
// lookback+1 bars ago. Lookback 0 compares the last two bars.
func HasCrossedAbove(a, b *Series, lookback int) (bool, error) {
	a0, b0, aN, bN, err := crossPoints(a, b, lookback)
	if err != nil {
		return false, err
	}
	return a0 > b0 && aN <= bN, nil
}

// HasCrossedBelow reports whether a is below b now and was at or above b
// lookback+1 bars ago.
func HasCrossedBelow(a, b *Series, lookback int) (bool, error) {
	a0, b0, aN, bN, err := crossPoints(a, b, lookback)
	if err != nil {
		return false, err
	}
	return a0 < b0 && aN >= bN, nil
}

func lastTwo(s *Series) (float64, float64, error) {
	last, err := s.At(0)
	if err != nil {
		return 0, 0, err
	}
	prev, err := s.At(1)
	if err != nil {
		return 0, 0, err
	}
	return last, prev, nil
}

func crossPoints(a, b *Series, lookback int) (a0, b0, aN, bN float64, err error) {
	if lookback < 0 {
		lookback = 0
	}
	n := lookback + 1
	if a0, err = a.At(0); err != nil {
		return
	}
	if b0, err = b.At(0); err != nil {
		return
	}
	if aN, err = a.At(n); err != nil {
		return
	}
	bN, err = b.At(n)
	return
}
