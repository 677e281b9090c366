package indicator

import (
	"fmt"
	"time"

	"trading-signalcore/internal/model"
)

// entry is one registered indicator and the history of its ready values.
type entry struct {
	name   string
	ind    Indicator
	series *Series
}

// Engine owns the named indicators of one instrument and the history of
// closed bars. Every Update advances all indicators exactly once.
// Designed for single-goroutine usage; no locks needed.
type Engine struct {
	entries []*entry
	byName  map[string]*entry
	bars    *History[model.Bar]
	size    int

	// OnUpdate, when set, is called with the time spent on each Update.
	OnUpdate func(d time.Duration)
}

// NewEngine creates an engine whose series retain historySize values.
// historySize <= 0 selects DefaultHistorySize.
func NewEngine(historySize int) *Engine {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Engine{
		byName: make(map[string]*entry, 8),
		bars:   NewHistory[model.Bar](historySize),
		size:   historySize,
	}
}

// Register adds an indicator under name. Names must be unique.
func (e *Engine) Register(name string, ind Indicator) error {
	if name == "" {
		return fmt.Errorf("%w: empty indicator name", ErrInvalidConfig)
	}
	if _, dup := e.byName[name]; dup {
		return fmt.Errorf("%w: duplicate indicator name %q", ErrInvalidConfig, name)
	}
	en := &entry{name: name, ind: ind, series: NewSeries(e.size)}
	e.entries = append(e.entries, en)
	e.byName[name] = en
	return nil
}

// Build creates and registers every configured indicator.
func (e *Engine) Build(cfgs []IndicatorConfig) error {
	for _, c := range cfgs {
		ind, err := New(c)
		if err != nil {
			return fmt.Errorf("indicator %q: %w", c.Name, err)
		}
		if err := e.Register(c.Name, ind); err != nil {
			return err
		}
	}
	return nil
}

// Update feeds one closed bar to every indicator and records the values
// of those that are ready.
func (e *Engine) Update(bar model.Bar) {
	start := time.Now()
	e.bars.Append(bar)
	for _, en := range e.entries {
		en.ind.Update(bar)
		if en.ind.Ready() {
			en.series.Append(en.ind.Value())
		}
	}
	if e.OnUpdate != nil {
		e.OnUpdate(time.Since(start))
	}
}

// Warmup replays historical bars oldest first.
func (e *Engine) Warmup(bars []model.Bar) {
	for _, b := range bars {
		e.Update(b)
	}
}

// Indicator returns the registered indicator.
func (e *Engine) Indicator(name string) (Indicator, error) {
	en, ok := e.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIndicator, name)
	}
	return en.ind, nil
}

// Series returns the value history of a registered indicator.
func (e *Engine) Series(name string) (*Series, error) {
	en, ok := e.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIndicator, name)
	}
	return en.series, nil
}

// Value returns the value of name offset bars back (0 = last closed bar).
func (e *Engine) Value(name string, offset int) (float64, error) {
	s, err := e.Series(name)
	if err != nil {
		return 0, err
	}
	return s.At(offset)
}

// Bar returns the closed bar offset places back (0 = last).
func (e *Engine) Bar(offset int) (model.Bar, error) {
	return e.bars.At(offset)
}

// BarCount returns the number of bars seen, warm-up included.
func (e *Engine) BarCount() int { return e.bars.Len() }

// Ready reports whether every registered indicator has a value.
func (e *Engine) Ready() bool {
	for _, en := range e.entries {
		if !en.ind.Ready() {
			return false
		}
	}
	return len(e.entries) > 0
}

// Names returns registered indicator names in registration order.
func (e *Engine) Names() []string {
	out := make([]string, len(e.entries))
	for i, en := range e.entries {
		out[i] = en.name
	}
	return out
}

// IsRising reports whether the named series rose on the last bar.
func (e *Engine) IsRising(name string) (bool, error) {
	s, err := e.Series(name)
	if err != nil {
		return false, err
	}
	return IsRising(s)
}

// IsFalling reports whether the named series fell on the last bar.
func (e *Engine) IsFalling(name string) (bool, error) {
	s, err := e.Series(name)
	if err != nil {
		return false, err
	}
	return IsFalling(s)
}

// HasCrossedAbove reports whether series a crossed above series b within
// the last lookback+1 bars.
func (e *Engine) HasCrossedAbove(a, b string, lookback int) (bool, error) {
	sa, sb, err := e.pair(a, b)
	if err != nil {
		return false, err
	}
	return HasCrossedAbove(sa, sb, lookback)
}

// HasCrossedBelow is the mirror of HasCrossedAbove.
func (e *Engine) HasCrossedBelow(a, b string, lookback int) (bool, error) {
	sa, sb, err := e.pair(a, b)
	if err != nil {
		return false, err
	}
	return HasCrossedBelow(sa, sb, lookback)
}

func (e *Engine) pair(a, b string) (*Series, *Series, error) {
	sa, err := e.Series(a)
	if err != nil {
		return nil, nil, err
	}
	sb, err := e.Series(b)
	if err != nil {
		return nil, nil, err
	}
	return sa, sb, nil
}
