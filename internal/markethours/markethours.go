// Package markethours models the instrument's daily trading session.
package markethours

import (
	"fmt"
	"strings"
	"time"
)

// Config describes a daily session. Open is "HH:MM" in Timezone; the
// session lasts Length from there and may cross midnight.
type Config struct {
	Timezone      string        `yaml:"timezone" json:"timezone"`
	Open          string        `yaml:"open" json:"open"`
	Length        time.Duration `yaml:"length" json:"length"`
	TradeWeekends bool          `yaml:"trade_weekends" json:"trade_weekends"`
	ClosedDates   []string      `yaml:"closed_dates" json:"closed_dates"` // "2006-01-02", session open date
}

// DefaultConfig is a 24h UTC session, Monday to Friday.
func DefaultConfig() Config {
	return Config{
		Timezone: "UTC",
		Open:     "00:00",
		Length:   24 * time.Hour,
	}
}

// Session answers where a timestamp sits relative to the daily session.
type Session struct {
	loc           *time.Location
	openHour      int
	openMinute    int
	length        time.Duration
	tradeWeekends bool
	closed        map[string]bool
}

// New parses cfg into a Session.
func New(cfg Config) (*Session, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("session timezone %q: %w", tz, err)
	}
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(cfg.Open), "%d:%d", &h, &m); err != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return nil, fmt.Errorf("session open %q: want HH:MM", cfg.Open)
	}
	if cfg.Length <= 0 || cfg.Length > 24*time.Hour {
		return nil, fmt.Errorf("session length %s: want (0, 24h]", cfg.Length)
	}
	closed := make(map[string]bool, len(cfg.ClosedDates))
	for _, d := range cfg.ClosedDates {
		if _, err := time.ParseInLocation("2006-01-02", d, loc); err != nil {
			return nil, fmt.Errorf("closed date %q: %w", d, err)
		}
		closed[d] = true
	}
	return &Session{
		loc:           loc,
		openHour:      h,
		openMinute:    m,
		length:        cfg.Length,
		tradeWeekends: cfg.TradeWeekends,
		closed:        closed,
	}, nil
}

// IsTradingDay reports whether a session opens on the date of t.
func (s *Session) IsTradingDay(t time.Time) bool {
	lt := t.In(s.loc)
	if !s.tradeWeekends {
		if wd := lt.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false
		}
	}
	return !s.closed[lt.Format("2006-01-02")]
}

// current returns the open time of the session containing t.
func (s *Session) current(t time.Time) (time.Time, bool) {
	lt := t.In(s.loc)
	open := time.Date(lt.Year(), lt.Month(), lt.Day(), s.openHour, s.openMinute, 0, 0, s.loc)
	if lt.Before(open) {
		open = open.AddDate(0, 0, -1)
	}
	if !lt.Before(open.Add(s.length)) || !s.IsTradingDay(open) {
		return time.Time{}, false
	}
	return open, true
}

// IsOpen returns true if t falls inside a session.
func (s *Session) IsOpen(t time.Time) bool {
	_, ok := s.current(t)
	return ok
}

// TimeSinceOpen returns the time elapsed since the current session opened.
// Returns 0 outside a session.
func (s *Session) TimeSinceOpen(t time.Time) time.Duration {
	open, ok := s.current(t)
	if !ok {
		return 0
	}
	return t.Sub(open)
}

// TimeUntilClose returns the duration until the current session closes.
// Returns 0 outside a session.
func (s *Session) TimeUntilClose(t time.Time) time.Duration {
	open, ok := s.current(t)
	if !ok {
		return 0
	}
	return open.Add(s.length).Sub(t)
}

// NextOpen returns the next session open strictly after t.
func (s *Session) NextOpen(t time.Time) time.Time {
	lt := t.In(s.loc)
	d := time.Date(lt.Year(), lt.Month(), lt.Day(), s.openHour, s.openMinute, 0, 0, s.loc)
	for i := 0; i < 15; i++ { // weekends + closed dates
		if d.After(lt) && s.IsTradingDay(d) {
			return d
		}
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// StatusString returns a human-readable session status.
func (s *Session) StatusString(t time.Time) string {
	if s.IsOpen(t) {
		return fmt.Sprintf("Session open, closes in %s", fmtDur(s.TimeUntilClose(t)))
	}
	next := s.NextOpen(t)
	return fmt.Sprintf("Session closed, opens %s %s (%s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
