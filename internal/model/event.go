package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind tags the payload carried by an Event.
type EventKind string

const (
	EventBar   EventKind = "bar"
	EventQuote EventKind = "quote"
)

// Event is the single ordered envelope delivered by market data feeds.
// Exactly one of Bar or Quote is set, matching Kind.
type Event struct {
	Kind   EventKind `json:"type"`
	Symbol string    `json:"symbol,omitempty"`
	Bar    *Bar      `json:"bar,omitempty"`
	Quote  *Quote    `json:"quote,omitempty"`
}

// BarEvent wraps a closed bar.
func BarEvent(symbol string, b Bar) Event {
	return Event{Kind: EventBar, Symbol: symbol, Bar: &b}
}

// QuoteEvent wraps a quote.
func QuoteEvent(symbol string, q Quote) Event {
	return Event{Kind: EventQuote, Symbol: symbol, Quote: &q}
}

// TS returns the event time (bar open time or quote time).
func (e Event) TS() time.Time {
	switch {
	case e.Bar != nil:
		return e.Bar.OpenTime
	case e.Quote != nil:
		return e.Quote.TS
	}
	return time.Time{}
}

// DecodeEvent parses and validates a JSON-encoded event.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	switch ev.Kind {
	case EventBar:
		if ev.Bar == nil {
			return Event{}, fmt.Errorf("decode event: bar event without bar payload")
		}
	case EventQuote:
		if ev.Quote == nil {
			return Event{}, fmt.Errorf("decode event: quote event without quote payload")
		}
	default:
		return Event{}, fmt.Errorf("decode event: unknown type %q", ev.Kind)
	}
	return ev, nil
}

// JSON returns the JSON-encoded event.
func (e *Event) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}
