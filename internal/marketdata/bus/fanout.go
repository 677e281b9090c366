// Package bus broadcasts the market event stream to several consumers.
package bus

import (
	"context"
	"log/slog"
	"sync"

	"trading-signalcore/internal/model"
)

// subscriber is one output of the fan-out.
type subscriber struct {
	name  string
	ch    chan model.Event
	lossy bool
}

// FanOut broadcasts events from a single input channel to N output
// channels. Lossy subscribers drop events when their buffer is full so a
// slow consumer (the bar recorder) cannot stall the pipeline. Reliable
// subscribers (the robot) block the fan-out instead: every bar and quote
// reaches them, in order.
type FanOut struct {
	mu      sync.RWMutex
	outputs []subscriber
	bufSize int

	// OnDrop is called when an event is dropped for a lossy subscriber.
	OnDrop func(name string)
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int) *FanOut {
	return &FanOut{bufSize: outputBufferSize}
}

// Subscribe adds a lossy output.
func (f *FanOut) Subscribe(name string) <-chan model.Event {
	return f.add(name, true)
}

// SubscribeReliable adds an output that never drops.
func (f *FanOut) SubscribeReliable(name string) <-chan model.Event {
	return f.add(name, false)
}

func (f *FanOut) add(name string, lossy bool) <-chan model.Event {
	ch := make(chan model.Event, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, subscriber{name: name, ch: ch, lossy: lossy})
	f.mu.Unlock()
	return ch
}

// Run reads from the input channel and fans out to all subscribers.
// Blocks until ctx is cancelled or input is closed, then closes every
// output.
func (f *FanOut) Run(ctx context.Context, input <-chan model.Event) {
	defer func() {
		f.mu.RLock()
		for _, s := range f.outputs {
			close(s.ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-input:
			if !ok {
				return
			}
			if !f.broadcast(ctx, ev) {
				return
			}
		}
	}
}

func (f *FanOut) broadcast(ctx context.Context, ev model.Event) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.outputs {
		if !s.lossy {
			select {
			case s.ch <- ev:
			case <-ctx.Done():
				return false
			}
			continue
		}
		select {
		case s.ch <- ev:
		default:
			if f.OnDrop != nil {
				f.OnDrop(s.name)
			} else {
				slog.Warn("subscriber full, dropping event", "component", "bus", "subscriber", s.name, "kind", string(ev.Kind))
			}
		}
	}
	return true
}

// ChannelStat reports the saturation of one subscriber channel.
type ChannelStat struct {
	Name string
	Len  int
	Cap  int
}

// ChannelStats returns length and capacity for each subscriber channel.
func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, s := range f.outputs {
		stats[i] = ChannelStat{Name: s.name, Len: len(s.ch), Cap: cap(s.ch)}
	}
	return stats
}
