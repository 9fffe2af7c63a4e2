package bus

import (
	"context"
	"log"
	"sync"

	"slobengine/internal/model"
)

type output struct {
	ch       chan model.Candle
	blocking bool
}

// FanOut broadcasts candles from a single input channel to N output
// channels. Subscribers come in two flavors: drop-on-full for consumers
// that tolerate loss (archival, monitoring), and blocking for consumers
// that must see every candle (the detector). A stalled blocking
// subscriber stalls the whole bus, so there should be exactly one and it
// should be fast.
type FanOut struct {
	mu      sync.RWMutex
	outputs []output
	bufSize int

	// OnDrop is called when a candle is dropped for a subscriber.
	// subscriberIdx is the 0-based index of the slow consumer.
	OnDrop func(subscriberIdx int)
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int) *FanOut {
	return &FanOut{
		bufSize: outputBufferSize,
	}
}

// Subscribe creates and returns a new drop-on-full output channel.
func (f *FanOut) Subscribe() <-chan model.Candle {
	return f.subscribe(false)
}

// SubscribeBlocking creates and returns an output channel that is never
// dropped on: when it is full, Run blocks until the subscriber catches
// up or the context is cancelled.
func (f *FanOut) SubscribeBlocking() <-chan model.Candle {
	return f.subscribe(true)
}

func (f *FanOut) subscribe(blocking bool) <-chan model.Candle {
	ch := make(chan model.Candle, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, output{ch: ch, blocking: blocking})
	f.mu.Unlock()
	return ch
}

// Run reads from the input channel and fans out to all subscribers.
// Blocks until ctx is cancelled or input is closed.
func (f *FanOut) Run(ctx context.Context, input <-chan model.Candle) {
	defer func() {
		f.mu.RLock()
		for _, out := range f.outputs {
			close(out.ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case candle, ok := <-input:
			if !ok {
				return
			}
			f.mu.RLock()
			for i, out := range f.outputs {
				if out.blocking {
					select {
					case out.ch <- candle:
					case <-ctx.Done():
						f.mu.RUnlock()
						return
					}
					continue
				}
				select {
				case out.ch <- candle:
				default:
					if f.OnDrop != nil {
						f.OnDrop(i)
					} else {
						log.Printf("[bus] output channel %d full, dropping candle %s@%s",
							i, candle.Symbol, candle.TS.Format("15:04:05"))
					}
				}
			}
			f.mu.RUnlock()
		}
	}
}

// ChannelStat holds (length, capacity) for one subscriber channel.
// Used for reporting channel saturation percentage.
type ChannelStat struct {
	Len int
	Cap int
}

func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, out := range f.outputs {
		stats[i] = ChannelStat{Len: len(out.ch), Cap: cap(out.ch)}
	}
	return stats
}
