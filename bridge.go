package cansniff

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/roffe/cansniff/pkg/frame"
	"github.com/roffe/cansniff/pkg/slcan"
	"golang.org/x/sync/errgroup"
)

type BridgeConfig struct {
	QueueSize int
	Overflow  OverflowPolicy
	Timestamp bool
	Newline   bool
	// OnEvent receives source events and relay write errors.
	OnEvent func(Event)
	// OnFrame is called after each frame has been written to the sink.
	OnFrame func(frame.Frame, *slcan.Command)
	Clock   func() time.Time
}

// Bridge owns one capture pipeline: source, queue, relay and sink.
type Bridge struct {
	cfg    BridgeConfig
	source Source
	queue  *FrameQueue
	relay  *Relay
}

func NewBridge(src Source, sink io.Writer, cfg BridgeConfig) *Bridge {
	if cfg.OnEvent == nil {
		cfg.OnEvent = func(Event) {}
	}
	b := &Bridge{
		cfg:    cfg,
		source: src,
		queue:  NewFrameQueue(cfg.QueueSize, cfg.Overflow),
	}
	opts := []RelayOpt{
		OptTimestamp(cfg.Timestamp),
		OptNewline(cfg.Newline),
		OptOnError(func(err error) {
			b.cfg.OnEvent(Event{Type: EventTypeError, Details: err.Error()})
		}),
	}
	if cfg.OnFrame != nil {
		opts = append(opts, OptMonitor(cfg.OnFrame))
	}
	if cfg.Clock != nil {
		opts = append(opts, OptClock(cfg.Clock))
	}
	b.relay = NewRelay(b.queue, sink, opts...)
	return b
}

func (b *Bridge) Queue() *FrameQueue {
	return b.queue
}

// Run opens the source and relays frames until ctx ends, the source fails or
// the source finishes. A finished source has its queued frames flushed to the
// sink before Run returns.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.source.Open(ctx, b.queue); err != nil {
		b.source.Close()
		return fmt.Errorf("failed to open source %s: %w", b.source.Name(), err)
	}
	defer b.source.Close()

	g, gctx := errgroup.WithContext(ctx)
	rctx, stopRelay := context.WithCancel(gctx)
	defer stopRelay()

	g.Go(func() error {
		// only ever returns rctx.Err()
		_ = b.relay.Run(rctx)
		return nil
	})

	g.Go(func() error {
		defer stopRelay()
		for {
			select {
			case <-gctx.Done():
				return nil
			case evt := <-b.source.Event():
				b.cfg.OnEvent(evt)
			case err := <-b.source.Err():
				if err != nil {
					return fmt.Errorf("%s: %w", b.source.Name(), err)
				}
				b.drain(gctx)
				return nil
			}
		}
	})

	err := g.Wait()
	b.flushEvents()
	return err
}

func (b *Bridge) drain(ctx context.Context) {
	t := time.NewTicker(5 * time.Millisecond)
	defer t.Stop()
	for b.relay.Relayed() < b.queue.delivered() {
		select {
		case <-ctx.Done():
			return
		case evt := <-b.source.Event():
			b.cfg.OnEvent(evt)
		case <-t.C:
		}
	}
}

func (b *Bridge) flushEvents() {
	for {
		select {
		case evt := <-b.source.Event():
			b.cfg.OnEvent(evt)
		default:
			return
		}
	}
}

type sourceCounters interface {
	Received() uint64
	Filtered() uint64
}

func (b *Bridge) Stats() Stats {
	st := Stats{
		Enqueued:    b.queue.Enqueued(),
		Dropped:     b.queue.Dropped(),
		Relayed:     b.relay.Relayed(),
		SentBytes:   b.relay.SentBytes(),
		WriteErrors: b.relay.WriteErrors(),
	}
	if sc, ok := b.source.(sourceCounters); ok {
		st.Received = sc.Received()
		st.Filtered = sc.Filtered()
	}
	return st
}
