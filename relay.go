package cansniff

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/roffe/cansniff/pkg/frame"
	"github.com/roffe/cansniff/pkg/slcan"
)

type RelayOpt func(r *Relay)

// OptTimestamp appends the millisecond timestamp to every record.
func OptTimestamp(enabled bool) RelayOpt {
	return func(r *Relay) {
		r.opts.Timestamp = enabled
	}
}

// OptNewline terminates records with CR LF instead of CR.
func OptNewline(enabled bool) RelayOpt {
	return func(r *Relay) {
		r.opts.Newline = enabled
	}
}

// OptClock replaces the time source used for timestamps.
func OptClock(now func() time.Time) RelayOpt {
	return func(r *Relay) {
		r.now = now
	}
}

// OptOnError receives sink write failures.
func OptOnError(fn func(error)) RelayOpt {
	return func(r *Relay) {
		r.onError = fn
	}
}

// OptMonitor is called after each record has been written.
func OptMonitor(fn func(frame.Frame, *slcan.Command)) RelayOpt {
	return func(r *Relay) {
		r.monitor = fn
	}
}

// Relay is the single consumer of a FrameQueue. Every dequeued frame is
// encoded and written to the sink exactly once.
type Relay struct {
	queue *FrameQueue
	sink  io.Writer
	opts  slcan.Options

	now   func() time.Time
	epoch time.Time

	onError func(error)
	monitor func(frame.Frame, *slcan.Command)

	relayed     atomic.Uint64
	sentBytes   atomic.Uint64
	writeErrors atomic.Uint64
}

func NewRelay(q *FrameQueue, sink io.Writer, opts ...RelayOpt) *Relay {
	r := &Relay{
		queue: q,
		sink:  sink,
		now:   time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	r.epoch = r.now()
	return r
}

// Run blocks on the queue and relays frames until ctx ends, it then returns
// the context error. Timestamps count from the start of Run.
func (r *Relay) Run(ctx context.Context) error {
	r.epoch = r.now()
	for {
		f, err := r.queue.Dequeue(ctx)
		if err != nil {
			return err
		}
		r.relay(f)
	}
}

func (r *Relay) relay(f frame.Frame) {
	var ts uint16
	if r.opts.Timestamp {
		ts = slcan.Timestamp(r.now().Sub(r.epoch))
	}
	cmd := slcan.Encode(f, ts, r.opts)
	n, err := r.sink.Write(cmd.Bytes())
	r.sentBytes.Add(uint64(n))
	if err != nil {
		r.writeErrors.Add(1)
		if r.onError != nil {
			r.onError(&WriteError{Record: cmd.String(), Err: err})
		}
	}
	if r.monitor != nil {
		r.monitor(f, &cmd)
	}
	// counted last so a drained pipeline has finished all callbacks
	r.relayed.Add(1)
}

func (r *Relay) Relayed() uint64 {
	return r.relayed.Load()
}

func (r *Relay) SentBytes() uint64 {
	return r.sentBytes.Load()
}

func (r *Relay) WriteErrors() uint64 {
	return r.writeErrors.Load()
}
