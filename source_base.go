package cansniff

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/roffe/cansniff/pkg/frame"
)

// BaseSource carries the plumbing shared by all sources: queue attachment,
// software filtering and the error and event channels.
type BaseSource struct {
	name  string
	cfg   *SourceConfig
	queue *FrameQueue

	filter map[uint32]struct{}

	received atomic.Uint64
	filtered atomic.Uint64

	errOnce sync.Once
	errChan chan error

	evtChan chan Event

	closeOnce sync.Once
	closeChan chan struct{}
}

func NewBaseSource(name string, cfg *SourceConfig) *BaseSource {
	base := &BaseSource{
		name:      name,
		cfg:       cfg,
		errChan:   make(chan error, 1),
		evtChan:   make(chan Event, 100),
		closeChan: make(chan struct{}),
	}
	if len(cfg.CANFilter) > 0 {
		base.filter = make(map[uint32]struct{}, len(cfg.CANFilter))
		for _, id := range cfg.CANFilter {
			base.filter[id] = struct{}{}
		}
	}
	return base
}

// Name returns the source name.
func (base *BaseSource) Name() string {
	return base.name
}

func (base *BaseSource) Err() <-chan error {
	return base.errChan
}

func (base *BaseSource) Event() <-chan Event {
	return base.evtChan
}

func (base *BaseSource) attach(q *FrameQueue) {
	base.queue = q
}

// Received returns the number of frames the controller delivered
func (base *BaseSource) Received() uint64 {
	return base.received.Load()
}

// Filtered returns the number of frames rejected by the identifier filter
func (base *BaseSource) Filtered() uint64 {
	return base.filtered.Load()
}

// deliver passes a received frame through the filter into the queue. It
// returns false once the source should stop producing.
func (base *BaseSource) deliver(ctx context.Context, f frame.Frame) bool {
	base.received.Add(1)
	if base.filter != nil {
		if _, ok := base.filter[f.MaskedID()]; !ok {
			base.filtered.Add(1)
			return true
		}
	}
	if base.cfg.Debug {
		base.Debug(f.String())
	}
	err := base.queue.Offer(ctx, f)
	switch {
	case err == nil:
	case errors.Is(err, ErrDroppedFrame), errors.Is(err, ErrEvictedFrame):
		base.Warn(err.Error())
	default:
		return false
	}
	return true
}

func (base *BaseSource) closed() <-chan struct{} {
	return base.closeChan
}

func (base *BaseSource) Close() {
	base.closeOnce.Do(func() {
		close(base.closeChan)
		select {
		case base.errChan <- nil:
		default:
		}
	})
}

// Fatal sets a fatal source error, meaning capture is broken and cannot continue.
func (base *BaseSource) Fatal(err error) {
	base.errOnce.Do(func() {
		select {
		case base.errChan <- Unrecoverable(err):
		default:
			_, file, no, ok := runtime.Caller(1)
			if ok {
				log.Printf("%s:%d error channel full: %v\n", filepath.Base(file), no, err)
			} else {
				log.Printf("error channel full: %v", err)
			}
		}
	})
}

func (base *BaseSource) sendEvent(eventType EventType, details string) {
	select {
	case base.evtChan <- Event{Type: eventType, Details: details}:
	default:
		_, file, no, ok := runtime.Caller(2)
		if ok {
			log.Printf("%s#%d event channel full: %s\n", filepath.Base(file), no, details)
		} else {
			log.Printf("event channel full: %s", details)
		}
	}
}

// Send an error event
func (base *BaseSource) Error(err error) {
	base.sendEvent(EventTypeError, err.Error())
}

// Send a warning event
func (base *BaseSource) Warn(warn string) {
	base.sendEvent(EventTypeWarning, warn)
}

// Send an info event
func (base *BaseSource) Info(info string) {
	base.sendEvent(EventTypeInfo, info)
}

// Send a debug event
func (base *BaseSource) Debug(debug string) {
	base.sendEvent(EventTypeDebug, debug)
}
