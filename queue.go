package cansniff

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/roffe/cansniff/pkg/frame"
)

// DefaultQueueSize is the default receive queue depth.
const DefaultQueueSize = 20

// OverflowPolicy decides what a producer does when the queue is full.
type OverflowPolicy int

const (
	// DropNewest discards the frame being offered, the queue is untouched.
	DropNewest OverflowPolicy = iota
	// DropOldest evicts the head of the queue to make room.
	DropOldest
	// Block parks the producer until there is room or its context ends.
	Block
)

func (p OverflowPolicy) String() string {
	switch p {
	case DropNewest:
		return "drop-newest"
	case DropOldest:
		return "drop-oldest"
	case Block:
		return "block"
	default:
		return "unknown"
	}
}

func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(s) {
	case "drop-newest", "newest", "":
		return DropNewest, nil
	case "drop-oldest", "oldest":
		return DropOldest, nil
	case "block":
		return Block, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOverflow, s)
}

// FrameQueue is the bounded FIFO between a Source and the Relay. Frames are
// stored by value, a dequeued frame belongs to the caller alone. The queue is
// meant for a single consumer.
type FrameQueue struct {
	policy OverflowPolicy

	mu   sync.Mutex
	buf  []frame.Frame
	head int
	n    int
	// ready holds a token while frames are waiting for the consumer
	ready chan struct{}
	// space is closed and replaced when a dequeue frees a slot and producers
	// are parked on it
	space   chan struct{}
	waiters int

	enqueued atomic.Uint64
	dropped  atomic.Uint64
	evicted  atomic.Uint64
}

// NewFrameQueue creates a queue holding at most capacity frames. A capacity
// below one selects DefaultQueueSize.
func NewFrameQueue(capacity int, policy OverflowPolicy) *FrameQueue {
	if capacity < 1 {
		capacity = DefaultQueueSize
	}
	return &FrameQueue{
		policy: policy,
		buf:    make([]frame.Frame, capacity),
		ready:  make(chan struct{}, 1),
		space:  make(chan struct{}),
	}
}

// Offer hands f to the queue following the overflow policy.
//
// DropNewest returns ErrDroppedFrame when f was discarded. DropOldest always
// enqueues f and returns ErrEvictedFrame when an older frame had to go, which
// only happens while the queue is full. Block returns the context error if ctx
// ends before there is room.
func (q *FrameQueue) Offer(ctx context.Context, f frame.Frame) error {
	for {
		q.mu.Lock()
		if q.n < len(q.buf) {
			q.push(f)
			q.enqueued.Add(1)
			q.mu.Unlock()
			q.signalReady()
			return nil
		}
		switch q.policy {
		case DropOldest:
			q.pop()
			q.push(f)
			q.dropped.Add(1)
			q.evicted.Add(1)
			q.enqueued.Add(1)
			q.mu.Unlock()
			return ErrEvictedFrame
		case Block:
			space := q.space
			q.waiters++
			q.mu.Unlock()
			var err error
			select {
			case <-space:
			case <-ctx.Done():
				err = ctx.Err()
			}
			q.mu.Lock()
			q.waiters--
			q.mu.Unlock()
			if err != nil {
				return err
			}
		default:
			q.dropped.Add(1)
			q.mu.Unlock()
			return ErrDroppedFrame
		}
	}
}

// Dequeue blocks until a frame is available or ctx ends.
func (q *FrameQueue) Dequeue(ctx context.Context) (frame.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return frame.Frame{}, err
		}
		q.mu.Lock()
		if q.n > 0 {
			f := q.pop()
			more := q.n > 0
			if q.waiters > 0 {
				close(q.space)
				q.space = make(chan struct{})
			}
			q.mu.Unlock()
			if more {
				q.signalReady()
			}
			return f, nil
		}
		q.mu.Unlock()
		select {
		case <-q.ready:
		case <-ctx.Done():
			return frame.Frame{}, ctx.Err()
		}
	}
}

// push and pop must be called with mu held.
func (q *FrameQueue) push(f frame.Frame) {
	q.buf[(q.head+q.n)%len(q.buf)] = f
	q.n++
}

func (q *FrameQueue) pop() frame.Frame {
	f := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return f
}

func (q *FrameQueue) signalReady() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

func (q *FrameQueue) Cap() int {
	return len(q.buf)
}

func (q *FrameQueue) Policy() OverflowPolicy {
	return q.policy
}

// Enqueued returns the number of frames accepted so far
func (q *FrameQueue) Enqueued() uint64 {
	return q.enqueued.Load()
}

// Dropped returns the number of frames lost to the overflow policy
func (q *FrameQueue) Dropped() uint64 {
	return q.dropped.Load()
}

// delivered is the number of frames that have left or will leave the queue
// through Dequeue.
func (q *FrameQueue) delivered() uint64 {
	return q.enqueued.Load() - q.evicted.Load()
}
