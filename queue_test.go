package cansniff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roffe/cansniff/pkg/frame"
)

func fill(t *testing.T, q *FrameQueue, ids ...uint32) {
	t.Helper()
	for _, id := range ids {
		if err := q.Offer(context.Background(), frame.New(id, nil)); err != nil {
			t.Fatalf("Offer(0x%X) error = %v", id, err)
		}
	}
}

func drainIDs(t *testing.T, q *FrameQueue) []uint32 {
	t.Helper()
	var out []uint32
	for q.Len() > 0 {
		f, err := q.Dequeue(context.Background())
		if err != nil {
			t.Fatalf("Dequeue() error = %v", err)
		}
		out = append(out, f.Identifier)
	}
	return out
}

func equalIDs(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewFrameQueueDefaultCapacity(t *testing.T) {
	q := NewFrameQueue(0, DropNewest)
	if q.Cap() != DefaultQueueSize {
		t.Fatalf("Cap() = %d, want %d", q.Cap(), DefaultQueueSize)
	}
	if DefaultQueueSize != 20 {
		t.Fatalf("DefaultQueueSize = %d, want 20", DefaultQueueSize)
	}
}

func TestFrameQueueFIFO(t *testing.T) {
	q := NewFrameQueue(4, DropNewest)
	fill(t, q, 1, 2, 3)
	if got := drainIDs(t, q); !equalIDs(got, []uint32{1, 2, 3}) {
		t.Fatalf("dequeued %v, want [1 2 3]", got)
	}
}

func TestFrameQueueDropNewest(t *testing.T) {
	q := NewFrameQueue(2, DropNewest)
	fill(t, q, 1, 2)
	err := q.Offer(context.Background(), frame.New(3, nil))
	if !errors.Is(err, ErrDroppedFrame) {
		t.Fatalf("Offer() on full queue error = %v, want ErrDroppedFrame", err)
	}
	if q.Dropped() != 1 || q.Enqueued() != 2 {
		t.Fatalf("dropped %d enqueued %d, want 1 and 2", q.Dropped(), q.Enqueued())
	}
	if got := drainIDs(t, q); !equalIDs(got, []uint32{1, 2}) {
		t.Fatalf("dequeued %v, want [1 2]", got)
	}
}

func TestFrameQueueDropOldest(t *testing.T) {
	q := NewFrameQueue(2, DropOldest)
	fill(t, q, 1, 2)
	err := q.Offer(context.Background(), frame.New(3, nil))
	if !errors.Is(err, ErrEvictedFrame) {
		t.Fatalf("Offer() on full queue error = %v, want ErrEvictedFrame", err)
	}
	if q.Dropped() != 1 || q.Enqueued() != 3 || q.delivered() != 2 {
		t.Fatalf("dropped %d enqueued %d delivered %d", q.Dropped(), q.Enqueued(), q.delivered())
	}
	if got := drainIDs(t, q); !equalIDs(got, []uint32{2, 3}) {
		t.Fatalf("dequeued %v, want [2 3]", got)
	}
}

func TestFrameQueueDropOldestOnlyEvictsWhenFull(t *testing.T) {
	q := NewFrameQueue(2, DropOldest)
	fill(t, q, 1, 2)
	if _, err := q.Dequeue(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := q.Offer(context.Background(), frame.New(3, nil)); err != nil {
		t.Fatalf("Offer() with a free slot error = %v", err)
	}
	if q.Dropped() != 0 {
		t.Fatalf("evicted %d frames from a queue with room", q.Dropped())
	}
	if got := drainIDs(t, q); !equalIDs(got, []uint32{2, 3}) {
		t.Fatalf("dequeued %v, want [2 3]", got)
	}
}

func TestFrameQueueDropOldestConcurrentConsumer(t *testing.T) {
	const total = 20000
	q := NewFrameQueue(4, DropOldest)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan []uint32, 1)
	go func() {
		var ids []uint32
		for {
			f, err := q.Dequeue(ctx)
			if err != nil {
				got <- ids
				return
			}
			ids = append(ids, f.Identifier)
		}
	}()

	var evictions uint64
	for i := range total {
		err := q.Offer(context.Background(), frame.New(uint32(i), nil))
		switch {
		case err == nil:
		case errors.Is(err, ErrEvictedFrame):
			evictions++
		default:
			t.Fatalf("Offer() error = %v", err)
		}
	}
	for q.Len() > 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	ids := <-got

	if evictions != q.Dropped() {
		t.Fatalf("Offer reported %d evictions, queue counted %d", evictions, q.Dropped())
	}
	if uint64(len(ids))+evictions != total {
		t.Fatalf("dequeued %d + evicted %d != %d", len(ids), evictions, total)
	}
	if uint64(len(ids)) != q.delivered() {
		t.Fatalf("dequeued %d, delivered() = %d", len(ids), q.delivered())
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("out of order at %d: %d after %d", i, ids[i], ids[i-1])
		}
	}
}

func TestFrameQueueBlockWakesAllProducers(t *testing.T) {
	q := NewFrameQueue(2, Block)
	fill(t, q, 1, 2)

	done := make(chan error, 2)
	for _, id := range []uint32{3, 4} {
		go func() {
			done <- q.Offer(context.Background(), frame.New(id, nil))
		}()
	}
	time.Sleep(10 * time.Millisecond)
	for range 2 {
		if _, err := q.Dequeue(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	for range 2 {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Offer() error = %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("blocked producer was not woken")
		}
	}
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
}

func TestFrameQueueBlock(t *testing.T) {
	q := NewFrameQueue(1, Block)
	fill(t, q, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Offer(ctx, frame.New(2, nil)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("blocked Offer() error = %v, want deadline exceeded", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- q.Offer(context.Background(), frame.New(3, nil))
	}()
	if f, err := q.Dequeue(context.Background()); err != nil || f.Identifier != 1 {
		t.Fatalf("Dequeue() = %v, %v", f, err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Offer() after room error = %v", err)
	}
	if got := drainIDs(t, q); !equalIDs(got, []uint32{3}) {
		t.Fatalf("dequeued %v, want [3]", got)
	}
	if q.Dropped() != 0 {
		t.Fatalf("Block policy dropped %d frames", q.Dropped())
	}
}

func TestFrameQueueDequeueBlocksUntilFrame(t *testing.T) {
	q := NewFrameQueue(1, DropNewest)
	got := make(chan frame.Frame, 1)
	go func() {
		f, err := q.Dequeue(context.Background())
		if err == nil {
			got <- f
		}
	}()
	select {
	case <-got:
		t.Fatal("Dequeue() returned on empty queue")
	case <-time.After(20 * time.Millisecond):
	}
	fill(t, q, 0x42)
	select {
	case f := <-got:
		if f.Identifier != 0x42 {
			t.Fatalf("Dequeue() = 0x%X, want 0x42", f.Identifier)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue() did not wake up")
	}
}

func TestFrameQueueDequeueCancel(t *testing.T) {
	q := NewFrameQueue(1, DropNewest)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Dequeue(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Dequeue() error = %v, want context.Canceled", err)
	}
}

func TestParseOverflowPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    OverflowPolicy
		wantErr bool
	}{
		{"", DropNewest, false},
		{"drop-newest", DropNewest, false},
		{"DROP-OLDEST", DropOldest, false},
		{"block", Block, false},
		{"sometimes", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseOverflowPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOverflowPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseOverflowPolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if err == nil && got.String() == "unknown" {
			t.Errorf("%v has no name", got)
		}
	}
}
