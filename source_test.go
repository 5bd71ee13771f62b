package cansniff

import (
	"context"
	"errors"
	"testing"

	"github.com/roffe/cansniff/pkg/frame"
)

func TestSourceRegistry(t *testing.T) {
	names := ListSourceNames()
	for _, want := range []string{"Demo", "SLCan", "Virtual"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("source %q not registered, have %v", want, names)
		}
	}
	if len(ListSources()) != len(names) {
		t.Errorf("ListSources() and ListSourceNames() disagree")
	}
	if err := RegisterSource(&SourceInfo{Name: "demo"}); err == nil {
		t.Errorf("duplicate registration accepted")
	}
}

func TestNewSourceUnknown(t *testing.T) {
	if _, err := NewSource("nope", nil); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("NewSource() error = %v, want ErrUnknownSource", err)
	}
}

func TestNewSourceCaseInsensitive(t *testing.T) {
	src, err := NewSource("SLCAN", nil)
	if err != nil {
		t.Fatal(err)
	}
	if src.Name() != "SLCan" {
		t.Fatalf("Name() = %q", src.Name())
	}
}

func TestDemoSourceCount(t *testing.T) {
	cfg := DefaultSourceConfig()
	cfg.DemoInterval = 0
	cfg.DemoCount = 5
	cfg.Seed = 1
	src, err := NewDemo(cfg)
	if err != nil {
		t.Fatal(err)
	}
	q := NewFrameQueue(10, DropNewest)
	if err := src.Open(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	if err := <-src.Err(); err != nil {
		t.Fatalf("demo finished with %v", err)
	}
	if q.Len() != 5 {
		t.Fatalf("queue holds %d frames, want 5", q.Len())
	}
	for q.Len() > 0 {
		f, _ := q.Dequeue(context.Background())
		if !f.Valid() || f.Extended || f.RTR {
			t.Fatalf("demo frame %+v breaks invariants", f)
		}
	}
}

func TestDemoSourceSeedIsDeterministic(t *testing.T) {
	run := func() []frame.Frame {
		cfg := &SourceConfig{DemoCount: 10, Seed: 1234}
		src, _ := NewDemo(cfg)
		q := NewFrameQueue(10, DropNewest)
		src.Open(context.Background(), q)
		<-src.Err()
		var out []frame.Frame
		for q.Len() > 0 {
			f, _ := q.Dequeue(context.Background())
			out = append(out, f)
		}
		return out
	}
	a, b := run(), run()
	if len(a) != 10 || len(b) != 10 {
		t.Fatalf("got %d and %d frames", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("frame %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestVirtualInjectAfterClose(t *testing.T) {
	v := NewVirtual(&SourceConfig{})
	v.Close()
	if err := v.Inject(context.Background(), frame.New(1, nil)); !errors.Is(err, ErrSourceClosed) {
		t.Fatalf("Inject() error = %v, want ErrSourceClosed", err)
	}
}
