package cansniff

import (
	"context"

	"github.com/roffe/cansniff/pkg/frame"
)

func init() {
	if err := RegisterSource(&SourceInfo{
		Name:        "Virtual",
		Description: "In-memory source fed through Inject",
		New:         func(cfg *SourceConfig) (Source, error) { return NewVirtual(cfg), nil },
	}); err != nil {
		panic(err)
	}
}

// Virtual is a source whose frames are injected by the program, used for
// tests and loopback setups.
type Virtual struct {
	*BaseSource
	opened chan struct{}
}

func NewVirtual(cfg *SourceConfig) *Virtual {
	return &Virtual{
		BaseSource: NewBaseSource("Virtual", cfg),
		opened:     make(chan struct{}),
	}
}

func (v *Virtual) Open(ctx context.Context, q *FrameQueue) error {
	v.attach(q)
	close(v.opened)
	return nil
}

// Inject delivers f as if it had been received from the bus. It blocks until
// the source is opened.
func (v *Virtual) Inject(ctx context.Context, f frame.Frame) error {
	select {
	case <-v.opened:
	case <-v.closed():
		return ErrSourceClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-v.closed():
		return ErrSourceClosed
	default:
	}
	if !v.deliver(ctx, f) {
		return ctx.Err()
	}
	return nil
}

func (v *Virtual) Close() error {
	v.BaseSource.Close()
	return nil
}
