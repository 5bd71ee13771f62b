package cansniff

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/roffe/cansniff/pkg/frame"
)

func init() {
	if err := RegisterSource(&SourceInfo{
		Name:        "Demo",
		Description: "Random standard frames for bench and demo use",
		New:         NewDemo,
	}); err != nil {
		panic(err)
	}
}

// Demo fabricates frames when no controller is attached.
type Demo struct {
	*BaseSource
	rnd *rand.Rand
}

func NewDemo(cfg *SourceConfig) (Source, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Demo{
		BaseSource: NewBaseSource("Demo", cfg),
		rnd:        rand.New(rand.NewPCG(seed, seed>>1|1)),
	}, nil
}

func (d *Demo) Open(ctx context.Context, q *FrameQueue) error {
	d.attach(q)
	go d.run(ctx)
	d.Info(fmt.Sprintf("demo source started, interval %s", d.cfg.DemoInterval))
	return nil
}

func (d *Demo) Close() error {
	d.BaseSource.Close()
	return nil
}

func (d *Demo) run(ctx context.Context) {
	var tick <-chan time.Time
	if d.cfg.DemoInterval > 0 {
		t := time.NewTicker(d.cfg.DemoInterval)
		defer t.Stop()
		tick = t.C
	}
	for sent := 0; d.cfg.DemoCount <= 0 || sent < d.cfg.DemoCount; sent++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-d.closed():
				return
			case <-tick:
			}
		} else {
			select {
			case <-ctx.Done():
				return
			case <-d.closed():
				return
			default:
			}
		}
		if !d.deliver(ctx, frame.Random(d.rnd)) {
			return
		}
	}
	d.Info(fmt.Sprintf("demo source done after %d frames", d.cfg.DemoCount))
	d.BaseSource.Close()
}
