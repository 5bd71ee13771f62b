package cansniff

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/roffe/cansniff/pkg/slcan"
	"go.bug.st/serial"
)

func init() {
	if err := RegisterSource(&SourceInfo{
		Name:               "SLCan",
		Description:        "Canable/LAWICEL SLCan adapter",
		RequiresSerialPort: true,
		Live:               true,
		New:                NewSLCan,
	}); err != nil {
		panic(err)
	}
}

// SLCan captures from a serial adapter speaking the SLCAN protocol.
type SLCan struct {
	*BaseSource
	port     serial.Port
	shutdown atomic.Bool
}

func NewSLCan(cfg *SourceConfig) (Source, error) {
	return &SLCan{
		BaseSource: NewBaseSource("SLCan", cfg),
	}, nil
}

func (sl *SLCan) Open(ctx context.Context, q *FrameQueue) error {
	rate, err := slcan.BitrateCommand(sl.cfg.CANRate)
	if err != nil {
		return err
	}

	p, err := openSerial(ctx, sl.cfg.Port, sl.cfg.PortBaudrate, func(n uint, err error) {
		sl.cfg.OnMessage(fmt.Sprintf("retry #%d: %v", n, err))
	})
	if err != nil {
		return err
	}
	if err := p.SetReadTimeout(3 * time.Millisecond); err != nil {
		p.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}
	sl.port = p
	sl.attach(q)

	p.ResetOutputBuffer()
	p.ResetInputBuffer()

	mode := slcan.Open
	if sl.cfg.ListenOnly {
		mode = slcan.ListenOnly
	}
	// close first in case the channel was left open by a previous session
	for _, cmd := range []string{slcan.Close, rate, mode} {
		if err := sl.writeCommand(cmd); err != nil {
			p.Close()
			return err
		}
		time.Sleep(10 * time.Millisecond)
	}

	go sl.recvManager(ctx)
	sl.Info(fmt.Sprintf("capturing on %s at %g kbit/s", sl.cfg.Port, sl.cfg.CANRate))
	return nil
}

func (sl *SLCan) writeCommand(cmd string) error {
	if sl.cfg.Debug {
		sl.cfg.OnMessage(">> " + cmd)
	}
	if _, err := sl.port.Write(slcan.Terminate(cmd)); err != nil {
		return fmt.Errorf("failed to write to com port: %w", err)
	}
	return nil
}

func (sl *SLCan) Close() error {
	if sl.shutdown.Swap(true) {
		return nil
	}
	sl.BaseSource.Close()
	if sl.port == nil {
		return nil
	}
	time.Sleep(10 * time.Millisecond)
	sl.writeCommand(slcan.Close)
	time.Sleep(10 * time.Millisecond)
	return sl.port.Close()
}

func (sl *SLCan) recvManager(ctx context.Context) {
	buf := make([]byte, 0, 64)
	readBuf := make([]byte, 64)
	for ctx.Err() == nil {
		n, err := sl.port.Read(readBuf)
		if err != nil {
			if !sl.shutdown.Load() {
				sl.Fatal(fmt.Errorf("failed to read com port: %w", err))
			}
			return
		}
		if n == 0 {
			continue
		}
		var ok bool
		if buf, ok = sl.parse(ctx, buf, readBuf[:n]); !ok {
			return
		}
	}
}

// parse processes the read data and returns any remaining partial record.
func (sl *SLCan) parse(ctx context.Context, buf, readBuf []byte) ([]byte, bool) {
	for _, b := range readBuf {
		switch b {
		case slcan.CR:
		case slcan.Bell:
			sl.Warn("adapter rejected last command")
			buf = buf[:0]
			continue
		case slcan.LF:
			continue
		default:
			if len(buf) >= slcan.MaxCommandLen {
				sl.Warn(fmt.Sprintf("discarding overlong record %q", buf))
				buf = buf[:0]
			}
			buf = append(buf, b)
			continue
		}

		if len(buf) == 0 {
			// bare CR acknowledges a command
			continue
		}
		if !slcan.IsFrame(buf) {
			if sl.cfg.Debug {
				sl.cfg.OnMessage("<< " + string(buf))
			}
			buf = buf[:0]
			continue
		}
		d, err := slcan.Decode(buf)
		if err != nil {
			sl.Warn(fmt.Sprintf("%v: %q", err, buf))
			buf = buf[:0]
			continue
		}
		buf = buf[:0]
		if !sl.deliver(ctx, d.Frame) {
			return buf, false
		}
	}
	return buf, true
}
