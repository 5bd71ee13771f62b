//go:build linux

package cansniff

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync/atomic"

	"github.com/roffe/cansniff/pkg/frame"
	"go.einride.tech/can"
	"go.einride.tech/can/pkg/candevice"
	"go.einride.tech/can/pkg/socketcan"
	"golang.org/x/sys/unix"
)

func init() {
	if err := RegisterSource(&SourceInfo{
		Name:        "SocketCAN",
		Description: "Linux SocketCAN interface, --in-port names the interface",
		Live:        true,
		New:         NewSocketCAN,
	}); err != nil {
		panic(err)
	}
}

type SocketCAN struct {
	*BaseSource
	d         *candevice.Device
	rx        *socketcan.Receiver
	broughtUp bool
	shutdown  atomic.Bool
}

func NewSocketCAN(cfg *SourceConfig) (Source, error) {
	return &SocketCAN{
		BaseSource: NewBaseSource("SocketCAN", cfg),
	}, nil
}

func (a *SocketCAN) Open(ctx context.Context, q *FrameQueue) error {
	if a.cfg.Port == "" {
		devs := FindDevices()
		if len(devs) == 0 {
			return fmt.Errorf("no CAN interface found")
		}
		a.cfg.Port = devs[0]
	}

	d, err := candevice.New(a.cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", a.cfg.Port, err)
	}
	a.d = d

	up, err := d.IsUp()
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", a.cfg.Port, err)
	}
	if up {
		a.Info(fmt.Sprintf("%s already up, keeping its bitrate", a.cfg.Port))
		a.checkListenOnly()
	} else if err := a.bringUp(); err != nil {
		return err
	}

	conn, err := socketcan.DialContext(ctx, "can", a.cfg.Port)
	if err != nil {
		a.takeDown()
		return fmt.Errorf("failed to dial %s: %w", a.cfg.Port, err)
	}
	a.rx = socketcan.NewReceiver(conn)
	a.attach(q)

	go a.recvManager(ctx)
	a.Info(fmt.Sprintf("capturing on %s", a.cfg.Port))
	return nil
}

// bringUp configures bitrate and controller mode on a down interface and
// sets it up. A failed step leaves the interface down.
func (a *SocketCAN) bringUp() error {
	if err := a.d.SetBitrate(uint32(a.cfg.CANRate * 1000)); err != nil {
		return fmt.Errorf("failed to set bitrate on %s: %w", a.cfg.Port, err)
	}
	if err := a.d.SetListenOnlyMode(a.cfg.ListenOnly); err != nil {
		return fmt.Errorf("failed to set listen only mode on %s: %w", a.cfg.Port, err)
	}
	if err := a.d.SetUp(); err != nil {
		return fmt.Errorf("failed to bring up %s: %w", a.cfg.Port, err)
	}
	a.broughtUp = true
	return nil
}

// takeDown reverts bringUp, interfaces that were already up are left alone.
func (a *SocketCAN) takeDown() error {
	if !a.broughtUp {
		return nil
	}
	a.broughtUp = false
	return a.d.SetDown()
}

// checkListenOnly warns when a running interface is not in the requested
// controller mode, the mode can only be changed while the link is down.
func (a *SocketCAN) checkListenOnly() {
	info, err := a.d.Info()
	if err != nil {
		a.Warn(fmt.Sprintf("failed to read controller mode of %s: %v", a.cfg.Port, err))
		return
	}
	listenOnly := info.CtrlMode.Flags&unix.CAN_CTRLMODE_LISTENONLY != 0
	if warn := listenOnlyMismatch(a.cfg.Port, a.cfg.ListenOnly, listenOnly); warn != "" {
		a.Warn(warn)
	}
}

func listenOnlyMismatch(port string, want, have bool) string {
	if want == have {
		return ""
	}
	if want {
		return fmt.Sprintf("%s is up in normal mode and will ACK frames, set it down to capture listen only", port)
	}
	return fmt.Sprintf("%s is up in listen only mode, it will not ACK frames", port)
}

func (a *SocketCAN) Close() error {
	if a.shutdown.Swap(true) {
		return nil
	}
	a.BaseSource.Close()
	var err error
	if a.rx != nil {
		err = a.rx.Close()
	}
	if derr := a.takeDown(); derr != nil && err == nil {
		err = derr
	}
	return err
}

func (a *SocketCAN) recvManager(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			a.rx.Close()
		case <-a.closed():
		}
	}()
	for a.rx.Receive() {
		if a.rx.HasErrorFrame() {
			continue
		}
		fr := fromEinride(a.rx.Frame())
		if !a.deliver(ctx, fr) {
			return
		}
	}
	if err := a.rx.Err(); err != nil && !a.shutdown.Load() && ctx.Err() == nil {
		a.Fatal(fmt.Errorf("socketcan receive: %w", err))
	}
}

func fromEinride(f can.Frame) frame.Frame {
	fr := frame.Frame{
		Identifier: f.ID,
		Extended:   f.IsExtended,
		RTR:        f.IsRemote,
		DLC:        f.Length,
	}
	copy(fr.Data[:], f.Data[:])
	return fr
}

// FindDevices returns the names of network interfaces that look like CAN
// controllers.
func FindDevices() (dev []string) {
	iFaces, _ := net.Interfaces()
	for _, i := range iFaces {
		if strings.Contains(i.Name, "can") {
			dev = append(dev, i.Name)
		}
	}
	return
}
