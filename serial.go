package cansniff

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortDetails describes a serial port found on the system.
type PortDetails struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
}

func (p PortDetails) String() string {
	if !p.IsUSB {
		return p.Name
	}
	return fmt.Sprintf("%s (USB %s:%s serial %s)", p.Name, p.VID, p.PID, p.SerialNumber)
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]PortDetails, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	out := make([]PortDetails, 0, len(ports))
	for _, port := range ports {
		out = append(out, PortDetails{
			Name:         port.Name,
			IsUSB:        port.IsUSB,
			VID:          port.VID,
			PID:          port.PID,
			SerialNumber: port.SerialNumber,
		})
	}
	return out, nil
}

func portName(name string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(name)
	}
	return name
}

// openSerial opens a port at 8N1, retrying a few times since USB adapters
// often re-enumerate right after being plugged in.
func openSerial(ctx context.Context, name string, baudrate int, onRetry func(uint, error)) (serial.Port, error) {
	if name == "" {
		return nil, errors.New("no serial port selected")
	}
	mode := &serial.Mode{
		BaudRate: baudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	var p serial.Port
	err := retry.Do(func() error {
		var err error
		p, err = serial.Open(portName(name), mode)
		if err != nil {
			return fmt.Errorf("failed to open com port %q : %v", name, err)
		}
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(250*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			if onRetry != nil {
				onRetry(n, err)
			}
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
