package slcan

import "fmt"

// Adapter control commands, each must be followed by CR on the wire.
const (
	Open         = "O"
	ListenOnly   = "L"
	Close        = "C"
	Version      = "V"
	Status       = "F"
	TimestampOn  = "Z1"
	TimestampOff = "Z0"
)

// Bell is sent by adapters in reply to a command they could not execute.
const Bell = 0x07

// BitrateCommand returns the setup command selecting a standard CAN bitrate
// given in kbit/s.
func BitrateCommand(kbit float64) (string, error) {
	switch kbit {
	case 10:
		return "S0", nil
	case 20:
		return "S1", nil
	case 50:
		return "S2", nil
	case 100:
		return "S3", nil
	case 125:
		return "S4", nil
	case 250:
		return "S5", nil
	case 500:
		return "S6", nil
	case 800:
		return "S7", nil
	case 1000:
		return "S8", nil
	case 47.619:
		// BTR0 0xCB, BTR1 0x9A
		return "scb9a", nil
	case 615.384:
		return "s4037", nil
	}
	return "", fmt.Errorf("unknown rate: %g", kbit)
}

// Terminate appends the CR terminator to a control command
func Terminate(cmd string) []byte {
	return append([]byte(cmd), CR)
}
