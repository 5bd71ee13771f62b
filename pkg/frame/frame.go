// Package frame holds the classical CAN frame passed between sources, the
// frame queue and the SLCAN encoder.
package frame

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/fatih/color"
)

const (
	MaxDataLength  = 8
	StandardIDMask = 0x7FF
	ExtendedIDMask = 0x1FFFFFFF
)

// Frame is a classical CAN 2.0A/2.0B frame. Bytes in Data past DLC are
// undefined and never read.
type Frame struct {
	Identifier uint32
	Extended   bool
	RTR        bool
	DLC        uint8
	Data       [MaxDataLength]byte
}

// New creates a standard data frame, at most 8 bytes of data are copied
func New(identifier uint32, data []byte) Frame {
	var f Frame
	f.Identifier = identifier
	f.DLC = uint8(copy(f.Data[:], data))
	return f
}

// NewExtended creates an extended (29 bit) data frame
func NewExtended(identifier uint32, data []byte) Frame {
	f := New(identifier, data)
	f.Extended = true
	return f
}

// NewRemote creates a remote request frame asking for dlc bytes
func NewRemote(identifier uint32, dlc uint8, extended bool) Frame {
	return Frame{
		Identifier: identifier,
		Extended:   extended,
		RTR:        true,
		DLC:        dlc,
	}
}

// Random returns a standard data frame with a uniformly drawn 11 bit
// identifier, length and payload.
func Random(r *rand.Rand) Frame {
	var f Frame
	f.Identifier = r.Uint32N(StandardIDMask + 1)
	f.DLC = uint8(r.UintN(MaxDataLength + 1))
	for i := range int(f.DLC) {
		f.Data[i] = uint8(r.UintN(256))
	}
	return f
}

// Len returns the number of payload bytes that are safe to read. It is
// zero for remote requests.
func (f Frame) Len() int {
	if f.RTR {
		return 0
	}
	return min(int(f.DLC&0x0F), MaxDataLength)
}

// Payload returns the valid part of Data
func (f Frame) Payload() []byte {
	return f.Data[:f.Len()]
}

// MaskedID returns the identifier limited to the width of its address space
func (f Frame) MaskedID() uint32 {
	if f.Extended {
		return f.Identifier & ExtendedIDMask
	}
	return f.Identifier & StandardIDMask
}

// Valid reports whether the frame satisfies the classical CAN invariants.
func (f Frame) Valid() bool {
	return f.DLC <= MaxDataLength && f.MaskedID() == f.Identifier
}

var (
	yellow = color.New(color.FgHiBlue).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
	green  = color.New(color.FgGreen).SprintfFunc()
)

func (f Frame) String() string {
	return f.format(fmt.Sprintf, fmt.Sprintf, fmt.Sprintf)
}

// ColorString is String with the identifier, bit view and printable view
// colored for terminals.
func (f Frame) ColorString() string {
	return f.format(green, red, yellow)
}

func (f Frame) format(idFn, binFn, txtFn func(string, ...interface{}) string) string {
	var out strings.Builder
	switch {
	case f.Extended && f.RTR:
		out.WriteString("<R> || ")
	case f.Extended:
		out.WriteString("<T> || ")
	case f.RTR:
		out.WriteString("<r> || ")
	default:
		out.WriteString("<t> || ")
	}

	if f.Extended {
		out.WriteString(idFn("0x%08X", f.Identifier) + " || ")
	} else {
		out.WriteString(idFn("0x%03X", f.Identifier) + " || ")
	}
	out.WriteString(fmt.Sprintf("%d || ", f.DLC))

	data := f.Payload()
	var hexView strings.Builder
	for i, b := range data {
		hexView.WriteString(fmt.Sprintf("%02X", b))
		if i != len(data)-1 {
			hexView.WriteString(" ")
		}
	}
	out.WriteString(fmt.Sprintf("%-23s", hexView.String()))
	out.WriteString(" || ")

	var binView strings.Builder
	for i, b := range data {
		binView.WriteString(fmt.Sprintf("%08b", b))
		if i != len(data)-1 {
			binView.WriteString(" ")
		}
	}
	out.WriteString(binFn("%-71s", binView.String()))
	out.WriteString(" || ")
	out.WriteString(txtFn("%s", onlyPrintable(data)))
	return out.String()
}

func onlyPrintable(data []byte) string {
	var out strings.Builder
	for _, b := range data {
		if b < 32 || b > 126 {
			out.WriteByte('.')
		} else {
			out.WriteByte(b)
		}
	}
	return out.String()
}
