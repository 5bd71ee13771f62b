// Package slcan implements the LAWICEL/SLCAN ASCII line protocol used by
// serial CAN adapters such as the CANUSB and CANable.
package slcan

import (
	"time"

	"github.com/roffe/cansniff/pkg/frame"
)

const (
	CR = '\r'
	LF = '\n'
)

// MaxCommandLen is the longest record AppendFrame can produce:
// type(1) + extended id(8) + dlc(1) + data(16) + timestamp(4) + CR(1) + LF(1).
const MaxCommandLen = 1 + 8 + 1 + 2*frame.MaxDataLength + 4 + 1 + 1

// TimestampWrap is the modulus of the SLCAN millisecond timestamp.
const TimestampWrap = 60000

type Options struct {
	// Timestamp appends the 4 digit millisecond timestamp.
	Timestamp bool
	// Newline appends LF after the CR terminator.
	Newline bool
}

// Command is one encoded SLCAN record.
type Command struct {
	buf [MaxCommandLen]byte
	n   int
}

func (c *Command) Bytes() []byte {
	return c.buf[:c.n]
}

func (c *Command) String() string {
	return string(c.buf[:c.n])
}

func (c *Command) Len() int {
	return c.n
}

// Encode renders f as an SLCAN record. ts is only used when opts.Timestamp
// is set.
func Encode(f frame.Frame, ts uint16, opts Options) Command {
	var c Command
	c.n = len(AppendFrame(c.buf[:0], f, ts, opts))
	return c
}

// AppendFrame appends the SLCAN record for f to dst. Out of range input is
// masked so every field keeps its width.
func AppendFrame(dst []byte, f frame.Frame, ts uint16, opts Options) []byte {
	switch {
	case f.Extended && f.RTR:
		dst = append(dst, 'R')
	case f.Extended:
		dst = append(dst, 'T')
	case f.RTR:
		dst = append(dst, 'r')
	default:
		dst = append(dst, 't')
	}

	if f.Extended {
		dst = appendHex(dst, f.Identifier, 8)
	} else {
		dst = appendHex(dst, f.Identifier&frame.StandardIDMask, 3)
	}

	dst = append(dst, nybbleToHex(f.DLC))

	for _, b := range f.Payload() {
		dst = append(dst, nybbleToHex(b>>4), nybbleToHex(b))
	}

	if opts.Timestamp {
		dst = appendHex(dst, uint32(ts%TimestampWrap), 4)
	}

	dst = append(dst, CR)
	if opts.Newline {
		dst = append(dst, LF)
	}
	return dst
}

// Timestamp converts the time elapsed since a reference point into the
// wrapping SLCAN millisecond counter.
func Timestamp(elapsed time.Duration) uint16 {
	if elapsed < 0 {
		return 0
	}
	return uint16(elapsed.Milliseconds() % TimestampWrap)
}

func appendHex(dst []byte, v uint32, digits int) []byte {
	for shift := 4 * (digits - 1); shift >= 0; shift -= 4 {
		dst = append(dst, nybbleToHex(byte(v>>shift)))
	}
	return dst
}

// nybbleToHex converts the low 4 bits of n to an uppercase ASCII hex digit
func nybbleToHex(n byte) byte {
	n &= 0x0F
	if n < 10 {
		return '0' + n
	}
	return 'A' + (n - 10)
}
