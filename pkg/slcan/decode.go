package slcan

import (
	"errors"
	"fmt"

	"github.com/roffe/cansniff/pkg/frame"
)

var (
	ErrEmpty          = errors.New("slcan: empty record")
	ErrUnknownCommand = errors.New("slcan: unknown command")
	ErrInvalidLength  = errors.New("slcan: invalid record length")
	ErrInvalidHex     = errors.New("slcan: invalid hex digit")
	ErrInvalidDLC     = errors.New("slcan: invalid data length")
	ErrInvalidID      = errors.New("slcan: identifier out of range")
)

// Decoded is a frame record parsed from the wire.
type Decoded struct {
	Frame        frame.Frame
	Timestamp    uint16
	HasTimestamp bool
}

// IsFrame reports whether line starts with one of the frame record types
func IsFrame(line []byte) bool {
	if len(line) == 0 {
		return false
	}
	switch line[0] {
	case 't', 'T', 'r', 'R':
		return true
	}
	return false
}

// Decode parses a t, T, r or R record. A trailing CR and/or LF is ignored.
func Decode(line []byte) (Decoded, error) {
	for len(line) > 0 && (line[len(line)-1] == CR || line[len(line)-1] == LF) {
		line = line[:len(line)-1]
	}
	if len(line) == 0 {
		return Decoded{}, ErrEmpty
	}

	var d Decoded
	idLen := 3
	switch line[0] {
	case 't':
	case 'r':
		d.Frame.RTR = true
	case 'T':
		d.Frame.Extended = true
		idLen = 8
	case 'R':
		d.Frame.Extended = true
		d.Frame.RTR = true
		idLen = 8
	default:
		return Decoded{}, fmt.Errorf("%w: %q", ErrUnknownCommand, line[0])
	}

	if len(line) < 1+idLen+1 {
		return Decoded{}, fmt.Errorf("%w: %d", ErrInvalidLength, len(line))
	}

	id, err := parseHex(line[1 : 1+idLen])
	if err != nil {
		return Decoded{}, fmt.Errorf("failed to decode identifier: %w", err)
	}
	d.Frame.Identifier = id
	if d.Frame.MaskedID() != id {
		return Decoded{}, fmt.Errorf("%w: 0x%X", ErrInvalidID, id)
	}

	dlc, err := parseHex(line[1+idLen : 2+idLen])
	if err != nil {
		return Decoded{}, fmt.Errorf("failed to decode data length: %w", err)
	}
	if dlc > frame.MaxDataLength {
		return Decoded{}, fmt.Errorf("%w: %d", ErrInvalidDLC, dlc)
	}
	d.Frame.DLC = uint8(dlc)

	rest := line[2+idLen:]
	dataLen := 2 * d.Frame.Len()
	switch len(rest) {
	case dataLen:
	case dataLen + 4:
		ts, err := parseHex(rest[dataLen:])
		if err != nil {
			return Decoded{}, fmt.Errorf("failed to decode timestamp: %w", err)
		}
		d.Timestamp = uint16(ts)
		d.HasTimestamp = true
	default:
		return Decoded{}, fmt.Errorf("%w: %d", ErrInvalidLength, len(line))
	}

	for i := 0; i < dataLen; i += 2 {
		b, err := parseHex(rest[i : i+2])
		if err != nil {
			return Decoded{}, fmt.Errorf("failed to decode frame body: %w", err)
		}
		d.Frame.Data[i/2] = byte(b)
	}
	return d, nil
}

func parseHex(digits []byte) (uint32, error) {
	var v uint32
	for _, c := range digits {
		var n byte
		switch {
		case c >= '0' && c <= '9':
			n = c - '0'
		case c >= 'A' && c <= 'F':
			n = c - 'A' + 10
		case c >= 'a' && c <= 'f':
			n = c - 'a' + 10
		default:
			return 0, fmt.Errorf("%w: %q", ErrInvalidHex, c)
		}
		v = v<<4 | uint32(n)
	}
	return v, nil
}
