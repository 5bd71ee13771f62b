package cansniff

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
)

// OpenSerialSink opens the serial port carrying the SLCAN output.
func OpenSerialSink(ctx context.Context, port string, baudrate int) (io.WriteCloser, error) {
	p, err := openSerial(ctx, port, baudrate, func(n uint, err error) {
		log.Printf("retry #%d: %v", n, err)
	})
	if err != nil {
		return nil, err
	}
	p.ResetOutputBuffer()
	return p, nil
}

// OpenSink resolves an output name: "-" is stdout, anything else a serial port.
func OpenSink(ctx context.Context, name string, baudrate int) (io.WriteCloser, error) {
	if name == "-" || name == "" {
		return nopCloser{os.Stdout}, nil
	}
	w, err := OpenSerialSink(ctx, name, baudrate)
	if err != nil {
		return nil, fmt.Errorf("failed to open sink: %w", err)
	}
	return w, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
