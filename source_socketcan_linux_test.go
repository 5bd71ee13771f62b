//go:build linux

package cansniff

import (
	"testing"

	"github.com/roffe/cansniff/pkg/frame"
	"go.einride.tech/can"
)

func TestFromEinride(t *testing.T) {
	tests := []struct {
		name string
		in   can.Frame
		want frame.Frame
	}{
		{
			name: "standard dlc 0",
			in:   can.Frame{ID: 0x7FF},
			want: frame.New(0x7FF, nil),
		},
		{
			name: "standard dlc 8",
			in:   can.Frame{ID: 0x123, Length: 8, Data: can.Data{1, 2, 3, 4, 5, 6, 7, 8}},
			want: frame.New(0x123, []byte{1, 2, 3, 4, 5, 6, 7, 8}),
		},
		{
			name: "extended",
			in:   can.Frame{ID: 0x1ABCDEF0, Length: 2, Data: can.Data{0xAB, 0xCD}, IsExtended: true},
			want: frame.NewExtended(0x1ABCDEF0, []byte{0xAB, 0xCD}),
		},
		{
			name: "extended remote",
			in:   can.Frame{ID: 0x1ABCDE, Length: 4, IsRemote: true, IsExtended: true},
			want: frame.NewRemote(0x1ABCDE, 4, true),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fromEinride(tt.in); got != tt.want {
				t.Errorf("fromEinride() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestListenOnlyMismatch(t *testing.T) {
	tests := []struct {
		want, have bool
		warn       bool
	}{
		{want: true, have: true},
		{want: false, have: false},
		{want: true, have: false, warn: true},
		{want: false, have: true, warn: true},
	}
	for _, tt := range tests {
		if got := listenOnlyMismatch("can0", tt.want, tt.have); (got != "") != tt.warn {
			t.Errorf("listenOnlyMismatch(%v, %v) = %q, want warning %v", tt.want, tt.have, got, tt.warn)
		}
	}
}

func TestSocketCANTakeDownOnlyRevertsOwnBringUp(t *testing.T) {
	src, err := NewSocketCAN(DefaultSourceConfig())
	if err != nil {
		t.Fatal(err)
	}
	// never brought up, so there is no device to touch
	if err := src.(*SocketCAN).takeDown(); err != nil {
		t.Fatalf("takeDown() error = %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
