package frame

import (
	"math/rand/v2"
	"strings"
	"testing"
)

func TestNewCopiesAtMostEightBytes(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	f := New(0x123, data)
	if f.DLC != 8 {
		t.Fatalf("expected DLC 8, got %d", f.DLC)
	}
	data[0] = 0xFF
	if f.Data[0] != 1 {
		t.Fatalf("frame data aliases input slice")
	}
}

func TestLen(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  int
	}{
		{"data", New(0x1, []byte{1, 2, 3}), 3},
		{"empty", New(0x1, nil), 0},
		{"remote", NewRemote(0x7FF, 5, false), 0},
		{"oversized dlc", Frame{DLC: 12}, 8},
		{"dlc above nibble", Frame{DLC: 0x13}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.frame.Len(); got != tt.want {
				t.Errorf("Len() = %d, want %d", got, tt.want)
			}
			if got := len(tt.frame.Payload()); got != tt.want {
				t.Errorf("len(Payload()) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMaskedID(t *testing.T) {
	if got := New(0xFFFF, nil).MaskedID(); got != 0x7FF {
		t.Errorf("standard MaskedID() = 0x%X, want 0x7FF", got)
	}
	if got := NewExtended(0xFFFFFFFF, nil).MaskedID(); got != 0x1FFFFFFF {
		t.Errorf("extended MaskedID() = 0x%X, want 0x1FFFFFFF", got)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		frame Frame
		want  bool
	}{
		{New(0x7FF, []byte{1}), true},
		{New(0x800, nil), false},
		{NewExtended(0x1FFFFFFF, nil), true},
		{Frame{Identifier: 1, DLC: 9}, false},
	}
	for i, tt := range tests {
		if got := tt.frame.Valid(); got != tt.want {
			t.Errorf("#%d Valid() = %v, want %v", i, got, tt.want)
		}
	}
}

func TestRandomSatisfiesInvariants(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	seen := make(map[uint8]bool)
	for range 5000 {
		f := Random(r)
		if !f.Valid() {
			t.Fatalf("invalid random frame %+v", f)
		}
		if f.Extended || f.RTR {
			t.Fatalf("random frame must be standard data frame: %+v", f)
		}
		for i := int(f.DLC); i < MaxDataLength; i++ {
			if f.Data[i] != 0 {
				t.Fatalf("byte %d beyond DLC written: %+v", i, f)
			}
		}
		seen[f.DLC] = true
	}
	for dlc := uint8(0); dlc <= MaxDataLength; dlc++ {
		if !seen[dlc] {
			t.Errorf("DLC %d never generated", dlc)
		}
	}
}

func TestString(t *testing.T) {
	s := New(0x123, []byte{0x41, 0x00}).String()
	for _, want := range []string{"<t>", "0x123", "41 00", "01000001 00000000", "A."} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
	s = NewRemote(0x1ABCDE, 4, true).String()
	if !strings.HasPrefix(s, "<R> || 0x001ABCDE || 4 || ") {
		t.Errorf("unexpected remote String() %q", s)
	}
}
