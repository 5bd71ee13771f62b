package cansniff

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// Source is a CAN controller feeding received frames into a FrameQueue.
type Source interface {
	Name() string
	// Open brings the controller up and starts delivering frames to q
	// until Close is called or ctx ends.
	Open(ctx context.Context, q *FrameQueue) error
	Close() error
	// Err yields fatal errors, a nil error signals a clean close.
	Err() <-chan error
	Event() <-chan Event
}

type SourceInfo struct {
	Name               string
	Description        string
	RequiresSerialPort bool
	Live               bool
	New                func(*SourceConfig) (Source, error)
}

func (s *SourceInfo) String() string {
	return fmt.Sprintf("%s | %s, requires serial port: %v, live: %v", s.Name, s.Description, s.RequiresSerialPort, s.Live)
}

type SourceConfig struct {
	Debug        bool
	Port         string
	PortBaudrate int
	CANRate      float64 // kbit/s
	CANFilter    []uint32
	ListenOnly   bool
	DemoInterval time.Duration
	DemoCount    int
	Seed         uint64
	OnMessage    func(string)
}

// DefaultSourceConfig returns a listen only 500 kbit/s setup with no
// identifier filter.
func DefaultSourceConfig() *SourceConfig {
	return &SourceConfig{
		PortBaudrate: 115200,
		CANRate:      500,
		ListenOnly:   true,
		DemoInterval: 100 * time.Millisecond,
	}
}

var (
	sourceMu  sync.RWMutex
	sourceMap = make(map[string]*SourceInfo)
)

func NewSource(sourceName string, cfg *SourceConfig) (Source, error) {
	if cfg == nil {
		cfg = DefaultSourceConfig()
	}
	if cfg.OnMessage == nil {
		cfg.OnMessage = func(msg string) {
			_, file, no, ok := runtime.Caller(1)
			if ok {
				log.Printf("%s#%d %v", filepath.Base(file), no, msg)
			} else {
				log.Println(msg)
			}
		}
	}
	sourceMu.RLock()
	info, found := sourceMap[strings.ToLower(sourceName)]
	sourceMu.RUnlock()
	if !found {
		return nil, fmt.Errorf("%w %q", ErrUnknownSource, sourceName)
	}
	return info.New(cfg)
}

func RegisterSource(info *SourceInfo) error {
	sourceMu.Lock()
	defer sourceMu.Unlock()
	key := strings.ToLower(info.Name)
	if _, found := sourceMap[key]; found {
		return fmt.Errorf("source %s already registered", info.Name)
	}
	sourceMap[key] = info
	return nil
}

func ListSourceNames() []string {
	sourceMu.RLock()
	defer sourceMu.RUnlock()
	var out []string
	for _, info := range sourceMap {
		out = append(out, info.Name)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

func ListSources() []SourceInfo {
	sourceMu.RLock()
	defer sourceMu.RUnlock()
	var out []SourceInfo
	for _, info := range sourceMap {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}
