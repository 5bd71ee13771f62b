package cmd

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/roffe/cansniff"
	"github.com/roffe/cansniff/pkg/frame"
	"github.com/roffe/cansniff/pkg/slcan"
	"github.com/spf13/cobra"
)

const (
	flagSource       = "source"
	flagInPort       = "in-port"
	flagInBaudrate   = "in-baudrate"
	flagCANRate      = "canrate"
	flagListenOnly   = "listen-only"
	flagFilter       = "filter"
	flagDemoInterval = "demo-interval"
	flagDemoCount    = "demo-count"
	flagSeed         = "seed"
	flagOut          = "out"
	flagOutBaudrate  = "out-baudrate"
	flagTimestamp    = "timestamp"
	flagNewline      = "newline"
	flagQueueSize    = "queue-size"
	flagOverflow     = "overflow"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Capture frames and relay them as SLCAN records",
	Example: `  cansniff run -s demo -n
  cansniff run -s slcan --in-port /dev/ttyACM0 -o /dev/ttyUSB0 -t
  cansniff run -s socketcan --in-port can0 -o -`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f := cmd.Flags()

		debug, _ := f.GetBool(flagDebug)
		sourceName, _ := f.GetString(flagSource)
		overflowName, _ := f.GetString(flagOverflow)
		overflow, err := cansniff.ParseOverflowPolicy(overflowName)
		if err != nil {
			return err
		}

		cfg := cansniff.DefaultSourceConfig()
		cfg.Debug = debug
		cfg.Port, _ = f.GetString(flagInPort)
		cfg.PortBaudrate, _ = f.GetInt(flagInBaudrate)
		cfg.CANRate, _ = f.GetFloat64(flagCANRate)
		cfg.ListenOnly, _ = f.GetBool(flagListenOnly)
		filter, _ := f.GetStringSlice(flagFilter)
		if cfg.CANFilter, err = parseFilter(filter); err != nil {
			return err
		}
		cfg.DemoInterval, _ = f.GetDuration(flagDemoInterval)
		cfg.DemoCount, _ = f.GetInt(flagDemoCount)
		cfg.Seed, _ = f.GetUint64(flagSeed)
		cfg.OnMessage = func(msg string) {
			log.Println(msg)
		}

		if cfg.Port == "?" {
			if cfg.Port, err = selectPort("Input port"); err != nil {
				return err
			}
		}

		src, err := cansniff.NewSource(sourceName, cfg)
		if err != nil {
			return err
		}

		outName, _ := f.GetString(flagOut)
		if outName == "?" {
			if outName, err = selectPort("Output port"); err != nil {
				return err
			}
		}
		outBaudrate, _ := f.GetInt(flagOutBaudrate)
		sink, err := cansniff.OpenSink(ctx, outName, outBaudrate)
		if err != nil {
			return err
		}
		defer sink.Close()

		bcfg := cansniff.BridgeConfig{
			Overflow: overflow,
			OnEvent:  func(e cansniff.Event) {
				if e.Type == cansniff.EventTypeDebug && !debug {
					return
				}
				log.Println(e.String())
			},
		}
		bcfg.QueueSize, _ = f.GetInt(flagQueueSize)
		bcfg.Timestamp, _ = f.GetBool(flagTimestamp)
		bcfg.Newline, _ = f.GetBool(flagNewline)
		if debug {
			bcfg.OnFrame = func(fr frame.Frame, c *slcan.Command) {
				log.Printf("%s => %q", fr.ColorString(), c.String())
			}
		}

		b := cansniff.NewBridge(src, sink, bcfg)
		start := time.Now()
		log.Printf("relaying %s to %s (queue %d, %s)", src.Name(), outName, b.Queue().Cap(), b.Queue().Policy())
		err = b.Run(ctx)
		log.Printf("%s in %s", b.Stats(), time.Since(start).Round(time.Millisecond))
		if err != nil {
			return fmt.Errorf("bridge terminated: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringP(flagSource, "s", "demo", "frame source, see `cansniff sources`")
	f.String(flagInPort, "", "source serial port or CAN interface, ? = select")
	f.Int(flagInBaudrate, 115200, "source serial port baudrate")
	f.Float64(flagCANRate, 500, "CAN bitrate in kbit/s")
	f.Bool(flagListenOnly, true, "open the controller in listen only mode")
	f.StringSlice(flagFilter, nil, "only relay these identifiers, comma separated, 0x prefix for hex")
	f.Duration(flagDemoInterval, 100*time.Millisecond, "demo source frame interval, 0 = as fast as possible")
	f.Int(flagDemoCount, 0, "stop the demo source after this many frames, 0 = never")
	f.Uint64(flagSeed, 0, "demo source random seed, 0 = time based")
	f.StringP(flagOut, "o", "-", "output serial port, - = stdout, ? = select")
	f.Int(flagOutBaudrate, 115200, "output serial port baudrate")
	f.BoolP(flagTimestamp, "t", false, "append SLCAN millisecond timestamps")
	f.BoolP(flagNewline, "n", false, "terminate records with CR LF")
	f.Int(flagQueueSize, cansniff.DefaultQueueSize, "frame queue capacity")
	f.String(flagOverflow, cansniff.DropNewest.String(), "queue overflow policy: drop-newest, drop-oldest or block")
}

func parseFilter(ids []string) ([]uint32, error) {
	var out []uint32
	for _, s := range ids {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid filter id %q: %w", s, err)
		}
		out = append(out, uint32(id))
	}
	return out, nil
}
