package cmd

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/roffe/cansniff"
	"github.com/roffe/cansniff/pkg/bar"
	"github.com/roffe/cansniff/pkg/frame"
	"github.com/roffe/cansniff/pkg/slcan"
	"github.com/spf13/cobra"
)

const flagCount = "count"

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "relay demo frames to nowhere as fast as possible",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		count, _ := f.GetInt(flagCount)
		if count < 1 {
			return fmt.Errorf("invalid count: %d", count)
		}

		cfg := cansniff.DefaultSourceConfig()
		cfg.DemoInterval = 0
		cfg.DemoCount = count
		cfg.Seed, _ = f.GetUint64(flagSeed)
		src, err := cansniff.NewSource("Demo", cfg)
		if err != nil {
			return err
		}

		pb := bar.New(count, "relaying")
		bcfg := cansniff.BridgeConfig{
			Overflow: cansniff.Block,
			OnFrame:  func(frame.Frame, *slcan.Command) {
				pb.Add(1)
			},
			OnEvent: func(e cansniff.Event) {
				if e.Type <= cansniff.EventTypeWarning {
					log.Println(e.String())
				}
			},
		}
		bcfg.QueueSize, _ = f.GetInt(flagQueueSize)
		bcfg.Timestamp, _ = f.GetBool(flagTimestamp)
		bcfg.Newline, _ = f.GetBool(flagNewline)

		b := cansniff.NewBridge(src, io.Discard, bcfg)
		start := time.Now()
		if err := b.Run(cmd.Context()); err != nil {
			return err
		}
		pb.Finish()
		fmt.Println()

		took := time.Since(start)
		st := b.Stats()
		log.Println(st.String())
		log.Printf("%d frames, %d bytes in %s, %.0f frames/s", st.Relayed, st.SentBytes, took.Round(time.Millisecond), float64(st.Relayed)/took.Seconds())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)

	f := benchCmd.Flags()
	f.Int(flagCount, 100000, "number of frames to relay")
	f.Uint64(flagSeed, 0, "random seed, 0 = time based")
	f.Int(flagQueueSize, cansniff.DefaultQueueSize, "frame queue capacity")
	f.BoolP(flagTimestamp, "t", false, "append SLCAN millisecond timestamps")
	f.BoolP(flagNewline, "n", false, "terminate records with CR LF")
}
