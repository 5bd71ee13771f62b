package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/roffe/cansniff/pkg/frame"
	"github.com/roffe/cansniff/pkg/slcan"
	"github.com/spf13/cobra"
)

const (
	flagID   = "id"
	flagData = "data"
	flagExt  = "ext"
	flagRTR  = "rtr"
	flagDLC  = "dlc"
	flagTS   = "ts"
	flagRaw  = "raw"
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "encode a single frame as an SLCAN record",
	Example: `  cansniff encode --id 0x123 --data ABCD
  cansniff encode --id 0x1ABCDEF0 --ext --rtr --dlc 2 -t --ts 12345`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		id, _ := f.GetUint32(flagID)
		dataStr, _ := f.GetString(flagData)
		ext, _ := f.GetBool(flagExt)
		rtr, _ := f.GetBool(flagRTR)
		dlc, _ := f.GetInt(flagDLC)
		ts, _ := f.GetUint16(flagTS)
		raw, _ := f.GetBool(flagRaw)

		data, err := hex.DecodeString(strings.ReplaceAll(dataStr, " ", ""))
		if err != nil {
			return fmt.Errorf("invalid data: %w", err)
		}
		if len(data) > frame.MaxDataLength {
			return fmt.Errorf("invalid data: %d bytes, max %d", len(data), frame.MaxDataLength)
		}

		var fr frame.Frame
		switch {
		case rtr:
			if dlc < 0 {
				dlc = 0
			}
			fr = frame.NewRemote(id, uint8(dlc), ext)
		case ext:
			fr = frame.NewExtended(id, data)
		default:
			fr = frame.New(id, data)
		}
		if dlc >= 0 {
			fr.DLC = uint8(dlc)
		}

		opts := slcan.Options{}
		opts.Timestamp, _ = f.GetBool(flagTimestamp)
		opts.Newline, _ = f.GetBool(flagNewline)
		c := slcan.Encode(fr, ts, opts)
		if raw {
			_, err := os.Stdout.Write(c.Bytes())
			return err
		}
		fmt.Println(fr.ColorString())
		fmt.Printf("%q\n", c.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	f := encodeCmd.Flags()
	f.Uint32(flagID, 0, "identifier, prefix with 0x for hex")
	f.String(flagData, "", "payload as hex")
	f.Bool(flagExt, false, "extended 29 bit identifier")
	f.Bool(flagRTR, false, "remote transmission request")
	f.Int(flagDLC, -1, "override the data length code, -1 = payload length")
	f.Uint16(flagTS, 0, "timestamp in milliseconds, used with --timestamp")
	f.BoolP(flagTimestamp, "t", false, "append the timestamp")
	f.BoolP(flagNewline, "n", false, "terminate with CR LF")
	f.Bool(flagRaw, false, "write the record unquoted to stdout")
}
