package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cansniff",
	Short: "CAN to SLCAN bridge",
	Long: `cansniff captures frames from a CAN controller and republishes them as
SLCAN (LAWICEL) records on a serial line or stdout, ready for candump,
SavvyCAN and other SLCAN aware tools.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

const (
	flagDebug = "debug"
)

func init() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)

	pf := rootCmd.PersistentFlags()
	pf.BoolP(flagDebug, "d", false, "debug mode")
}
