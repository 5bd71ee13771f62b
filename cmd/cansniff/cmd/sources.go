package cmd

import (
	"fmt"

	"github.com/roffe/cansniff"
	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "list available frame sources",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, info := range cansniff.ListSources() {
			fmt.Println(info.String())
		}
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
