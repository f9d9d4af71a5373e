package main

import (
	"os"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show node counters and the page-state census",
	Long: `The stats command builds the node and prints its free-page counter,
total byte span, and the full page-state census. The census walks every
page descriptor, the same O(all pages) path the kernel keeps off hot paths.

Example:
  vmctl stats --arena 4096 --arena 1024`,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := buildNode()
		if err != nil {
			return err
		}
		defer n.Close()
		n.DumpFree(os.Stdout)
		n.DumpStates(os.Stdout)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
