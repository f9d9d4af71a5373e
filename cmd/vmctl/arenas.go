package main

import (
	"os"

	"github.com/spf13/cobra"
)

var arenasCmd = &cobra.Command{
	Use:   "arenas",
	Short: "List arenas in priority order",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := buildNode()
		if err != nil {
			return err
		}
		defer n.Close()
		n.DumpArenas(os.Stdout)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(arenasCmd)
}
