package main

import (
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmkit/vmkit/cmd/vmctl/logger"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Periodically dump the free-page counter",
	Long: `The watch command prints the free-page snapshot on a fixed ticker
until interrupted, mirroring the kernel's periodic memory dump.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := buildNode()
		if err != nil {
			return err
		}
		defer n.Close()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt)
		tick := time.NewTicker(watchInterval)
		defer tick.Stop()

		n.DumpFree(os.Stdout)
		for {
			select {
			case <-tick.C:
				n.DumpFree(os.Stdout)
			case <-stop:
				logger.L.Info("watch interrupted")
				return nil
			}
		}
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "Dump interval")
	rootCmd.AddCommand(watchCmd)
}
