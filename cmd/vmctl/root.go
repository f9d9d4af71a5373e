package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmkit/vmkit/cmd/vmctl/logger"
	"github.com/vmkit/vmkit/internal/bootalloc"
	"github.com/vmkit/vmkit/pkg/types"
	"github.com/vmkit/vmkit/pmm"
)

var (
	// Global flags
	verbose    bool
	arenaPages []uint
)

var rootCmd = &cobra.Command{
	Use:   "vmctl",
	Short: "Inspect a simulated physical memory node",
	Long: `vmctl builds an in-process physical memory node from the requested
arena layout and exposes the kernel's read-only diagnostic surface over it:
free-page counters, arena tables, the page-state census, and a periodic
watch ticker.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logger.Options{Enabled: verbose, Level: slog.LevelDebug})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().UintSliceVar(&arenaPages, "arena", []uint{1024},
		"Arena size in pages; repeat for multiple arenas")
}

// buildNode assembles the demo node described by the --arena flags. Arenas
// are laid out back to back from a fixed base, earlier flags getting lower
// priority values (preferred).
func buildNode() (*pmm.Node, error) {
	boot := bootalloc.New()
	n := pmm.NewNode()
	base := types.PhysAddr(0x10000000)
	for i, pages := range arenaPages {
		if pages == 0 {
			return nil, fmt.Errorf("arena %d: zero pages", i)
		}
		info := pmm.ArenaInfo{
			Name:     fmt.Sprintf("arena%d", i),
			Base:     base,
			Size:     uint64(pages) * types.PageSize,
			Priority: uint32(i),
		}
		if _, err := n.AddArena(info, boot); err != nil {
			n.Close()
			return nil, err
		}
		logger.L.Debug("arena registered",
			"name", info.Name, "base", fmt.Sprintf("%#x", uint64(info.Base)), "pages", pages)
		base += types.PhysAddr(info.Size)
	}
	return n, nil
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
