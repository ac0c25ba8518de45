package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/eduos/kernel/internal/kernel"
)

var rootCmd = &cobra.Command{
	Use:   "kernel",
	Short: "Boots the teaching kernel's simulated core.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Boots memory, scheduling, IPC and the simulated disk, and serves the timer IRQ loop until interrupted.",
	RunE:  runBoot,
}

var fsckCmd = &cobra.Command{
	Use:   "fsck-disk",
	Short: "Opens the simulated disk and reports whether its badger store is readable.",
	RunE:  runFsckDisk,
}

// CLI flags, following the teacher's flat flag-struct style translated
// onto cobra's per-command pflag.FlagSet.
var (
	diskPath        string
	dmaFrames       int
	normalFrames    int
	highFrames      int
	maxProcesses    int
	schedPolicy     string
	tickInterval    time.Duration
	debugListenAddr string
	verboseLog      bool
	accountsDir     string
)

func init() {
	rootCmd.AddCommand(bootCmd)
	rootCmd.AddCommand(fsckCmd)

	def := kernel.DefaultConfig()

	bootCmd.Flags().StringVar(&diskPath, "disk-path", def.DiskPath,
		"Directory backing the simulated ATA device's badger store. Empty uses an in-memory store.")
	bootCmd.Flags().IntVar(&dmaFrames, "dma-frames", def.DMAFrames, "Frames reserved for the DMA zone.")
	bootCmd.Flags().IntVar(&normalFrames, "normal-frames", def.NormalFrames, "Frames in the NORMAL zone.")
	bootCmd.Flags().IntVar(&highFrames, "high-frames", def.HighFrames, "Frames in the HIGHMEM zone.")
	bootCmd.Flags().IntVar(&maxProcesses, "max-processes", def.MaxProcesses, "Process table size.")
	bootCmd.Flags().StringVar(&schedPolicy, "scheduler", def.Policy,
		"Scheduling policy: round-robin, rate-monotonic, or edf.")
	bootCmd.Flags().DurationVar(&tickInterval, "tick-interval", def.TickInterval, "Timer IRQ period.")
	bootCmd.Flags().StringVar(&debugListenAddr, "debug-listen-address", "",
		"Address the debugapi gRPC introspection server binds to. Empty disables it.")
	bootCmd.Flags().BoolVar(&verboseLog, "verbose", false, "Enable debug-level logging.")
	bootCmd.Flags().StringVar(&accountsDir, "accounts-dir", "",
		"Directory containing passwd/group/shadow files for the login syscall. Empty registers no accounts.")

	fsckCmd.Flags().StringVar(&diskPath, "disk-path", def.DiskPath,
		"Directory backing the simulated ATA device's badger store.")
}
