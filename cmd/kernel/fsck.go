package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eduos/kernel/pkg/blockio"
)

// runFsckDisk is the teaching kernel's stand-in for fsck: there is no
// filesystem layered on the simulated block device (spec.md scopes
// that out), so the only thing to check is that the badger store
// backing it opens and a sector round-trips cleanly.
func runFsckDisk(cmd *cobra.Command, args []string) error {
	dev, err := blockio.Open(diskPath)
	if err != nil {
		return fmt.Errorf("fsck-disk: open: %w", err)
	}
	defer dev.Close()

	probe := make([]byte, blockio.SectorSize)
	if err := dev.ReadSector(0, probe); err != nil {
		return fmt.Errorf("fsck-disk: sector 0 unreadable: %w", err)
	}

	fmt.Printf("disk at %q: OK (sector 0 readable)\n", diskPath)
	return nil
}
