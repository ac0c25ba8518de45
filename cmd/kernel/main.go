// Command kernel boots the teaching kernel core: memory, scheduling,
// IPC, and the simulated ATA disk, then drives the timer IRQ loop
// until it receives SIGINT/SIGTERM.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
