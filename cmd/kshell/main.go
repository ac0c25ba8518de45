// Command kshell runs canned scenarios against an in-process kernel
// instance, for exercising the syscall surface without a userspace
// program loader.
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
