package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kshell",
	Short: "Runs canned scenarios against an in-process teaching kernel.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var runCmd = &cobra.Command{
	Use:   "run [scenario]",
	Short: "Boots a kernel instance and runs the named scenario, or lists available scenarios with no argument.",
	RunE:  runScenario,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists available scenario names.",
	Run: func(cmd *cobra.Command, args []string) {
		names := make([]string, 0, len(scenarios))
		for name := range scenarios {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println(strings.Join(names, "\n"))
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
}

func runScenario(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("kshell run: specify a scenario name, or run `kshell list`")
	}
	name := args[0]
	scenario, ok := scenarios[name]
	if !ok {
		return fmt.Errorf("kshell run: unknown scenario %q; see `kshell list`", name)
	}

	log := logr.Discard()
	return scenario(log)
}
