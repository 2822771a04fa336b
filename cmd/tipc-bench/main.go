// tipc-bench drives TIPC training-performance benchmark runs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/paddlepaddle/tipc-bench/cmd/tipc-bench/collect"
	"github.com/paddlepaddle/tipc-bench/cmd/tipc-bench/create"
	"github.com/paddlepaddle/tipc-bench/cmd/tipc-bench/run"
	"github.com/paddlepaddle/tipc-bench/cmd/tipc-bench/version"
)

var rootCmd = &cobra.Command{
	Use:        "tipc-bench",
	Short:      "TIPC training benchmark CLI",
	SuggestFor: []string{"tipcbench", "tipc"},
}

func init() {
	cobra.EnablePrefixMatching = true
}

func init() {
	rootCmd.AddCommand(
		create.NewCommand(),
		run.NewCommand(),
		collect.NewCommand(),
		version.NewCommand(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tipc-bench failed %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}
