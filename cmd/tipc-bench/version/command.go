// Package version implements "tipc-bench version" command.
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paddlepaddle/tipc-bench/version"
)

func init() {
	cobra.EnablePrefixMatching = true
}

// NewCommand implements "tipc-bench version" command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints out tipc-bench version",
		Run:   versionFunc,
	}
}

func versionFunc(cmd *cobra.Command, args []string) {
	fmt.Println(version.Version())
}
