// Package collect implements "tipc-bench collect" command.
package collect

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/paddlepaddle/tipc-bench/collect"
	"github.com/paddlepaddle/tipc-bench/pkg/fileutil"
	"github.com/paddlepaddle/tipc-bench/pkg/logutil"
	"github.com/paddlepaddle/tipc-bench/tipcconfig"
)

var (
	path         string
	enablePrompt bool
	compareWith  string
)

func init() {
	cobra.EnablePrefixMatching = true
}

// NewCommand implements "tipc-bench collect" command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collects the result records into summary artifacts",
		Run:   collectFunc,
	}
	cmd.PersistentFlags().StringVarP(&path, "path", "p", "", "tipc-bench configuration file path")
	cmd.PersistentFlags().BoolVarP(&enablePrompt, "enable-prompt", "e", true, "'true' to enable prompt mode")
	cmd.PersistentFlags().StringVar(&compareWith, "compare-with", "", "path to a previous collect-results.json to compare against")
	return cmd
}

func collectFunc(cmd *cobra.Command, args []string) {
	if path == "" {
		fmt.Fprintln(os.Stderr, "'--path' flag is not specified")
		os.Exit(1)
	}
	if !fileutil.Exist(path) {
		fmt.Fprintf(os.Stderr, "configuration %q does not exist\n", path)
		os.Exit(1)
	}

	cfg, err := tipcconfig.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration %q (%v)\n", path, err)
		os.Exit(1)
	}
	if err = cfg.ValidateAndSetDefaults(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to validate configuration %q (%v)\n", path, err)
		os.Exit(1)
	}

	lg, wr, logFile, err := logutil.NewWithStderrWriter(cfg.LogLevel, cfg.LogOutputs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger (%v)\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	ts, err := collect.New(&collect.Config{
		Prompt:     enablePrompt,
		Stopc:      make(chan struct{}),
		Logger:     lg,
		LogWriter:  wr,
		TipcConfig: cfg,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create collector (%v)\n", err)
		os.Exit(1)
	}

	if err = ts.Apply(); err != nil {
		fmt.Printf("\n*********************************\n")
		fmt.Printf("'tipc-bench collect' fail %v\n", err)
		os.Exit(1)
	}

	if compareWith != "" {
		before, cerr := collect.LoadSummary(compareWith)
		if cerr != nil {
			fmt.Fprintf(os.Stderr, "failed to load summary %q (%v)\n", compareWith, cerr)
			os.Exit(1)
		}
		after, cerr := collect.LoadSummary(collect.SummaryJSONPath(cfg))
		if cerr != nil {
			fmt.Fprintf(os.Stderr, "failed to load summary %q (%v)\n", collect.SummaryJSONPath(cfg), cerr)
			os.Exit(1)
		}
		c, cerr := collect.Compare(before, after)
		if cerr != nil {
			fmt.Printf("\n*********************************\n")
			fmt.Printf("'tipc-bench collect' fail %v\n", cerr)
			os.Exit(1)
		}
		fmt.Fprintf(wr, "\n\n%s\n\n", c.Table())
	}

	fmt.Printf("\n*********************************\n")
	fmt.Printf("'tipc-bench collect' success\n")
}
