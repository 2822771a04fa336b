// Package run implements "tipc-bench run" command.
package run

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paddlepaddle/tipc-bench/pkg/fileutil"
	"github.com/paddlepaddle/tipc-bench/pkg/httputil"
	"github.com/paddlepaddle/tipc-bench/pkg/logutil"
	"github.com/paddlepaddle/tipc-bench/pkg/spinner"
	"github.com/paddlepaddle/tipc-bench/runner"
	"github.com/paddlepaddle/tipc-bench/tipcconfig"
)

var (
	path         string
	enablePrompt bool
)

func init() {
	cobra.EnablePrefixMatching = true
}

// NewCommand implements "tipc-bench run" command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs one TIPC benchmark case (prepare step, then train step)",
		Long:  "Configuration values are overwritten by environment variables.",
		Run:   runFunc,
	}
	cmd.PersistentFlags().StringVarP(&path, "path", "p", "", "tipc-bench configuration file path")
	cmd.PersistentFlags().BoolVarP(&enablePrompt, "enable-prompt", "e", true, "'true' to enable prompt mode")
	return cmd
}

func runFunc(cmd *cobra.Command, args []string) {
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

	fmt.Printf("\n*********************************\n")
	fmt.Printf("overwriting config file from environment variables...\n")
	if err = cfg.UpdateFromEnvs(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from environment variables: %v\n", err)
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

	// the TIPC config may live behind http(s); fetch it before the steps
	if httputil.IsURL(cfg.TipcConfigPath) {
		var d []byte
		d, err = httputil.Download(lg, wr, cfg.TipcConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to download TIPC config %q (%v)\n", cfg.TipcConfigPath, err)
			os.Exit(1)
		}
		var p string
		p, err = fileutil.WriteTempFile(d)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to save TIPC config (%v)\n", err)
			os.Exit(1)
		}
		lg.Info("downloaded TIPC config", zap.String("url", cfg.TipcConfigPath), zap.String("path", p))
		cfg.TipcConfigPath = p
		cfg.Sync()
	}

	stopc := make(chan struct{})
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		lg.Info("received signal; stopping", zap.String("signal", sig.String()))
		close(stopc)
	}()

	ts, err := runner.New(&runner.Config{
		Prompt:     enablePrompt,
		Stopc:      stopc,
		Logger:     lg,
		LogWriter:  wr,
		TipcConfig: cfg,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create runner (%v)\n", err)
		os.Exit(1)
	}

	sp := spinner.New(wr, "Running benchmark case "+cfg.RunName().String()+"...")
	sp.Restart()
	err = ts.Apply()
	sp.Stop()
	signal.Stop(sigs)
	if err != nil {
		fmt.Printf("\n*********************************\n")
		fmt.Printf("'tipc-bench run' fail %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n*********************************\n")
	fmt.Printf("record: %s\n", cfg.RecordPath)
	fmt.Printf("'tipc-bench run' success\n")
}
