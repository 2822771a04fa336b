package tipcconfig

import (
	"fmt"
	"os"
	"strings"

	shellquote "github.com/kballard/go-shellquote"
)

// PrepareArgs returns the exact argv for the preparation step: the
// command tokens followed by the TIPC config path and the mode keyword.
func (cfg *Config) PrepareArgs() ([]string, error) {
	return cfg.stepArgs(cfg.PrepareCommand, "")
}

// TrainArgs returns the exact argv for the training-benchmark step.
// It carries the identical (TipcConfigPath, Mode) positional pair as
// the preparation step, in the same order; ExtraArgs tokens follow.
func (cfg *Config) TrainArgs() ([]string, error) {
	return cfg.stepArgs(cfg.TrainCommand, cfg.ExtraArgs)
}

func (cfg *Config) stepArgs(command string, extra string) (args []string, err error) {
	args, err = shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("failed to split command %q (%v)", command, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command %q", command)
	}
	args = append(args, cfg.TipcConfigPath, cfg.Mode)
	if extra != "" {
		var ex []string
		ex, err = shellquote.Split(extra)
		if err != nil {
			return nil, fmt.Errorf("failed to split extra args %q (%v)", extra, err)
		}
		args = append(args, ex...)
	}
	return args, nil
}

// StepEnv returns the process environment for both steps: the parent
// environment plus the device visibility list and the auxiliary tool
// root. An empty Devices list leaves CUDA_VISIBLE_DEVICES unset so the
// steps inherit the parent's visibility.
func (cfg *Config) StepEnv() []string {
	envs := os.Environ()
	if len(cfg.Devices) > 0 {
		envs = append(envs, "CUDA_VISIBLE_DEVICES="+strings.Join(cfg.Devices, ","))
	}
	if cfg.BenchmarkRoot != "" {
		envs = append(envs, "BENCHMARK_ROOT="+cfg.BenchmarkRoot)
	}
	return envs
}
