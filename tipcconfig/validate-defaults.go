package tipcconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/paddlepaddle/tipc-bench/pkg/fileutil"
	"github.com/paddlepaddle/tipc-bench/pkg/httputil"
	"github.com/paddlepaddle/tipc-bench/pkg/logutil"
	"github.com/paddlepaddle/tipc-bench/pkg/randutil"
	"github.com/paddlepaddle/tipc-bench/pkg/terminal"
	"github.com/paddlepaddle/tipc-bench/pkg/timeutil"
	"github.com/paddlepaddle/tipc-bench/record"
)

// NewDefault returns a default configuration.
//   - empty string creates a non-nil object for pointer-type field
//   - omitting an entire field returns nil value
//   - make sure to check both
func NewDefault() *Config {
	name := fmt.Sprintf("tipc-bench-%s-%s", timeutil.GetTS(10), randutil.String(12))
	if v := os.Getenv(TIPC_BENCH_PREFIX + "NAME"); v != "" {
		name = v
	}
	return &Config{
		mu: new(sync.RWMutex),

		Name: name,

		Mode:           DefaultMode,
		PrepareCommand: DefaultPrepareCommand,
		TrainCommand:   DefaultTrainCommand,

		BatchSize: 1,
		FPItem:    "fp32",
		RunMode:   "DP",

		// to be auto-generated
		ConfigPath: "",
		OutputDir:  "",

		LogColor: true,
		LogLevel: logutil.DefaultLogLevel,
		// default, stderr, stdout, or file name
		// log file named with the run group name will be added automatically
		LogOutputs: []string{"stderr"},

		Partition: "aws",
		Region:    "us-west-2",

		S3:         getDefaultS3(),
		CloudWatch: getDefaultCloudWatch(),
	}
}

// ValidateAndSetDefaults returns an error for invalid configurations.
// And updates empty fields with default values.
// At the end, it writes populated YAML to the config path.
func (cfg *Config) ValidateAndSetDefaults() error {
	if cfg.mu == nil {
		cfg.mu = new(sync.RWMutex)
	}
	cfg.mu.Lock()
	defer func() {
		cfg.unsafeSync()
		cfg.mu.Unlock()
	}()

	if err := cfg.validateConfig(); err != nil {
		return fmt.Errorf("validateConfig failed [%v]", err)
	}
	if err := cfg.validateSteps(); err != nil {
		return fmt.Errorf("validateSteps failed [%v]", err)
	}
	if err := cfg.validateBenchCase(); err != nil {
		return fmt.Errorf("validateBenchCase failed [%v]", err)
	}
	if err := cfg.validateS3(); err != nil {
		return fmt.Errorf("validateS3 failed [%v]", err)
	}
	if err := cfg.validateCloudWatch(); err != nil {
		return fmt.Errorf("validateCloudWatch failed [%v]", err)
	}

	return nil
}

func (cfg *Config) validateConfig() error {
	if len(cfg.Name) == 0 {
		return errors.New("Name is empty")
	}
	if cfg.Name != strings.ToLower(cfg.Name) {
		return fmt.Errorf("Name %q must be in lower-case", cfg.Name)
	}

	if cfg.LogColorOverride == "" {
		_, cerr := terminal.IsColor()
		if cfg.LogColor && cerr != nil {
			cfg.LogColor = false
		}
	} else {
		ov, perr := strconv.ParseBool(cfg.LogColorOverride)
		if perr != nil {
			return fmt.Errorf("invalid LogColorOverride %q (%v)", cfg.LogColorOverride, perr)
		}
		cfg.LogColor = ov
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = logutil.DefaultLogLevel
	}
	if len(cfg.LogOutputs) == 0 {
		cfg.LogOutputs = []string{"stderr"}
	}

	if cfg.ConfigPath == "" {
		rootDir, err := os.Getwd()
		if err != nil {
			rootDir = filepath.Join(os.TempDir(), cfg.Name)
			if err := os.MkdirAll(rootDir, 0700); err != nil {
				return err
			}
		}
		cfg.ConfigPath = filepath.Join(rootDir, cfg.Name+".yaml")
		p, err := filepath.Abs(cfg.ConfigPath)
		if err != nil {
			panic(err)
		}
		cfg.ConfigPath = p
	}
	if err := os.MkdirAll(filepath.Dir(cfg.ConfigPath), 0700); err != nil {
		return err
	}
	if err := fileutil.IsDirWriteable(filepath.Dir(cfg.ConfigPath)); err != nil {
		return err
	}

	if len(cfg.LogOutputs) == 1 && (cfg.LogOutputs[0] == "stderr" || cfg.LogOutputs[0] == "stdout") {
		cfg.LogOutputs = append(cfg.LogOutputs, cfg.ConfigPath+".log")
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(os.TempDir(), cfg.Name)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0700); err != nil {
		return err
	}
	if err := fileutil.IsDirWriteable(cfg.OutputDir); err != nil {
		return err
	}

	return nil
}

func (cfg *Config) validateSteps() error {
	if cfg.Mode == "" {
		cfg.Mode = DefaultMode
	}
	if cfg.PrepareCommand == "" {
		cfg.PrepareCommand = DefaultPrepareCommand
	}
	if cfg.TrainCommand == "" {
		cfg.TrainCommand = DefaultTrainCommand
	}

	if cfg.TipcConfigPath == "" {
		return errors.New("TipcConfigPath is empty")
	}
	if !httputil.IsURL(cfg.TipcConfigPath) && !fileutil.Exist(cfg.TipcConfigPath) {
		return fmt.Errorf("TipcConfigPath %q does not exist", cfg.TipcConfigPath)
	}

	if cfg.WorkDir != "" {
		if !fileutil.Exist(cfg.WorkDir) {
			return fmt.Errorf("WorkDir %q does not exist", cfg.WorkDir)
		}
	}

	for i, dv := range cfg.Devices {
		if strings.TrimSpace(dv) == "" {
			return fmt.Errorf("Devices[%d] is empty in %v", i, cfg.Devices)
		}
	}

	cfg.RunTimeoutString = cfg.RunTimeout.String()

	if cfg.FrameRepoPath != "" && !fileutil.Exist(cfg.FrameRepoPath) {
		return fmt.Errorf("FrameRepoPath %q does not exist", cfg.FrameRepoPath)
	}

	return nil
}

func (cfg *Config) validateBenchCase() error {
	if cfg.CaseVariant == "" {
		return errors.New("CaseVariant is empty")
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("invalid BatchSize %d", cfg.BatchSize)
	}
	if _, ok := record.FPItems[cfg.FPItem]; !ok {
		return fmt.Errorf("unknown FPItem %q", cfg.FPItem)
	}
	if cfg.RunMode == "" {
		return errors.New("RunMode is empty")
	}
	rn := cfg.RunName()
	if _, err := record.ParseRunName(rn.String()); err != nil {
		return fmt.Errorf("invalid run name %q (%v)", rn.String(), err)
	}
	return nil
}

func (cfg *Config) validateS3() error {
	if cfg.S3 == nil {
		cfg.S3 = getDefaultS3()
	}
	if !cfg.S3.Enable {
		return nil
	}
	if cfg.S3.BucketName == "" {
		return errors.New("S3.Enable true but empty S3.BucketName")
	}
	if cfg.Partition == "" {
		return errors.New("S3.Enable true but empty Partition")
	}
	if cfg.Region == "" {
		return errors.New("S3.Enable true but empty Region")
	}
	if cfg.S3.Dir == "" {
		cfg.S3.Dir = cfg.Name
	}
	return nil
}

func (cfg *Config) validateCloudWatch() error {
	if cfg.CloudWatch == nil {
		cfg.CloudWatch = getDefaultCloudWatch()
	}
	if !cfg.CloudWatch.Enable {
		return nil
	}
	if cfg.CloudWatch.Namespace == "" {
		return errors.New("CloudWatch.Enable true but empty CloudWatch.Namespace")
	}
	if cfg.Region == "" {
		return errors.New("CloudWatch.Enable true but empty Region")
	}
	return nil
}
