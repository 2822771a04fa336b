// Package tipcconfig defines the TIPC benchmark harness configuration.
package tipcconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mitchellh/colorstring"
	"github.com/paddlepaddle/tipc-bench/pkg/timeutil"
	"github.com/paddlepaddle/tipc-bench/record"
	"sigs.k8s.io/yaml" // must use "sigs.k8s.io/yaml"
)

// TIPC_BENCH_PREFIX is the environment variable prefix used for "tipcconfig".
const TIPC_BENCH_PREFIX = "TIPC_BENCH_"

const (
	// EnvPrefixS3 is the environment variable prefix for the S3 sub-config.
	EnvPrefixS3 = TIPC_BENCH_PREFIX + "S3_"
	// EnvPrefixCloudWatch is the environment variable prefix for the
	// CloudWatch sub-config.
	EnvPrefixCloudWatch = TIPC_BENCH_PREFIX + "CLOUDWATCH_"
)

const (
	// DefaultMode is the mode keyword passed to both benchmark steps.
	DefaultMode = "benchmark_train"
	// DefaultPrepareCommand is the preparation step command line.
	DefaultPrepareCommand = "bash test_tipc/prepare.sh"
	// DefaultTrainCommand is the training-benchmark step command line.
	DefaultTrainCommand = "bash test_tipc/benchmark_train.sh"
)

// Config defines the harness configuration. This is the harness's own
// configuration file; the plain-text TIPC config handed to the external
// scripts is referenced by TipcConfigPath.
type Config struct {
	mu *sync.RWMutex

	// Name is the benchmark run group name.
	// If empty, the harness auto-populates it.
	Name string `json:"name"`

	// ConfigPath is the configuration file path.
	// The harness is expected to update this file with latest status.
	// Not overridable via environment once set.
	ConfigPath string `json:"config-path,omitempty" read-only:"true"`

	// Mode is the mode keyword passed to both steps.
	Mode string `json:"mode"`
	// TipcConfigPath is the path to the plain-text TIPC config file
	// handed to both steps. May be an http(s) URL; the run command
	// downloads it before the steps start.
	TipcConfigPath string `json:"tipc-config-path"`

	// CaseVariant is the case name plus variant tag the run is filed
	// under, e.g. "cylinder2d_unsteady".
	CaseVariant string `json:"case-variant"`
	// BatchSize is the training batch size of the benchmark case.
	BatchSize int64 `json:"batch-size"`
	// FPItem is the floating-point precision tag (e.g. "fp32").
	FPItem string `json:"fp-item"`
	// RunMode is the distribution mode tag (e.g. "DP").
	RunMode string `json:"run-mode"`
	// DeviceNum overrides the derived topology tag. If empty, it is
	// derived as "N1C{len(Devices)}" ("N1C1" when Devices is empty).
	DeviceNum string `json:"device-num,omitempty"`

	// PrepareCommand is the preparation step command line.
	PrepareCommand string `json:"prepare-command"`
	// TrainCommand is the training-benchmark step command line.
	TrainCommand string `json:"train-command"`
	// ExtraArgs is extra command line tokens appended to the train
	// step, after the two positional arguments.
	ExtraArgs string `json:"extra-args,omitempty"`

	// WorkDir is the directory both steps run in, the model repository
	// checkout. If empty, the steps run in the current directory.
	WorkDir string `json:"work-dir"`
	// BenchmarkRoot is the auxiliary tool root, exported to the steps
	// as BENCHMARK_ROOT. Empty means not exported.
	BenchmarkRoot string `json:"benchmark-root"`
	// Devices is the device visibility list, exported to the steps as
	// CUDA_VISIBLE_DEVICES (comma-joined). Empty means the variable is
	// not set and the steps inherit the parent's visibility.
	Devices []string `json:"devices,omitempty"`

	// OutputDir is the directory receiving per-run logs and result
	// records.
	OutputDir string `json:"output-dir"`

	// RunTimeout bounds each step's execution. Zero means no timeout.
	// Expiry surfaces as the step's own error; the harness never
	// retries.
	RunTimeout       time.Duration `json:"run-timeout"`
	RunTimeoutString string        `json:"run-timeout-string" read-only:"true"`

	// FrameRepoPath is the framework checkout to read frame git
	// metadata from. If empty, FrameCommit and FrameVersion below are
	// used as-is.
	FrameRepoPath string `json:"frame-repo-path,omitempty"`
	// FrameCommit is the framework commit hash fallback.
	FrameCommit string `json:"frame-commit,omitempty"`
	// FrameVersion is the framework version tag fallback.
	FrameVersion string `json:"frame-version,omitempty"`

	// LogColor is true to output logs in color.
	LogColor bool `json:"log-color"`
	// LogColorOverride is not empty to override "LogColor" setting.
	// If not empty, the automatic color check is not even run and use
	// this value instead.
	LogColorOverride string `json:"log-color-override"`
	// LogLevel configures log level. Only supports debug, info, warn,
	// error, panic, or fatal. Default 'info'.
	LogLevel string `json:"log-level"`
	// LogOutputs is a list of log outputs. Valid values are 'default',
	// 'stderr', 'stdout', or file names. Logs are appended to the
	// existing file, if any.
	LogOutputs []string `json:"log-outputs,omitempty"`

	// Partition is the AWS partition, used when S3 or CloudWatch is
	// enabled.
	Partition string `json:"partition"`
	// Region is the AWS region, used when S3 or CloudWatch is enabled.
	Region string `json:"region"`

	S3         *S3         `json:"s3"`
	CloudWatch *CloudWatch `json:"cloudwatch"`

	// TimeFrameRun records the train step's wall-clock time frame of
	// the last run.
	TimeFrameRun timeutil.TimeFrame `json:"time-frame-run" read-only:"true"`
	// RecordPath is the result record file path of the last successful
	// run.
	RecordPath string `json:"record-path,omitempty" read-only:"true"`
}

// S3 configures result artifact uploads.
type S3 struct {
	// Enable is true to upload records, summaries and archives.
	Enable bool `json:"enable"`
	// BucketName is the bucket all artifacts are uploaded to.
	BucketName string `json:"bucket-name"`
	// Dir is the S3 directory prefix to store all results under.
	// It is under BucketName.
	Dir string `json:"dir"`
}

func getDefaultS3() *S3 {
	return &S3{
		Enable:     false,
		BucketName: "",
	}
}

// CloudWatch configures per-record metric publishing.
type CloudWatch struct {
	// Enable is true to publish run metrics.
	Enable bool `json:"enable"`
	// Namespace is the CloudWatch metric namespace.
	Namespace string `json:"namespace"`
}

func getDefaultCloudWatch() *CloudWatch {
	return &CloudWatch{
		Enable:    false,
		Namespace: "TipcBench",
	}
}

// Load loads configuration from YAML.
//
// Example usage:
//
//	import "github.com/paddlepaddle/tipc-bench/tipcconfig"
//	cfg, err := tipcconfig.Load("test.yaml")
//	err = cfg.ValidateAndSetDefaults()
//
// Do not set default values in this function.
// "ValidateAndSetDefaults" must be called separately,
// to prevent overwriting previous data when loaded from disks.
func Load(p string) (cfg *Config, err error) {
	var d []byte
	d, err = os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	cfg = new(Config)
	if err = yaml.Unmarshal(d, cfg, yaml.DisallowUnknownFields); err != nil {
		return nil, err
	}

	cfg.mu = new(sync.RWMutex)
	if cfg.ConfigPath != p {
		cfg.ConfigPath = p
	}
	var ap string
	ap, err = filepath.Abs(p)
	if err != nil {
		return nil, err
	}
	cfg.ConfigPath = ap
	cfg.unsafeSync()

	return cfg, nil
}

// Sync persists current configuration and states to disk.
func (cfg *Config) Sync() (err error) {
	cfg.mu.Lock()
	defer cfg.mu.Unlock()
	return cfg.unsafeSync()
}

func (cfg *Config) unsafeSync() (err error) {
	var p string
	if cfg.ConfigPath != "" && !filepath.IsAbs(cfg.ConfigPath) {
		p, err = filepath.Abs(cfg.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to 'filepath.Abs(%s)' %v", cfg.ConfigPath, err)
		}
		cfg.ConfigPath = p
	}
	var d []byte
	d, err = yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to 'yaml.Marshal' %v", err)
	}
	if err = os.WriteFile(cfg.ConfigPath, d, 0600); err != nil {
		return fmt.Errorf("failed to write file %q (%v)", cfg.ConfigPath, err)
	}
	return nil
}

// RunName returns the composite run name the run's artifacts are filed
// under.
func (cfg *Config) RunName() record.RunName {
	return record.RunName{
		CaseVariant: cfg.CaseVariant,
		BatchSize:   cfg.BatchSize,
		FPItem:      cfg.FPItem,
		RunMode:     cfg.RunMode,
		DeviceNum:   cfg.deviceNum(),
	}
}

func (cfg *Config) deviceNum() string {
	if cfg.DeviceNum != "" {
		return cfg.DeviceNum
	}
	cards := len(cfg.Devices)
	if cards == 0 {
		cards = 1
	}
	return fmt.Sprintf("N1C%d", cards)
}

// Colorize colorizes the input when color output is enabled.
func (cfg Config) Colorize(input string) string {
	colorize := colorstring.Colorize{
		Colors:  colorstring.DefaultColors,
		Disable: !cfg.LogColor,
		Reset:   true,
	}
	return colorize.Color(input)
}
