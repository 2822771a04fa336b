// Package runner implements the two-step benchmark invocation wrapper:
// a preparation step, then a training-benchmark step, both invoked with
// the same two positional arguments.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/manifoldco/promptui"
	"go.uber.org/zap"
	"k8s.io/utils/exec"

	"github.com/paddlepaddle/tipc-bench/pkg/fileutil"
	"github.com/paddlepaddle/tipc-bench/pkg/gitutil"
	"github.com/paddlepaddle/tipc-bench/pkg/latency"
	"github.com/paddlepaddle/tipc-bench/pkg/timeutil"
	"github.com/paddlepaddle/tipc-bench/record"
	"github.com/paddlepaddle/tipc-bench/scrape"
	"github.com/paddlepaddle/tipc-bench/tester"
	"github.com/paddlepaddle/tipc-bench/tipcconfig"
)

const (
	// SuccessLiteral is the literal message the training step prints on
	// captured output when the run completed.
	SuccessLiteral = "Run successfully with command"
	// FailureLiteral marks a failed run on captured output even when
	// the step exits zero.
	FailureLiteral = "Run failed with command"
)

// Config defines the runner parameters.
type Config struct {
	Prompt bool `json:"-"`

	Stopc     chan struct{} `json:"-"`
	Logger    *zap.Logger   `json:"-"`
	LogWriter io.Writer     `json:"-"`

	// Exec overrides the command runner; nil uses the real one.
	Exec exec.Interface `json:"-"`

	TipcConfig *tipcconfig.Config `json:"-"`
}

// New returns a runner for one benchmark run.
func New(cfg *Config) (tester.Tester, error) {
	if cfg == nil || cfg.TipcConfig == nil {
		return nil, errors.New("nil config")
	}
	if cfg.Logger == nil {
		return nil, errors.New("nil logger")
	}
	if cfg.LogWriter == nil {
		cfg.LogWriter = os.Stderr
	}
	ex := cfg.Exec
	if ex == nil {
		ex = exec.New()
	}
	return &runner{
		cfg:            cfg,
		ex:             ex,
		scraper:        scrape.New(),
		donec:          make(chan struct{}),
		donecCloseOnce: new(sync.Once),
	}, nil
}

type runner struct {
	cfg     *Config
	ex      exec.Interface
	scraper *scrape.Scraper

	runLogFile *os.File

	donec          chan struct{}
	donecCloseOnce *sync.Once

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

var pkgName = path.Base(reflect.TypeOf(runner{}).PkgPath())

func (ts *runner) Name() string { return pkgName }

// RunLogPath returns the per-run captured log file path.
func RunLogPath(cfg *tipcconfig.Config) string {
	return filepath.Join(cfg.OutputDir, cfg.RunName().String()+".log")
}

// Apply performs the two sequential external calls, captures their
// output, and on success writes exactly one result record. Failures are
// returned as-is; no retries, no reinterpretation, no record.
func (ts *runner) Apply() (err error) {
	if ok := ts.runPrompt("apply"); !ok {
		return errors.New("cancelled")
	}

	cfg := ts.cfg.TipcConfig
	prepArgs, err := cfg.PrepareArgs()
	if err != nil {
		return err
	}
	trainArgs, err := cfg.TrainArgs()
	if err != nil {
		return err
	}

	if err = os.MkdirAll(cfg.OutputDir, 0700); err != nil {
		return err
	}
	if err = fileutil.IsDirWriteable(cfg.OutputDir); err != nil {
		return err
	}

	logPath := RunLogPath(cfg)
	ts.runLogFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	defer func() {
		ts.runLogFile.Sync()
		ts.runLogFile.Close()
	}()

	// the root context only serves cancellation; RunTimeout is applied
	// per step in stepContext
	ts.rootCtx, ts.rootCancel = context.WithCancel(context.Background())
	defer ts.rootCancel()

	ts.cfg.Logger.Info("running prepare step", zap.String("command", strings.Join(prepArgs, " ")))
	if err = ts.runStep(prepArgs); err != nil {
		return fmt.Errorf("prepare step failed (%v, output tail %q)", err, ts.tailRunLog(logPath))
	}
	ts.cfg.Logger.Info("completed prepare step")

	select {
	case <-ts.cfg.Stopc:
		return errors.New("stopped before train step")
	default:
	}

	checkDonec := ts.streamRunLogs(logPath)
	ts.cfg.Logger.Info("running train step", zap.String("command", strings.Join(trainArgs, " ")))
	start := time.Now()
	runErr := ts.runStep(trainArgs)
	cfg.TimeFrameRun = timeutil.NewTimeFrame(start, time.Now())
	cfg.Sync()

	ts.donecCloseOnce.Do(func() { close(ts.donec) })
	ts.rootCancel()
	select {
	case <-checkDonec:
		ts.cfg.Logger.Info("confirmed exit run log output checks")
	case <-time.After(time.Minute):
		ts.cfg.Logger.Warn("took too long to confirm exit run log output checks")
	}

	ts.runLogFile.Sync()
	output, rerr := os.ReadFile(logPath)
	if rerr != nil {
		return fmt.Errorf("failed to read run log %q (%v)", logPath, rerr)
	}

	if runErr != nil {
		return fmt.Errorf("train step failed (%v, output tail %q)", runErr, tailLines(string(output)))
	}
	successCount := strings.Count(string(output), SuccessLiteral)
	failureCount := strings.Count(string(output), FailureLiteral)
	ts.cfg.Logger.Info("checked run log literals",
		zap.Int("success-count", successCount),
		zap.Int("failure-count", failureCount),
	)
	if failureCount > 0 {
		return fmt.Errorf("train step reported failure (%q seen %d times, output tail %q)", FailureLiteral, failureCount, tailLines(string(output)))
	}
	if successCount == 0 {
		return fmt.Errorf("train step did not report success (%q not found, output tail %q)", SuccessLiteral, tailLines(string(output)))
	}

	return ts.emitRecord(output)
}

// Delete removes the run's log and record artifacts.
func (ts *runner) Delete() error {
	if ok := ts.runPrompt("delete"); !ok {
		return errors.New("cancelled")
	}

	cfg := ts.cfg.TipcConfig
	var errs []string
	for _, p := range []string{
		RunLogPath(cfg),
		filepath.Join(cfg.OutputDir, cfg.RunName().String()+"_speed.json"),
	} {
		if !fileutil.Exist(p) {
			continue
		}
		if err := os.Remove(p); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		ts.cfg.Logger.Info("removed run artifact", zap.String("path", p))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, ", "))
	}
	return nil
}

func (ts *runner) runPrompt(action string) (ok bool) {
	if ts.cfg.Prompt {
		msg := fmt.Sprintf("Ready to %q resources, should we continue?", action)
		prompt := promptui.Select{
			Label: msg,
			Items: []string{
				"No, cancel it!",
				fmt.Sprintf("Yes, let's %q!", action),
			},
		}
		idx, answer, err := prompt.Run()
		if err != nil {
			panic(err)
		}
		if idx != 1 {
			fmt.Printf("cancelled %q [index %d, answer %q]\n", action, idx, answer)
			return false
		}
	}
	return true
}

// stepContext derives the context one step runs under. Each step gets
// the full RunTimeout budget; zero means no timeout.
func (ts *runner) stepContext() (context.Context, context.CancelFunc) {
	if timeout := ts.cfg.TipcConfig.RunTimeout; timeout > 0 {
		return context.WithTimeout(ts.rootCtx, timeout)
	}
	return context.WithCancel(ts.rootCtx)
}

func (ts *runner) runStep(args []string) error {
	cfg := ts.cfg.TipcConfig
	ctx, cancel := ts.stepContext()
	defer cancel()
	cmd := ts.ex.CommandContext(ctx, args[0], args[1:]...)
	cmd.SetEnv(cfg.StepEnv())
	if cfg.WorkDir != "" {
		cmd.SetDir(cfg.WorkDir)
	}
	cmd.SetStdout(ts.runLogFile)
	cmd.SetStderr(ts.runLogFile)
	return cmd.Run()
}

// stream command run outputs for debugging purposes
func (ts *runner) streamRunLogs(logPath string) (checkDonec chan struct{}) {
	checkDonec = make(chan struct{})
	go func() {
		defer close(checkDonec)
		for {
			select {
			case <-ts.cfg.Stopc:
				ts.cfg.Logger.Info("exiting run log output checks")
				return
			case <-ts.donec:
				ts.cfg.Logger.Info("exiting run log output checks")
				return
			case <-ts.rootCtx.Done():
				ts.cfg.Logger.Info("exiting run log output checks")
				return
			case <-time.After(10 * time.Second):
			}

			if ts.runLogFile != nil {
				ts.runLogFile.Sync()
			}
			b, lerr := os.ReadFile(logPath)
			if lerr != nil {
				ts.cfg.Logger.Warn("failed to read run log file", zap.Error(lerr))
				continue
			}
			lines := strings.Split(strings.TrimSpace(string(b)), "\n")
			ts.cfg.Logger.Info("checked run log file", zap.Int("total-lines", len(lines)))
			fmt.Fprintf(ts.cfg.LogWriter, "\n%q output:\n%s\n\n", logPath, tailLines(string(b)))
		}
	}()
	return checkDonec
}

func (ts *runner) tailRunLog(logPath string) string {
	if ts.runLogFile != nil {
		ts.runLogFile.Sync()
	}
	b, err := os.ReadFile(logPath)
	if err != nil {
		return ""
	}
	return tailLines(string(b))
}

func tailLines(output string) string {
	output = strings.TrimSpace(output)
	lines := strings.Split(output, "\n")
	if len(lines) > 15 {
		output = strings.Join(lines[len(lines)-15:], "\n")
	}
	return output
}

func (ts *runner) emitRecord(output []byte) error {
	cfg := ts.cfg.TipcConfig

	rs, err := ts.scraper.Scrape(output, cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to scrape run log (%v)", err)
	}
	ts.cfg.Logger.Info("scraped run log",
		zap.Float64("ips", rs.IPS),
		zap.String("ips-pattern", rs.IPSPattern),
		zap.String("convergence-value", rs.ConvergenceValue),
		zap.Int("step-times", len(rs.StepTimes)),
	)
	if len(rs.StepTimes) > 0 {
		fmt.Fprintf(ts.cfg.LogWriter, "\n\n%s\n", latency.New(cfg.RunName().String(), latency.Durations(rs.StepTimes)).Table())
	}

	modelMeta, err := gitutil.Read(ts.cfg.Logger, ts.ex, cfg.WorkDir)
	if err != nil {
		return fmt.Errorf("failed to read model git metadata (%v)", err)
	}
	frameCommit, frameVersion := cfg.FrameCommit, cfg.FrameVersion
	if cfg.FrameRepoPath != "" {
		frameMeta, ferr := gitutil.Read(ts.cfg.Logger, ts.ex, cfg.FrameRepoPath)
		if ferr != nil {
			return fmt.Errorf("failed to read frame git metadata (%v)", ferr)
		}
		frameCommit, frameVersion = frameMeta.Commit, frameMeta.Version
	}

	rn := cfg.RunName()
	rec := &record.Record{
		ModelBranch:      modelMeta.Branch,
		ModelCommit:      modelMeta.Commit,
		ModelName:        rn.ModelName(),
		BatchSize:        cfg.BatchSize,
		FPItem:           cfg.FPItem,
		RunMode:          cfg.RunMode,
		ConvergenceValue: rs.ConvergenceValue,
		ConvergenceKey:   rs.ConvergenceKey,
		IPS:              rs.IPS,
		SpeedUnit:        record.SpeedUnit,
		DeviceNum:        rn.DeviceNum,
		ModelRunTime:     strconv.FormatFloat(cfg.TimeFrameRun.Took.Seconds(), 'f', 2, 64),
		FrameCommit:      frameCommit,
		FrameVersion:     frameVersion,
	}
	p, err := rec.Save(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to save record (%v)", err)
	}
	cfg.RecordPath = p
	cfg.Sync()
	ts.cfg.Logger.Info("saved result record", zap.String("path", p), zap.String("took", cfg.TimeFrameRun.TookString))
	return nil
}
