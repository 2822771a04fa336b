// Package collect gathers the result records of completed benchmark
// runs into merged summary artifacts.
package collect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	aws_s3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/manifoldco/promptui"
	"github.com/mholt/archiver/v3"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	pkg_aws "github.com/paddlepaddle/tipc-bench/pkg/aws"
	"github.com/paddlepaddle/tipc-bench/pkg/aws/s3"
	"github.com/paddlepaddle/tipc-bench/pkg/csvutil"
	"github.com/paddlepaddle/tipc-bench/pkg/metrics"
	"github.com/paddlepaddle/tipc-bench/record"
	"github.com/paddlepaddle/tipc-bench/tester"
	"github.com/paddlepaddle/tipc-bench/tipcconfig"
)

const (
	// SummaryFileJSON is the merged summary file name.
	SummaryFileJSON = "collect-results.json"
	// SummaryFileCSV is the merged summary CSV file name.
	SummaryFileCSV = "collect-results.csv"

	// artifactExpirationDays is the S3 lifecycle applied to uploaded
	// artifacts under the configured directory.
	artifactExpirationDays = 90
)

var recordHeader = []string{
	"model_branch",
	"model_commit",
	"model_name",
	"batch_size",
	"fp_item",
	"run_mode",
	"convergence_value",
	"convergence_key",
	"ips",
	"speed_unit",
	"device_num",
	"model_run_time",
	"frame_commit",
	"frame_version",
}

// Summary is the merged view over the records found in one output
// directory.
type Summary struct {
	Name    string          `json:"name"`
	Records []record.Record `json:"records"`
}

// JSON serializes the summary.
func (s Summary) JSON() string {
	b, _ := json.Marshal(s)
	return string(b)
}

// Table renders the summary as an ASCII table.
func (s Summary) Table() string {
	buf := bytes.NewBuffer(nil)
	tb := tablewriter.NewWriter(buf)
	tb.SetAutoWrapText(false)
	tb.SetColWidth(1500)
	tb.SetCenterSeparator("*")
	tb.SetAlignment(tablewriter.ALIGN_CENTER)
	tb.SetCaption(true, fmt.Sprintf("(%d records in %q)", len(s.Records), s.Name))
	tb.SetHeader([]string{"Model Name", "Device Num", "Batch", "FP", "Mode", "IPS", "Convergence", "Run Seconds"})
	for _, rec := range s.Records {
		tb.Append([]string{
			rec.ModelName,
			rec.DeviceNum,
			strconv.FormatInt(rec.BatchSize, 10),
			rec.FPItem,
			rec.RunMode,
			strconv.FormatFloat(rec.IPS, 'f', 4, 64),
			rec.ConvergenceKey + " " + rec.ConvergenceValue,
			rec.ModelRunTime,
		})
	}
	tb.Render()
	return buf.String()
}

// Config defines the collector parameters.
type Config struct {
	Prompt bool `json:"-"`

	Stopc     chan struct{} `json:"-"`
	Logger    *zap.Logger   `json:"-"`
	LogWriter io.Writer     `json:"-"`

	// Registry overrides the metric registry; nil picks one based on
	// the CloudWatch config.
	Registry metrics.MetricRegistry `json:"-"`

	TipcConfig *tipcconfig.Config `json:"-"`
}

// New returns a collector over one output directory.
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
	return &collector{cfg: cfg}, nil
}

type collector struct {
	cfg *Config
}

var pkgName = path.Base(reflect.TypeOf(collector{}).PkgPath())

func (ts *collector) Name() string { return pkgName }

// SummaryJSONPath returns the merged summary JSON path.
func SummaryJSONPath(cfg *tipcconfig.Config) string {
	return filepath.Join(cfg.OutputDir, SummaryFileJSON)
}

// SummaryCSVPath returns the merged summary CSV path.
func SummaryCSVPath(cfg *tipcconfig.Config) string {
	return filepath.Join(cfg.OutputDir, SummaryFileCSV)
}

// ArchivePath returns the tar.gz path the output directory is
// compressed into.
func ArchivePath(cfg *tipcconfig.Config) string {
	return filepath.Join(filepath.Dir(cfg.OutputDir), cfg.Name+".tar.gz")
}

// Apply walks the output directory, merges the valid records into
// summary artifacts, compresses the directory, and optionally ships
// everything to S3 and CloudWatch.
func (ts *collector) Apply() error {
	if ok := ts.runPrompt("apply"); !ok {
		return errors.New("cancelled")
	}
	cfg := ts.cfg.TipcConfig

	summary, err := ts.Walk()
	if err != nil {
		return err
	}
	if len(summary.Records) == 0 {
		return errors.Errorf("no valid records found in %q", cfg.OutputDir)
	}

	if err = os.WriteFile(SummaryJSONPath(cfg), []byte(summary.JSON()), 0600); err != nil {
		return errors.Wrapf(err, "failed to write %q", SummaryJSONPath(cfg))
	}
	rows := make([][]string, 0, len(summary.Records))
	for _, rec := range summary.Records {
		rows = append(rows, []string{
			rec.ModelBranch,
			rec.ModelCommit,
			rec.ModelName,
			strconv.FormatInt(rec.BatchSize, 10),
			rec.FPItem,
			rec.RunMode,
			rec.ConvergenceValue,
			rec.ConvergenceKey,
			strconv.FormatFloat(rec.IPS, 'f', 4, 64),
			rec.SpeedUnit,
			rec.DeviceNum,
			rec.ModelRunTime,
			rec.FrameCommit,
			rec.FrameVersion,
		})
	}
	if err = csvutil.Save(recordHeader, rows, SummaryCSVPath(cfg)); err != nil {
		return errors.Wrapf(err, "failed to write %q", SummaryCSVPath(cfg))
	}
	fmt.Fprintf(ts.cfg.LogWriter, "\n\n%s\n\n", summary.Table())

	select {
	case <-ts.cfg.Stopc:
		return errors.New("stopped before compressing artifacts")
	default:
	}

	if err = ts.compressArtifacts(); err != nil {
		return err
	}
	if cfg.S3 != nil && cfg.S3.Enable {
		if err = ts.uploadToS3(summary); err != nil {
			return err
		}
	}
	if err = ts.publishMetrics(summary); err != nil {
		return err
	}

	ts.cfg.Logger.Info("collected records",
		zap.Int("records", len(summary.Records)),
		zap.String("summary-json", SummaryJSONPath(cfg)),
		zap.String("summary-csv", SummaryCSVPath(cfg)),
		zap.String("archive", ArchivePath(cfg)),
	)
	return nil
}

// Delete removes the collected summary artifacts, including the copies
// uploaded to S3 when uploads are enabled. The records themselves stay;
// they belong to the runs, not the collection.
func (ts *collector) Delete() error {
	if ok := ts.runPrompt("delete"); !ok {
		return errors.New("cancelled")
	}
	cfg := ts.cfg.TipcConfig

	var errs []string
	for _, p := range []string{
		SummaryJSONPath(cfg),
		SummaryCSVPath(cfg),
		ArchivePath(cfg),
	} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := os.Remove(p); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		ts.cfg.Logger.Info("removed collect artifact", zap.String("path", p))
	}
	if cfg.S3 != nil && cfg.S3.Enable {
		if err := ts.deleteFromS3(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, ", "))
	}
	return nil
}

func (ts *collector) deleteFromS3() error {
	cfg := ts.cfg.TipcConfig
	ss, _, _, err := pkg_aws.New(&pkg_aws.Config{
		Logger:    ts.cfg.Logger,
		Partition: cfg.Partition,
		Region:    cfg.Region,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create AWS session")
	}
	return s3.DeleteObjects(ts.cfg.Logger, aws_s3.New(ss), cfg.S3.BucketName, path.Join(cfg.S3.Dir, cfg.Name))
}

// Walk loads every record file under the output directory. Files that
// fail strict parsing are skipped and logged, never merged.
func (ts *collector) Walk() (Summary, error) {
	cfg := ts.cfg.TipcConfig
	summary := Summary{Name: cfg.Name}
	err := filepath.Walk(cfg.OutputDir, func(p string, info os.FileInfo, werr error) error {
		if werr != nil {
			return werr
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), "_speed.json") {
			return nil
		}
		rec, rerr := record.Load(p)
		if rerr != nil {
			ts.cfg.Logger.Warn("skipping invalid record file", zap.String("path", p), zap.Error(rerr))
			return nil
		}
		ts.cfg.Logger.Info("loaded record", zap.String("path", p), zap.String("run-name", rec.RunName()))
		summary.Records = append(summary.Records, *rec)
		return nil
	})
	if err != nil {
		return Summary{}, errors.Wrapf(err, "failed to walk %q", cfg.OutputDir)
	}
	sort.Slice(summary.Records, func(i, j int) bool {
		return summary.Records[i].RunName() < summary.Records[j].RunName()
	})
	return summary, nil
}

func (ts *collector) compressArtifacts() error {
	cfg := ts.cfg.TipcConfig
	tarGzPath := ArchivePath(cfg)

	ts.cfg.Logger.Info("tar-gzipping output dir", zap.String("output-dir", cfg.OutputDir), zap.String("file-path", tarGzPath))
	if err := os.RemoveAll(tarGzPath); err != nil {
		ts.cfg.Logger.Warn("failed to remove temp file", zap.Error(err))
		return err
	}
	if err := archiver.Archive([]string{cfg.OutputDir}, tarGzPath); err != nil {
		ts.cfg.Logger.Warn("archive failed", zap.Error(err))
		return err
	}
	stat, err := os.Stat(tarGzPath)
	if err != nil {
		ts.cfg.Logger.Warn("failed to os stat", zap.Error(err))
		return err
	}
	ts.cfg.Logger.Info("tar-gzipped output dir",
		zap.String("output-dir", cfg.OutputDir),
		zap.String("file-path", tarGzPath),
		zap.String("file-size", humanize.Bytes(uint64(stat.Size()))),
	)
	return nil
}

func (ts *collector) uploadToS3(summary Summary) error {
	cfg := ts.cfg.TipcConfig
	ss, _, _, err := pkg_aws.New(&pkg_aws.Config{
		Logger:    ts.cfg.Logger,
		Partition: cfg.Partition,
		Region:    cfg.Region,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create AWS session")
	}
	s3API := aws_s3.New(ss)

	// create-if-missing; an existing bucket is not an error
	if err = s3.CreateBucket(ts.cfg.Logger, s3API, cfg.S3.BucketName, cfg.Region, cfg.S3.Dir, artifactExpirationDays); err != nil {
		return errors.Wrapf(err, "failed to create bucket %q", cfg.S3.BucketName)
	}

	files := []string{SummaryJSONPath(cfg), SummaryCSVPath(cfg), ArchivePath(cfg)}
	for _, rec := range summary.Records {
		files = append(files, filepath.Join(cfg.OutputDir, rec.FileName()))
	}
	for _, fpath := range files {
		s3Key := path.Join(cfg.S3.Dir, cfg.Name, filepath.Base(fpath))
		if err = s3.Upload(ts.cfg.Logger, s3API, cfg.S3.BucketName, s3Key, fpath); err != nil {
			return errors.Wrapf(err, "failed to upload %q", fpath)
		}
	}
	return nil
}

func (ts *collector) publishMetrics(summary Summary) error {
	cfg := ts.cfg.TipcConfig
	reg := ts.cfg.Registry
	if reg == nil {
		if cfg.CloudWatch == nil || !cfg.CloudWatch.Enable {
			return nil
		}
		awsCfg, err := pkg_aws.NewV2(&pkg_aws.Config{
			Logger:    ts.cfg.Logger,
			Partition: cfg.Partition,
			Region:    cfg.Region,
		})
		if err != nil {
			return errors.Wrap(err, "failed to load AWS config")
		}
		reg = metrics.NewCloudWatchRegistry(ts.cfg.Logger, cloudwatch.NewFromConfig(awsCfg))
	}

	namespace := "TipcBench"
	if cfg.CloudWatch != nil && cfg.CloudWatch.Namespace != "" {
		namespace = cfg.CloudWatch.Namespace
	}
	ipsSpec := &metrics.MetricSpec{Namespace: namespace, Metric: "Ips", Unit: types.StandardUnitCountSecond}
	runSpec := &metrics.MetricSpec{Namespace: namespace, Metric: "RunSeconds", Unit: types.StandardUnitSeconds}
	for _, rec := range summary.Records {
		dims := map[string]string{
			"model_name": rec.ModelName,
			"device_num": rec.DeviceNum,
			"fp_item":    rec.FPItem,
			"run_mode":   rec.RunMode,
		}
		reg.Record(ipsSpec, rec.IPS, dims)
		sec, perr := strconv.ParseFloat(rec.ModelRunTime, 64)
		if perr != nil {
			// Load validated this; a parse failure here is a bug
			return errors.Wrapf(perr, "invalid model_run_time %q", rec.ModelRunTime)
		}
		reg.Record(runSpec, sec, dims)
	}
	return errors.Wrap(reg.Emit(), "failed to emit metrics")
}

func (ts *collector) runPrompt(action string) (ok bool) {
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
