package collect

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paddlepaddle/tipc-bench/pkg/metrics"
	"github.com/paddlepaddle/tipc-bench/record"
	"github.com/paddlepaddle/tipc-bench/tipcconfig"
)

func newTestConfig(t *testing.T) *tipcconfig.Config {
	t.Helper()
	dir := t.TempDir()
	tipcCfg := filepath.Join(dir, "train.txt")
	require.NoError(t, os.WriteFile(tipcCfg, []byte("model_item=cylinder2d\n"), 0600))

	cfg := tipcconfig.NewDefault()
	cfg.ConfigPath = filepath.Join(dir, "tipc-bench.yaml")
	cfg.TipcConfigPath = tipcCfg
	cfg.OutputDir = filepath.Join(dir, "output")
	cfg.CaseVariant = "cylinder2d_unsteady"
	require.NoError(t, cfg.ValidateAndSetDefaults())
	return cfg
}

func secondRecord() *record.Record {
	rec := record.Example()
	rec.ModelName = "darcy2d_bs8_fp16_DP"
	rec.BatchSize = 8
	rec.FPItem = "fp16"
	rec.DeviceNum = "N1C8"
	rec.IPS = 102.5
	return rec
}

type countingRegistry struct {
	records int
	emits   int
}

func (r *countingRegistry) Record(spec *metrics.MetricSpec, value float64, dimensions map[string]string) {
	r.records++
}

func (r *countingRegistry) Emit() error {
	r.emits++
	return nil
}

func TestCollectApply(t *testing.T) {
	cfg := newTestConfig(t)

	_, err := record.Example().Save(cfg.OutputDir)
	require.NoError(t, err)
	_, err = secondRecord().Save(cfg.OutputDir)
	require.NoError(t, err)

	// invalid record files are skipped, not merged
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.OutputDir, "bogus_bs1_fp32_DP_N1C1_speed.json"),
		[]byte(`{"model_branch":"develop","bogus_key":1}`), 0600))
	// unrelated files are ignored
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.OutputDir, "cylinder2d_unsteady_bs1_fp32_DP_N1C1.log"),
		[]byte("Run successfully with command\n"), 0600))

	reg := &countingRegistry{}
	logBuf := &strings.Builder{}
	ts, err := New(&Config{
		Logger:     zap.NewExample(),
		LogWriter:  logBuf,
		Stopc:      make(chan struct{}),
		Registry:   reg,
		TipcConfig: cfg,
	})
	require.NoError(t, err)
	require.NoError(t, ts.Apply())

	summary, err := LoadSummary(SummaryJSONPath(cfg))
	require.NoError(t, err)
	require.Len(t, summary.Records, 2)
	// sorted by run name
	assert.Equal(t, "cylinder2d_unsteady_bs1_fp32_DP_N1C1", summary.Records[0].RunName())
	assert.Equal(t, "darcy2d_bs8_fp16_DP_N1C8", summary.Records[1].RunName())

	csvData, err := os.ReadFile(SummaryCSVPath(cfg))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "model_name")
	assert.Contains(t, lines[1], "cylinder2d_unsteady_bs1_fp32_DP")

	assert.FileExists(t, ArchivePath(cfg))
	assert.Contains(t, logBuf.String(), "darcy2d_bs8_fp16_DP")

	// Ips + RunSeconds per record
	assert.Equal(t, 4, reg.records)
	assert.Equal(t, 1, reg.emits)
}

func TestCollectApplyEmpty(t *testing.T) {
	cfg := newTestConfig(t)

	ts, err := New(&Config{
		Logger:     zap.NewExample(),
		LogWriter:  io.Discard,
		Stopc:      make(chan struct{}),
		Registry:   &countingRegistry{},
		TipcConfig: cfg,
	})
	require.NoError(t, err)
	require.Error(t, ts.Apply())
	assert.NoFileExists(t, SummaryJSONPath(cfg))
}

func TestCollectorDelete(t *testing.T) {
	cfg := newTestConfig(t)

	_, err := record.Example().Save(cfg.OutputDir)
	require.NoError(t, err)

	ts, err := New(&Config{
		Logger:     zap.NewExample(),
		LogWriter:  io.Discard,
		Stopc:      make(chan struct{}),
		Registry:   &countingRegistry{},
		TipcConfig: cfg,
	})
	require.NoError(t, err)
	require.NoError(t, ts.Apply())
	require.FileExists(t, SummaryJSONPath(cfg))

	require.NoError(t, ts.Delete())
	assert.NoFileExists(t, SummaryJSONPath(cfg))
	assert.NoFileExists(t, SummaryCSVPath(cfg))
	assert.NoFileExists(t, ArchivePath(cfg))

	// the records themselves survive a collection delete
	assert.FileExists(t, filepath.Join(cfg.OutputDir, record.Example().FileName()))
}

func TestCompare(t *testing.T) {
	a := Summary{Name: "before", Records: []record.Record{*record.Example(), *secondRecord()}}

	fasterB := *record.Example()
	fasterB.IPS = record.Example().IPS * 1.1
	slowerB := *secondRecord()
	slowerB.IPS = 92.25
	b := Summary{Name: "after", Records: []record.Record{fasterB, slowerB}}

	c, err := Compare(a, b)
	require.NoError(t, err)
	require.Len(t, c.Deltas, 2)
	assert.InDelta(t, 10.0, c.Deltas[0].IpsDeltaPercent, 1e-9)
	assert.InDelta(t, -10.0, c.Deltas[1].IpsDeltaPercent, 1e-9)

	table := c.Table()
	assert.Contains(t, table, "cylinder2d_unsteady_bs1_fp32_DP_N1C1")
	assert.Contains(t, table, "+10.000 %")
	assert.Contains(t, table, "-10.000 %")
}

func TestCompareMissingRun(t *testing.T) {
	a := Summary{Name: "before", Records: []record.Record{*record.Example()}}
	b := Summary{Name: "after"}
	_, err := Compare(a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
