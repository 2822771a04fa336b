// Package record defines the benchmark result record, the terminal
// artifact of a completed training-benchmark run.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// SpeedUnit is the only throughput unit emitted by this harness.
const SpeedUnit = "samples/s"

// FPItems is the set of accepted floating-point precision tags.
var FPItems = map[string]struct{}{
	"fp32":     {},
	"fp16":     {},
	"bf16":     {},
	"amp_fp16": {},
	"amp_bf16": {},
}

var deviceNumRegex = regexp.MustCompile(`^N\d+C\d+$`)

// Record is one benchmark result. All fourteen fields are mandatory.
// A record is written exactly once per completed run and never updated
// in place.
type Record struct {
	// ModelBranch is the model repository branch name.
	ModelBranch string `json:"model_branch"`
	// ModelCommit is the model repository commit hash.
	ModelCommit string `json:"model_commit"`
	// ModelName is the composite identifier
	// "{case}_{variant}_bs{N}_{fp_item}_{run_mode}".
	ModelName string `json:"model_name"`
	// BatchSize is the training batch size.
	BatchSize int64 `json:"batch_size"`
	// FPItem is the floating-point precision tag (e.g. "fp32").
	FPItem string `json:"fp_item"`
	// RunMode is the distribution mode tag (e.g. "DP").
	RunMode string `json:"run_mode"`
	// ConvergenceValue is the final metric value, serialized as text.
	ConvergenceValue string `json:"convergence_value"`
	// ConvergenceKey names the metric ConvergenceValue corresponds to.
	ConvergenceKey string `json:"convergence_key"`
	// IPS is the throughput in samples processed per second.
	IPS float64 `json:"ips"`
	// SpeedUnit is the unit label for IPS, always "samples/s".
	SpeedUnit string `json:"speed_unit"`
	// DeviceNum is the device topology tag "N{nodes}C{cards}".
	DeviceNum string `json:"device_num"`
	// ModelRunTime is the wall-clock run duration in seconds,
	// serialized as text.
	ModelRunTime string `json:"model_run_time"`
	// FrameCommit is the framework commit hash.
	FrameCommit string `json:"frame_commit"`
	// FrameVersion is the framework version tag.
	FrameVersion string `json:"frame_version"`
}

// Validate returns an error when any of the fourteen fields is missing
// or does not match its documented shape.
func (rec *Record) Validate() error {
	if rec.ModelBranch == "" {
		return fmt.Errorf("ModelBranch is empty")
	}
	if rec.ModelCommit == "" {
		return fmt.Errorf("ModelCommit is empty")
	}
	if rec.ModelName == "" {
		return fmt.Errorf("ModelName is empty")
	}
	if rec.BatchSize <= 0 {
		return fmt.Errorf("invalid BatchSize %d", rec.BatchSize)
	}
	if _, ok := FPItems[rec.FPItem]; !ok {
		return fmt.Errorf("unknown FPItem %q", rec.FPItem)
	}
	if rec.RunMode == "" {
		return fmt.Errorf("RunMode is empty")
	}
	if rec.ConvergenceValue == "" {
		return fmt.Errorf("ConvergenceValue is empty")
	}
	if _, err := strconv.ParseFloat(rec.ConvergenceValue, 64); err != nil {
		return fmt.Errorf("invalid ConvergenceValue %q (%v)", rec.ConvergenceValue, err)
	}
	if rec.ConvergenceKey == "" {
		return fmt.Errorf("ConvergenceKey is empty")
	}
	if rec.IPS <= 0 {
		return fmt.Errorf("invalid IPS %f", rec.IPS)
	}
	if rec.SpeedUnit != SpeedUnit {
		return fmt.Errorf("invalid SpeedUnit %q (expected %q)", rec.SpeedUnit, SpeedUnit)
	}
	if !deviceNumRegex.MatchString(rec.DeviceNum) {
		return fmt.Errorf("invalid DeviceNum %q (expected %q)", rec.DeviceNum, deviceNumRegex.String())
	}
	if rec.ModelRunTime == "" {
		return fmt.Errorf("ModelRunTime is empty")
	}
	if _, err := strconv.ParseFloat(rec.ModelRunTime, 64); err != nil {
		return fmt.Errorf("invalid ModelRunTime %q (%v)", rec.ModelRunTime, err)
	}
	if rec.FrameCommit == "" {
		return fmt.Errorf("FrameCommit is empty")
	}
	if rec.FrameVersion == "" {
		return fmt.Errorf("FrameVersion is empty")
	}

	// the embedded tags in ModelName must agree with the typed fields
	sfx := fmt.Sprintf("_bs%d_%s_%s", rec.BatchSize, rec.FPItem, rec.RunMode)
	if !strings.HasSuffix(rec.ModelName, sfx) {
		return fmt.Errorf("ModelName %q does not end with %q", rec.ModelName, sfx)
	}
	if strings.TrimSuffix(rec.ModelName, sfx) == "" {
		return fmt.Errorf("ModelName %q has no case/variant prefix", rec.ModelName)
	}
	return nil
}

// Parse decodes a single JSON record. Unknown keys are rejected and the
// decoded record must pass Validate, so a round-trip through Parse and
// Marshal preserves the exact fourteen-key set.
func Parse(d []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(d))
	dec.DisallowUnknownFields()
	rec := new(Record)
	if err := dec.Decode(rec); err != nil {
		return nil, fmt.Errorf("failed to decode record (%v)", err)
	}
	// a record file holds one JSON object, no trailing structure
	if dec.More() {
		return nil, fmt.Errorf("trailing data after record object")
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Marshal encodes the record as a single UTF-8 JSON object.
func (rec *Record) Marshal() ([]byte, error) {
	return json.Marshal(rec)
}

// RunName returns the composite run name
// "{model_name}_{device_num}" the record's artifacts are filed under.
func (rec *Record) RunName() string {
	return rec.ModelName + "_" + rec.DeviceNum
}

// FileName returns the record file name for the run.
func (rec *Record) FileName() string {
	return rec.RunName() + "_speed.json"
}

// Save writes the record into dir under the composite naming
// convention. It refuses to overwrite an existing record; records are
// immutable once written.
func (rec *Record) Save(dir string) (p string, err error) {
	if err = rec.Validate(); err != nil {
		return "", err
	}
	p = filepath.Join(dir, rec.FileName())
	if _, serr := os.Stat(p); serr == nil {
		return "", fmt.Errorf("record %q already exists", p)
	}
	var d []byte
	d, err = rec.Marshal()
	if err != nil {
		return "", err
	}
	if err = os.WriteFile(p, d, 0600); err != nil {
		return "", fmt.Errorf("failed to write record %q (%v)", p, err)
	}
	return p, nil
}

// Load reads and strictly parses one record file.
func Load(p string) (*Record, error) {
	d, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	return Parse(d)
}

// Example returns the canonical record used by docs and tests.
func Example() *Record {
	return &Record{
		ModelBranch:      "develop",
		ModelCommit:      "59978a1a23bc6991a285e5bbbda29a6e46c44d64",
		ModelName:        "cylinder2d_unsteady_bs1_fp32_DP",
		BatchSize:        1,
		FPItem:           "fp32",
		RunMode:          "DP",
		ConvergenceValue: "0.0176",
		ConvergenceKey:   "loss:",
		IPS:              3.3489,
		SpeedUnit:        SpeedUnit,
		DeviceNum:        "N1C1",
		ModelRunTime:     "437.21",
		FrameCommit:      "20eb6f48d4cbf0cbca57ad30e80b85a4b973cea3",
		FrameVersion:     "0.0.0",
	}
}
