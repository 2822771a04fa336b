package record

import (
	"fmt"
	"strconv"
	"strings"
)

// RunName identifies a single benchmark run. Its String form names the
// run's log and record artifacts in the output directory.
type RunName struct {
	// CaseVariant is the case name plus variant, e.g.
	// "cylinder2d_unsteady".
	CaseVariant string
	BatchSize   int64
	FPItem      string
	RunMode     string
	DeviceNum   string
}

// String returns "{caseVariant}_bs{N}_{fp_item}_{run_mode}_{device_num}".
func (rn RunName) String() string {
	return fmt.Sprintf("%s_bs%d_%s_%s_%s", rn.CaseVariant, rn.BatchSize, rn.FPItem, rn.RunMode, rn.DeviceNum)
}

// ModelName returns the run name without the device topology tag.
func (rn RunName) ModelName() string {
	return fmt.Sprintf("%s_bs%d_%s_%s", rn.CaseVariant, rn.BatchSize, rn.FPItem, rn.RunMode)
}

// ParseRunName parses a composite run name. The device tag is the last
// token; the batch tag ("bs{N}") anchors the middle, since both the
// precision tag (e.g. "amp_fp16") and the run mode (e.g. "DP_MoE_C2")
// may contain underscores of their own.
func ParseRunName(s string) (rn RunName, err error) {
	fields := strings.Split(s, "_")
	if len(fields) < 5 {
		return RunName{}, fmt.Errorf("invalid run name %q", s)
	}

	rn.DeviceNum = fields[len(fields)-1]
	if !deviceNumRegex.MatchString(rn.DeviceNum) {
		return RunName{}, fmt.Errorf("invalid device tag in run name %q", s)
	}
	rest := fields[:len(fields)-1]

	bsIdx := -1
	for i := len(rest) - 3; i > 0; i-- {
		v := rest[i]
		if !strings.HasPrefix(v, "bs") {
			continue
		}
		n, perr := strconv.ParseInt(strings.TrimPrefix(v, "bs"), 10, 64)
		if perr != nil || n <= 0 {
			continue
		}
		bsIdx, rn.BatchSize = i, n
		break
	}
	if bsIdx < 0 {
		return RunName{}, fmt.Errorf("missing batch tag in run name %q", s)
	}
	rn.CaseVariant = strings.Join(rest[:bsIdx], "_")

	after := rest[bsIdx+1:]
	for j := len(after) - 1; j > 0; j-- {
		fp := strings.Join(after[:j], "_")
		if _, ok := FPItems[fp]; ok {
			rn.FPItem = fp
			rn.RunMode = strings.Join(after[j:], "_")
			break
		}
	}
	if rn.FPItem == "" {
		return RunName{}, fmt.Errorf("unknown precision tag in run name %q", s)
	}
	return rn, nil
}
