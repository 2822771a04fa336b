// Package scrape extracts throughput and convergence metrics from
// captured training-run logs using an explicit pattern table.
package scrape

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Pattern is one extraction rule. Higher Priority wins when multiple
// patterns match the same log.
type Pattern struct {
	// Name identifies the rule in logs and errors.
	Name string
	// Regexp must have the metric value as its first capture group.
	Regexp *regexp.Regexp
	// SampleLine documents a log line the rule is expected to match.
	SampleLine string
	// Priority orders rules when more than one matches.
	Priority int
}

const num = `(\d+\.?\d*(?:[eE][-+]?\d+)?)`

// DefaultIPSPatterns are the throughput rules, in priority order.
var DefaultIPSPatterns = []Pattern{
	{
		Name:       "ips-samples-per-sec",
		Regexp:     regexp.MustCompile(num + `\s*samples/s`),
		SampleLine: "avg_samples/sec: 3.3489 samples/s",
		Priority:   2,
	},
	{
		Name:       "ips-key-value",
		Regexp:     regexp.MustCompile(`ips[:=]\s*` + num),
		SampleLine: "speed: ips: 3.3489",
		Priority:   1,
	},
}

// DefaultStepTimePattern matches per-step wall-clock cost lines. When no
// throughput rule matches, ips is derived as batch size over the mean
// step time.
var DefaultStepTimePattern = Pattern{
	Name:       "step-loop-run-seconds",
	Regexp:     regexp.MustCompile(`Step \d+ loop run ` + num),
	SampleLine: "Step 4 loop run 0.2986",
	Priority:   0,
}

// DefaultConvergencePattern matches the reported loss; the last
// occurrence is the final value.
var DefaultConvergencePattern = Pattern{
	Name:       "convergence-loss",
	Regexp:     regexp.MustCompile(`loss:\s*` + num),
	SampleLine: "autograd epoch: 10    loss: 0.0176",
	Priority:   0,
}

// ConvergenceKey names the metric DefaultConvergencePattern extracts.
const ConvergenceKey = "loss:"

// Result holds the metrics scraped from one training log.
type Result struct {
	IPS              float64
	IPSPattern       string
	ConvergenceKey   string
	ConvergenceValue string
	// StepTimes are the per-step wall-clock costs, when the log
	// carries them.
	StepTimes []time.Duration
}

// Scraper applies a pattern table to captured logs.
type Scraper struct {
	ipsPatterns []Pattern
	stepTime    Pattern
	convergence Pattern
}

// New returns a scraper with the default pattern table.
func New() *Scraper {
	return &Scraper{
		ipsPatterns: DefaultIPSPatterns,
		stepTime:    DefaultStepTimePattern,
		convergence: DefaultConvergencePattern,
	}
}

// Scrape extracts the run metrics from a captured log. It never
// fabricates values; a log with no throughput signal of any kind is an
// error, which in turn fails the run's record emission.
func (s *Scraper) Scrape(log []byte, batchSize int64) (*Result, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("invalid batch size %d", batchSize)
	}
	text := string(log)
	rs := &Result{}

	best := Pattern{Priority: -1}
	bestVal := 0.0
	for _, p := range s.ipsPatterns {
		ms := p.Regexp.FindAllStringSubmatch(text, -1)
		if len(ms) == 0 {
			continue
		}
		// last reported throughput is the settled one
		v, err := strconv.ParseFloat(ms[len(ms)-1][1], 64)
		if err != nil || v <= 0 {
			continue
		}
		if p.Priority > best.Priority {
			best, bestVal = p, v
		}
	}

	for _, m := range s.stepTime.Regexp.FindAllStringSubmatch(text, -1) {
		sec, err := strconv.ParseFloat(m[1], 64)
		if err != nil || sec <= 0 {
			continue
		}
		rs.StepTimes = append(rs.StepTimes, time.Duration(sec*float64(time.Second)))
	}

	switch {
	case best.Priority >= 0:
		rs.IPS, rs.IPSPattern = bestVal, best.Name
	case len(rs.StepTimes) > 0:
		var total time.Duration
		for _, st := range rs.StepTimes {
			total += st
		}
		mean := total.Seconds() / float64(len(rs.StepTimes))
		rs.IPS = float64(batchSize) / mean
		rs.IPSPattern = s.stepTime.Name
	default:
		return nil, errors.Errorf("no throughput signal in log (tried %s)", strings.Join(s.patternNames(), ", "))
	}

	cms := s.convergence.Regexp.FindAllStringSubmatch(text, -1)
	if len(cms) == 0 {
		return nil, errors.Errorf("no convergence signal in log (pattern %q, sample %q)", s.convergence.Regexp.String(), s.convergence.SampleLine)
	}
	rs.ConvergenceKey = ConvergenceKey
	rs.ConvergenceValue = cms[len(cms)-1][1]

	return rs, nil
}

func (s *Scraper) patternNames() (names []string) {
	for _, p := range s.ipsPatterns {
		names = append(names, p.Name)
	}
	names = append(names, s.stepTime.Name)
	return names
}
