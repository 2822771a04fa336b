// Package latency defines training step latency utilities.
package latency

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Summary represents step time results of a single benchmark run.
type Summary struct {
	// RunName is the composite run name the steps were measured under.
	RunName string `json:"run_name" read-only:"true"`

	// StepsTotal is the number of measured training steps.
	StepsTotal float64 `json:"steps_total" read-only:"true"`
	// Histogram is the step time histogram.
	Histogram HistogramBuckets `json:"histogram" read-only:"true"`

	// P50 is the 50-percentile step time.
	P50 time.Duration `json:"p50" read-only:"true"`
	// P90 is the 90-percentile step time.
	P90 time.Duration `json:"p90" read-only:"true"`
	// P99 is the 99-percentile step time.
	P99 time.Duration `json:"p99" read-only:"true"`
	// P999 is the 99.9-percentile step time.
	P999 time.Duration `json:"p99.9" read-only:"true"`
	// P9999 is the 99.99-percentile step time.
	P9999 time.Duration `json:"p99.99" read-only:"true"`
}

// New builds a Summary from raw step times.
func New(runName string, ds Durations) Summary {
	sort.Sort(ds)
	return Summary{
		RunName:    runName,
		StepsTotal: float64(len(ds)),
		Histogram:  BucketDurations(ds),
		P50:        ds.PickP50(),
		P90:        ds.PickP90(),
		P99:        ds.PickP99(),
		P999:       ds.PickP999(),
		P9999:      ds.PickP9999(),
	}
}

func (rs Summary) JSON() string {
	b, _ := json.Marshal(rs)
	return string(b)
}

func (rs Summary) Table() string {
	return fmt.Sprintf(`
RUN NAME: %q

STEPS TOTAL: %.0f

`,
		rs.RunName,
		rs.StepsTotal,
	) +
		rs.Histogram.Table() +
		fmt.Sprintf(`
   50-percentile Step Time: %s
   90-percentile Step Time: %s
   99-percentile Step Time: %s
 99.9-percentile Step Time: %s
99.99-percentile Step Time: %s

`,
			rs.P50,
			rs.P90,
			rs.P99,
			rs.P999,
			rs.P9999,
		)
}

// SummaryCompare compares two "Summary".
// Delta is computed with "A" as "before" and with "B" as "after".
type SummaryCompare struct {
	A Summary `json:"a" read-only:"true"`
	B Summary `json:"b" read-only:"true"`

	P50DeltaPercent   float64 `json:"step-time-p50-delta-percent" read-only:"true"`
	P90DeltaPercent   float64 `json:"step-time-p90-delta-percent" read-only:"true"`
	P99DeltaPercent   float64 `json:"step-time-p99-delta-percent" read-only:"true"`
	P999DeltaPercent  float64 `json:"step-time-p99.9-delta-percent" read-only:"true"`
	P9999DeltaPercent float64 `json:"step-time-p99.99-delta-percent" read-only:"true"`
}

func (c SummaryCompare) JSON() string {
	b, _ := json.Marshal(c)
	return string(b)
}

func (c SummaryCompare) Table() string {
	buf := bytes.NewBuffer(nil)
	tb := tablewriter.NewWriter(buf)
	tb.SetAutoWrapText(false)
	tb.SetColWidth(1500)
	tb.SetCenterSeparator("*")
	tb.SetAlignment(tablewriter.ALIGN_CENTER)
	tb.SetCaption(true, "(% delta from 'A' to 'B')")
	tb.SetHeader([]string{"Percentile", fmt.Sprintf("A %q", c.A.RunName), fmt.Sprintf("B %q", c.B.RunName), "Delta"})

	tb.Append([]string{"50-pct Step Time", c.A.P50.String(), c.B.P50.String(), toPercent(c.P50DeltaPercent)})
	tb.Append([]string{"90-pct Step Time", c.A.P90.String(), c.B.P90.String(), toPercent(c.P90DeltaPercent)})
	tb.Append([]string{"99-pct Step Time", c.A.P99.String(), c.B.P99.String(), toPercent(c.P99DeltaPercent)})
	tb.Append([]string{"99.9-pct Step Time", c.A.P999.String(), c.B.P999.String(), toPercent(c.P999DeltaPercent)})
	tb.Append([]string{"99.99-pct Step Time", c.A.P9999.String(), c.B.P9999.String(), toPercent(c.P9999DeltaPercent)})

	tb.Render()
	return buf.String()
}

func toPercent(f float64) string {
	sign := "+"
	if f < 0.0 {
		sign = ""
	}
	return fmt.Sprintf("%s%.3f %%", sign, f)
}

// CompareSummary compares two "Summary".
func CompareSummary(a Summary, b Summary) (c SummaryCompare, err error) {
	if len(a.Histogram) != len(b.Histogram) {
		return SummaryCompare{}, fmt.Errorf("len(a.Histogram) %d != len(b.Histogram) %d", len(a.Histogram), len(b.Histogram))
	}

	c = SummaryCompare{
		A: a,
		B: b,
	}

	// e.g. "A" 100, "B" 50 == -50%
	// e.g. "A" 50, "B" 100 == 100%
	deltaP50 := float64(b.P50) - float64(a.P50)
	deltaP50 /= float64(a.P50)
	deltaP50 *= 100.0
	deltaP50 = convertInvalid(deltaP50)

	deltaP90 := float64(b.P90) - float64(a.P90)
	deltaP90 /= float64(a.P90)
	deltaP90 *= 100.0
	deltaP90 = convertInvalid(deltaP90)

	deltaP99 := float64(b.P99) - float64(a.P99)
	deltaP99 /= float64(a.P99)
	deltaP99 *= 100.0
	deltaP99 = convertInvalid(deltaP99)

	deltaP999 := float64(b.P999) - float64(a.P999)
	deltaP999 /= float64(a.P999)
	deltaP999 *= 100.0
	deltaP999 = convertInvalid(deltaP999)

	deltaP9999 := float64(b.P9999) - float64(a.P9999)
	deltaP9999 /= float64(a.P9999)
	deltaP9999 *= 100.0
	deltaP9999 = convertInvalid(deltaP9999)

	c.P50DeltaPercent = deltaP50
	c.P90DeltaPercent = deltaP90
	c.P99DeltaPercent = deltaP99
	c.P999DeltaPercent = deltaP999
	c.P9999DeltaPercent = deltaP9999

	return c, nil
}

func convertInvalid(f float64) (v float64) {
	v = f
	if math.IsNaN(f) {
		v = 0
	}
	if math.IsInf(f, 1) {
		v = math.MaxFloat64
	}
	if math.IsInf(f, -1) {
		v = -math.MaxFloat64
	}
	return v
}

type Durations []time.Duration

func (ds Durations) Len() int           { return len(ds) }
func (ds Durations) Less(i, j int) bool { return ds[i] < ds[j] }
func (ds Durations) Swap(i, j int)      { ds[i], ds[j] = ds[j], ds[i] }

// PickP50 returns the step time assuming durations are already sorted.
func (ds Durations) PickP50() time.Duration {
	n := len(ds)
	if n == 0 {
		return time.Duration(0)
	}
	if n == 1 {
		return ds[0]
	}

	idx := n / 2
	return ds[idx]
}

// PickP90 returns the step time assuming durations are already sorted.
func (ds Durations) PickP90() time.Duration {
	n := len(ds)
	if n == 0 {
		return time.Duration(0)
	}
	if n == 1 {
		return ds[0]
	}

	idx := n * 90 / 100
	if idx >= n {
		return ds[n-1]
	}
	return ds[idx]
}

// PickP99 returns the step time assuming durations are already sorted.
func (ds Durations) PickP99() time.Duration {
	n := len(ds)
	if n == 0 {
		return time.Duration(0)
	}
	if n == 1 {
		return ds[0]
	}

	idx := n * 99 / 100
	if idx >= n {
		return ds[n-1]
	}
	return ds[idx]
}

// PickP999 returns the step time assuming durations are already sorted.
func (ds Durations) PickP999() time.Duration {
	n := len(ds)
	if n == 0 {
		return time.Duration(0)
	}
	if n == 1 {
		return ds[0]
	}

	idx := n * 999 / 1000
	if idx >= n {
		return ds[n-1]
	}
	return ds[idx]
}

// PickP9999 returns the step time assuming durations are already sorted.
func (ds Durations) PickP9999() time.Duration {
	n := len(ds)
	if n == 0 {
		return time.Duration(0)
	}
	if n == 1 {
		return ds[0]
	}

	idx := n * 9999 / 10000
	if idx >= n {
		return ds[n-1]
	}
	return ds[idx]
}

// HistogramBucket represents a step time bucket.
type HistogramBucket struct {
	Scale      string  `json:"scale"`
	LowerBound float64 `json:"lower-bound"`
	UpperBound float64 `json:"upper-bound"`
	Count      uint64  `json:"count"`
}

func (bucket HistogramBucket) String() string {
	b, _ := json.Marshal(bucket)
	return string(b)
}

type HistogramBuckets []HistogramBucket

func (buckets HistogramBuckets) Len() int { return len(buckets) }

func (buckets HistogramBuckets) Less(i, j int) bool {
	return buckets[i].LowerBound < buckets[j].LowerBound
}

func (buckets HistogramBuckets) Swap(i, j int) {
	t := buckets[i]
	buckets[i] = buckets[j]
	buckets[j] = t
}

// BucketDurations buckets durations into power-of-two millisecond buckets,
// with an overflow bucket at the end.
func BucketDurations(ds Durations) (buckets HistogramBuckets) {
	bounds := []float64{0.5}
	for bounds[len(bounds)-1] < 4096.0 {
		bounds = append(bounds, bounds[len(bounds)-1]*2)
	}

	buckets = make(HistogramBuckets, len(bounds)+1)
	lower := 0.0
	for idx, up := range bounds {
		buckets[idx] = HistogramBucket{
			Scale:      "milliseconds",
			LowerBound: lower,
			UpperBound: up,
		}
		lower = up
	}
	buckets[len(bounds)] = HistogramBucket{
		Scale:      "milliseconds",
		LowerBound: lower,
		UpperBound: math.MaxFloat64,
	}

	for _, d := range ds {
		ms := float64(d.Microseconds()) / 1000.0
		for idx := range buckets {
			if ms < buckets[idx].UpperBound || idx == len(buckets)-1 {
				buckets[idx].Count++
				break
			}
		}
	}

	sort.Sort(buckets)
	return buckets
}

// Table converts "HistogramBuckets" to table.
func (buckets HistogramBuckets) Table() string {
	if len(buckets) == 0 {
		return ""
	}
	buf := bytes.NewBuffer(nil)
	tb := tablewriter.NewWriter(buf)
	tb.SetAutoWrapText(false)
	tb.SetColWidth(1500)
	tb.SetCenterSeparator("*")
	tb.SetAlignment(tablewriter.ALIGN_CENTER)
	tb.SetCaption(true, fmt.Sprintf("	(%q scale)", buckets[0].Scale))
	tb.SetHeader([]string{"lower bound", "upper bound", "count"})
	for _, v := range buckets {
		lo := fmt.Sprintf("%.3f", v.LowerBound)
		hi := fmt.Sprintf("%.3f", v.UpperBound)
		if v.UpperBound == math.MaxFloat64 {
			hi = "math.MaxFloat64"
		}
		tb.Append([]string{lo, hi, fmt.Sprintf("%d", v.Count)})
	}
	tb.Render()
	return buf.String()
}
