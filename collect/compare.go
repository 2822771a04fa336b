package collect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"github.com/paddlepaddle/tipc-bench/record"
)

// SummaryCompare compares two collections run-by-run.
// Delta is computed with "A" as "before" and with "B" as "after".
type SummaryCompare struct {
	A Summary `json:"a"`
	B Summary `json:"b"`

	Deltas []RunDelta `json:"deltas"`
}

// RunDelta is the throughput delta of one run name present in both
// collections.
type RunDelta struct {
	RunName         string  `json:"run_name"`
	IpsA            float64 `json:"ips_a"`
	IpsB            float64 `json:"ips_b"`
	IpsDeltaPercent float64 `json:"ips_delta_percent"`
}

// JSON serializes the comparison.
func (c SummaryCompare) JSON() string {
	b, _ := json.Marshal(c)
	return string(b)
}

// Table renders the comparison as an ASCII table.
func (c SummaryCompare) Table() string {
	buf := bytes.NewBuffer(nil)
	tb := tablewriter.NewWriter(buf)
	tb.SetAutoWrapText(false)
	tb.SetColWidth(1500)
	tb.SetCenterSeparator("*")
	tb.SetAlignment(tablewriter.ALIGN_CENTER)
	tb.SetCaption(true, "(% ips delta from 'A' to 'B')")
	tb.SetHeader([]string{"Run Name", fmt.Sprintf("A %q", c.A.Name), fmt.Sprintf("B %q", c.B.Name), "Delta"})
	for _, d := range c.Deltas {
		tb.Append([]string{
			d.RunName,
			strconv.FormatFloat(d.IpsA, 'f', 4, 64),
			strconv.FormatFloat(d.IpsB, 'f', 4, 64),
			toPercent(d.IpsDeltaPercent),
		})
	}
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

// Compare matches the records of two collections by run name. Every run
// name in "a" must exist in "b"; runs only in "b" are ignored.
func Compare(a Summary, b Summary) (c SummaryCompare, err error) {
	bByRun := make(map[string]record.Record, len(b.Records))
	for _, rec := range b.Records {
		bByRun[rec.RunName()] = rec
	}

	c = SummaryCompare{A: a, B: b}
	for _, ra := range a.Records {
		rb, ok := bByRun[ra.RunName()]
		if !ok {
			return SummaryCompare{}, errors.Errorf("run %q not found in %q", ra.RunName(), b.Name)
		}
		if ra.IPS <= 0 {
			return SummaryCompare{}, errors.Errorf("run %q has invalid ips %f", ra.RunName(), ra.IPS)
		}
		c.Deltas = append(c.Deltas, RunDelta{
			RunName:         ra.RunName(),
			IpsA:            ra.IPS,
			IpsB:            rb.IPS,
			IpsDeltaPercent: (rb.IPS - ra.IPS) / ra.IPS * 100,
		})
	}
	return c, nil
}

// LoadSummary reads a merged summary file written by a previous
// collection.
func LoadSummary(p string) (Summary, error) {
	d, err := os.ReadFile(p)
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	if err := json.Unmarshal(d, &s); err != nil {
		return Summary{}, errors.Wrapf(err, "failed to decode summary %q", p)
	}
	return s, nil
}
