package latency

import (
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"
)

func makeDurations(n int) Durations {
	ds := make(Durations, n)
	for i := 0; i < n; i++ {
		sign := 1
		if i%2 == 0 {
			sign = -1
		}
		delta := time.Duration(rand.Int63n(500)) * time.Millisecond
		dur := time.Second + time.Duration(sign*i)*time.Millisecond
		if dur < 0 {
			dur = 2 * time.Second
		}
		ds[n-1-i] = dur + delta
	}
	return ds
}

func TestSummary(t *testing.T) {
	ds := makeDurations(2000)
	rs := New("cylinder2d_unsteady_bs10_fp32_DP", ds)

	if rs.StepsTotal != 2000 {
		t.Fatalf("expected 2000 steps, got %.0f", rs.StepsTotal)
	}
	if rs.P50 > rs.P99 {
		t.Fatalf("expected P50 <= P99, got %v > %v", rs.P50, rs.P99)
	}
	var total uint64
	for _, bucket := range rs.Histogram {
		total += bucket.Count
	}
	if total != 2000 {
		t.Fatalf("histogram counted %d durations, expected 2000", total)
	}
	if !strings.Contains(rs.Table(), "50-percentile Step Time") {
		t.Fatalf("unexpected table output:\n%s", rs.Table())
	}
}

func TestPickersSorted(t *testing.T) {
	ds := makeDurations(500)
	sort.Sort(ds)
	picked := Durations{ds.PickP50(), ds.PickP90(), ds.PickP99(), ds.PickP999(), ds.PickP9999()}
	for i := 1; i < len(picked); i++ {
		if picked[i] < picked[i-1] {
			t.Fatalf("percentiles out of order: %v", picked)
		}
	}
}

func TestCompareSummary(t *testing.T) {
	a := New("cylinder2d_unsteady_bs10_fp32_DP", makeDurations(1000))
	b := New("cylinder2d_unsteady_bs10_fp32_DP", makeDurations(1000))

	c, err := CompareSummary(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(c.Table(), "Delta") {
		t.Fatalf("unexpected compare table:\n%s", c.Table())
	}
	if c.JSON() == "" {
		t.Fatal("expected JSON output")
	}
}
