package observ

import (
	"strings"
	"testing"
	"time"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	if r := tm.Report(); len(r.Phases) != 0 || r.TotalMS != 0 {
		t.Fatalf("empty report = %+v", r)
	}
	idx := tm.Begin("load")
	tm.End(idx, "3 files")
	tm.Measure("probe", func() string { return "" })
	tm.End(42, "ignored")

	r := tm.Report()
	if len(r.Phases) != 2 || r.Phases[0].Name != "load" || r.Phases[0].Note != "3 files" || r.Phases[1].Name != "probe" {
		t.Fatalf("report = %+v", r)
	}
	s := tm.Summary()
	for _, want := range []string{"timings:", "load", "// 3 files", "probe", "total"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}

func TestSummaryShares(t *testing.T) {
	tm := &Timer{phases: []Phase{
		{Name: "load", Dur: 30 * time.Millisecond},
		{Name: "probe-all", Dur: 10 * time.Millisecond, Note: "2 units"},
	}}
	want := "timings:\n" +
		"  load          30.00 ms  75.0%\n" +
		"  probe-all     10.00 ms  25.0%  // 2 units\n" +
		"  total         40.00 ms\n"
	if got := tm.Summary(); got != want {
		t.Errorf("Summary() =\n%s\nwant\n%s", got, want)
	}
}
