package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	snap := h.Snapshot()
	if snap.count != 3 {
		t.Fatalf("expected 3 observations, got %d", snap.count)
	}
	var buf bytes.Buffer
	writeHistogram(&buf, "x", "x", snap)

	for _, want := range []string{`x_bucket{le="10"} 1`, `x_bucket{le="100"} 2`, `x_bucket{le="+Inf"} 3`} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("missing %q in\n%s", want, buf.String())
		}
	}
}

func TestRenderIncludesResolveOutcomes(t *testing.T) {
	IncResolveOutcome("resolved")
	IncResolveOutcome("resolved")
	out := Render()
	if !strings.Contains(out, `report_resolve_total{outcome="resolved"}`) {
		t.Fatalf("expected outcome line, got\n%s", out)
	}
}

func TestRenderIncludesWorkerAndTriggerCounters(t *testing.T) {
	IncAnalysisJobsReceived()
	IncAnalysisJobsDeletedUnrecoverable()
	IncProviderTrigger()
	out := Render()
	for _, name := range []string{"analysis_jobs_received_total", "analysis_jobs_unrecoverable_total", "report_provider_triggers_total"} {
		if !strings.Contains(out, name) {
			t.Fatalf("missing %s in\n%s", name, out)
		}
	}
}
