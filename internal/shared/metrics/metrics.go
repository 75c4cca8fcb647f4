package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	analysisStartedTotal     atomic.Uint64
	analysisCompletedTotal   atomic.Uint64
	analysisFailedTotal      atomic.Uint64
	analysisPlaceholderTotal atomic.Uint64
	submissionsTotal         atomic.Uint64
	submissionFallbackTotal  atomic.Uint64
	creditsConsumedTotal     atomic.Uint64
	creditsGrantedTotal      atomic.Uint64

	jobsReceivedTotal      atomic.Uint64
	jobsCompletedTotal     atomic.Uint64
	jobsFailedTotal        atomic.Uint64
	jobsUnrecoverableTotal atomic.Uint64

	resolveAttemptsTotal  atomic.Uint64
	providerTriggersTotal atomic.Uint64
	resolveOutcomes       = newLabeledCounter()

	analysisDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
	resolveDuration  = newHistogram([]float64{10, 50, 100, 500, 1000, 2000, 5000, 10000, 30000})
)

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() { analysisStartedTotal.Add(1) }

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted() { analysisCompletedTotal.Add(1) }

// IncAnalysisFailed increments the failed counter.
func IncAnalysisFailed() { analysisFailedTotal.Add(1) }

// IncAnalysisPlaceholder counts analyses stored with a placeholder report.
func IncAnalysisPlaceholder() { analysisPlaceholderTotal.Add(1) }

// IncSubmission counts accepted assessment submissions.
func IncSubmission() { submissionsTotal.Add(1) }

// IncSubmissionFallback counts submissions that fell back to an earlier analysis.
func IncSubmissionFallback() { submissionFallbackTotal.Add(1) }

// AddCreditsConsumed counts credits spent.
func AddCreditsConsumed(n int) {
	if n > 0 {
		creditsConsumedTotal.Add(uint64(n))
	}
}

// AddCreditsGranted counts credits granted by purchases.
func AddCreditsGranted(n int) {
	if n > 0 {
		creditsGrantedTotal.Add(uint64(n))
	}
}

// IncAnalysisJobsReceived counts queue messages picked up by a worker.
func IncAnalysisJobsReceived() { jobsReceivedTotal.Add(1) }

// IncAnalysisJobsCompleted counts queue messages processed and deleted.
func IncAnalysisJobsCompleted() { jobsCompletedTotal.Add(1) }

// IncAnalysisJobsFailed counts queue messages left for redelivery.
func IncAnalysisJobsFailed() { jobsFailedTotal.Add(1) }

// IncAnalysisJobsDeletedUnrecoverable counts malformed messages dropped without processing.
func IncAnalysisJobsDeletedUnrecoverable() { jobsUnrecoverableTotal.Add(1) }

// IncResolveAttempt counts polling lookups made by the reconciler.
func IncResolveAttempt() { resolveAttemptsTotal.Add(1) }

// IncProviderTrigger counts analyses (re)started by the reconciler.
func IncProviderTrigger() { providerTriggersTotal.Add(1) }

// IncResolveOutcome counts reconciler results by outcome (resolved, failed, canceled).
func IncResolveOutcome(outcome string) { resolveOutcomes.Inc(outcome) }

// ObserveAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	analysisDuration.Observe(value)
}

// ObserveResolveDurationMs records how long a report lookup took end to end.
func ObserveResolveDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	resolveDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "analysis_started_total", "Total analyses started", analysisStartedTotal.Load())
	writeCounter(&buf, "analysis_completed_total", "Total analyses completed", analysisCompletedTotal.Load())
	writeCounter(&buf, "analysis_failed_total", "Total analyses failed", analysisFailedTotal.Load())
	writeCounter(&buf, "analysis_placeholder_total", "Analyses stored with a placeholder report", analysisPlaceholderTotal.Load())
	writeCounter(&buf, "assessment_submissions_total", "Accepted assessment submissions", submissionsTotal.Load())
	writeCounter(&buf, "assessment_submission_fallback_total", "Submissions served by an earlier analysis", submissionFallbackTotal.Load())
	writeCounter(&buf, "credits_consumed_total", "Credits consumed", creditsConsumedTotal.Load())
	writeCounter(&buf, "credits_granted_total", "Credits granted", creditsGrantedTotal.Load())
	writeCounter(&buf, "analysis_jobs_received_total", "Analysis queue messages received", jobsReceivedTotal.Load())
	writeCounter(&buf, "analysis_jobs_completed_total", "Analysis queue messages completed", jobsCompletedTotal.Load())
	writeCounter(&buf, "analysis_jobs_failed_total", "Analysis queue messages left for redelivery", jobsFailedTotal.Load())
	writeCounter(&buf, "analysis_jobs_unrecoverable_total", "Malformed analysis queue messages dropped", jobsUnrecoverableTotal.Load())
	writeCounter(&buf, "report_resolve_attempts_total", "Polling lookups made while resolving reports", resolveAttemptsTotal.Load())
	writeCounter(&buf, "report_provider_triggers_total", "Analyses started by report resolution", providerTriggersTotal.Load())
	writeLabeledCounter(&buf, "report_resolve_total", "Report lookups by outcome", "outcome", resolveOutcomes.Snapshot())
	writeHistogram(&buf, "analysis_duration_ms", "Analysis duration in milliseconds", analysisDuration.Snapshot())
	writeHistogram(&buf, "report_resolve_duration_ms", "Report lookup duration in milliseconds", resolveDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{values: map[string]uint64{}}
}

func (l *labeledCounter) Inc(label string) {
	l.mu.Lock()
	l.values[label]++
	l.mu.Unlock()
}

func (l *labeledCounter) Snapshot() map[string]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]uint64, len(l.values))
	for k, v := range l.values {
		out[k] = v
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe stores the value in its lowest matching bucket; Render accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SinceMillis returns the elapsed milliseconds since start.
func SinceMillis(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
