package reconcile

import (
	"sync"
	"time"
)

// Stage names a step of a resolution visible to the caller.
type Stage string

const (
	StageLookup     Stage = "lookup"
	StageTriggering Stage = "triggering"
	StagePolling    Stage = "polling"
	StageResolved   Stage = "resolved"
	StageFailed     Stage = "failed"
)

// Progress is one user-visible update, the server-side form of a toast.
type Progress struct {
	Stage       Stage  `json:"stage"`
	Attempt     int    `json:"attempt,omitempty"`
	MaxAttempts int    `json:"maxAttempts,omitempty"`
	DelayMs     int64  `json:"delayMs,omitempty"`
	AnalysisID  string `json:"analysisId,omitempty"`
	Message     string `json:"message"`
}

// Notifier receives progress updates. Notify must not block.
type Notifier interface {
	Notify(p Progress)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(p Progress)

// Notify calls f.
func (f NotifierFunc) Notify(p Progress) { f(p) }

// Recorder keeps every update it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Progress
}

// Notify records p.
func (r *Recorder) Notify(p Progress) {
	r.mu.Lock()
	r.events = append(r.events, p)
	r.mu.Unlock()
}

// Events returns a copy of the recorded updates.
func (r *Recorder) Events() []Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Progress, len(r.events))
	copy(out, r.events)
	return out
}

func delayMs(d time.Duration) int64 {
	return d.Milliseconds()
}
