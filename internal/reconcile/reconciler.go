// Package reconcile locates an analysis from whatever identifier a caller holds,
// tolerating a provider that writes asynchronously and sometimes not at all.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"persona-backend/internal/analyses"
	"persona-backend/internal/shared/metrics"
	"persona-backend/internal/shared/telemetry"
)

// Provider (re)starts analysis for the assessment behind target and returns the
// id of the analysis it created.
type Provider interface {
	Trigger(ctx context.Context, userID, target string) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, userID, target string) (string, error)

// Trigger calls f.
func (f ProviderFunc) Trigger(ctx context.Context, userID, target string) (string, error) {
	return f(ctx, userID, target)
}

// Reconciler resolves analyses. The zero value is not usable; construct with New.
type Reconciler struct {
	store      Store
	provider   Provider
	strategies []Strategy
	cfg        Config
	tracker    *Tracker
	sleep      SleepFunc
	group      singleflight.Group
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithStrategies replaces the lookup order.
func WithStrategies(s []Strategy) Option {
	return func(r *Reconciler) { r.strategies = s }
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(r *Reconciler) { r.sleep = fn }
}

// WithTracker shares a tracker between reconcilers.
func WithTracker(t *Tracker) Option {
	return func(r *Reconciler) { r.tracker = t }
}

// New builds a Reconciler. provider may be nil, in which case nothing is triggered.
func New(store Store, provider Provider, cfg Config, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:      store,
		provider:   provider,
		strategies: DefaultStrategies(),
		cfg:        cfg.withDefaults(),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracker == nil {
		r.tracker = NewTracker(time.Hour, 4096)
	}
	return r
}

// Tracker exposes the per-target state machines.
func (r *Reconciler) Tracker() *Tracker { return r.tracker }

// ProgressBudget bounds the events one Resolve call can emit: lookup, trigger,
// every poll and the terminal event, twice over when a shared run is retried.
func (r *Reconciler) ProgressBudget() int { return 2 * (r.cfg.MaxAttempts + 3) }

// Resolve returns the best analysis for target, or the newest analysis of the
// user when target is empty. Failures are *TerminalError.
func (r *Reconciler) Resolve(ctx context.Context, userID, target string, n Notifier) (analyses.Analysis, error) {
	start := time.Now()
	a, err := r.resolve(ctx, userID, strings.TrimSpace(target), n)
	metrics.ObserveResolveDurationMs(metrics.SinceMillis(start))
	var terr *TerminalError
	switch {
	case err == nil:
		metrics.IncResolveOutcome("resolved")
	case errors.As(err, &terr):
		metrics.IncResolveOutcome(string(terr.Kind))
	default:
		metrics.IncResolveOutcome("error")
	}
	return a, err
}

func (r *Reconciler) resolve(ctx context.Context, userID, target string, n Notifier) (analyses.Analysis, error) {
	if strings.TrimSpace(userID) == "" {
		return analyses.Analysis{}, &TerminalError{Kind: KindUnauthenticated}
	}

	if target == "" {
		latest, err := r.store.MostRecentForUser(ctx, userID)
		if err != nil {
			if !errors.Is(err, analyses.ErrNotFound) {
				r.logLookupError(userID, "", "latest", err)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return analyses.Analysis{}, ctxErr
			}
			return analyses.Analysis{}, &TerminalError{
				Kind:      KindNoAnalyses,
				Retryable: !errors.Is(err, analyses.ErrNotFound),
				Err:       err,
			}
		}
		if latest.Usable() {
			notify(n, Progress{Stage: StageResolved, AnalysisID: latest.ID, Message: "Loaded your latest report."})
			return latest, nil
		}
		target = latest.ID
	}

	attempt := r.tracker.Get(userID, target)
	unsubscribe := attempt.subscribe(n)
	defer unsubscribe()

	key := trackerKey(userID, target)
	for {
		ch := r.group.DoChan(key, func() (any, error) {
			return r.run(ctx, userID, target, attempt)
		})
		select {
		case res := <-ch:
			// A shared run cancelled by another caller is retried under our own context.
			if res.Shared && isContextErr(res.Err) && ctx.Err() == nil {
				continue
			}
			if res.Err != nil {
				return analyses.Analysis{}, res.Err
			}
			return res.Val.(analyses.Analysis), nil
		case <-ctx.Done():
			return analyses.Analysis{}, ctx.Err()
		}
	}
}

func (r *Reconciler) run(ctx context.Context, userID, target string, attempt *Attempt) (analyses.Analysis, error) {
	// Already resolved: return the same analysis without touching the provider.
	if id := attempt.ResolvedID(); id != "" {
		if a, err := byID(ctx, r.store, userID, id); err == nil && a.Usable() {
			attempt.emit(Progress{Stage: StageResolved, AnalysisID: a.ID, Message: "Report ready."})
			return a, nil
		}
	}
	attempt.restart()

	attempt.emit(Progress{Stage: StageLookup, Message: "Looking up your report..."})
	found, pending := r.lookup(ctx, userID, target, attempt)
	if found != nil {
		return r.finish(attempt, *found)
	}
	if err := ctx.Err(); err != nil {
		return r.fail(attempt, err)
	}

	if pending == "" && r.provider != nil && attempt.claimTrigger() {
		_ = attempt.transition(StateTriggering)
		attempt.emit(Progress{Stage: StageTriggering, Message: "Starting your analysis..."})
		metrics.IncProviderTrigger()
		id, err := r.provider.Trigger(ctx, userID, target)
		if err != nil {
			// Most provider errors mean "still running"; keep polling.
			telemetry.Warn("reconcile.trigger_failed", map[string]any{
				"user_id": userID,
				"target":  target,
				"error":   err,
			})
		} else if id != "" {
			attempt.setProviderID(id)
		}
	}

	if err := attempt.transition(StatePolling); err != nil {
		return r.fail(attempt, err)
	}
	for i := 1; i <= r.cfg.MaxAttempts; i++ {
		delay := r.cfg.Backoff(i)
		attempt.emit(Progress{
			Stage:       StagePolling,
			Attempt:     i,
			MaxAttempts: r.cfg.MaxAttempts,
			DelayMs:     delayMs(delay),
			Message:     fmt.Sprintf("Analysis in progress... (attempt %d of %d)", i, r.cfg.MaxAttempts),
		})
		if err := r.sleep(ctx, delay); err != nil {
			return r.fail(attempt, err)
		}
		metrics.IncResolveAttempt()
		if found, _ := r.lookup(ctx, userID, target, attempt); found != nil {
			return r.finish(attempt, *found)
		}
	}

	return r.fail(attempt, &TerminalError{
		Kind:      KindNotFound,
		Target:    target,
		Attempts:  r.cfg.MaxAttempts,
		Retryable: true,
	})
}

// lookup runs every strategy in order. It returns the first usable analysis,
// or the id of a matching analysis that is still being written.
func (r *Reconciler) lookup(ctx context.Context, userID, target string, attempt *Attempt) (*analyses.Analysis, string) {
	pending := ""
	if pid := attempt.ProviderID(); pid != "" && pid != target {
		a, err := byID(ctx, r.store, userID, pid)
		if err == nil && a.Usable() {
			return &a, ""
		}
		if err == nil && !a.Terminal() {
			pending = a.ID
		}
	}
	for _, s := range r.strategies {
		if ctx.Err() != nil {
			return nil, pending
		}
		a, err := s.Lookup(ctx, r.store, userID, target)
		if err != nil {
			if !errors.Is(err, analyses.ErrNotFound) {
				r.logLookupError(userID, target, s.Name, err)
			}
			continue
		}
		if a.Usable() {
			return &a, ""
		}
		if !a.Terminal() && pending == "" {
			pending = a.ID
		}
	}
	return nil, pending
}

func (r *Reconciler) finish(attempt *Attempt, a analyses.Analysis) (analyses.Analysis, error) {
	if err := attempt.resolve(a.ID); err != nil {
		telemetry.Warn("reconcile.state", map[string]any{"error": err, "analysis_id": a.ID})
	}
	attempt.emit(Progress{Stage: StageResolved, AnalysisID: a.ID, Message: "Report ready."})
	return a, nil
}

func (r *Reconciler) fail(attempt *Attempt, err error) (analyses.Analysis, error) {
	_ = attempt.transition(StateFailed)
	msg := "We couldn't find your report yet."
	if isContextErr(err) {
		msg = "Lookup cancelled."
	}
	attempt.emit(Progress{Stage: StageFailed, Message: msg})
	return analyses.Analysis{}, err
}

func (r *Reconciler) logLookupError(userID, target, strategy string, err error) {
	telemetry.Warn("reconcile.lookup_failed", map[string]any{
		"user_id":  userID,
		"target":   target,
		"strategy": strategy,
		"error":    err,
	})
}

func notify(n Notifier, p Progress) {
	if n != nil {
		n.Notify(p)
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
