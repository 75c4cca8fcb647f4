package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"persona-backend/internal/analyses"
	"persona-backend/internal/normalize"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingStore wraps a MemoryRepo and counts every call.
type countingStore struct {
	repo  *analyses.MemoryRepo
	calls atomic.Int64
	fail  error
}

func newCountingStore() *countingStore {
	return &countingStore{repo: analyses.NewMemoryRepo()}
}

func (s *countingStore) GetByID(ctx context.Context, id string) (analyses.Analysis, error) {
	s.calls.Add(1)
	if s.fail != nil {
		return analyses.Analysis{}, s.fail
	}
	return s.repo.GetByID(ctx, id)
}

func (s *countingStore) GetByAssessmentID(ctx context.Context, userID, id string) (analyses.Analysis, error) {
	s.calls.Add(1)
	if s.fail != nil {
		return analyses.Analysis{}, s.fail
	}
	return s.repo.GetByAssessmentID(ctx, userID, id)
}

func (s *countingStore) SearchBySuffix(ctx context.Context, userID, suffix string) (analyses.Analysis, error) {
	s.calls.Add(1)
	if s.fail != nil {
		return analyses.Analysis{}, s.fail
	}
	return s.repo.SearchBySuffix(ctx, userID, suffix)
}

func (s *countingStore) MostRecentForUser(ctx context.Context, userID string) (analyses.Analysis, error) {
	s.calls.Add(1)
	if s.fail != nil {
		return analyses.Analysis{}, s.fail
	}
	return s.repo.MostRecentForUser(ctx, userID)
}

func (s *countingStore) put(t *testing.T, a analyses.Analysis) {
	t.Helper()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	require.NoError(t, s.repo.Create(context.Background(), a))
}

type fakeProvider struct {
	mu     sync.Mutex
	calls  int
	id     string
	err    error
	onCall func()
}

func (p *fakeProvider) Trigger(ctx context.Context, userID, target string) (string, error) {
	p.mu.Lock()
	p.calls++
	onCall := p.onCall
	p.mu.Unlock()
	if onCall != nil {
		onCall()
	}
	return p.id, p.err
}

func (p *fakeProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// fakeClock records requested delays and runs hooks per poll instead of sleeping.
type fakeClock struct {
	mu     sync.Mutex
	delays []time.Duration
	onPoll func(n int)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	n := len(c.delays)
	hook := c.onPoll
	c.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return ctx.Err()
}

func (c *fakeClock) polls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.delays)
}

func completed(id, userID, assessmentID string, traits int) analyses.Analysis {
	report := normalize.Report{Overview: "steady"}
	for i := 0; i < traits; i++ {
		report.Traits = append(report.Traits, normalize.Trait{Name: "t", Score: 5})
	}
	return analyses.Analysis{
		ID:           id,
		UserID:       userID,
		AssessmentID: assessmentID,
		Status:       analyses.StatusCompleted,
		Report:       report,
	}
}

func newTestReconciler(store Store, provider Provider, clock *fakeClock) *Reconciler {
	return New(store, provider, Config{MaxAttempts: 5, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second}, WithSleep(clock.Sleep))
}

func TestResolveFastPath(t *testing.T) {
	store := newCountingStore()
	store.put(t, completed("b5a3e1c2-0000-4000-8000-000000000001", "user-1", "as-1", 8))
	provider := &fakeProvider{}
	clock := &fakeClock{}
	r := newTestReconciler(store, provider, clock)

	a, err := r.Resolve(context.Background(), "user-1", "b5a3e1c2-0000-4000-8000-000000000001", nil)
	require.NoError(t, err)
	require.Equal(t, "b5a3e1c2-0000-4000-8000-000000000001", a.ID)
	require.EqualValues(t, 1, store.calls.Load(), "fast path performs a single lookup")
	require.Zero(t, clock.polls(), "no backoff on the fast path")
	require.Zero(t, provider.count())
	require.Equal(t, StateResolved, r.Tracker().Get("user-1", a.ID).State())
}

func TestResolveByAssessmentIDAndSuffix(t *testing.T) {
	store := newCountingStore()
	store.put(t, completed("analysis-1717171717171", "user-1", "as-7", 3))
	clock := &fakeClock{}
	r := newTestReconciler(store, nil, clock)

	a, err := r.Resolve(context.Background(), "user-1", "as-7", nil)
	require.NoError(t, err)
	require.Equal(t, "analysis-1717171717171", a.ID)

	// A truncated/prefixed id still matches through its last 8 characters.
	a, err = r.Resolve(context.Background(), "user-1", "legacy-71717171", nil)
	require.NoError(t, err)
	require.Equal(t, "analysis-1717171717171", a.ID)
	require.Zero(t, clock.polls())
}

func TestResolvePollsUntilProviderWrites(t *testing.T) {
	store := newCountingStore()
	provider := &fakeProvider{id: "analysis-issued-by-provider"}
	clock := &fakeClock{}
	clock.onPoll = func(n int) {
		if n == 2 {
			store.put(t, completed("analysis-issued-by-provider", "user-1", "assessment-42", 8))
		}
	}
	r := newTestReconciler(store, provider, clock)
	rec := &Recorder{}

	a, err := r.Resolve(context.Background(), "user-1", "assessment-42", rec)
	require.NoError(t, err)
	require.Equal(t, "analysis-issued-by-provider", a.ID)
	require.Equal(t, 1, provider.count())
	require.LessOrEqual(t, clock.polls(), 3)
	require.Equal(t, []time.Duration{2 * time.Second, 3 * time.Second}, clock.delays)

	var polling int
	for _, p := range rec.Events() {
		if p.Stage == StagePolling {
			polling++
			require.Equal(t, polling, p.Attempt)
			require.Equal(t, 5, p.MaxAttempts)
		}
	}
	require.Equal(t, 2, polling)
	events := rec.Events()
	require.Equal(t, StageResolved, events[len(events)-1].Stage)
}

func TestResolveNeverProducedFailsAndTriggersOnce(t *testing.T) {
	store := newCountingStore()
	provider := &fakeProvider{id: "never-written"}
	clock := &fakeClock{}
	r := newTestReconciler(store, provider, clock)

	_, err := r.Resolve(context.Background(), "user-1", "missing-target", nil)
	var terr *TerminalError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, KindNotFound, terr.Kind)
	require.True(t, terr.Retryable)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 5, clock.polls())
	require.Equal(t, 1, provider.count())

	// A retry polls again but never re-invokes the provider.
	_, err = r.Resolve(context.Background(), "user-1", "missing-target", nil)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, provider.count())
	require.Equal(t, StateFailed, r.Tracker().Get("user-1", "missing-target").State())
}

func TestResolveBackoffIsCapped(t *testing.T) {
	store := newCountingStore()
	clock := &fakeClock{}
	r := New(store, nil, Config{MaxAttempts: 6, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second}, WithSleep(clock.Sleep))

	_, err := r.Resolve(context.Background(), "user-1", "nothing", nil)
	require.Error(t, err)
	want := []time.Duration{
		2 * time.Second,
		3 * time.Second,
		4500 * time.Millisecond,
		6750 * time.Millisecond,
		10 * time.Second,
		10 * time.Second,
	}
	require.Equal(t, want, clock.delays)
}

func TestResolveUnauthenticatedMakesNoCalls(t *testing.T) {
	store := newCountingStore()
	provider := &fakeProvider{}
	clock := &fakeClock{}
	r := newTestReconciler(store, provider, clock)

	for _, target := range []string{"", "some-id"} {
		_, err := r.Resolve(context.Background(), "", target, nil)
		require.ErrorIs(t, err, ErrUnauthenticated)
	}
	require.Zero(t, store.calls.Load())
	require.Zero(t, provider.count())
	require.Zero(t, clock.polls())
}

func TestResolveWithoutTargetUsesLatest(t *testing.T) {
	store := newCountingStore()
	base := time.Now().UTC()
	older := completed("older", "user-1", "as-1", 8)
	older.CreatedAt = base.Add(-time.Hour)
	newer := completed("newer", "user-1", "as-2", 8)
	newer.CreatedAt = base
	store.put(t, older)
	store.put(t, newer)
	r := newTestReconciler(store, nil, &fakeClock{})

	a, err := r.Resolve(context.Background(), "user-1", "", nil)
	require.NoError(t, err)
	require.Equal(t, "newer", a.ID)
}

func TestResolveWithoutTargetPollsPendingLatest(t *testing.T) {
	store := newCountingStore()
	store.put(t, analyses.Analysis{ID: "pending", UserID: "user-1", Status: analyses.StatusProcessing})
	provider := &fakeProvider{}
	clock := &fakeClock{}
	clock.onPoll = func(n int) {
		if n == 1 {
			require.NoError(t, store.repo.Finish(context.Background(), "pending", analyses.Outcome{
				Status: analyses.StatusCompleted,
				Report: normalize.Report{Overview: "done"},
			}))
		}
	}
	r := newTestReconciler(store, provider, clock)

	a, err := r.Resolve(context.Background(), "user-1", "", nil)
	require.NoError(t, err)
	require.Equal(t, "pending", a.ID)
	require.Zero(t, provider.count(), "an analysis already in flight is not re-triggered")
}

func TestResolveNoAnalyses(t *testing.T) {
	store := newCountingStore()
	r := newTestReconciler(store, &fakeProvider{}, &fakeClock{})

	_, err := r.Resolve(context.Background(), "user-1", "", nil)
	var terr *TerminalError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, KindNoAnalyses, terr.Kind)
	require.False(t, terr.Retryable)
}

func TestResolveIsIdempotent(t *testing.T) {
	store := newCountingStore()
	provider := &fakeProvider{id: "made"}
	clock := &fakeClock{}
	clock.onPoll = func(n int) {
		if n == 1 {
			store.put(t, completed("made", "user-1", "as-9", 8))
		}
	}
	r := newTestReconciler(store, provider, clock)

	first, err := r.Resolve(context.Background(), "user-1", "as-9", nil)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "user-1", "as-9", nil)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, provider.count())
	require.Equal(t, 1, clock.polls())
}

func TestResolveStoreErrorsFallThrough(t *testing.T) {
	store := newCountingStore()
	store.fail = errors.New("connection reset")
	clock := &fakeClock{}
	clock.onPoll = func(n int) {
		if n == 3 {
			store.fail = nil
			store.put(t, completed("recovered", "user-1", "as-1", 8))
		}
	}
	r := newTestReconciler(store, nil, clock)

	a, err := r.Resolve(context.Background(), "user-1", "recovered", nil)
	require.NoError(t, err)
	require.Equal(t, "recovered", a.ID)
}

func TestResolveHidesOtherUsersAnalyses(t *testing.T) {
	store := newCountingStore()
	store.put(t, completed("someone-elses", "user-2", "as-1", 8))
	r := New(store, nil, Config{MaxAttempts: 1}, WithSleep((&fakeClock{}).Sleep))

	_, err := r.Resolve(context.Background(), "user-1", "someone-elses", nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveHonoursCancellation(t *testing.T) {
	store := newCountingStore()
	ctx, cancel := context.WithCancel(context.Background())
	clock := &fakeClock{onPoll: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	r := newTestReconciler(store, nil, clock)

	_, err := r.Resolve(ctx, "user-1", "target", nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, clock.polls())
}

func TestResolveCollapsesConcurrentCallers(t *testing.T) {
	store := newCountingStore()
	release := make(chan struct{})
	provider := &fakeProvider{id: "shared"}
	var gate sync.Once
	clock := &fakeClock{}
	clock.onPoll = func(n int) {
		gate.Do(func() {
			<-release
			store.put(t, completed("shared", "user-1", "as-1", 8))
		})
	}
	r := newTestReconciler(store, provider, clock)

	const callers = 4
	var wg sync.WaitGroup
	results := make([]string, callers)
	recorders := make([]*Recorder, callers)
	for i := 0; i < callers; i++ {
		recorders[i] = &Recorder{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := r.Resolve(context.Background(), "user-1", "as-1", recorders[i])
			if err == nil {
				results[i] = a.ID
			}
		}(i)
	}
	// Let every caller join before the first poll completes.
	require.Eventually(t, func() bool { return clock.polls() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, id := range results {
		require.Equal(t, "shared", id, "caller %d", i)
	}
	require.Equal(t, 1, provider.count())
	require.Equal(t, 1, clock.polls())
}

func TestConfigBackoffDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	require.Equal(t, DefaultConfig(), cfg)
	require.Equal(t, 2*time.Second, cfg.Backoff(0))
}
