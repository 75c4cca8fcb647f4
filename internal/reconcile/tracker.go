package reconcile

import (
	"fmt"
	"sync"
	"time"
)

// State is the lifecycle of one resolution target.
type State int

const (
	StateIdle State = iota
	StateTriggering
	StatePolling
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTriggering:
		return "triggering"
	case StatePolling:
		return "polling"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var transitions = map[State][]State{
	StateIdle:       {StateTriggering, StatePolling, StateResolved, StateFailed},
	StateTriggering: {StatePolling, StateFailed},
	StatePolling:    {StateResolved, StateFailed},
	StateResolved:   {StateIdle},
	StateFailed:     {StateIdle},
}

// Attempt tracks one user+target resolution across calls. The trigger flag
// survives retries so the provider is invoked at most once per target.
type Attempt struct {
	mu         sync.Mutex
	state      State
	triggered  bool
	providerID string
	resolvedID string
	updatedAt  time.Time
	listeners  map[int]Notifier
	nextID     int
}

// State returns the current state.
func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Triggered reports whether the provider has been invoked for this target.
func (a *Attempt) Triggered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.triggered
}

// ResolvedID is the analysis id of the last successful resolution.
func (a *Attempt) ResolvedID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resolvedID
}

// ProviderID is the id returned by the provider trigger, if any.
func (a *Attempt) ProviderID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.providerID
}

func (a *Attempt) transition(to State) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == to {
		return nil
	}
	for _, allowed := range transitions[a.state] {
		if allowed == to {
			a.state = to
			a.updatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s", a.state, to)
}

// claimTrigger returns true exactly once per attempt.
func (a *Attempt) claimTrigger() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.triggered {
		return false
	}
	a.triggered = true
	return true
}

func (a *Attempt) setProviderID(id string) {
	a.mu.Lock()
	a.providerID = id
	a.mu.Unlock()
}

func (a *Attempt) resolve(id string) error {
	if err := a.transition(StateResolved); err != nil {
		return err
	}
	a.mu.Lock()
	a.resolvedID = id
	a.mu.Unlock()
	return nil
}

// restart returns a finished attempt to Idle so it can run again.
func (a *Attempt) restart() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateResolved || a.state == StateFailed {
		a.state = StateIdle
		a.updatedAt = time.Now()
	}
}

func (a *Attempt) subscribe(n Notifier) func() {
	if n == nil {
		return func() {}
	}
	a.mu.Lock()
	if a.listeners == nil {
		a.listeners = make(map[int]Notifier)
	}
	id := a.nextID
	a.nextID++
	a.listeners[id] = n
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *Attempt) emit(p Progress) {
	a.mu.Lock()
	listeners := make([]Notifier, 0, len(a.listeners))
	for _, n := range a.listeners {
		listeners = append(listeners, n)
	}
	a.mu.Unlock()
	for _, n := range listeners {
		n.Notify(p)
	}
}

// Tracker holds attempts keyed by user and target.
type Tracker struct {
	mu       sync.Mutex
	attempts map[string]*Attempt
	ttl      time.Duration
	maxSize  int
}

// NewTracker returns a Tracker that forgets idle entries after ttl once it
// holds more than maxSize of them.
func NewTracker(ttl time.Duration, maxSize int) *Tracker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxSize <= 0 {
		maxSize = 4096
	}
	return &Tracker{attempts: make(map[string]*Attempt), ttl: ttl, maxSize: maxSize}
}

// Get returns the attempt for userID and target, creating it when absent.
func (t *Tracker) Get(userID, target string) *Attempt {
	key := trackerKey(userID, target)
	t.mu.Lock()
	defer t.mu.Unlock()
	if a, ok := t.attempts[key]; ok {
		return a
	}
	if len(t.attempts) >= t.maxSize {
		t.pruneLocked(time.Now())
	}
	a := &Attempt{updatedAt: time.Now()}
	t.attempts[key] = a
	return a
}

// Len reports the number of tracked attempts.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.attempts)
}

func (t *Tracker) pruneLocked(now time.Time) {
	for key, a := range t.attempts {
		a.mu.Lock()
		stale := now.Sub(a.updatedAt) > t.ttl && len(a.listeners) == 0 &&
			(a.state == StateResolved || a.state == StateFailed || a.state == StateIdle)
		a.mu.Unlock()
		if stale {
			delete(t.attempts, key)
		}
	}
}

func trackerKey(userID, target string) string {
	return userID + "\x00" + target
}
