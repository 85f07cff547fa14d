package domaincheck

import (
	"context"
	"sync"
	"time"
)

// checkFunc matches Checker.Check.
type checkFunc func(ctx context.Context, raw string) Result

// Debouncer coalesces rapid domain input changes into a single check for the
// last value once the input has been quiet for the configured period. A new
// input cancels any pending timer, and an in-flight check for a superseded
// input never overwrites the result of a newer one: last-write-wins is
// decided by input identity, not by response arrival order.
type Debouncer struct {
	quiet time.Duration
	check checkFunc

	mu     sync.Mutex
	timer  *time.Timer
	seq    uint64
	result Result
	closed bool

	// applied is signalled after a check result lands (or is discarded),
	// so tests can wait without sleeping.
	applied chan struct{}
}

// NewDebouncer creates a debouncer around the given check function.
func NewDebouncer(quiet time.Duration, check checkFunc) *Debouncer {
	if quiet <= 0 {
		quiet = 800 * time.Millisecond
	}
	return &Debouncer{
		quiet:   quiet,
		check:   check,
		result:  Result{Status: StatusIdle},
		applied: make(chan struct{}, 1),
	}
}

// Input registers a new raw domain value. Syntactically invalid values
// resolve to idle immediately with no probe scheduled.
func (d *Debouncer) Input(ctx context.Context, raw string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	if !IsValidSyntax(Sanitize(raw)) {
		d.result = Result{Status: StatusIdle}
		d.signal()
		return
	}

	d.result = Result{Status: StatusChecking}
	d.timer = time.AfterFunc(d.quiet, func() {
		d.run(ctx, seq, raw)
	})
}

func (d *Debouncer) run(ctx context.Context, seq uint64, raw string) {
	d.mu.Lock()
	if d.closed || seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	res := d.check(ctx, raw)

	d.mu.Lock()
	defer d.mu.Unlock()
	// The input changed while the probe was in flight; drop the stale result.
	if d.closed || seq != d.seq {
		return
	}
	d.result = res
	d.signal()
}

// Result returns the current verdict snapshot.
func (d *Debouncer) Result() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result
}

// Close cancels any pending check.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) signal() {
	select {
	case d.applied <- struct{}{}:
	default:
	}
}

// WaitApplied blocks until a result has been applied or the timeout elapses.
// Intended for tests.
func (d *Debouncer) WaitApplied(timeout time.Duration) bool {
	select {
	case <-d.applied:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Group hands out one debouncer per key (an account working through
// onboarding) sharing a single check function.
type Group struct {
	quiet time.Duration
	check checkFunc

	mu    sync.Mutex
	byKey map[string]*Debouncer
}

// NewGroup creates an empty debouncer group.
func NewGroup(quiet time.Duration, check checkFunc) *Group {
	return &Group{
		quiet: quiet,
		check: check,
		byKey: make(map[string]*Debouncer),
	}
}

// Get returns the debouncer for key, creating it on first use.
func (g *Group) Get(key string) *Debouncer {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.byKey[key]
	if !ok {
		d = NewDebouncer(g.quiet, g.check)
		g.byKey[key] = d
	}
	return d
}

// Release closes and forgets the debouncer for key.
func (g *Group) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if d, ok := g.byKey[key]; ok {
		d.Close()
		delete(g.byKey, key)
	}
}
