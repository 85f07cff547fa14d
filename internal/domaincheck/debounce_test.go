package domaincheck

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingCheck struct {
	mu      sync.Mutex
	calls   []string
	results map[string]Result
	block   chan struct{}
}

func (r *recordingCheck) fn(ctx context.Context, raw string) Result {
	r.mu.Lock()
	r.calls = append(r.calls, raw)
	block := r.block
	r.mu.Unlock()
	if block != nil {
		<-block
	}
	if res, ok := r.results[raw]; ok {
		return res
	}
	return Result{Status: StatusValid, Message: raw}
}

func (r *recordingCheck) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestDebouncerCoalescesRapidInput(t *testing.T) {
	rec := &recordingCheck{}
	d := NewDebouncer(30*time.Millisecond, rec.fn)
	defer d.Close()

	ctx := context.Background()
	d.Input(ctx, "first.com")
	d.Input(ctx, "second.com")
	d.Input(ctx, "third.com")

	if !d.WaitApplied(time.Second) {
		t.Fatal("timed out waiting for debounced check")
	}

	if got := rec.callCount(); got != 1 {
		t.Fatalf("expected exactly one check, got %d", got)
	}
	rec.mu.Lock()
	last := rec.calls[0]
	rec.mu.Unlock()
	if last != "third.com" {
		t.Fatalf("expected check for last input, got %q", last)
	}
	if res := d.Result(); res.Status != StatusValid || res.Message != "third.com" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestDebouncerInvalidSyntaxGoesIdleWithoutProbe(t *testing.T) {
	rec := &recordingCheck{}
	d := NewDebouncer(10*time.Millisecond, rec.fn)
	defer d.Close()

	d.Input(context.Background(), "not a domain")

	if res := d.Result(); res.Status != StatusIdle {
		t.Fatalf("expected idle, got %s", res.Status)
	}
	time.Sleep(40 * time.Millisecond)
	if rec.callCount() != 0 {
		t.Fatal("expected no probe for invalid syntax")
	}
}

func TestDebouncerDiscardsStaleInFlightResult(t *testing.T) {
	rec := &recordingCheck{block: make(chan struct{})}
	d := NewDebouncer(5*time.Millisecond, rec.fn)
	defer d.Close()

	ctx := context.Background()
	d.Input(ctx, "old.com")

	// Wait until the probe for old.com is actually in flight.
	deadline := time.Now().Add(time.Second)
	for rec.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("probe never started")
		}
		time.Sleep(time.Millisecond)
	}

	// Supersede the input while the first probe is blocked, then release it.
	d.Input(ctx, "new.com")
	close(rec.block)

	if !d.WaitApplied(time.Second) {
		t.Fatal("timed out waiting for fresh result")
	}
	if res := d.Result(); res.Message != "new.com" {
		t.Fatalf("stale result overwrote newer input: %+v", res)
	}
}

func TestDebouncerChecksScheduledOncePerQuietPeriod(t *testing.T) {
	rec := &recordingCheck{}
	d := NewDebouncer(15*time.Millisecond, rec.fn)
	defer d.Close()

	ctx := context.Background()
	d.Input(ctx, "one.com")
	if !d.WaitApplied(time.Second) {
		t.Fatal("first check never applied")
	}
	d.Input(ctx, "two.com")
	if !d.WaitApplied(time.Second) {
		t.Fatal("second check never applied")
	}

	if got := rec.callCount(); got != 2 {
		t.Fatalf("expected two checks across two quiet periods, got %d", got)
	}
}

func TestGroupIsolatesKeys(t *testing.T) {
	rec := &recordingCheck{}
	g := NewGroup(10*time.Millisecond, rec.fn)

	a := g.Get("acct-a")
	b := g.Get("acct-b")
	if a == b {
		t.Fatal("expected distinct debouncers per key")
	}
	if again := g.Get("acct-a"); again != a {
		t.Fatal("expected stable debouncer per key")
	}

	g.Release("acct-a")
	if fresh := g.Get("acct-a"); fresh == a {
		t.Fatal("expected a new debouncer after release")
	}
}
