package oauthbridge

import (
	"context"
	"sync"
	"time"
)

// Outcome statuses reported to a waiting opener.
const (
	OutcomeConnected = "connected"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// waiterTTL bounds how long a resolved-but-never-polled attempt may sit in
// the registry before a later Register sweeps it.
const waiterTTL = 10 * time.Minute

// Outcome is the terminal result of one popup connect attempt.
type Outcome struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type waiterSlot struct {
	accountID string
	ch        chan Outcome
	expiresAt time.Time
}

// Registry tracks in-flight connect attempts by nonce. Each attempt is
// bound to the account that minted it and gets a buffered channel so the
// callback can resolve it without blocking; a waiter that times out sees
// an explicit cancelled outcome instead of hanging on a popup the user
// closed. Slots that nobody ever polls expire and are swept on the next
// Register.
type Registry struct {
	mu      sync.Mutex
	ttl     time.Duration
	waiters map[string]*waiterSlot
}

// NewRegistry creates an empty waiter registry.
func NewRegistry() *Registry {
	return &Registry{ttl: waiterTTL, waiters: make(map[string]*waiterSlot)}
}

// Register opens a slot for a connect attempt owned by accountID.
// Re-registering a nonce replaces the previous slot.
func (r *Registry) Register(nonce, accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	r.waiters[nonce] = &waiterSlot{
		accountID: accountID,
		ch:        make(chan Outcome, 1),
		expiresAt: time.Now().Add(r.ttl),
	}
}

// Resolve delivers the outcome for a nonce. The buffered slot stays
// registered until a waiter consumes it, so resolving before the opener
// polls does not lose the result. Returns false when no attempt is
// registered, which happens after a timeout already released the slot.
func (r *Registry) Resolve(nonce string, outcome Outcome) bool {
	r.mu.Lock()
	slot, ok := r.waiters[nonce]
	r.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case slot.ch <- outcome:
		return true
	default:
		// Slot already holds an outcome; later resolutions lose.
		return false
	}
}

// Await blocks until the attempt resolves, the timeout elapses, or the
// context is cancelled. Timeout and cancellation both yield a cancelled
// outcome and release the slot. A caller that does not own the nonce gets
// the unknown-attempt outcome and the slot stays held for its owner.
func (r *Registry) Await(ctx context.Context, nonce, accountID string, timeout time.Duration) Outcome {
	r.mu.Lock()
	slot, ok := r.waiters[nonce]
	if ok && time.Now().After(slot.expiresAt) {
		delete(r.waiters, nonce)
		ok = false
	}
	r.mu.Unlock()
	if !ok || slot.accountID != accountID {
		return Outcome{Status: OutcomeCancelled, Error: "unknown or expired attempt"}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case outcome := <-slot.ch:
		r.drop(nonce)
		return outcome
	case <-timer.C:
		r.drop(nonce)
		return Outcome{Status: OutcomeCancelled, Error: "connect attempt timed out"}
	case <-ctx.Done():
		r.drop(nonce)
		return Outcome{Status: OutcomeCancelled, Error: "connect attempt abandoned"}
	}
}

func (r *Registry) drop(nonce string) {
	r.mu.Lock()
	delete(r.waiters, nonce)
	r.mu.Unlock()
}

func (r *Registry) sweepLocked() {
	now := time.Now()
	for nonce, slot := range r.waiters {
		if now.After(slot.expiresAt) {
			delete(r.waiters, nonce)
		}
	}
}
