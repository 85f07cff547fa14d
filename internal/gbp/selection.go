// Package gbp lists and persists Google Business Profile locations for an
// organization. The persisted selection set is the single source of truth for
// which locations the organization claims.
package gbp

import (
	"fmt"
	"sort"
)

// Location is a candidate business-profile location discovered through the
// linked Google account.
type Location struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Address    string `json:"address,omitempty"`
	AccountID  string `json:"account_id"`
	LocationID string `json:"location_id"`
}

// Selection is one confirmed location claim.
type Selection struct {
	AccountID   string `json:"account_id"`
	LocationID  string `json:"location_id"`
	DisplayName string `json:"display_name"`
}

// Key returns the composite selection key.
func (s Selection) Key() string {
	return fmt.Sprintf("accounts/%s/locations/%s", s.AccountID, s.LocationID)
}

// SelectionSet is an in-memory set of location claims keyed by composite key.
// Purely local until confirmed.
type SelectionSet struct {
	byKey map[string]Selection
}

// NewSelectionSet creates a selection set seeded with any already-persisted
// selections, so reopening the selector does not lose prior choices.
func NewSelectionSet(seed []Selection) *SelectionSet {
	set := &SelectionSet{byKey: make(map[string]Selection, len(seed))}
	for _, s := range seed {
		set.byKey[s.Key()] = s
	}
	return set
}

// Toggle adds the selection if absent, removes it if present. Returns true
// when the selection ends up in the set.
func (ss *SelectionSet) Toggle(s Selection) bool {
	key := s.Key()
	if _, ok := ss.byKey[key]; ok {
		delete(ss.byKey, key)
		return false
	}
	ss.byKey[key] = s
	return true
}

// Contains reports whether a selection with the same composite key exists.
func (ss *SelectionSet) Contains(s Selection) bool {
	_, ok := ss.byKey[s.Key()]
	return ok
}

// Len returns the number of selected locations.
func (ss *SelectionSet) Len() int {
	return len(ss.byKey)
}

// List returns the selections ordered by composite key.
func (ss *SelectionSet) List() []Selection {
	out := make([]Selection, 0, len(ss.byKey))
	for _, s := range ss.byKey {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
