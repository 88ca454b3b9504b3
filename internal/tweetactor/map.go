// Package tweetactor implements the single-owner mediator that
// serializes all access to the translator map and the KV writes that
// depend on it.
package tweetactor

import "sync"

// Outcome is the tagged result of a translation lookup. Pending and
// Success are never represented as a bare empty-string sentinel outside
// this package — TranslatorMap keeps that sentinel as a private
// implementation detail.
type Outcome struct {
	pending bool
	name    string
}

// Pending reports a translation that is in flight.
func Pending() Outcome { return Outcome{pending: true} }

// Success reports a resolved translation.
func Success(name string) Outcome { return Outcome{name: name} }

func (o Outcome) IsPending() bool { return o.pending }
func (o Outcome) Name() string    { return o.name }

// TranslatorMap is the bidirectional in-memory boss-name mapping. A
// pending entry is recorded as an empty string value; a resolved entry
// is non-empty and always symmetric (both directions present).
type TranslatorMap struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewTranslatorMap returns an empty map, optionally pre-populated with
// resolved entries read from the KV store's translator mirror at
// startup.
func NewTranslatorMap(seed map[string]string) *TranslatorMap {
	entries := make(map[string]string, len(seed))
	for k, v := range seed {
		entries[k] = v
	}
	return &TranslatorMap{entries: entries}
}

// Lookup reports the current outcome for name: resolved, pending, or
// absent (found=false).
func (m *TranslatorMap) Lookup(name string) (Outcome, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[name]
	if !ok {
		return Outcome{}, false
	}
	if v == "" {
		return Pending(), true
	}
	return Success(v), true
}

// ReservePending inserts an empty-string reservation for name if and
// only if no entry (pending or resolved) exists yet. Returns true if a
// fresh reservation was created — the caller should spawn exactly one
// translator worker in that case, enforcing at most one pending
// reservation per key.
func (m *TranslatorMap) ReservePending(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[name]; exists {
		return false
	}
	m.entries[name] = ""
	return true
}

// Resolve inserts both symmetric directions for a successful match.
func (m *TranslatorMap) Resolve(a, b string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[a] = b
	m.entries[b] = a
}

// ReleasePending removes a pending reservation so a later status may
// retry. No-op if the entry is already resolved.
func (m *TranslatorMap) ReleasePending(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[name] == "" {
		delete(m.entries, name)
	}
}
