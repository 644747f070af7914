// Package lockset provides per-scope mutual exclusion for check-then-act sequences.
package lockset

import (
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultIdleCapacity bounds how many released scope locks are retained for reuse.
const DefaultIdleCapacity = 1024

type entry struct {
	mu   sync.Mutex
	refs int
}

// Registry hands out one mutex per scope key. Keys that are held or awaited live
// in the active map; released keys move to an LRU of idle entries and are evicted
// once it is full. An entry is never evicted while referenced.
type Registry struct {
	mu     sync.Mutex
	active map[string]*entry
	idle   *lru.Cache[string, *entry]
}

// New constructs a registry keeping at most idleCapacity released locks.
func New(idleCapacity int) (*Registry, error) {
	if idleCapacity <= 0 {
		idleCapacity = DefaultIdleCapacity
	}
	idle, err := lru.New[string, *entry](idleCapacity)
	if err != nil {
		return nil, fmt.Errorf("lockset: create idle cache: %w", err)
	}
	return &Registry{active: make(map[string]*entry), idle: idle}, nil
}

// Acquire locks every key and returns a func releasing them. Keys are sorted and
// de-duplicated so callers locking several scopes cannot deadlock each other.
func (r *Registry) Acquire(keys ...string) (release func()) {
	ordered := normalize(keys)
	held := make([]*entry, 0, len(ordered))
	for _, key := range ordered {
		e := r.ref(key)
		e.mu.Lock()
		held = append(held, e)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				r.unref(ordered[i], held[i])
			}
		})
	}
}

// Active returns the number of scopes currently held or awaited.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Idle returns the number of released scopes retained for reuse.
func (r *Registry) Idle() int {
	return r.idle.Len()
}

func (r *Registry) ref(key string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.active[key]
	if !ok {
		if e, ok = r.idle.Peek(key); ok {
			r.idle.Remove(key)
		} else {
			e = &entry{}
		}
		r.active[key] = e
	}
	e.refs++
	return e
}

func (r *Registry) unref(key string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.refs--
	if e.refs > 0 {
		return
	}
	delete(r.active, key)
	r.idle.Add(key, e)
}

func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RoomScope is the lock key for bookings of one room on one calendar date.
func RoomScope(roomID int64, dateKey string) string {
	return fmt.Sprintf("room:%d:%s", roomID, dateKey)
}

// UserScope is the lock key for a user's attendance commitments.
func UserScope(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// EventScope is the lock key for the participation list and time of one event.
// Event keys sort before user keys, so holding an event lock while acquiring
// user locks keeps the global order.
func EventScope(eventID int64) string {
	return fmt.Sprintf("event:%d", eventID)
}
