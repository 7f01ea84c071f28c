// Package locker hands out one mutual-exclusion lock per repository path,
// so request handlers and the background worker serialize their git
// activity on the same working tree.
//
// The locks are plain (non-reentrant) mutexes: an operation acquires its
// repository lock exactly once at its outermost entry point and calls
// *Locked internals below it. Nested acquisition would deadlock and is a
// programming error.
package locker

import "sync"

// Registry maps keys (repository paths) to lazily created locks.
//
// The registry's own map is guarded by a separate short-lived mutex so
// that creating a lock for one repository never waits on long-held locks
// of another.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRegistry builds an empty registry
func NewRegistry() *Registry {
	return &Registry{
		locks: make(map[string]*sync.Mutex),
	}
}

// Get returns the lock for key, creating it on first use. Callers for the
// same key always receive the same lock instance; locks live for the
// process lifetime.
func (r *Registry) Get(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}
