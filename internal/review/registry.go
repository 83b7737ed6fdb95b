package review

import "sync"

// Registry holds one review session per test. Work on a test is serialized
// by that test's guard; different tests proceed concurrently.
type Registry struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	mu      sync.Mutex
	info    *TestInfo
	session *Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{slots: make(map[string]*slot)}
}

// acquire locks the slot of test, creating it on first use.
func (r *Registry) acquire(test string) (*slot, func()) {
	r.mu.Lock()
	sl, ok := r.slots[test]
	if !ok {
		sl = &slot{}
		r.slots[test] = sl
	}
	r.mu.Unlock()

	sl.mu.Lock()
	return sl, sl.mu.Unlock
}

// Invalidate drops the cached state of test.
func (r *Registry) Invalidate(test string) {
	sl, unlock := r.acquire(test)
	defer unlock()
	sl.reset()
}

func (sl *slot) reset() {
	sl.info = nil
	sl.session = nil
}

// Cached reports whether test has a loaded session.
func (r *Registry) Cached(test string) bool {
	sl, unlock := r.acquire(test)
	defer unlock()
	return sl.session != nil
}
