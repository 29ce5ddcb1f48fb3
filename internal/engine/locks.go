package engine

import "sync"

// keyedLocks serializes state transitions per invoice ID. Locks are created
// on first use and never removed; the set of IDs a process sees is small and
// monotonic, like the condition registry itself.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for id and returns its unlock function.
func (k *keyedLocks) acquire(id string) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
