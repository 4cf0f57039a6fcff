package leaderboard

import (
	"sort"
	"sync"
)

// keyLock serializes writers of the same keys within the process. Redis
// transactions keep other instances consistent, the local lock only avoids
// retrying on conflicts we can see coming.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*refMutex)}
}

// Lock acquires all keys in a stable order and returns the function releasing them.
func (l *keyLock) Lock(keys ...string) (unlock func()) {
	keys = append([]string(nil), keys...)
	sort.Strings(keys)

	held := make([]string, 0, len(keys))
	for i, k := range keys {
		if i > 0 && keys[i-1] == k {
			continue
		}
		l.acquire(k).Lock()
		held = append(held, k)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.release(held[i])
		}
	}
}

func (l *keyLock) acquire(key string) *refMutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[key]
	if !ok {
		m = &refMutex{}
		l.locks[key] = m
	}
	m.refs++
	return m
}

func (l *keyLock) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.locks[key]
	m.Unlock()
	m.refs--
	if m.refs == 0 {
		delete(l.locks, key)
	}
}
