package service

import "sync"

// slugLocks hands out one mutex per slug. Entries are reference counted and
// dropped when the last holder unlocks.
type slugLocks struct {
	mu    sync.Mutex
	locks map[string]*slugLock
}

type slugLock struct {
	mu   sync.Mutex
	refs int
}

func newSlugLocks() *slugLocks {
	return &slugLocks{locks: make(map[string]*slugLock)}
}

// lock blocks until slug is free and returns the matching unlock.
func (l *slugLocks) lock(slug string) (unlock func()) {
	l.mu.Lock()
	sl, ok := l.locks[slug]
	if !ok {
		sl = &slugLock{}
		l.locks[slug] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()

		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, slug)
		}
		l.mu.Unlock()
	}
}

// held returns the number of slugs with a holder or waiter.
func (l *slugLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
