package bot

import "sync"

// userLocks serializes work per user. Entries are dropped once no
// goroutine holds or waits on them.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*userLock)}
}

func (l *userLocks) lock(id int64) func() {
	l.mu.Lock()
	ul, ok := l.locks[id]
	if !ok {
		ul = &userLock{}
		l.locks[id] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
