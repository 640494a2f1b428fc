package study

import (
	"path/filepath"
	"sync"
)

// Locker serializes read-merge-write-import sequences per study directory.
//
// Without this, two requests for the same study read the same snapshot
// and the later write drops rows of the other.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: map[string]*entry{}}
}

// Lock blocks until the directory is free, and returns its unlock function.
//
// Paths are compared after filepath.Clean.
func (l *Locker) Lock(dir string) (unlock func()) {
	key := filepath.Clean(dir)

	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs += 1
	l.mu.Unlock()

	e.mu.Lock()

	once := sync.Once{}
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			l.mu.Lock()
			defer l.mu.Unlock()
			e.refs -= 1
			if e.refs == 0 {
				delete(l.locks, key)
			}
		})
	}
}

// held returns the number of directories locked or waited on.
func (l *Locker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
