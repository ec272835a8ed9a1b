package checkpoint

import "sync"

// ThreadLocks serializes turn processing per thread within one process.
// Distinct threads proceed in parallel; two turns on the same thread queue.
//
// Entries are reference counted and removed once the last holder releases,
// so the map does not grow with the number of threads ever seen.
type ThreadLocks struct {
	mu      sync.Mutex
	threads map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

// NewThreadLocks creates an empty lock table.
func NewThreadLocks() *ThreadLocks {
	return &ThreadLocks{threads: make(map[string]*threadLock)}
}

// Acquire blocks until the thread's lock is held and returns the release
// function. Release exactly once.
func (l *ThreadLocks) Acquire(threadID string) func() {
	l.mu.Lock()
	tl, ok := l.threads[threadID]
	if !ok {
		tl = &threadLock{}
		l.threads[threadID] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			tl.mu.Unlock()

			l.mu.Lock()
			tl.refs--
			if tl.refs == 0 {
				delete(l.threads, threadID)
			}
			l.mu.Unlock()
		})
	}
}

// Len reports the number of threads currently tracked.
func (l *ThreadLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.threads)
}
