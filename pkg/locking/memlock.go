package locking

import "sync"

// MemLock is a Group implementation that uses in-memory locks (mutexes) for
// mutual exclusion. Exclusion only holds within a single process; that is
// enough here because each cache instance owns its entries exclusively.
type MemLock struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMemLock() *MemLock {
	return &MemLock{
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *MemLock) DoWithLock(key string, fn func() (any, error)) (v any, err error) {
	s.Lock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	s.Unlock()
	lock.Lock()
	defer lock.Unlock()
	return fn()
}
