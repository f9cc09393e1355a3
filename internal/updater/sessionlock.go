package updater

import "sync"

// sessionLocks serializes updates per (namespace, sessionId). Without it,
// two concurrent updates for the same session can both pass the hash check
// and double-process the transcript. Single-writer per session within this
// process; multi-instance deployments need an external lock.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire returns the held lock for key; caller must Unlock it.
func (s *sessionLocks) acquire(key string) *sync.Mutex {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l
}
