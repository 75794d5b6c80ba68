package signal

import "sync"

// Scope collects subscriptions owned by one object and releases them
// together when the owner is disposed.
type Scope struct {
	mu       sync.Mutex
	subs     []*Subscription
	released bool
}

// Add records subs. Adding to a released scope releases them immediately.
func (s *Scope) Add(subs ...*Subscription) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		for _, sub := range subs {
			sub.Release()
		}
		return
	}
	s.subs = append(s.subs, subs...)
	s.mu.Unlock()
}

// Release releases every recorded subscription. Later calls are no-ops.
func (s *Scope) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()
	for _, sub := range subs {
		sub.Release()
	}
}

// Released reports whether Release has been called.
func (s *Scope) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
