// Package signal provides typed change notifications with explicit
// subscription handles.
package signal

import "sync"

// Handler receives a signal payload.
type Handler[T any] func(T)

// Signal fans a payload out to its connected handlers synchronously, in
// connection order, on the emitting goroutine.
type Signal[T any] struct {
	mu      sync.Mutex
	nextID  uint64
	slots   []slot[T]
	blocked bool
}

type slot[T any] struct {
	id uint64
	fn Handler[T]
}

// Subscription is the handle returned by Connect. Release disconnects the
// handler; releasing twice is a no-op.
type Subscription struct {
	once    sync.Once
	release func()
}

// Release disconnects the handler.
func (s *Subscription) Release() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}

// Connect registers fn and returns its subscription handle.
func (s *Signal[T]) Connect(fn Handler[T]) *Subscription {
	if s == nil || fn == nil {
		return &Subscription{}
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.slots = append(s.slots, slot[T]{id: id, fn: fn})
	s.mu.Unlock()
	return &Subscription{release: func() { s.disconnect(id) }}
}

func (s *Signal[T]) disconnect(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sl := range s.slots {
		if sl.id == id {
			s.slots = append(s.slots[:i:i], s.slots[i+1:]...)
			return
		}
	}
}

// Emit delivers value to every handler connected at the time of the call.
func (s *Signal[T]) Emit(value T) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.blocked || len(s.slots) == 0 {
		s.mu.Unlock()
		return
	}
	slots := append([]slot[T](nil), s.slots...)
	s.mu.Unlock()
	for _, sl := range slots {
		sl.fn(value)
	}
}

// Len reports the number of connected handlers.
func (s *Signal[T]) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Block suppresses emission while fn runs.
func (s *Signal[T]) Block(fn func()) {
	s.mu.Lock()
	prev := s.blocked
	s.blocked = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.blocked = prev
		s.mu.Unlock()
	}()
	fn()
}

// DisconnectAll drops every handler.
func (s *Signal[T]) DisconnectAll() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.slots = nil
	s.mu.Unlock()
}
