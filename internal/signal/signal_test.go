package signal

import "testing"

func TestSignalEmitOrder(t *testing.T) {
	var s Signal[int]
	var got []string
	s.Connect(func(v int) { got = append(got, "a") })
	s.Connect(func(v int) { got = append(got, "b") })
	s.Emit(1)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestSubscriptionRelease(t *testing.T) {
	var s Signal[string]
	calls := 0
	sub := s.Connect(func(string) { calls++ })
	s.Emit("x")
	sub.Release()
	sub.Release()
	s.Emit("y")
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if s.Len() != 0 {
		t.Fatalf("expected no handlers, got %d", s.Len())
	}
}

func TestReleaseDuringEmit(t *testing.T) {
	var s Signal[int]
	calls := 0
	var second *Subscription
	s.Connect(func(int) { second.Release() })
	second = s.Connect(func(int) { calls++ })
	s.Emit(1)
	s.Emit(2)
	if calls != 1 {
		t.Fatalf("expected handler snapshot to run once, got %d", calls)
	}
}

func TestBlockSuppressesEmit(t *testing.T) {
	var s Signal[int]
	calls := 0
	s.Connect(func(int) { calls++ })
	s.Block(func() { s.Emit(1) })
	s.Emit(2)
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestScopeRelease(t *testing.T) {
	var s Signal[int]
	var scope Scope
	calls := 0
	scope.Add(s.Connect(func(int) { calls++ }), s.Connect(func(int) { calls++ }))
	s.Emit(1)
	scope.Release()
	scope.Release()
	s.Emit(2)
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	scope.Add(s.Connect(func(int) { calls++ }))
	s.Emit(3)
	if calls != 2 {
		t.Fatalf("expected late subscription to be released, got %d calls", calls)
	}
	if !scope.Released() {
		t.Fatalf("expected scope released")
	}
}
