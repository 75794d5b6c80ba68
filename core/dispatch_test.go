package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLoopRunsInPostOrder(t *testing.T) {
	loop := NewLoop()
	var got []int
	for i := range 5 {
		loop.Dispatch(func() { got = append(got, i) })
	}
	if loop.Pending() != 5 {
		t.Fatalf("expected 5 pending, got %d", loop.Pending())
	}
	loop.Drain()
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order: %v", got)
		}
	}
}

func TestLoopDrainsNestedDispatch(t *testing.T) {
	loop := NewLoop()
	var got []string
	loop.Dispatch(func() {
		got = append(got, "outer")
		loop.Dispatch(func() { got = append(got, "inner") })
	})
	loop.Drain()
	if len(got) != 2 || got[1] != "inner" {
		t.Fatalf("expected nested func drained, got %v", got)
	}
}

func TestLoopRunUntilDrainsBeforeReturn(t *testing.T) {
	loop := NewLoop()
	done := make(chan struct{})
	var mu sync.Mutex
	count := 0
	go func() {
		for range 100 {
			loop.Dispatch(func() {
				mu.Lock()
				count++
				mu.Unlock()
			})
		}
		close(done)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := loop.RunUntil(ctx, done); err != nil {
		t.Fatalf("run until: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if count != 100 {
		t.Fatalf("expected 100 funcs run, got %d", count)
	}
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestLoopCall(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go func() { _ = loop.Run(ctx) }()
	ran := false
	if err := loop.Call(ctx, func() { ran = true }); err != nil {
		t.Fatalf("call: %v", err)
	}
	if !ran {
		t.Fatalf("expected func to run")
	}
}
