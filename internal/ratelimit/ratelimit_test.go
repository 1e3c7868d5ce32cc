package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowConsumesTokens(t *testing.T) {
	l := New(3, 0.0001) // effectively no refill during the test

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("Allow() call %d should succeed within burst", i+1)
		}
	}
	if l.Allow() {
		t.Error("Allow() beyond burst should fail")
	}
}

func TestRefill(t *testing.T) {
	l := New(1, 100) // fast refill for the test

	if !l.Allow() {
		t.Fatal("first Allow() should succeed")
	}
	if l.Allow() {
		t.Fatal("second immediate Allow() should fail")
	}

	time.Sleep(20 * time.Millisecond)
	if !l.Allow() {
		t.Error("Allow() after refill window should succeed")
	}
}

func TestWaitRespectsContext(t *testing.T) {
	l := New(1, 0.001) // near-zero refill so Wait must block
	if !l.Allow() {
		t.Fatal("priming Allow() should succeed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("Wait should return the context error when no token arrives")
	}
}

func TestReset(t *testing.T) {
	l := New(2, 0.0001)
	l.Allow()
	l.Allow()

	l.Reset()
	if got := l.Available(); got < 2 {
		t.Errorf("Available after Reset = %v, want 2", got)
	}
}
