package engine

import (
	"testing"
	"time"
)

func TestTickerLifecycle(t *testing.T) {
	tk := NewTicker()
	if tk.Running() || tk.C() != nil {
		t.Fatal("New ticker must be stopped with a nil channel")
	}

	tk.Reset(5 * time.Millisecond)
	if !tk.Running() || tk.Period() != 5*time.Millisecond {
		t.Fatalf("Expected running at 5ms, got running=%v period=%v", tk.Running(), tk.Period())
	}
	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("Ticker never fired")
	}

	old := tk.C()
	tk.Reset(10 * time.Millisecond)
	if tk.C() == old {
		t.Errorf("Reset must replace the underlying timer")
	}

	tk.Stop()
	tk.Stop()
	if tk.Running() || tk.C() != nil {
		t.Errorf("Stopped ticker must report stopped with a nil channel")
	}

	tk.Reset(0)
	if tk.Running() {
		t.Errorf("A non-positive period must leave the ticker stopped")
	}
}
