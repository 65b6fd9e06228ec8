package h2core

import (
	"math"
	"testing"
)

func TestWindowTryIncreaseOverflow(t *testing.T) {
	w := NewWindow(math.MaxInt32 - 10)
	if err := w.TryIncrease(5); err != nil {
		t.Fatalf("unexpected overflow error: %v", err)
	}
	if w.Size() != math.MaxInt32-5 {
		t.Fatalf("size = %d, want %d", w.Size(), math.MaxInt32-5)
	}
	if err := w.TryIncrease(6); err == nil {
		t.Fatalf("expected overflow error, got none (size=%d)", w.Size())
	}
}

func TestWindowTryDecreaseGoesNegative(t *testing.T) {
	w := NewWindow(100)
	if err := w.TryDecrease(150); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Size() != -50 {
		t.Fatalf("size = %d, want -50", w.Size())
	}
}

func TestWindowAdjustRetroactiveShrink(t *testing.T) {
	// Scenario 4: retroactive SETTINGS shrinking INITIAL_WINDOW_SIZE
	// from 65535 to 30000 must leave the stream's out-window at
	// 30000, and a later grow to 70000 must add back the delta.
	w := NewWindow(65535)
	w.Adjust(30000 - 65535)
	if w.Size() != 30000 {
		t.Fatalf("size after shrink = %d, want 30000", w.Size())
	}
	w.Adjust(70000 - 30000)
	if w.Size() != 70000 {
		t.Fatalf("size after grow = %d, want 70000", w.Size())
	}
}

func TestWindowTryDecreaseRejectsNegativeDelta(t *testing.T) {
	w := NewWindow(10)
	if err := w.TryDecrease(-1); err == nil {
		t.Fatalf("expected error for negative delta")
	}
}
