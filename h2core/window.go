// Package h2core implements the shared connection machinery of an
// HTTP/2 engine: flow-control windows, per-stream state, the
// connection's stream table, the egress scheduler and the ingress
// dispatcher. It does not dial, accept, or speak HPACK to the wire by
// itself — those are supplied by the role layer and the frame codec
// in the parent package.
package h2core

import "math"

const (
	maxWindowSize int32 = math.MaxInt32
)

// Window is a signed 32-bit flow-control counter, per RFC 7540 §6.9.
//
// It may legitimately go negative after a peer shrinks
// SETTINGS_INITIAL_WINDOW_SIZE retroactively; only growth past
// 2^31-1 is rejected.
type Window struct {
	size int32
}

// NewWindow returns a Window initialized to n.
func NewWindow(n int32) Window {
	return Window{size: n}
}

// Size returns the current window value, possibly negative.
func (w *Window) Size() int32 {
	return w.size
}

// TryIncrease adds delta (0 <= delta <= 2^31-1, as WINDOW_UPDATE
// increments are themselves unsigned 31-bit) to the window. It fails
// with ErrFlowControlOverflow if the result would exceed 2^31-1.
func (w *Window) TryIncrease(delta uint32) error {
	if delta > uint32(maxWindowSize) {
		return ErrFlowControlOverflow
	}
	if int64(w.size)+int64(delta) > int64(maxWindowSize) {
		return ErrFlowControlOverflow
	}
	w.size += int32(delta)
	return nil
}

// TryDecrease subtracts delta from the window. delta must itself be a
// valid non-negative amount; the resulting window is allowed to go
// negative (retroactive SETTINGS shrinkage) or even below
// math.MinInt32+delta is rejected as a caller bug, not a protocol
// error, since nothing in the protocol ever decreases by more than a
// single frame's payload length.
func (w *Window) TryDecrease(delta int64) error {
	if delta < 0 {
		return ErrFlowControlOverflow
	}
	next := int64(w.size) - delta
	if next < math.MinInt32 {
		return ErrFlowControlOverflow
	}
	w.size = int32(next)
	return nil
}

// Adjust applies a signed delta directly, used when SETTINGS changes
// INITIAL_WINDOW_SIZE retroactively (the delta can be negative and is
// explicitly allowed to drive the window negative).
func (w *Window) Adjust(delta int32) {
	w.size += delta
}
