/*
Package window implements approximate counting of true events over a sliding
window of a boolean stream.

 1. WindowCounter: the DGIM (Datar, Gionis, Indyk, Motwani) bucket engine. It keeps
    O(log N) buckets for a retention horizon N and answers "how many ones among the
    last k positions" with a relative error of at most 50%.
    Refer: http://infolab.stanford.edu/~ullman/mmds/ch4.pdf (section 4.6)
 2. ExactCounter: a reference counter storing every true event. It's meant to
    validate WindowCounter and has unbounded memory.
 3. Registry: an explicit, caller-owned mapping from labels to counters.

A single counter is not safe for concurrent use: inserts must be sequenced by the
caller and no Count may run while an Insert is in flight. Distinct counters share
no state. Registry serializes access per counter.
*/
package window

import (
	"errors"
	"fmt"
)

// MissingTimestamp marks an event which can't be placed on the timeline.
// Every negative timestamp is treated the same way.
const MissingTimestamp int64 = -1

var (
	// ErrInvalidConfiguration is returned when a counter is created with a
	// retention horizon smaller than 1.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrRange is returned by Count when the window is wider than the
	// retention horizon of the counter.
	ErrRange = errors.New("window exceeds retention horizon")

	// ErrInvariantViolation is returned when two buckets of different sizes
	// are merged. It can't be reached through Insert.
	ErrInvariantViolation = errors.New("bucket invariant violated")

	// ErrUnknownCounter is returned by Registry for labels it doesn't hold.
	ErrUnknownCounter = errors.New("unknown counter")
)

// BaseWindowCounter is the behaviour shared by the approximate and the exact counter
type BaseWindowCounter interface {
	Label() string
	Horizon() int64
	Clock() int64
	Insert(timestamp int64, bit bool)
	Count(k int64) (uint64, error)
}

// AbstractWindowCounter holds the state common to every counter.
// _horizon_ is the maximum span of history retained
// _label_ names the tracked signal
// _clock_ is the latest timestamp seen so far
type AbstractWindowCounter struct {
	BaseWindowCounter
	horizon int64
	label   string
	clock   int64
}

// MakeAbstractWindowCounter validates _horizon_ and returns the common counter state
func MakeAbstractWindowCounter(horizon int64, label string) (*AbstractWindowCounter, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("dgimstat: retention horizon must be at least 1, got %d: %w", horizon, ErrInvalidConfiguration)
	}
	w := &AbstractWindowCounter{}
	w.horizon = horizon
	w.label = label
	return w, nil
}

// Label returns the name of the counter
func (w *AbstractWindowCounter) Label() string {
	return w.label
}

// Horizon returns the retention horizon N
func (w *AbstractWindowCounter) Horizon() int64 {
	return w.horizon
}

// Clock returns the latest timestamp observed
func (w *AbstractWindowCounter) Clock() int64 {
	return w.clock
}

// advance moves the clock forward to _timestamp_. It returns false for
// missing timestamps, which must be dropped by the caller.
func (w *AbstractWindowCounter) advance(timestamp int64) bool {
	if timestamp < 0 {
		return false
	}
	if timestamp > w.clock {
		w.clock = timestamp
	}
	return true
}

// checkWindow reports whether _k_ selects a non-empty window
func (w *AbstractWindowCounter) checkWindow(k int64) (bool, error) {
	if k < 1 {
		return false, nil
	}
	if k > w.horizon {
		return false, fmt.Errorf("dgimstat: k=%d is larger than the retention horizon %d of counter %q: %w", k, w.horizon, w.label, ErrRange)
	}
	return true, nil
}
