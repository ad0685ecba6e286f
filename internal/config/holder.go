package config

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrNoSnapshot is returned by a Holder that was never given a snapshot
var ErrNoSnapshot = errors.New("no configuration snapshot loaded")

// ErrSnapshotExpired is returned when the current snapshot is past its validity window
var ErrSnapshotExpired = errors.New("configuration snapshot expired")

// Holder publishes the current snapshot. Swaps replace the whole snapshot;
// evaluations already holding the previous one keep using it.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder with an initial snapshot (may be nil)
func NewHolder(s *Snapshot) *Holder {
	h := &Holder{}
	if s != nil {
		h.current.Store(s)
	}
	return h
}

// Current snapshot or nil
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Swap installs next and returns the previous snapshot
func (h *Holder) Swap(next *Snapshot) *Snapshot {
	return h.current.Swap(next)
}

// Valid returns the current snapshot if it is still inside its validity window.
func (h *Holder) Valid(now time.Time) (*Snapshot, error) {
	s := h.current.Load()
	if s == nil {
		return nil, ErrNoSnapshot
	}
	if s.Expired(now) {
		return nil, ErrSnapshotExpired
	}
	return s, nil
}
