package otel

import (
	"maps"
	"strings"
	"sync"
)

// DefaultRingSize is the capacity used when NewRingBuffer gets a
// non-positive size.
const DefaultRingSize = 1024

// RingBuffer keeps the most recent events for the debug overlay.
// Goroutine-safe.
type RingBuffer struct {
	mu     sync.Mutex
	events []Event
	pushed uint64 // events ever pushed; the next slot is pushed % cap
}

// NewRingBuffer creates a ring buffer holding size events.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &RingBuffer{events: make([]Event, size)}
}

// Push stores e, overwriting the oldest event when full. Extra is cloned so
// the caller may reuse its map.
func (r *RingBuffer) Push(e Event) {
	e.Extra = maps.Clone(e.Extra)

	r.mu.Lock()
	r.events[r.pushed%uint64(len(r.events))] = e
	r.pushed++
	r.mu.Unlock()
}

// Len returns the number of events held.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held()
}

// Cap returns the capacity.
func (r *RingBuffer) Cap() int { return len(r.events) }

// Pushed returns the number of events ever pushed, overwritten ones included.
func (r *RingBuffer) Pushed() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pushed
}

func (r *RingBuffer) held() int {
	if r.pushed < uint64(len(r.events)) {
		return int(r.pushed)
	}
	return len(r.events)
}

// Last returns the n most recent events, oldest first.
func (r *RingBuffer) Last(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	n = min(n, r.held())
	if n <= 0 {
		return nil
	}
	out := make([]Event, n)
	first := r.pushed - uint64(n)
	for i := range out {
		out[i] = r.events[(first+uint64(i))%uint64(len(r.events))]
	}
	return out
}

// Recent returns the n most recent events whose kind starts with prefix,
// oldest first. An empty prefix matches everything.
func (r *RingBuffer) Recent(prefix string, n int) []Event {
	if prefix == "" {
		return r.Last(n)
	}
	if n <= 0 {
		return nil
	}

	all := r.Last(r.Cap())
	var out []Event
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		if strings.HasPrefix(string(all[i].Kind), prefix) {
			out = append(out, all[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Stats counts the held events by kind.
func (r *RingBuffer) Stats() map[EventKind]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[EventKind]int)
	for i := 0; i < r.held(); i++ {
		counts[r.events[i].Kind]++
	}
	return counts
}
