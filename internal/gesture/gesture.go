// Package gesture turns horizontal pointer drags on list items into committed
// swipe actions.
//
// A Recognizer classifies raw pointer positions into drag events. A
// Controller consumes them, tracks the item's offset through a resistance
// curve, fires exactly one callback per committed swipe and springs the
// offset back to zero. A Board keeps one recognizer and controller per
// visible item.
//
// The offset is the only state; renderers derive any visual shift from
// (offset, phase) every frame.
package gesture

import (
	"math"
	"time"
)

const (
	// ThresholdMin is the drag distance (px) a gesture must strictly exceed
	// to leave Idle. Shorter drags are jitter.
	ThresholdMin = 10.0

	// ThresholdMax is the drag distance (px) at which the offset stops
	// growing until release.
	ThresholdMax = 160.0

	// SpringBackDuration bounds the return of the offset to zero after
	// release.
	SpringBackDuration = 130 * time.Millisecond
)

// Phase is the controller state.
type Phase int

const (
	Idle Phase = iota
	Dragging
	Committed
	SpringingBack
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Committed:
		return "committed"
	case SpringingBack:
		return "springing-back"
	}
	return "unknown"
}

// Direction is the horizontal direction of a drag.
type Direction int

const (
	None Direction = iota
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "none"
}

// directionOf returns the direction of a signed delta.
func directionOf(delta float64) Direction {
	switch {
	case delta < 0:
		return Left
	case delta > 0:
		return Right
	}
	return None
}

// State is a controller's observable state.
type State struct {
	Offset    float64
	Phase     Phase
	Direction Direction
}

// EventKind classifies drag events.
type EventKind int

const (
	DragStart EventKind = iota
	DragMove
	DragEnd
)

// Event is one drag event. Delta is the signed horizontal distance from the
// pointer-down position.
type Event struct {
	Kind      EventKind
	Direction Direction
	Delta     float64
}

// Handler consumes drag events.
type Handler interface {
	HandleGesture(Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Event)

func (f HandlerFunc) HandleGesture(e Event) { f(e) }

// Source is anything that produces drag events. Attach registers h and
// returns a func that detaches it. A delivery already under way on another
// goroutine may still reach h, so handlers with teardown semantics (see
// Controller.Close) also guard on their own closed state.
type Source interface {
	Attach(h Handler) (detach func())
}

// Resist maps a raw drag delta to a displayed offset with an ease-in
// circular curve scaled to viewport:
//
//	sign(d) * (1 - sqrt(1 - (|d|/w)^2)) * w
//
// Deltas beyond the viewport clamp to it.
func Resist(delta, viewport float64) float64 {
	if viewport <= 0 || delta == 0 {
		return 0
	}
	x := math.Abs(delta) / viewport
	if x > 1 {
		x = 1
	}
	return math.Copysign((1-math.Sqrt(1-x*x))*viewport, delta)
}
