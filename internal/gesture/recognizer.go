package gesture

import (
	"math"
	"sync"
)

// DefaultSlop is the distance (px) the pointer travels before the recognizer
// decides between a horizontal drag and a vertical scroll.
const DefaultSlop = 4.0

type axis int

const (
	axisUndecided axis = iota
	axisHorizontal
	axisVertical
)

// Recognizer turns pointer down/move/up positions into drag events. Movement
// that is mostly vertical is left to scrolling and produces no DragMove.
// Goroutine-safe.
type Recognizer struct {
	slop float64

	mu       sync.Mutex
	handlers map[int]Handler
	nextID   int

	down   bool
	startX float64
	startY float64
	lastDX float64
	axis   axis
}

var _ Source = (*Recognizer)(nil)

// NewRecognizer creates a Recognizer with DefaultSlop.
func NewRecognizer() *Recognizer {
	return &Recognizer{slop: DefaultSlop, handlers: make(map[int]Handler)}
}

// Attach registers h. Detach is synchronous and idempotent.
func (r *Recognizer) Attach(h Handler) (detach func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.handlers[id] = h
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.handlers, id)
		r.mu.Unlock()
	}
}

// Active reports whether a pointer is down.
func (r *Recognizer) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.down
}

// Down starts a gesture at (x, y).
func (r *Recognizer) Down(x, y float64) {
	r.mu.Lock()
	r.down = true
	r.startX, r.startY = x, y
	r.lastDX = 0
	r.axis = axisUndecided
	r.mu.Unlock()

	r.emit(Event{Kind: DragStart})
}

// Move reports the pointer at (x, y).
func (r *Recognizer) Move(x, y float64) {
	r.mu.Lock()
	if !r.down {
		r.mu.Unlock()
		return
	}
	dx, dy := x-r.startX, y-r.startY
	if r.axis == axisUndecided && math.Max(math.Abs(dx), math.Abs(dy)) >= r.slop {
		if math.Abs(dx) >= math.Abs(dy) {
			r.axis = axisHorizontal
		} else {
			r.axis = axisVertical
		}
	}
	horizontal := r.axis == axisHorizontal
	if horizontal {
		r.lastDX = dx
	}
	r.mu.Unlock()

	if horizontal {
		r.emit(Event{Kind: DragMove, Direction: directionOf(dx), Delta: dx})
	}
}

// Up ends the gesture at (x, y). A gesture that never locked to the
// horizontal axis ends with a zero delta.
func (r *Recognizer) Up(x, y float64) {
	r.mu.Lock()
	if !r.down {
		r.mu.Unlock()
		return
	}
	dx, dy := x-r.startX, y-r.startY
	if r.axis == axisUndecided && math.Abs(dx) > math.Abs(dy) {
		r.axis = axisHorizontal
	}
	if r.axis != axisHorizontal {
		dx = 0
	}
	r.down = false
	r.axis = axisUndecided
	r.mu.Unlock()

	r.emit(Event{Kind: DragEnd, Direction: directionOf(dx), Delta: dx})
}

// Cancel ends the gesture where it last was, e.g. when the pointer leaves
// the item.
func (r *Recognizer) Cancel() {
	r.mu.Lock()
	if !r.down {
		r.mu.Unlock()
		return
	}
	dx := r.lastDX
	r.down = false
	r.axis = axisUndecided
	r.mu.Unlock()

	r.emit(Event{Kind: DragEnd, Direction: directionOf(dx), Delta: dx})
}

// emit delivers e to a snapshot of the handlers outside the lock, so a
// handler may detach itself.
func (r *Recognizer) emit(e Event) {
	r.mu.Lock()
	hs := make([]Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		hs = append(hs, h)
	}
	r.mu.Unlock()

	for _, h := range hs {
		h.HandleGesture(e)
	}
}
