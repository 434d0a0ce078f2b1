package gesture

import (
	"sync"
	"time"
)

type slot struct {
	rec  *Recognizer
	ctrl *Controller
}

// Board owns one Recognizer and Controller per list item, keyed by item id.
// Goroutine-safe.
type Board struct {
	leading  func(id string)
	trailing func(id string)
	onFault  func(id string, v any)
	clock    func() time.Time

	mu       sync.Mutex
	viewport float64
	slots    map[string]*slot
}

// BoardOption configures a Board.
type BoardOption func(*Board)

// WithBoardClock replaces time.Now for every controller on the board.
func WithBoardClock(now func() time.Time) BoardOption {
	return func(b *Board) { b.clock = now }
}

// WithItemFault receives panics raised by an item's callback or frame. The
// item is reset; the rest of the board is unaffected.
func WithItemFault(fn func(id string, v any)) BoardOption {
	return func(b *Board) { b.onFault = fn }
}

// NewBoard creates a Board. leading and trailing receive the id of the item
// whose swipe committed.
func NewBoard(viewport float64, leading, trailing func(id string), opts ...BoardOption) *Board {
	b := &Board{
		leading:  leading,
		trailing: trailing,
		clock:    time.Now,
		viewport: viewport,
		slots:    make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Recognizer returns the recognizer for id, creating the item if needed.
func (b *Board) Recognizer(id string) *Recognizer {
	return b.ensure(id).rec
}

func (b *Board) ensure(id string) *slot {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.slots[id]; ok {
		return s
	}

	bind := func(fn func(string)) func() {
		if fn == nil {
			return nil
		}
		return func() { fn(id) }
	}
	ctrl := NewController(b.viewport, bind(b.leading), bind(b.trailing),
		WithClock(b.clock),
		WithFaultHandler(func(v any) { b.fault(id, v) }),
	)
	rec := NewRecognizer()
	ctrl.Bind(rec)

	s := &slot{rec: rec, ctrl: ctrl}
	b.slots[id] = s
	return s
}

func (b *Board) fault(id string, v any) {
	if b.onFault != nil {
		b.onFault(id, v)
	}
}

// State returns the state of id. Unknown ids are Idle.
func (b *Board) State(id string) State {
	b.mu.Lock()
	s, ok := b.slots[id]
	b.mu.Unlock()
	if !ok {
		return State{}
	}
	return s.ctrl.State()
}

// Remove closes and forgets id.
func (b *Board) Remove(id string) {
	b.mu.Lock()
	s, ok := b.slots[id]
	delete(b.slots, id)
	b.mu.Unlock()

	if ok {
		s.ctrl.Close()
	}
}

// Sync removes every item not in ids.
func (b *Board) Sync(ids []string) {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}

	b.mu.Lock()
	var gone []*slot
	for id, s := range b.slots {
		if _, ok := keep[id]; !ok {
			gone = append(gone, s)
			delete(b.slots, id)
		}
	}
	b.mu.Unlock()

	for _, s := range gone {
		s.ctrl.Close()
	}
}

// Len returns the number of tracked items.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.slots)
}

// SetViewport rescales every item.
func (b *Board) SetViewport(w float64) {
	b.mu.Lock()
	b.viewport = w
	ctrls := b.controllers()
	b.mu.Unlock()

	for _, c := range ctrls {
		c.SetViewport(w)
	}
}

// Frame advances every item and reports whether any still animates.
func (b *Board) Frame(now time.Time) bool {
	b.mu.Lock()
	ids := make([]string, 0, len(b.slots))
	ctrls := make([]*Controller, 0, len(b.slots))
	for id, s := range b.slots {
		ids = append(ids, id)
		ctrls = append(ctrls, s.ctrl)
	}
	b.mu.Unlock()

	animating := false
	for i, c := range ctrls {
		if b.frameOne(ids[i], c, now) {
			animating = true
		}
	}
	return animating
}

func (b *Board) frameOne(id string, c *Controller, now time.Time) (more bool) {
	defer func() {
		if v := recover(); v != nil {
			c.Reset()
			b.fault(id, v)
			more = false
		}
	}()
	return c.Frame(now)
}

// Animating reports whether any item needs frames.
func (b *Board) Animating() bool {
	b.mu.Lock()
	ctrls := b.controllers()
	b.mu.Unlock()

	for _, c := range ctrls {
		if c.Animating() {
			return true
		}
	}
	return false
}

// controllers returns the current controllers. Caller holds b.mu.
func (b *Board) controllers() []*Controller {
	out := make([]*Controller, 0, len(b.slots))
	for _, s := range b.slots {
		out = append(out, s.ctrl)
	}
	return out
}
