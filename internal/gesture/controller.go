package gesture

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/harmonica"
)

// Spring parameters for the return to zero. Critically damped at 60 fps.
const (
	springFPS       = 60
	springFrequency = 40.0
	springDamping   = 1.0
)

// springFrame is the time step the spring is tuned for.
const springFrame = time.Second / springFPS

// Controller is the slide state machine of one list item.
//
//	Idle          --|d| > ThresholdMin-->  Dragging
//	Dragging      --release-->             Committed (one callback) or SpringingBack
//	Idle          --release-->             SpringingBack (offset 0, no callback)
//	Committed     --Frame-->               SpringingBack
//	SpringingBack --Frame, settled-->      Idle
//	Committed, SpringingBack --DragStart--> Dragging
//
// Move events are coalesced: only the latest pending delta is applied, once
// per Frame. Goroutine-safe; callbacks run without the lock held.
type Controller struct {
	viewport   float64
	onLeading  func()
	onTrailing func()
	onFault    func(any)
	clock      func() time.Time
	spring     harmonica.Spring

	mu         sync.Mutex
	state      State
	velocity   float64
	lastRaw    float64
	latched    bool
	pending    float64
	hasPending bool
	releasedAt time.Time
	detach     func()
	closed     bool
}

var _ Handler = (*Controller)(nil)

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.clock = now }
}

// WithFaultHandler receives the value of a panicking callback. The
// controller resets to Idle after a fault.
func WithFaultHandler(fn func(any)) Option {
	return func(c *Controller) { c.onFault = fn }
}

// NewController creates a Controller for an item viewport px wide. leading
// fires on a committed Left swipe, trailing on a committed Right swipe;
// either may be nil.
func NewController(viewport float64, leading, trailing func(), opts ...Option) *Controller {
	c := &Controller{
		viewport:   viewport,
		onLeading:  leading,
		onTrailing: trailing,
		clock:      time.Now,
		spring:     harmonica.NewSpring(harmonica.FPS(springFPS), springFrequency, springDamping),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bind attaches the controller to src. Close detaches it.
func (c *Controller) Bind(src Source) {
	detach := src.Attach(c)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		detach()
		return
	}
	prev := c.detach
	c.detach = detach
	c.mu.Unlock()

	if prev != nil {
		prev()
	}
}

// Close detaches the controller from its source. No callback fires after
// Close returns.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	detach := c.detach
	c.detach = nil
	c.mu.Unlock()

	if detach != nil {
		detach()
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetViewport changes the width the resistance curve is scaled to.
func (c *Controller) SetViewport(w float64) {
	c.mu.Lock()
	c.viewport = w
	c.mu.Unlock()
}

// Animating reports whether the controller needs further frames.
func (c *Controller) Animating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasPending || c.state.Phase == Committed || c.state.Phase == SpringingBack
}

// HandleGesture implements Handler.
func (c *Controller) HandleGesture(e Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	var fire func()
	switch e.Kind {
	case DragStart:
		if c.state.Phase == Committed || c.state.Phase == SpringingBack {
			// Interrupt the spring-back where it is.
			c.state.Phase = Dragging
			c.state.Direction = None
			c.velocity = 0
		}
		c.lastRaw = 0
		c.latched = false
		c.hasPending = false
	case DragMove:
		c.pending = e.Delta
		c.hasPending = true
	case DragEnd:
		c.hasPending = false
		c.apply(e.Delta)
		fire = c.release()
	}
	c.mu.Unlock()

	if fire != nil {
		c.run(fire)
	}
}

// apply moves the state machine to raw delta d. Caller holds c.mu.
func (c *Controller) apply(d float64) {
	switch c.state.Phase {
	case Idle:
		if math.Abs(d) <= ThresholdMin {
			return
		}
		c.state.Phase = Dragging
	case Dragging:
	default:
		return
	}

	c.lastRaw = d
	if c.latched {
		return
	}
	switch abs := math.Abs(d); {
	case abs >= ThresholdMax:
		c.state.Offset = Resist(math.Copysign(ThresholdMax, d), c.viewport)
		c.latched = true
	case abs > ThresholdMin:
		c.state.Offset = Resist(d, c.viewport)
	}
}

// release ends a drag and returns the callback to fire, if any. Caller holds
// c.mu.
func (c *Controller) release() func() {
	now := c.clock()
	switch c.state.Phase {
	case Idle:
		c.state = State{Phase: SpringingBack}
		c.releasedAt = now
		return nil
	case Dragging:
	default:
		return nil
	}

	c.latched = false
	c.releasedAt = now
	if math.Abs(c.lastRaw) <= ThresholdMin {
		c.state.Phase = SpringingBack
		c.state.Direction = None
		return nil
	}

	c.state.Phase = Committed
	c.state.Direction = directionOf(c.lastRaw)
	if c.state.Direction == Left {
		return c.onLeading
	}
	return c.onTrailing
}

// run invokes a callback, converting a panic into a fault and a reset.
func (c *Controller) run(fn func()) {
	defer func() {
		if v := recover(); v != nil {
			c.Reset()
			if c.onFault != nil {
				c.onFault(v)
			}
		}
	}()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed {
		fn()
	}
}

// Reset puts the controller back to Idle at offset 0.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.state = State{}
	c.velocity = 0
	c.lastRaw = 0
	c.latched = false
	c.hasPending = false
	c.mu.Unlock()
}

// Frame applies the pending move and advances the spring-back. It reports
// whether another frame is needed.
func (c *Controller) Frame(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasPending {
		c.apply(c.pending)
		c.hasPending = false
	}

	if c.state.Phase == Committed {
		c.state.Phase = SpringingBack
	}
	if c.state.Phase != SpringingBack {
		return false
	}

	// Snap on the last frame that lands inside the deadline; the next one
	// would be too late.
	if now.Sub(c.releasedAt)+springFrame > SpringBackDuration || c.state.Offset == 0 {
		c.state = State{}
		c.velocity = 0
		return false
	}
	c.state.Offset, c.velocity = c.spring.Update(c.state.Offset, c.velocity, 0)
	return true
}

func (c *Controller) String() string {
	s := c.State()
	return fmt.Sprintf("%s/%s %.1f", s.Phase, s.Direction, s.Offset)
}
