package gesture

import (
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testViewport = 375.0

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// drag feeds a drag through the controller one frame per delta.
func drag(c *Controller, clock *fakeClock, deltas ...float64) {
	c.HandleGesture(Event{Kind: DragStart})
	for _, d := range deltas {
		c.HandleGesture(Event{Kind: DragMove, Direction: directionOf(d), Delta: d})
		c.Frame(clock.Advance(16 * time.Millisecond))
	}
}

func release(c *Controller, d float64) {
	c.HandleGesture(Event{Kind: DragEnd, Direction: directionOf(d), Delta: d})
}

func TestSwipeRightCommitsAndSpringsBack(t *testing.T) {
	clock := newFakeClock()
	var leading, trailing counter
	c := NewController(testViewport, leading.inc, trailing.inc, WithClock(clock.Now))

	drag(c, clock, 0, 5, 30, 90)
	if got := c.State(); got.Phase != Dragging || got.Offset != Resist(90, testViewport) {
		t.Fatalf("expected dragging at Resist(90), got %+v", got)
	}

	release(c, 90)
	releasedAt := clock.Now()

	got := c.State()
	if got.Phase != Committed || got.Direction != Right {
		t.Fatalf("expected committed/right, got %s/%s", got.Phase, got.Direction)
	}
	if trailing.get() != 1 || leading.get() != 0 {
		t.Errorf("expected one trailing callback, got trailing=%d leading=%d", trailing.get(), leading.get())
	}

	// Frames until the spring-back deadline.
	for clock.Now().Sub(releasedAt) < SpringBackDuration {
		c.Frame(clock.Advance(16 * time.Millisecond))
	}
	got = c.State()
	if got.Offset != 0 || got.Phase != Idle || got.Direction != None {
		t.Errorf("expected idle at 0 by %v after release, got %+v", SpringBackDuration, got)
	}
	if trailing.get() != 1 {
		t.Errorf("callback fired %d times", trailing.get())
	}
}

func TestSwipeLeftFiresLeading(t *testing.T) {
	clock := newFakeClock()
	var leading, trailing counter
	c := NewController(testViewport, leading.inc, trailing.inc, WithClock(clock.Now))

	drag(c, clock, -20, -60)
	release(c, -60)

	if got := c.State(); got.Phase != Committed || got.Direction != Left {
		t.Fatalf("expected committed/left, got %+v", got)
	}
	if leading.get() != 1 || trailing.get() != 0 {
		t.Errorf("expected one leading callback, got leading=%d trailing=%d", leading.get(), trailing.get())
	}
}

func TestThresholdMinBoundary(t *testing.T) {
	tests := []struct {
		name   string
		deltas []float64
		final  float64
		commit bool
	}{
		{"never leaves idle at exactly min", []float64{5, 10}, 10, false},
		{"back to min before release", []float64{30, 10}, 10, false},
		{"just past min", []float64{10.5}, 10.5, true},
		{"jitter", []float64{3, -4, 2}, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			var fired counter
			c := NewController(testViewport, fired.inc, fired.inc, WithClock(clock.Now))

			drag(c, clock, tt.deltas...)
			release(c, tt.final)

			if tt.commit {
				if fired.get() != 1 || c.State().Phase != Committed {
					t.Errorf("expected commit, got %d callbacks, phase %s", fired.get(), c.State().Phase)
				}
				return
			}
			if fired.get() != 0 {
				t.Errorf("expected no callback, got %d", fired.get())
			}
			if got := c.State().Phase; got != SpringingBack {
				t.Errorf("expected springing-back, got %s", got)
			}
		})
	}
}

func TestOffsetLatchesAtThresholdMax(t *testing.T) {
	clock := newFakeClock()
	c := NewController(testViewport, nil, nil, WithClock(clock.Now))

	want := Resist(ThresholdMax, testViewport)
	drag(c, clock, 120, 160)
	if got := c.State().Offset; got != want {
		t.Fatalf("expected latch at %v, got %v", want, got)
	}

	drag2 := []float64{200, 300, 90}
	for _, d := range drag2 {
		c.HandleGesture(Event{Kind: DragMove, Delta: d})
		c.Frame(clock.Advance(16 * time.Millisecond))
		if got := c.State().Offset; got != want {
			t.Errorf("delta %v moved latched offset to %v", d, got)
		}
	}
}

func TestOffsetFollowsResistanceCurve(t *testing.T) {
	clock := newFakeClock()
	c := NewController(testViewport, nil, nil, WithClock(clock.Now))

	prev := 0.0
	for _, d := range []float64{20, 40, 80, 120, 150} {
		drag(c, clock, d)
		got := c.State().Offset
		if got != Resist(d, testViewport) {
			t.Errorf("delta %v: expected %v, got %v", d, Resist(d, testViewport), got)
		}
		if got <= prev || got > d {
			t.Errorf("delta %v: offset %v not monotone and resisted", d, got)
		}
		prev = got
	}
}

func TestMovesCoalescePerFrame(t *testing.T) {
	clock := newFakeClock()
	c := NewController(testViewport, nil, nil, WithClock(clock.Now))

	c.HandleGesture(Event{Kind: DragStart})
	for _, d := range []float64{20, 40, 60, 80} {
		c.HandleGesture(Event{Kind: DragMove, Delta: d})
	}
	if got := c.State().Phase; got != Idle {
		t.Fatalf("moves applied before a frame: %s", got)
	}
	if !c.Animating() {
		t.Error("pending move should request a frame")
	}

	c.Frame(clock.Now())
	if got := c.State().Offset; got != Resist(80, testViewport) {
		t.Errorf("expected latest delta applied, got %v", got)
	}
}

func TestReleaseFromIdleSpringsBackSilently(t *testing.T) {
	clock := newFakeClock()
	var fired counter
	c := NewController(testViewport, fired.inc, fired.inc, WithClock(clock.Now))

	release(c, 0)
	if got := c.State(); got.Phase != SpringingBack || got.Offset != 0 {
		t.Fatalf("expected springing-back at 0, got %+v", got)
	}
	if c.Frame(clock.Advance(time.Millisecond)) {
		t.Error("zero offset should settle on the next frame")
	}
	if got := c.State().Phase; got != Idle {
		t.Errorf("expected idle, got %s", got)
	}
	if fired.get() != 0 {
		t.Errorf("expected no callback, got %d", fired.get())
	}
}

func TestDragDuringSpringBackReenters(t *testing.T) {
	clock := newFakeClock()
	var fired counter
	c := NewController(testViewport, fired.inc, fired.inc, WithClock(clock.Now))

	drag(c, clock, 100)
	release(c, 100)
	c.Frame(clock.Advance(16 * time.Millisecond))
	mid := c.State()
	if mid.Phase != SpringingBack || mid.Offset == 0 {
		t.Fatalf("expected mid spring-back, got %+v", mid)
	}

	c.HandleGesture(Event{Kind: DragStart})
	got := c.State()
	if got.Phase != Dragging {
		t.Fatalf("expected re-entry to dragging, got %s", got.Phase)
	}
	if got.Offset != mid.Offset {
		t.Errorf("re-entry should keep offset %v, got %v", mid.Offset, got.Offset)
	}

	// A new drag replaces the offset and commits again.
	c.HandleGesture(Event{Kind: DragMove, Delta: -50})
	c.Frame(clock.Advance(16 * time.Millisecond))
	release(c, -50)
	if got := c.State(); got.Phase != Committed || got.Direction != Left {
		t.Errorf("expected second commit left, got %+v", got)
	}
	if fired.get() != 2 {
		t.Errorf("expected 2 callbacks, got %d", fired.get())
	}
}

func TestDragEndWithoutMovementAfterReentry(t *testing.T) {
	clock := newFakeClock()
	var fired counter
	c := NewController(testViewport, fired.inc, fired.inc, WithClock(clock.Now))

	drag(c, clock, 100)
	release(c, 100)
	c.Frame(clock.Advance(16 * time.Millisecond))

	c.HandleGesture(Event{Kind: DragStart})
	release(c, 0)
	if fired.get() != 1 {
		t.Errorf("tap during spring-back committed again: %d callbacks", fired.get())
	}
	if got := c.State().Phase; got != SpringingBack {
		t.Errorf("expected springing-back, got %s", got)
	}
}

func TestSpringBackIsBounded(t *testing.T) {
	clock := newFakeClock()
	c := NewController(testViewport, nil, nil, WithClock(clock.Now))

	drag(c, clock, 300)
	release(c, 300)

	// One late frame past the deadline snaps to rest.
	if c.Frame(clock.Advance(SpringBackDuration)) {
		t.Error("expected animation to end at the deadline")
	}
	if got := c.State(); got != (State{}) {
		t.Errorf("expected zero state, got %+v", got)
	}
}

func TestSpringBackSettlesWithinDeadlineAt60FPS(t *testing.T) {
	for _, d := range []float64{-300, -150, 40, 150, 300} {
		clock := newFakeClock()
		c := NewController(testViewport, nil, nil, WithClock(clock.Now))

		drag(c, clock, d)
		release(c, d)
		releasedAt := clock.Now()

		settled := time.Duration(-1)
		for i := 1; i <= 60; i++ {
			now := releasedAt.Add(time.Duration(i) * time.Second / 60)
			c.Frame(now)
			if c.State() == (State{}) {
				settled = now.Sub(releasedAt)
				break
			}
		}
		if settled < 0 || settled > SpringBackDuration {
			t.Errorf("drag %v: offset reached 0 after %v, want within %v", d, settled, SpringBackDuration)
		}
	}
}

func TestSpringBackMovesTowardZero(t *testing.T) {
	clock := newFakeClock()
	c := NewController(testViewport, nil, nil, WithClock(clock.Now))

	drag(c, clock, 150)
	release(c, 150)
	start := c.State().Offset

	prev := start
	for i := 0; i < 4; i++ {
		c.Frame(clock.Advance(16 * time.Millisecond))
		got := c.State().Offset
		if math.Abs(got) > math.Abs(prev) {
			t.Errorf("frame %d: offset grew from %v to %v", i, prev, got)
		}
		prev = got
	}
	if prev >= start {
		t.Errorf("offset did not decrease from %v", start)
	}
}

func TestCloseStopsCallbacks(t *testing.T) {
	clock := newFakeClock()
	var fired counter
	c := NewController(testViewport, fired.inc, fired.inc, WithClock(clock.Now))
	rec := NewRecognizer()
	c.Bind(rec)

	c.Close()

	rec.Down(0, 0)
	rec.Move(80, 0)
	rec.Up(80, 0)
	c.HandleGesture(Event{Kind: DragEnd, Delta: 80})

	if fired.get() != 0 {
		t.Errorf("callback fired after Close: %d", fired.get())
	}
	if got := c.State(); got != (State{}) {
		t.Errorf("closed controller changed state: %+v", got)
	}
}

func TestCallbackPanicResets(t *testing.T) {
	clock := newFakeClock()
	var faults []any
	c := NewController(testViewport, nil, func() { panic("boom") },
		WithClock(clock.Now),
		WithFaultHandler(func(v any) { faults = append(faults, v) }),
	)

	drag(c, clock, 60)
	release(c, 60)

	if len(faults) != 1 || faults[0] != "boom" {
		t.Fatalf("expected one fault, got %v", faults)
	}
	if got := c.State(); got != (State{}) {
		t.Errorf("expected reset after fault, got %+v", got)
	}

	// Still usable.
	drag(c, clock, 40)
	if got := c.State().Phase; got != Dragging {
		t.Errorf("expected dragging after fault, got %s", got)
	}
}

func TestConcurrentDelivery(t *testing.T) {
	c := NewController(testViewport, func() {}, func() {})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.HandleGesture(Event{Kind: DragStart})
				c.HandleGesture(Event{Kind: DragMove, Delta: float64(j - 50)})
				c.Frame(time.Now())
				c.HandleGesture(Event{Kind: DragEnd, Delta: float64(i*10 - 40)})
			}
		}(i)
	}
	wg.Wait()

	for c.Frame(time.Now().Add(time.Second)) {
	}
	if got := c.State(); got != (State{}) {
		t.Errorf("expected rest state, got %+v", got)
	}
}
