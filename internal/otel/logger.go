package otel

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// queueSize bounds the events waiting for the writer. Emit drops beyond it
// rather than stall the UI loop.
const queueSize = 4096

// Logger writes events as JSONL from one background goroutine and mirrors
// each event into the attached ring buffer. Goroutine-safe. A nil *Logger
// discards everything, so components can be built without one.
type Logger struct {
	session string
	queue   chan Event
	out     *bufio.Writer
	ring    atomic.Pointer[RingBuffer]
	dropped atomic.Uint64
	closing atomic.Bool
	stopped chan struct{}
	once    sync.Once
}

// NewLogger starts a Logger writing to w. Close flushes and stops it.
func NewLogger(w io.Writer) *Logger {
	var id [8]byte
	_, _ = rand.Read(id[:])

	l := &Logger{
		session: hex.EncodeToString(id[:]),
		queue:   make(chan Event, queueSize),
		out:     bufio.NewWriter(w),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

// NewNullLogger returns a Logger whose JSONL goes nowhere. The ring buffer
// still receives events.
func NewNullLogger() *Logger {
	return NewLogger(io.Discard)
}

// run is the only goroutine touching l.out. It flushes whenever the queue
// runs dry so a crash loses at most the events of one burst.
func (l *Logger) run() {
	defer close(l.stopped)
	enc := json.NewEncoder(l.out)
	for e := range l.queue {
		if rb := l.ring.Load(); rb != nil {
			rb.Push(e)
		}
		if err := enc.Encode(e); err != nil {
			l.dropped.Add(1)
			continue
		}
		if len(l.queue) == 0 {
			if err := l.out.Flush(); err != nil {
				l.dropped.Add(1)
			}
		}
	}
	if err := l.out.Flush(); err != nil {
		l.dropped.Add(1)
	}
}

// Emit queues e, stamping the time when unset and the session id. It never
// blocks: a full queue or a closed logger counts the event as dropped.
func (l *Logger) Emit(e Event) {
	if l == nil {
		return
	}
	if l.closing.Load() {
		l.dropped.Add(1)
		return
	}
	// Close can win the race between the check above and the send.
	defer func() {
		if recover() != nil {
			l.dropped.Add(1)
		}
	}()

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.SessionID = l.session

	select {
	case l.queue <- e:
	default:
		l.dropped.Add(1)
	}
}

// SetRingBuffer mirrors later events into rb. Nil detaches.
func (l *Logger) SetRingBuffer(rb *RingBuffer) {
	if l == nil {
		return
	}
	l.ring.Store(rb)
}

// Dropped returns the number of events lost so far.
func (l *Logger) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.dropped.Load()
}

// Session returns the random id stamped on this run's events.
func (l *Logger) Session() string {
	if l == nil {
		return ""
	}
	return l.session
}

// Close drains the queue and stops the writer. Emit after Close drops.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.closing.Store(true)
		close(l.queue)
		<-l.stopped
	})
}

// For returns a Scope stamping comp on every event.
func (l *Logger) For(comp string) Scope {
	return Scope{l: l, e: Event{Comp: comp}}
}

// Scope is an event template bound to a logger. Setters return a copy, so a
// scope built once per key can be narrowed per call.
type Scope struct {
	l *Logger
	e Event
}

// Stream sets the cache key fields.
func (s Scope) Stream(id string, unread bool) Scope {
	s.e.Stream, s.e.Unread = id, unread
	return s
}

// Item sets the item id.
func (s Scope) Item(id string) Scope {
	s.e.ItemID = id
	return s
}

// Cursor sets the continuation cursor.
func (s Scope) Cursor(c string) Scope {
	s.e.Cursor = c
	return s
}

// Took sets the duration.
func (s Scope) Took(d time.Duration) Scope {
	s.e.Dur = d
	return s
}

// Count sets the count.
func (s Scope) Count(n int) Scope {
	s.e.Count = n
	return s
}

// Source sets the feed source name.
func (s Scope) Source(name string) Scope {
	s.e.Source = name
	return s
}

// Msg sets the free-text message.
func (s Scope) Msg(m string) Scope {
	s.e.Msg = m
	return s
}

func (s Scope) Debug(kind EventKind) { s.emit(LevelDebug, kind, nil) }
func (s Scope) Info(kind EventKind)  { s.emit(LevelInfo, kind, nil) }

// Warn emits kind with err, which may be nil.
func (s Scope) Warn(kind EventKind, err error) { s.emit(LevelWarn, kind, err) }

// Error emits kind with err, which may be nil.
func (s Scope) Error(kind EventKind, err error) { s.emit(LevelError, kind, err) }

func (s Scope) emit(level Level, kind EventKind, err error) {
	e := s.e
	e.Level, e.Kind = level, kind
	if err != nil {
		e.Err = err.Error()
	}
	s.l.Emit(e)
}
