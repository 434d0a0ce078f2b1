// Package cache holds the paginated feed cache: one entry per stream key,
// each an immutable Snapshot of the pages fetched so far. Pages are pulled
// from a source.Source with continuation cursors and appended at the tail;
// point mutations replace single entities without touching the rest.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/fread/internal/model"
	"github.com/abelbrown/fread/internal/otel"
	"github.com/abelbrown/fread/internal/source"
)

// maxConcurrentWarmUps limits parallel first-page fetches in WarmUp.
const maxConcurrentWarmUps = 4

var (
	// ErrFetchInFlight is returned when a fetch for the same key is running.
	// No request is issued.
	ErrFetchInFlight = errors.New("cache: fetch already in flight")

	// ErrExhausted is returned once the source has reported the last page.
	ErrExhausted = errors.New("cache: stream exhausted")

	// ErrStale is returned when the entry was evicted while its fetch was
	// running. The fetched page is discarded.
	ErrStale = errors.New("cache: entry evicted during fetch")
)

// NetworkError wraps a failed source request. The entry is left unchanged.
type NetworkError struct {
	Key    Key
	Cursor string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("cache: fetch %s: %v", e.Key, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Key identifies a cache entry.
type Key struct {
	StreamID   string
	UnreadOnly bool
}

func (k Key) String() string {
	if k.UnreadOnly {
		return k.StreamID + " (unread)"
	}
	return k.StreamID
}

// entry is the mutable cell behind a key. Its identity is what stale
// detection compares: Evict drops the entry, a later fetch for the same key
// gets a fresh one.
type entry struct {
	snap     atomic.Pointer[Snapshot]
	inFlight atomic.Bool
}

// Cache is the pagination engine. Goroutine-safe.
type Cache struct {
	src source.Source
	log *otel.Logger

	mu      sync.Mutex
	entries map[Key]*entry

	subMu   sync.Mutex
	subs    map[int]func(Key, *Snapshot)
	nextSub int
}

// New creates a Cache pulling pages from src. log may be nil.
func New(src source.Source, log *otel.Logger) *Cache {
	return &Cache{
		src:     src,
		log:     log,
		entries: make(map[Key]*entry),
		subs:    make(map[int]func(Key, *Snapshot)),
	}
}

// events scopes cache events to key.
func (c *Cache) events(key Key) otel.Scope {
	return c.log.For("cache").Stream(key.StreamID, key.UnreadOnly)
}

// lookup returns the entry for key, creating it when create is set.
func (c *Cache) lookup(key Key, create bool) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok && create {
		e = &entry{}
		e.snap.Store(newSnapshot(key))
		c.entries[key] = e
	}
	return e
}

// Snapshot returns the current snapshot for key. Keys never fetched yield an
// empty snapshot.
func (c *Cache) Snapshot(key Key) *Snapshot {
	if e := c.lookup(key, false); e != nil {
		return e.snap.Load()
	}
	return newSnapshot(key)
}

// Fetching reports whether a fetch for key is in flight.
func (c *Cache) Fetching(key Key) bool {
	e := c.lookup(key, false)
	return e != nil && e.inFlight.Load()
}

// FetchNext fetches the page after the last one cached for key and appends
// it. The returned page is the one stored in the entry, carrying the cursor
// of the page after it.
//
// Errors: ErrExhausted and ErrFetchInFlight without issuing a request,
// *NetworkError when the source fails, *model.MalformedResponseError when the
// page does not normalize, ErrStale when key was evicted meanwhile. In every
// error case the entry is unchanged and the next call retries the same cursor.
func (c *Cache) FetchNext(ctx context.Context, key Key) (*model.Page, error) {
	e := c.lookup(key, true)
	if e.snap.Load().Exhausted() {
		return nil, ErrExhausted
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		c.events(key).Debug(otel.KindFetchRejected)
		return nil, ErrFetchInFlight
	}
	defer e.inFlight.Store(false)

	// Only the in-flight holder advances the cursor, so it is stable from here.
	cursor := e.snap.Load().Cursor()
	q := source.Query{Continuation: cursor}
	if key.UnreadOnly {
		q.Exclude = source.ExcludeRead
	}

	ev := c.events(key).Cursor(cursor)
	ev.Info(otel.KindFetchStart)
	start := time.Now()

	resp, err := c.src.Request(ctx, key.StreamID, q)
	if err != nil {
		ev.Took(time.Since(start)).Error(otel.KindFetchError, err)
		return nil, &NetworkError{Key: key, Cursor: cursor, Err: err}
	}

	page, err := model.Normalize(resp.Items)
	if err != nil {
		ev.Took(time.Since(start)).Error(otel.KindFetchError, err)
		return nil, err
	}

	next, ok := c.append(key, e, page, resp.Continuation)
	if !ok {
		ev.Warn(otel.KindFetchStale, nil)
		return nil, ErrStale
	}

	ev.Cursor(resp.Continuation).Count(page.Len()).Took(time.Since(start)).Info(otel.KindFetchComplete)
	c.notify(key, next)
	return next.Page(next.PageCount() - 1), nil
}

// append installs page at the tail of e, retrying against concurrent
// mutations. It fails if e is no longer the entry for key. Holding c.mu
// keeps Evict from interleaving between the check and the swap.
func (c *Cache) append(key Key, e *entry, page *model.Page, cursor string) (*Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries[key] != e {
		return nil, false
	}
	for {
		cur := e.snap.Load()
		next := cur.Append(page, cursor)
		if e.snap.CompareAndSwap(cur, next) {
			return next, true
		}
		c.events(key).Debug(otel.KindCacheRetry)
	}
}

// Mutate replaces entity id in the entry for key with mutate(entity). It
// reports whether anything changed; an unknown key or id is a silent no-op
// and returns the current snapshot unchanged.
func (c *Cache) Mutate(key Key, id string, mutate model.Mutator) (*Snapshot, bool) {
	e := c.lookup(key, false)
	if e == nil {
		return newSnapshot(key), false
	}

	for {
		cur := e.snap.Load()
		next := cur.Apply(id, mutate)
		if next == cur {
			return cur, false
		}
		if e.snap.CompareAndSwap(cur, next) {
			c.events(key).Item(id).Debug(otel.KindCacheMutate)
			c.notify(key, next)
			return next, true
		}
		c.events(key).Item(id).Debug(otel.KindCacheRetry)
	}
}

// Evict discards the entry for key. A fetch still running for it completes
// with ErrStale. Subscribers are notified with a nil snapshot.
func (c *Cache) Evict(key Key) {
	c.mu.Lock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	if !ok {
		return
	}
	c.events(key).Info(otel.KindCacheEvict)
	c.notify(key, nil)
}

// Keys returns the keys currently cached, in no particular order.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// Subscribe registers fn to be called after every append, mutation and
// eviction. fn runs on the goroutine that made the change and must not block.
// The returned func unsubscribes.
func (c *Cache) Subscribe(fn func(Key, *Snapshot)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

func (c *Cache) notify(key Key, snap *Snapshot) {
	c.subMu.Lock()
	fns := make([]func(Key, *Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(key, snap)
	}
}

// WarmUp fetches the first page of every key that has none yet, at most
// maxConcurrentWarmUps at a time. Keys already fetched, in flight or
// exhausted are skipped. The first real failure is returned after all
// fetches finish.
func (c *Cache) WarmUp(ctx context.Context, keys ...Key) error {
	var g errgroup.Group
	g.SetLimit(maxConcurrentWarmUps)

	for _, key := range keys {
		if c.Snapshot(key).PageCount() > 0 {
			continue
		}
		g.Go(func() error {
			_, err := c.FetchNext(ctx, key)
			if errors.Is(err, ErrFetchInFlight) || errors.Is(err, ErrExhausted) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
