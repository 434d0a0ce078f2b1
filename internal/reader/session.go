// Package reader holds the intent handlers the list UI calls into: read and
// star toggles, opening an article and switching streams. It owns the
// current cache key and is the only place that turns user intents into
// cache mutations.
package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/abelbrown/fread/internal/cache"
	"github.com/abelbrown/fread/internal/model"
	"github.com/abelbrown/fread/internal/otel"
	"github.com/abelbrown/fread/internal/source"
)

// ErrUnknownItem is returned by Open for an id that is not in the current
// stream.
var ErrUnknownItem = errors.New("reader: unknown item")

// Intents are the per-item actions a renderer may invoke.
type Intents interface {
	ReadToggle(ctx context.Context, id string) error
	StarToggle(ctx context.Context, id string) error
	Open(ctx context.Context, id string) (Article, error)
}

// Article is an opened item and its rendered body.
type Article struct {
	Item *model.FeedItem
	Body string
}

// WriteBackError reports that a local mutation landed but the source did
// not accept it. The local state is kept.
type WriteBackError struct {
	ID  string
	Err error
}

func (e *WriteBackError) Error() string {
	return fmt.Sprintf("write back %s: %v", e.ID, e.Err)
}

func (e *WriteBackError) Unwrap() error { return e.Err }

// Session binds a cache to the stream currently on screen.
type Session struct {
	cache    *cache.Cache
	renderer Renderer
	marker   source.Marker
	fulltext *FullText
	log      *otel.Logger

	mu    sync.Mutex
	key   cache.Key
	width int
}

var _ Intents = (*Session)(nil)

// Option configures a Session.
type Option func(*Session)

// WithMarker writes read and star changes back to the source.
func WithMarker(m source.Marker) Option {
	return func(s *Session) { s.marker = m }
}

// WithLogger sets the event logger.
func WithLogger(l *otel.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithFullText enables OpenFull.
func WithFullText(f *FullText) Option {
	return func(s *Session) { s.fulltext = f }
}

// WithRenderer replaces the default TextRenderer.
func WithRenderer(r Renderer) Option {
	return func(s *Session) { s.renderer = r }
}

// NewSession creates a session showing key.
func NewSession(c *cache.Cache, key cache.Key, opts ...Option) *Session {
	s := &Session{
		cache:    c,
		renderer: TextRenderer{},
		key:      key,
		width:    DefaultWidth,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the current cache key.
func (s *Session) Key() cache.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// SetKey switches streams. The previous key's entry is discarded, so a
// fetch still in flight for it resolves as cache.ErrStale.
func (s *Session) SetKey(key cache.Key) {
	s.mu.Lock()
	old := s.key
	s.key = key
	s.mu.Unlock()

	if old != key {
		s.cache.Evict(old)
	}
}

// ToggleUnread flips the unread-only half of the key and returns the new key.
func (s *Session) ToggleUnread() cache.Key {
	key := s.Key()
	key.UnreadOnly = !key.UnreadOnly
	s.SetKey(key)
	return key
}

// SetWidth sets the wrap width for rendered articles.
func (s *Session) SetWidth(w int) {
	s.mu.Lock()
	s.width = w
	s.mu.Unlock()
}

// Snapshot returns the current stream's snapshot.
func (s *Session) Snapshot() *cache.Snapshot {
	return s.cache.Snapshot(s.Key())
}

// Fetching reports whether the current stream has a fetch in flight.
func (s *Session) Fetching() bool {
	return s.cache.Fetching(s.Key())
}

// FetchNext loads the next page of the current stream.
func (s *Session) FetchNext(ctx context.Context) (*model.Page, error) {
	return s.FetchKey(ctx, s.Key())
}

// FetchKey loads the next page of key, which must still be the current key.
// A key the session has left yields cache.ErrStale, and no entry for it is
// left behind in the cache.
func (s *Session) FetchKey(ctx context.Context, key cache.Key) (*model.Page, error) {
	if s.Key() != key {
		return nil, cache.ErrStale
	}
	page, err := s.cache.FetchNext(ctx, key)
	if s.Key() != key {
		// SetKey ran between the check and the cache lookup, which
		// recreated the entry SetKey evicted.
		s.cache.Evict(key)
		return nil, cache.ErrStale
	}
	return page, err
}

// ReadToggle flips the read flag of id.
func (s *Session) ReadToggle(ctx context.Context, id string) error {
	return s.mutate(ctx, id, model.ToggleRead)
}

// StarToggle flips the starred flag of id.
func (s *Session) StarToggle(ctx context.Context, id string) error {
	return s.mutate(ctx, id, model.ToggleStar)
}

// MarkRead sets the read flag of id.
func (s *Session) MarkRead(ctx context.Context, id string) error {
	return s.mutate(ctx, id, model.SetRead(true))
}

// Open marks id read and renders its content.
func (s *Session) Open(ctx context.Context, id string) (Article, error) {
	key := s.Key()
	item, ok := s.cache.Snapshot(key).Lookup(id)
	if !ok {
		return Article{}, fmt.Errorf("open %s: %w", id, ErrUnknownItem)
	}

	var werr error
	if !item.IsRead {
		werr = s.mutate(ctx, id, model.SetRead(true))
		if next, ok := s.cache.Snapshot(key).Lookup(id); ok {
			item = next
		}
	}

	s.mu.Lock()
	width := s.width
	s.mu.Unlock()

	s.events(key, id).Info(otel.KindOpen)

	return Article{Item: item, Body: s.renderer.Render(item.Content, width)}, werr
}

// OpenFull renders the page id links to instead of its feed content. It
// does not change any flags; Open does that.
func (s *Session) OpenFull(ctx context.Context, id string) (Article, error) {
	key := s.Key()
	item, ok := s.cache.Snapshot(key).Lookup(id)
	if !ok {
		return Article{}, fmt.Errorf("open %s: %w", id, ErrUnknownItem)
	}
	if s.fulltext == nil {
		return Article{}, fmt.Errorf("full text %s: %w", id, errors.ErrUnsupported)
	}
	if item.URL == "" {
		return Article{}, fmt.Errorf("full text %s: %w", id, ErrNoURL)
	}

	content, err := s.fulltext.Fetch(ctx, item.URL)
	if err != nil {
		s.events(key, id).Msg("full text").Warn(otel.KindSourceError, err)
		return Article{}, fmt.Errorf("full text %s: %w", id, err)
	}

	s.mu.Lock()
	width := s.width
	s.mu.Unlock()
	return Article{Item: item, Body: s.renderer.Render(content, width)}, nil
}

// mutate applies m locally and, when a marker is set, writes the resulting
// flags back. An absent id is a silent no-op.
func (s *Session) mutate(ctx context.Context, id string, m model.Mutator) error {
	key := s.Key()
	before, ok := s.cache.Snapshot(key).Lookup(id)
	if !ok {
		return nil
	}
	snap, ok := s.cache.Mutate(key, id, m)
	if !ok || s.marker == nil {
		return nil
	}
	after, ok := snap.Lookup(id)
	if !ok {
		return nil
	}

	var err error
	if after.IsRead != before.IsRead {
		err = s.marker.MarkRead(ctx, id, after.IsRead)
	}
	if err == nil && after.IsStar != before.IsStar {
		err = s.marker.MarkStarred(ctx, id, after.IsStar)
	}
	if err != nil {
		s.events(key, id).Msg("write-back").Warn(otel.KindSourceError, err)
		return &WriteBackError{ID: id, Err: err}
	}
	return nil
}

func (s *Session) events(key cache.Key, id string) otel.Scope {
	return s.log.For("reader").Stream(key.StreamID, key.UnreadOnly).Item(id)
}
