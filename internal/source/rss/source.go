// Package rss serves RSS and Atom feeds as a paginated source.
//
// Feeds have no server-side paging, so the first request of a cursor chain
// fetches and parses the feed and later requests page through that parsed
// copy. Feeds also carry no read state: Query.Exclude is ignored.
package rss

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/fread/internal/model"
	"github.com/abelbrown/fread/internal/source"
)

// DefaultPageSize is the number of items per page when Source.PageSize is 0.
const DefaultPageSize = 20

// maxConcurrentFetches limits parallel feed downloads for merged streams.
const maxConcurrentFetches = 5

// ErrExpiredCursor is returned for a cursor from a chain that has since been
// restarted. Callers start over with an empty cursor.
var ErrExpiredCursor = errors.New("rss: cursor from an earlier fetch")

// ErrUnknownStream is returned for a stream id naming no configured feed.
var ErrUnknownStream = errors.New("rss: unknown stream")

// Feed is a configured feed.
type Feed struct {
	Name string
	URL  string
}

// StreamID returns the stream id of the feed, "feed/<url>".
func (f Feed) StreamID() string { return "feed/" + f.URL }

// Source fetches feeds over HTTP. Goroutine-safe.
type Source struct {
	client *http.Client
	feeds  []Feed

	// PageSize overrides DefaultPageSize when positive.
	PageSize int

	mu     sync.Mutex
	chains map[chainKey]*chain
	gen    uint64
}

// chainKey separates the chains of one stream requested with different
// filters, which the cache holds as different keys.
type chainKey struct {
	stream  string
	exclude string
}

// chain is the parsed copy a cursor chain pages through.
type chain struct {
	gen   uint64
	items []model.RawItem
}

var _ source.Source = (*Source)(nil)

// New creates a Source for feeds with the given HTTP client timeout. The
// reading-list stream merges every feed; "feed/<url>" selects one, and need
// not be configured.
func New(timeout time.Duration, feeds ...Feed) *Source {
	cp := make([]Feed, len(feeds))
	copy(cp, feeds)
	return &Source{
		client: &http.Client{Timeout: timeout},
		feeds:  cp,
		chains: make(map[chainKey]*chain),
	}
}

// Feeds returns the configured feeds.
func (s *Source) Feeds() []Feed {
	cp := make([]Feed, len(s.feeds))
	copy(cp, s.feeds)
	return cp
}

// Request serves one page of streamID.
func (s *Source) Request(ctx context.Context, streamID string, q source.Query) (source.Response, error) {
	var c *chain
	offset := 0
	ck := chainKey{stream: streamID, exclude: q.Exclude}

	if q.Continuation == "" {
		items, err := s.load(ctx, streamID)
		if err != nil {
			return source.Response{}, err
		}
		s.mu.Lock()
		s.gen++
		c = &chain{gen: s.gen, items: items}
		s.chains[ck] = c
		s.mu.Unlock()
	} else {
		gen, off, err := decodeCursor(q.Continuation)
		if err != nil {
			return source.Response{}, err
		}
		s.mu.Lock()
		c = s.chains[ck]
		s.mu.Unlock()
		if c == nil || c.gen != gen || off > len(c.items) {
			return source.Response{}, ErrExpiredCursor
		}
		offset = off
	}

	size := s.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	end := offset + size
	if end > len(c.items) {
		end = len(c.items)
	}

	resp := source.Response{Items: c.items[offset:end]}
	if end < len(c.items) {
		resp.Continuation = encodeCursor(c.gen, end)
	}
	return resp, nil
}

// load fetches the feeds behind streamID, newest first.
func (s *Source) load(ctx context.Context, streamID string) ([]model.RawItem, error) {
	var feeds []Feed
	switch {
	case streamID == source.StreamReadingList:
		feeds = s.feeds
	case strings.HasPrefix(streamID, "feed/"):
		url := strings.TrimPrefix(streamID, "feed/")
		feeds = []Feed{{Name: s.nameFor(url), URL: url}}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStream, streamID)
	}

	results := make([][]model.RawItem, len(feeds))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, f := range feeds {
		g.Go(func() error {
			items, err := s.Fetch(ctx, f)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []model.RawItem
	for _, items := range results {
		all = append(all, items...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PublishedEpochSeconds > all[j].PublishedEpochSeconds
	})
	return all, nil
}

func (s *Source) nameFor(url string) string {
	for _, f := range s.feeds {
		if f.URL == url {
			return f.Name
		}
	}
	return url
}

// Fetch downloads and parses one feed.
func (s *Source) Fetch(ctx context.Context, f Feed) ([]model.RawItem, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "fread/0.1 (https://github.com/abelbrown/fread)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	name := f.Name
	if name == "" {
		name = feed.Title
	}
	now := time.Now()
	items := make([]model.RawItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		items = append(items, convertFeedItem(it, Feed{Name: name, URL: f.URL}, now))
	}
	return items, nil
}

// convertFeedItem converts a gofeed.Item to a raw item of the feed's stream.
func convertFeedItem(it *gofeed.Item, f Feed, fetchTime time.Time) model.RawItem {
	published := fetchTime
	if it.PublishedParsed != nil {
		published = *it.PublishedParsed
	} else if it.UpdatedParsed != nil {
		published = *it.UpdatedParsed
	}

	// Prefer full content; the description is often a teaser.
	html := it.Content
	if html == "" {
		html = it.Description
	}
	if it.Image != nil && it.Image.URL != "" && model.ThumbnailSrc(html) == "" {
		html = `<img src="` + it.Image.URL + `">` + html
	}

	var urls []string
	if it.Link != "" {
		urls = append(urls, it.Link)
	}
	for _, l := range it.Links {
		if l != it.Link {
			urls = append(urls, l)
		}
	}

	title := strings.TrimSpace(it.Title)
	if title == "" {
		title = model.PlainSummary(html, 80)
	}
	if title == "" {
		title = it.Link
	}

	return model.RawItem{
		ID:                    generateID(it),
		Title:                 title,
		PublishedEpochSeconds: published.Unix(),
		SummaryHTML:           html,
		OriginTitle:           f.Name,
		OriginStreamID:        f.StreamID(),
		CanonicalURLs:         urls,
	}
}

// generateID creates a deterministic ID for a feed item.
// Uses the GUID if available, otherwise hashes the URL.
func generateID(it *gofeed.Item) string {
	if it.GUID != "" {
		return hashString(it.GUID)
	}
	if it.Link != "" {
		return hashString(it.Link)
	}
	key := it.Title
	if it.PublishedParsed != nil {
		key += it.PublishedParsed.String()
	}
	return hashString(key)
}

// hashString creates a short hash of a string for use as an ID.
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:8])
}

func encodeCursor(gen uint64, offset int) string {
	return strconv.FormatUint(gen, 36) + "." + strconv.Itoa(offset)
}

func decodeCursor(c string) (uint64, int, error) {
	g, o, ok := strings.Cut(c, ".")
	if !ok {
		return 0, 0, ErrExpiredCursor
	}
	gen, err := strconv.ParseUint(g, 36, 64)
	if err != nil {
		return 0, 0, ErrExpiredCursor
	}
	off, err := strconv.Atoi(o)
	if err != nil || off < 0 {
		return 0, 0, ErrExpiredCursor
	}
	return gen, off, nil
}
