// Package miniflux adapts a Miniflux server to the feed source contract.
//
// Stream ids: "feed/<id>" and "category/<id>" select a feed or category by
// numeric id, the starred stream selects bookmarks, anything else selects
// every entry. Entries come newest id first and the cursor is the last id
// served, so entries that leave the unread set between pages shift nothing.
package miniflux

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	miniflux "miniflux.app/v2/client"

	"github.com/abelbrown/fread/internal/model"
	"github.com/abelbrown/fread/internal/source"
)

// DefaultPageSize is the number of entries per page.
const DefaultPageSize = 20

// entries is the subset of the Miniflux client the source needs.
type entries interface {
	EntriesContext(ctx context.Context, filter *miniflux.Filter) (*miniflux.EntryResultSet, error)
	UpdateEntriesContext(ctx context.Context, entryIDs []int64, status string) error
}

// Source reads entries from Miniflux.
type Source struct {
	client   entries
	pageSize int
}

var (
	_ source.Source = (*Source)(nil)
	_ source.Marker = (*Source)(nil)
)

// New connects to the Miniflux server at host with an API key.
func New(host, apiKey string) *Source {
	return &Source{client: miniflux.NewClient(host, apiKey), pageSize: DefaultPageSize}
}

// Request serves one page of entries, highest id first.
func (s *Source) Request(ctx context.Context, streamID string, q source.Query) (source.Response, error) {
	var before int64
	if q.Continuation != "" {
		n, err := strconv.ParseInt(q.Continuation, 10, 64)
		if err != nil || n <= 0 {
			return source.Response{}, fmt.Errorf("miniflux: bad continuation %q", q.Continuation)
		}
		before = n
	}

	filter, err := filterFor(streamID)
	if err != nil {
		return source.Response{}, err
	}
	filter.BeforeEntryID = before
	filter.Limit = s.pageSize
	filter.Order = "id"
	filter.Direction = "desc"
	if q.Exclude == source.ExcludeRead {
		filter.Statuses = []string{"unread"}
	}

	result, err := s.client.EntriesContext(ctx, filter)
	if err != nil {
		return source.Response{}, fmt.Errorf("miniflux entries %s: %w", streamID, err)
	}

	items := make([]model.RawItem, 0, len(result.Entries))
	for _, e := range result.Entries {
		items = append(items, convertEntry(e))
	}

	// Total counts every entry below the cursor that matches the filter.
	resp := source.Response{Items: items}
	if n := len(result.Entries); n > 0 && n < result.Total {
		resp.Continuation = strconv.FormatInt(result.Entries[n-1].ID, 10)
	}
	return resp, nil
}

// MarkRead sets the entry status.
func (s *Source) MarkRead(ctx context.Context, id string, read bool) error {
	n, err := entryID(id)
	if err != nil {
		return err
	}
	status := "unread"
	if read {
		status = "read"
	}
	return s.client.UpdateEntriesContext(ctx, []int64{n}, status)
}

// MarkStarred is not written back. The server only exposes a toggle, and a
// toggle replayed against a stale local flag inverts it.
func (s *Source) MarkStarred(_ context.Context, id string, _ bool) error {
	return fmt.Errorf("miniflux star %s: %w", id, errors.ErrUnsupported)
}

func filterFor(streamID string) (*miniflux.Filter, error) {
	f := &miniflux.Filter{}
	switch {
	case streamID == source.StreamStarred:
		f.Starred = miniflux.FilterOnlyStarred
	case strings.HasPrefix(streamID, "feed/"):
		id, err := strconv.ParseInt(strings.TrimPrefix(streamID, "feed/"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("miniflux: bad feed stream %q", streamID)
		}
		f.FeedID = id
	case strings.HasPrefix(streamID, "category/"):
		id, err := strconv.ParseInt(strings.TrimPrefix(streamID, "category/"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("miniflux: bad category stream %q", streamID)
		}
		f.CategoryID = id
	}
	return f, nil
}

func convertEntry(e *miniflux.Entry) model.RawItem {
	it := model.RawItem{
		ID:                    strconv.FormatInt(e.ID, 10),
		Title:                 e.Title,
		PublishedEpochSeconds: e.Date.Unix(),
		SummaryHTML:           e.Content,
	}
	if e.URL != "" {
		it.CanonicalURLs = []string{e.URL}
	}
	if e.Feed != nil {
		it.OriginTitle = e.Feed.Title
		it.OriginStreamID = "feed/" + strconv.FormatInt(e.Feed.ID, 10)
	}
	return it
}

func entryID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("miniflux: bad entry id %q", id)
	}
	return n, nil
}
