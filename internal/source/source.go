// Package source defines the contract of a remote feed source: cursor-based
// page requests against a stream. Concrete sources live in subpackages.
package source

import (
	"context"

	"github.com/abelbrown/fread/internal/model"
)

// Well-known stream ids, in the Google Reader dialect Inoreader speaks.
const (
	// StreamReadingList is every item of every subscription.
	StreamReadingList = "user/-/state/com.google/reading-list"
	// StreamStarred is every starred item.
	StreamStarred = "user/-/state/com.google/starred"
	// ExcludeRead is the exclude filter that drops read items.
	ExcludeRead = "user/-/state/com.google/read"
)

// Query selects one page of a stream.
type Query struct {
	// Exclude names a stream whose items must be left out, e.g. ExcludeRead.
	// Empty means no filter.
	Exclude string
	// Continuation is the cursor returned with the previous page. Empty
	// requests the first page.
	Continuation string
}

// Response is one page of raw items. An empty Continuation means the stream
// is exhausted.
type Response struct {
	Items        []model.RawItem
	Continuation string
}

// Source answers cursor-based page requests. A cursor is only valid relative
// to the response it came from; callers must not issue a request with a
// cursor before the previous response has been consumed.
type Source interface {
	Request(ctx context.Context, streamID string, q Query) (Response, error)
}

// Func adapts a plain function to the Source interface.
type Func func(ctx context.Context, streamID string, q Query) (Response, error)

// Request calls f.
func (f Func) Request(ctx context.Context, streamID string, q Query) (Response, error) {
	return f(ctx, streamID, q)
}

// Marker is implemented by sources that accept read and starred state back.
// Write-back is best effort: the cache applies the change locally first and
// does not roll back when the source refuses it.
type Marker interface {
	MarkRead(ctx context.Context, id string, read bool) error
	MarkStarred(ctx context.Context, id string, starred bool) error
}
