// Package model defines the feed entities shared by the cache, the sources
// and the TUI, and the normalizer that turns one raw page of remote items into
// an ordered id list plus an entity table.
//
// # Immutability
//
// A *FeedItem stored in a Page table is never modified in place. Mutators
// return a fresh copy so that holders of the old pointer (renderers, older
// snapshots) keep seeing a consistent value and identity comparison is a
// valid "did this change" check.
package model

import (
	"time"

	"github.com/benbjohnson/immutable"
)

// FeedItem is one normalized article.
type FeedItem struct {
	ID           string
	Title        string
	Summary      string // plain text, derived from the summary HTML
	ThumbnailSrc string // first image in the summary HTML, may be empty
	Content      string // raw HTML, opaque to the cache
	SourceName   string
	SourceID     string
	URL          string
	Published    time.Time
	IsRead       bool
	IsStar       bool
}

// RawItem is one item as delivered by a remote feed source, before
// validation.
type RawItem struct {
	ID                    string
	Title                 string
	PublishedEpochSeconds int64
	SummaryHTML           string
	OriginTitle           string
	OriginStreamID        string
	CanonicalURLs         []string
}

// Page is one normalized page: the ids in delivery order (deduplicated), the
// entity table and the continuation cursor returned with it.
//
// Pages are values shared between snapshots; treat every field as read-only.
type Page struct {
	IDs          []string
	Table        *immutable.Map[string, *FeedItem]
	Continuation string
}

// Get returns the page's copy of an entity.
func (p *Page) Get(id string) (*FeedItem, bool) {
	if p == nil || p.Table == nil {
		return nil, false
	}
	return p.Table.Get(id)
}

// Len returns the number of distinct ids on the page.
func (p *Page) Len() int {
	if p == nil {
		return 0
	}
	return len(p.IDs)
}

// WithItem returns a copy of the page whose table maps item.ID to item. The id
// list and cursor are shared with the receiver; only the table path to the
// entry is reallocated.
func (p *Page) WithItem(item *FeedItem) *Page {
	return &Page{
		IDs:          p.IDs,
		Table:        p.Table.Set(item.ID, item),
		Continuation: p.Continuation,
	}
}

// Exhausted reports whether the page was the last one of its stream.
func (p *Page) Exhausted() bool {
	return p.Continuation == ""
}
