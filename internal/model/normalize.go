package model

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/benbjohnson/immutable"
)

// MalformedResponseError reports a raw page that failed required-field
// validation. Only the page being normalized is rejected.
type MalformedResponseError struct {
	Index int    // position of the offending item in the raw page
	ID    string // may be empty when the id itself is missing
	Field string
}

func (e *MalformedResponseError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("malformed response: item %d: missing %s", e.Index, e.Field)
	}
	return fmt.Sprintf("malformed response: item %d (%s): missing %s", e.Index, e.ID, e.Field)
}

// IDHasher hashes entity ids for persistent maps keyed by id.
type IDHasher struct{}

func (IDHasher) Hash(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32()
}

func (IDHasher) Equal(a, b string) bool { return a == b }

// NewTable returns an empty entity table.
func NewTable() *immutable.Map[string, *FeedItem] {
	return immutable.NewMap[string, *FeedItem](IDHasher{})
}

// Normalize validates one raw page and flattens it into a Page. The result
// carries no continuation cursor; the caller attaches the one returned with
// the response.
//
// When an id repeats inside the page the last occurrence wins in the table
// and the id keeps the position of its first occurrence in IDs.
func Normalize(raw []RawItem) (*Page, error) {
	for i, r := range raw {
		if err := validate(i, r); err != nil {
			return nil, err
		}
	}

	b := immutable.NewMapBuilder[string, *FeedItem](IDHasher{})
	ids := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		if _, dup := seen[r.ID]; !dup {
			seen[r.ID] = struct{}{}
			ids = append(ids, r.ID)
		}
		b.Set(r.ID, resolve(r))
	}

	return &Page{IDs: ids, Table: b.Map()}, nil
}

func validate(i int, r RawItem) error {
	switch {
	case r.ID == "":
		return &MalformedResponseError{Index: i, Field: "id"}
	case r.Title == "":
		return &MalformedResponseError{Index: i, ID: r.ID, Field: "title"}
	case r.PublishedEpochSeconds <= 0:
		return &MalformedResponseError{Index: i, ID: r.ID, Field: "published"}
	}
	return nil
}

// resolve converts a validated raw item into a fresh, unread, unstarred entity.
func resolve(r RawItem) *FeedItem {
	url := ""
	if len(r.CanonicalURLs) > 0 {
		url = r.CanonicalURLs[0]
	}
	return &FeedItem{
		ID:           r.ID,
		Title:        r.Title,
		Summary:      PlainSummary(r.SummaryHTML, summaryMaxRunes),
		ThumbnailSrc: ThumbnailSrc(r.SummaryHTML),
		Content:      r.SummaryHTML,
		SourceName:   r.OriginTitle,
		SourceID:     r.OriginStreamID,
		URL:          url,
		Published:    time.Unix(r.PublishedEpochSeconds, 0),
	}
}
