package cache

import (
	"github.com/benbjohnson/immutable"

	"github.com/abelbrown/fread/internal/model"
)

// Snapshot is the immutable state of one cache entry: the pages fetched so
// far, the cursor for the next page and the exhaustion flag. The entity
// store is derived from the pages on read.
//
// Snapshots are persistent. Append and Apply return new snapshots that share
// every untouched page, table node and entity with the receiver.
type Snapshot struct {
	key       Key
	pages     *immutable.List[*model.Page]
	cursor    string
	exhausted bool

	// touched holds ids mutated locally, so their flags survive a later page
	// re-delivering the same id.
	touched *immutable.Map[string, struct{}]
}

// newSnapshot returns the empty snapshot a fresh cache entry starts with.
func newSnapshot(key Key) *Snapshot {
	return &Snapshot{
		key:     key,
		pages:   immutable.NewList[*model.Page](),
		touched: immutable.NewMap[string, struct{}](model.IDHasher{}),
	}
}

// Key returns the cache key the snapshot belongs to.
func (s *Snapshot) Key() Key { return s.key }

// Cursor returns the continuation cursor to present for the next page.
func (s *Snapshot) Cursor() string { return s.cursor }

// Exhausted reports whether the stream has no further pages.
func (s *Snapshot) Exhausted() bool { return s.exhausted }

// PageCount returns the number of pages fetched so far.
func (s *Snapshot) PageCount() int { return s.pages.Len() }

// Page returns the i-th page.
func (s *Snapshot) Page(i int) *model.Page { return s.pages.Get(i) }

// Pages returns the pages in fetch order.
func (s *Snapshot) Pages() []*model.Page {
	out := make([]*model.Page, 0, s.pages.Len())
	itr := s.pages.Iterator()
	for !itr.Done() {
		_, p := itr.Next()
		out = append(out, p)
	}
	return out
}

// IDs returns the canonical item order: each page's ids in page order, an id
// repeated on a later page keeping its first position.
func (s *Snapshot) IDs() []string {
	var ids []string
	seen := make(map[string]struct{})
	itr := s.pages.Iterator()
	for !itr.Done() {
		_, p := itr.Next()
		for _, id := range p.IDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of distinct items.
func (s *Snapshot) Len() int { return len(s.IDs()) }

// Lookup resolves an id against the derived entity store. When several pages
// hold the id the latest page wins.
func (s *Snapshot) Lookup(id string) (*model.FeedItem, bool) {
	for i := s.pages.Len() - 1; i >= 0; i-- {
		if item, ok := s.pages.Get(i).Get(id); ok {
			return item, true
		}
	}
	return nil, false
}

// Items returns the resolved entities in canonical order.
func (s *Snapshot) Items() []*model.FeedItem {
	ids := s.IDs()
	items := make([]*model.FeedItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := s.Lookup(id); ok {
			items = append(items, item)
		}
	}
	return items
}

// Append returns a snapshot with page added at the tail and the cursor
// advanced to next. An empty next marks the snapshot exhausted.
//
// Entities in page whose id was mutated locally inherit the local read and
// star flags.
func (s *Snapshot) Append(page *model.Page, next string) *Snapshot {
	for _, id := range page.IDs {
		if _, ok := s.touched.Get(id); !ok {
			continue
		}
		local, ok := s.Lookup(id)
		if !ok {
			continue
		}
		incoming, _ := page.Get(id)
		merged := *incoming
		merged.IsRead = local.IsRead
		merged.IsStar = local.IsStar
		page = page.WithItem(&merged)
	}

	stored := &model.Page{IDs: page.IDs, Table: page.Table, Continuation: next}
	return &Snapshot{
		key:       s.key,
		pages:     s.pages.Append(stored),
		cursor:    next,
		exhausted: next == "",
		touched:   s.touched,
	}
}

// Apply returns a snapshot in which the entity id has been replaced by
// mutate(entity). Pages are scanned in order; every page holding a copy of id
// gets the mutated entity so the derived view reflects it.
//
// If id is absent the receiver itself is returned. Otherwise only the pages
// holding id, their table paths and the list path to them are reallocated;
// every other page and entity keeps its reference.
func (s *Snapshot) Apply(id string, mutate model.Mutator) *Snapshot {
	current, ok := s.Lookup(id)
	if !ok {
		return s
	}
	next := mutate.Apply(current)

	pages := s.pages
	for i := 0; i < pages.Len(); i++ {
		p := pages.Get(i)
		if _, ok := p.Get(id); ok {
			pages = pages.Set(i, p.WithItem(next))
		}
	}

	return &Snapshot{
		key:       s.key,
		pages:     pages,
		cursor:    s.cursor,
		exhausted: s.exhausted,
		touched:   s.touched.Set(id, struct{}{}),
	}
}
