// Package local is a SQLite-backed feed source. It serves pages of stored
// items with keyset cursors and keeps per-item read and starred flags, so it
// can stand in for a remote service in demos and tests.
package local

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/abelbrown/fread/internal/model"
	"github.com/abelbrown/fread/internal/source"
)

// DefaultPageSize is the number of items per page when Store.PageSize is 0.
const DefaultPageSize = 20

// ErrBadCursor is returned for a continuation the store did not issue.
var ErrBadCursor = errors.New("local: malformed continuation")

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	// PageSize overrides DefaultPageSize when positive. Set before the first
	// Request.
	PageSize int
}

var (
	_ source.Source = (*Store)(nil)
	_ source.Marker = (*Store)(nil)
)

// Open creates a new Store with the given database path, creating the schema
// if needed. ":memory:" opens a private in-memory database.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		stream_id TEXT NOT NULL,
		title TEXT NOT NULL,
		summary_html TEXT,
		origin_title TEXT,
		url TEXT,
		published INTEGER NOT NULL,
		fetched_at DATETIME NOT NULL,
		read INTEGER DEFAULT 0,
		starred INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_items_stream ON items(stream_id, published DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_items_published ON items(published DESC, id DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Save stores raw items, returning the count of new rows. Items already
// stored (by id) are ignored, so their read and starred flags survive a
// re-seed. The stream of an item is its OriginStreamID.
func (s *Store) Save(items []model.RawItem) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO items (
			id, stream_id, title, summary_html, origin_title, url, published, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now()
	newCount := 0
	for _, it := range items {
		url := ""
		if len(it.CanonicalURLs) > 0 {
			url = it.CanonicalURLs[0]
		}
		result, err := stmt.Exec(it.ID, it.OriginStreamID, it.Title, it.SummaryHTML, it.OriginTitle, url, it.PublishedEpochSeconds, now)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", it.ID, err)
		}
		if affected, _ := result.RowsAffected(); affected > 0 {
			newCount++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newCount, nil
}

// SetRead sets the read flag of an item.
func (s *Store) SetRead(id string, read bool) error {
	return s.setFlag("read", id, read)
}

// SetStarred sets the starred flag of an item.
func (s *Store) SetStarred(id string, starred bool) error {
	return s.setFlag("starred", id, starred)
}

// MarkRead implements source.Marker.
func (s *Store) MarkRead(_ context.Context, id string, read bool) error {
	return s.SetRead(id, read)
}

// MarkStarred implements source.Marker.
func (s *Store) MarkStarred(_ context.Context, id string, starred bool) error {
	return s.SetStarred(id, starred)
}

func (s *Store) setFlag(column, id string, v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("UPDATE items SET "+column+" = ? WHERE id = ?", boolToInt(v), id)
	return err
}

// Count returns the number of stored items in a stream.
func (s *Store) Count(streamID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := streamFilter(streamID)
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM items WHERE "+where, args...).Scan(&n)
	return n, err
}

// Request serves one page of streamID, newest first. Reading-list and
// starred stream ids select across all streams.
func (s *Store) Request(ctx context.Context, streamID string, q source.Query) (source.Response, error) {
	size := s.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	where, args := streamFilter(streamID)
	if q.Exclude == source.ExcludeRead {
		where += " AND read = 0"
	}
	if q.Continuation != "" {
		published, id, err := decodeCursor(q.Continuation)
		if err != nil {
			return source.Response{}, err
		}
		where += " AND (published < ? OR (published = ? AND id < ?))"
		args = append(args, published, published, id)
	}
	args = append(args, size+1)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stream_id, title, summary_html, origin_title, url, published
		FROM items
		WHERE `+where+`
		ORDER BY published DESC, id DESC
		LIMIT ?
	`, args...)
	if err != nil {
		return source.Response{}, fmt.Errorf("query %s: %w", streamID, err)
	}
	defer rows.Close()

	var items []model.RawItem
	for rows.Next() {
		var it model.RawItem
		var summary, origin, url sql.NullString
		if err := rows.Scan(&it.ID, &it.OriginStreamID, &it.Title, &summary, &origin, &url, &it.PublishedEpochSeconds); err != nil {
			return source.Response{}, err
		}
		it.SummaryHTML = summary.String
		it.OriginTitle = origin.String
		if url.String != "" {
			it.CanonicalURLs = []string{url.String}
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return source.Response{}, err
	}

	resp := source.Response{Items: items}
	if len(items) > size {
		resp.Items = items[:size]
		last := resp.Items[size-1]
		resp.Continuation = encodeCursor(last.PublishedEpochSeconds, last.ID)
	}
	return resp, nil
}

func streamFilter(streamID string) (string, []any) {
	switch streamID {
	case "", source.StreamReadingList:
		return "1 = 1", nil
	case source.StreamStarred:
		return "starred = 1", nil
	default:
		return "stream_id = ?", []any{streamID}
	}
}

// Cursors are "published:id" of the last item served, base64url encoded so
// callers treat them as opaque.
func encodeCursor(published int64, id string) string {
	raw := strconv.FormatInt(published, 10) + ":" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(c string) (int64, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(c)
	if err != nil {
		return 0, "", ErrBadCursor
	}
	ts, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return 0, "", ErrBadCursor
	}
	published, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return 0, "", ErrBadCursor
	}
	return published, id, nil
}

// boolToInt converts a bool to an int for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
