// Package ui provides the Bubble Tea TUI for fread.
package ui

import (
	"time"

	"github.com/abelbrown/fread/internal/cache"
	"github.com/abelbrown/fread/internal/reader"
)

// PageLoaded is sent when a fetch for Key resolves.
type PageLoaded struct {
	Key      cache.Key
	Snapshot *cache.Snapshot
	Err      error
}

// IntentDone is sent after a read or star toggle. Err is a write-back
// failure; the local change in Snapshot stands regardless.
type IntentDone struct {
	Key      cache.Key
	ID       string
	Snapshot *cache.Snapshot
	Err      error
}

// ArticleOpened is sent when an item has been opened.
type ArticleOpened struct {
	Key      cache.Key
	Article  reader.Article
	Snapshot *cache.Snapshot
	Err      error
}

// KeyChanged is sent when the stream or unread filter changed.
type KeyChanged struct {
	Key      cache.Key
	Snapshot *cache.Snapshot
}

// frameMsg drives gesture animation.
type frameMsg time.Time
