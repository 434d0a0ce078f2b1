// Package app is the composition root: it opens the configured source and
// turns a reading session into the commands the TUI runs.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/abelbrown/fread/internal/cache"
	"github.com/abelbrown/fread/internal/config"
	"github.com/abelbrown/fread/internal/reader"
	"github.com/abelbrown/fread/internal/source"
	"github.com/abelbrown/fread/internal/source/inoreader"
	"github.com/abelbrown/fread/internal/source/local"
	"github.com/abelbrown/fread/internal/source/miniflux"
	"github.com/abelbrown/fread/internal/source/rss"
	"github.com/abelbrown/fread/internal/ui"
)

// inoreaderBurst is the request burst allowed on top of the configured rate.
const inoreaderBurst = 4

// OpenSource builds the source cfg selects. The returned close func releases
// whatever the source holds open and is never nil.
func OpenSource(cfg *config.Config) (source.Source, func() error, error) {
	nop := func() error { return nil }

	switch cfg.Source {
	case config.SourceInoreader:
		var opts []inoreader.Option
		if u := cfg.Inoreader.BaseURL; u != "" {
			opts = append(opts, inoreader.WithBaseURL(strings.TrimSuffix(u, "/")+"/"))
		}
		if cfg.Inoreader.PageSize > 0 {
			opts = append(opts, inoreader.WithPageSize(cfg.Inoreader.PageSize))
		}
		if cfg.Inoreader.RateLimit > 0 {
			opts = append(opts, inoreader.WithRateLimit(rate.Limit(cfg.Inoreader.RateLimit), inoreaderBurst))
		}
		c := inoreader.New(cfg.Inoreader.AppID, cfg.Inoreader.AppKey, cfg.Inoreader.Token, opts...)
		return c, nop, nil

	case config.SourceMiniflux:
		return miniflux.New(cfg.Miniflux.Host, cfg.Miniflux.APIKey), nop, nil

	case config.SourceLocal:
		st, err := OpenLocal(cfg)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil

	case config.SourceRSS:
		return NewRSS(cfg), nop, nil
	}
	return nil, nil, fmt.Errorf("unknown source %q", cfg.Source)
}

// OpenLocal opens the SQLite store at cfg.Local.Path, creating its directory.
func OpenLocal(cfg *config.Config) (*local.Store, error) {
	if cfg.Local.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Local.Path), 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	st, err := local.Open(cfg.Local.Path)
	if err != nil {
		return nil, err
	}
	st.PageSize = cfg.Local.PageSize
	return st, nil
}

// NewRSS builds an RSS source for the configured feeds.
func NewRSS(cfg *config.Config) *rss.Source {
	feeds := make([]rss.Feed, 0, len(cfg.RSS.Feeds))
	for _, f := range cfg.RSS.Feeds {
		feeds = append(feeds, rss.Feed{Name: f.Name, URL: f.URL})
	}
	timeout := time.Duration(cfg.RSS.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return rss.New(timeout, feeds...)
}

// Commands wires the TUI to sess. Every Cmd captures the key current when
// it was issued, so the UI can drop results for a stream it left.
func Commands(ctx context.Context, c *cache.Cache, sess *reader.Session) ui.AppConfig {
	return ui.AppConfig{
		FetchNext: func() tea.Cmd {
			key := sess.Key()
			return func() tea.Msg {
				_, err := sess.FetchKey(ctx, key)
				return ui.PageLoaded{Key: key, Snapshot: c.Snapshot(key), Err: err}
			}
		},
		ReadToggle: func(id string) tea.Cmd {
			return intentCmd(c, sess.Key(), id, func() error { return sess.ReadToggle(ctx, id) })
		},
		StarToggle: func(id string) tea.Cmd {
			return intentCmd(c, sess.Key(), id, func() error { return sess.StarToggle(ctx, id) })
		},
		Open: func(id string) tea.Cmd {
			key := sess.Key()
			return func() tea.Msg {
				art, err := sess.Open(ctx, id)
				return ui.ArticleOpened{Key: key, Article: art, Snapshot: c.Snapshot(key), Err: err}
			}
		},
		OpenFull: func(id string) tea.Cmd {
			key := sess.Key()
			return func() tea.Msg {
				art, err := sess.OpenFull(ctx, id)
				return ui.ArticleOpened{Key: key, Article: art, Snapshot: c.Snapshot(key), Err: err}
			}
		},
		ToggleUnread: func() tea.Cmd {
			key := sess.ToggleUnread()
			return func() tea.Msg {
				return ui.KeyChanged{Key: key, Snapshot: c.Snapshot(key)}
			}
		},
		Resize: sess.SetWidth,
		Key:    sess.Key(),
	}
}

func intentCmd(c *cache.Cache, key cache.Key, id string, run func() error) tea.Cmd {
	return func() tea.Msg {
		err := run()
		return ui.IntentDone{Key: key, ID: id, Snapshot: c.Snapshot(key), Err: err}
	}
}
