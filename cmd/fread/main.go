// Command fread is a terminal feed reader: an infinitely paged item list
// with swipe-to-read and swipe-to-star.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/fread/internal/app"
	"github.com/abelbrown/fread/internal/cache"
	"github.com/abelbrown/fread/internal/config"
	"github.com/abelbrown/fread/internal/logging"
	"github.com/abelbrown/fread/internal/otel"
	"github.com/abelbrown/fread/internal/reader"
	"github.com/abelbrown/fread/internal/source"
	"github.com/abelbrown/fread/internal/ui"
)

// fullTextTimeout bounds fetching the page behind an article.
const fullTextTimeout = 20 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fatal("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("Invalid config %s: %v", config.ConfigPath(), err)
	}

	if err := logging.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	defer logging.Close()

	// Event log: ~/.fread/fread.events.jsonl, mirrored into the debug overlay.
	if err := os.MkdirAll(config.Dir(), 0755); err != nil {
		fatal("Failed to create data directory: %v", err)
	}
	var events *otel.Logger
	ring := otel.NewRingBuffer(otel.DefaultRingSize)
	f, err := os.OpenFile(filepath.Join(config.Dir(), "fread.events.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		logging.Warn("Event log disabled", "error", err)
		events = otel.NewNullLogger()
	} else {
		defer f.Close()
		events = otel.NewLogger(f)
	}
	events.SetRingBuffer(ring)
	defer events.Close()

	src, closeSrc, err := app.OpenSource(cfg)
	if err != nil {
		fatal("Failed to open source: %v", err)
	}
	defer closeSrc()
	logging.Info("Source opened", "source", cfg.Source)

	key := cache.Key{StreamID: cfg.Stream, UnreadOnly: cfg.UnreadOnly}
	c := cache.New(src, events)

	opts := []reader.Option{
		reader.WithLogger(events),
		reader.WithFullText(reader.NewFullText(fullTextTimeout)),
	}
	if m, ok := src.(source.Marker); ok {
		opts = append(opts, reader.WithMarker(m))
	}
	sess := reader.NewSession(c, key, opts...)

	uiCfg := app.Commands(ctx, c, sess)
	uiCfg.PrefetchMargin = cfg.UI.PrefetchMargin
	uiCfg.Events = ring
	uiCfg.Log = events

	events.For("main").Source(cfg.Source).Stream(key.StreamID, key.UnreadOnly).Info(otel.KindStartup)

	progOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.UI.Mouse {
		progOpts = append(progOpts, tea.WithMouseCellMotion())
	}
	p := tea.NewProgram(ui.NewApp(uiCfg), progOpts...)

	logging.Info("Starting UI", "stream", key.String())
	if _, err := p.Run(); err != nil {
		logging.Error("Application error", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	cancel()
	events.For("main").Info(otel.KindShutdown)
	events.Close()
	logging.Info("fread exiting", "session", events.Session(), "events_dropped", events.Dropped())
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
