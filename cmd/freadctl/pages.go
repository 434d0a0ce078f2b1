package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/abelbrown/fread/internal/app"
	"github.com/abelbrown/fread/internal/cache"
)

func runPages() {
	fs := flag.NewFlagSet("pages", flag.ExitOnError)
	stream := fs.String("stream", "", "Stream id (default: stream from config)")
	unread := fs.Bool("unread", false, "Only unread items")
	maxPages := fs.Int("max", 0, "Stop after this many pages (0 = until exhausted)")
	fs.Parse(os.Args[1:])

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg := loadConfig()
	if *stream == "" {
		*stream = cfg.Stream
	}

	src, closeSrc, err := app.OpenSource(cfg)
	if err != nil {
		log.Fatalf("failed to open source: %v", err)
	}
	defer closeSrc()

	key := cache.Key{StreamID: *stream, UnreadOnly: *unread}
	if err := walkPages(ctx, os.Stdout, cache.New(src, nil), key, *maxPages); err != nil {
		log.Fatalf("pages: %v", err)
	}
}

// walkPages follows the cursor chain of key through the cache, printing
// one line per page and a summary. maxPages <= 0 walks to the end.
func walkPages(ctx context.Context, w io.Writer, c *cache.Cache, key cache.Key, maxPages int) error {
	fmt.Fprintf(w, "Stream: %s\n\n", key)

	total := 0
	for n := 1; maxPages <= 0 || n <= maxPages; n++ {
		page, err := c.FetchNext(ctx, key)
		if errors.Is(err, cache.ErrExhausted) {
			break
		}
		if err != nil {
			return err
		}
		total += page.Len()

		first, last := "-", "-"
		if page.Len() > 0 {
			first, last = page.IDs[0], page.IDs[page.Len()-1]
		}
		next := page.Continuation
		if next == "" {
			next = "(end)"
		}
		fmt.Fprintf(w, "page %3d  %3d items  first=%-16s last=%-16s next=%s\n",
			n, page.Len(), truncate(first, 16), truncate(last, 16), truncate(next, 32))
	}

	snap := c.Snapshot(key)
	status := "more available"
	if snap.Exhausted() {
		status = "exhausted"
	}
	fmt.Fprintf(w, "\n%d pages, %d items, %d distinct, %s\n", snap.PageCount(), total, snap.Len(), status)
	return nil
}
