package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/fread/internal/app"
	"github.com/abelbrown/fread/internal/config"
	"github.com/abelbrown/fread/internal/model"
	"github.com/abelbrown/fread/internal/source/local"
	"github.com/abelbrown/fread/internal/source/rss"
)

// seedConcurrency limits parallel feed downloads.
const seedConcurrency = 4

func runSeed() {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database path (default: local.path from config)")
	feedURL := fs.String("feed", "", "Seed this feed URL instead of the configured feeds")
	fs.Parse(os.Args[1:])

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg := loadConfig()
	if *dbPath != "" {
		cfg.Local.Path = *dbPath
	}
	if *feedURL != "" {
		cfg.RSS.Feeds = []config.FeedConfig{{URL: *feedURL}}
	}

	st := openStore(cfg)
	defer st.Close()

	results, err := seed(ctx, app.NewRSS(cfg), st)
	printSeedResults(os.Stdout, results)
	if err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

type seedResult struct {
	feed    rss.Feed
	fetched int
	added   int
	err     error
}

// seed fetches every feed of src concurrently and saves the items into st.
// A feed that fails to download is reported in its result; a database error
// aborts the run.
func seed(ctx context.Context, src *rss.Source, st *local.Store) ([]seedResult, error) {
	feeds := src.Feeds()
	results := make([]seedResult, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(seedConcurrency)
	for i, f := range feeds {
		g.Go(func() error {
			items, err := src.Fetch(ctx, f)
			results[i] = seedResult{feed: f, err: err}
			if err != nil {
				return nil
			}
			items = usable(items)
			results[i].fetched = len(items)
			n, err := st.Save(items)
			if err != nil {
				return fmt.Errorf("save %s: %w", f.URL, err)
			}
			results[i].added = n
			return nil
		})
	}
	return results, g.Wait()
}

// usable drops items the cache would reject as malformed, so one bad entry
// cannot poison a whole page later.
func usable(items []model.RawItem) []model.RawItem {
	out := items[:0]
	for _, it := range items {
		if _, err := model.Normalize([]model.RawItem{it}); err == nil {
			out = append(out, it)
		}
	}
	return out
}

func printSeedResults(w io.Writer, results []seedResult) {
	var added int
	for _, r := range results {
		name := r.feed.Name
		if name == "" {
			name = r.feed.URL
		}
		if r.err != nil {
			fmt.Fprintf(w, "  %-35s ERR: %v\n", truncate(name, 35), r.err)
			continue
		}
		fmt.Fprintf(w, "  %-35s %4d fetched  %4d new\n", truncate(name, 35), r.fetched, r.added)
		added += r.added
	}
	fmt.Fprintf(w, "\n%d new items from %d feeds\n", added, len(results))
}
