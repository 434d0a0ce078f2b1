package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/abelbrown/fread/internal/config"
	"github.com/abelbrown/fread/internal/source"
	"github.com/abelbrown/fread/internal/source/local"
)

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database path (default: local.path from config)")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	if *dbPath != "" {
		cfg.Local.Path = *dbPath
	}

	st := openStore(cfg)
	defer st.Close()

	if err := printStats(os.Stdout, st, cfg.RSS.Feeds); err != nil {
		log.Fatalf("stats: %v", err)
	}
}

// printStats writes item counts overall, starred and per configured feed.
func printStats(w io.Writer, st *local.Store, feeds []config.FeedConfig) error {
	total, err := st.Count(source.StreamReadingList)
	if err != nil {
		return err
	}
	starred, err := st.Count(source.StreamStarred)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Total items:           %d\n", total)
	fmt.Fprintf(w, "Starred:               %d\n", starred)

	if len(feeds) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\nFeeds (%d):\n", len(feeds))
	for _, f := range feeds {
		n, err := st.Count("feed/" + f.URL)
		if err != nil {
			return err
		}
		name := f.Name
		if name == "" {
			name = f.URL
		}
		fmt.Fprintf(w, "  %-35s %d\n", truncate(name, 35), n)
	}
	return nil
}
