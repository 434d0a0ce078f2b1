package main

import (
	"log"
	"path/filepath"

	"github.com/abelbrown/fread/internal/app"
	"github.com/abelbrown/fread/internal/config"
	"github.com/abelbrown/fread/internal/source/local"
)

// loadConfig loads ~/.fread/config.json or fatals.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// openStore opens the local database named by cfg or fatals.
func openStore(cfg *config.Config) *local.Store {
	st, err := app.OpenLocal(cfg)
	if err != nil {
		log.Fatalf("failed to open database %s: %v", cfg.Local.Path, err)
	}
	return st
}

// eventLogPath returns the path to fread.events.jsonl.
func eventLogPath() string {
	return filepath.Join(config.Dir(), "fread.events.jsonl")
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
