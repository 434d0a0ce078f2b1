package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"FREAD_SOURCE", "INOREADER_APP_ID", "INOREADER_APP_KEY",
		"INOREADER_TOKEN", "MINIFLUX_HOSTNAME", "MINIFLUX_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Source != SourceLocal || cfg.UI.PrefetchMargin != 5 {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg := DefaultConfig()
	cfg.Source = SourceMiniflux
	cfg.Miniflux = MinifluxConfig{Host: "https://rss.example.com", APIKey: "k"}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected 0600, got %o", perm)
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if got.Source != SourceMiniflux || got.Miniflux.Host != "https://rss.example.com" {
		t.Errorf("round trip lost fields: %+v", got)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"source":"rss","unread_only":true}`), 0600)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Source != SourceRSS || !cfg.UnreadOnly {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if len(cfg.RSS.Feeds) == 0 || cfg.Inoreader.PageSize != 20 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestBadJSON(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{`), 0600)

	if _, err := LoadFrom(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FREAD_SOURCE", "inoreader")
	t.Setenv("INOREADER_APP_ID", "id")
	t.Setenv("INOREADER_APP_KEY", "key")
	t.Setenv("INOREADER_TOKEN", "tok")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Source != SourceInoreader || cfg.Inoreader.Token != "tok" {
		t.Errorf("env not applied: %+v", cfg.Inoreader)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown source", func(c *Config) { c.Source = "gopher" }, "unknown source"},
		{"inoreader without creds", func(c *Config) { c.Source = SourceInoreader }, "inoreader.token"},
		{"miniflux without host", func(c *Config) {
			c.Source = SourceMiniflux
			c.Miniflux.APIKey = "k"
		}, "miniflux.host"},
		{"rss without feeds", func(c *Config) {
			c.Source = SourceRSS
			c.RSS.Feeds = nil
		}, "rss.feeds"},
		{"empty stream", func(c *Config) { c.Stream = "" }, "stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
