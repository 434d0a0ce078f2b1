package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Source kinds.
const (
	SourceInoreader = "inoreader"
	SourceMiniflux  = "miniflux"
	SourceLocal     = "local"
	SourceRSS       = "rss"
)

// Config is the persistent application configuration
type Config struct {
	// Source selects the backend: inoreader, miniflux, local or rss.
	Source string `json:"source"`

	Inoreader InoreaderConfig `json:"inoreader"`
	Miniflux  MinifluxConfig  `json:"miniflux"`
	Local     LocalConfig     `json:"local"`
	RSS       RSSConfig       `json:"rss"`

	// Stream is the stream id shown at startup.
	Stream     string `json:"stream"`
	UnreadOnly bool   `json:"unread_only"`

	UI UIConfig `json:"ui"`

	LogLevel string `json:"log_level"`
}

// InoreaderConfig holds API credentials
type InoreaderConfig struct {
	BaseURL   string  `json:"base_url,omitempty"`
	AppID     string  `json:"app_id,omitempty"`
	AppKey    string  `json:"app_key,omitempty"`
	Token     string  `json:"token,omitempty"`
	PageSize  int     `json:"page_size"`
	RateLimit float64 `json:"rate_limit"` // requests per second
}

// MinifluxConfig points at a Miniflux server
type MinifluxConfig struct {
	Host   string `json:"host,omitempty"`
	APIKey string `json:"api_key,omitempty"`
}

// LocalConfig points at the SQLite database freadctl seeds
type LocalConfig struct {
	Path     string `json:"path"`
	PageSize int    `json:"page_size"`
}

// RSSConfig lists feeds read directly
type RSSConfig struct {
	Feeds          []FeedConfig `json:"feeds"`
	TimeoutSeconds int          `json:"timeout_seconds"`
}

// FeedConfig is one RSS/Atom feed
type FeedConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// UIConfig holds UI preferences
type UIConfig struct {
	// PrefetchMargin loads the next page when the cursor is this close to
	// the end of the list.
	PrefetchMargin int  `json:"prefetch_margin"`
	Mouse          bool `json:"mouse"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Source: SourceLocal,
		Inoreader: InoreaderConfig{
			PageSize:  20,
			RateLimit: 2,
		},
		Local: LocalConfig{
			Path:     filepath.Join(Dir(), "fread.db"),
			PageSize: 20,
		},
		RSS: RSSConfig{
			Feeds: []FeedConfig{
				{Name: "Hacker News", URL: "https://hnrss.org/frontpage"},
				{Name: "Lobsters", URL: "https://lobste.rs/rss"},
			},
			TimeoutSeconds: 15,
		},
		Stream: "user/-/state/com.google/reading-list",
		UI: UIConfig{
			PrefetchMargin: 5,
			Mouse:          true,
		},
		LogLevel: "info",
	}
}

// Dir returns ~/.fread.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".fread")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(Dir(), "config.json")
}

// Load reads config from disk, or returns defaults
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config at path. A missing file yields defaults; fields
// absent from the file keep their defaults. Environment variables override
// the file either way.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.AutoPopulateFromEnv()
	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes config to path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // Restrictive permissions for API keys
}

// AutoPopulateFromEnv fills in credentials from environment variables
func (c *Config) AutoPopulateFromEnv() {
	if v := os.Getenv("FREAD_SOURCE"); v != "" {
		c.Source = v
	}
	if v := os.Getenv("INOREADER_APP_ID"); v != "" {
		c.Inoreader.AppID = v
	}
	if v := os.Getenv("INOREADER_APP_KEY"); v != "" {
		c.Inoreader.AppKey = v
	}
	if v := os.Getenv("INOREADER_TOKEN"); v != "" {
		c.Inoreader.Token = v
	}
	if v := os.Getenv("MINIFLUX_HOSTNAME"); v != "" {
		c.Miniflux.Host = v
	}
	if v := os.Getenv("MINIFLUX_API_KEY"); v != "" {
		c.Miniflux.APIKey = v
	}
}

// Validate checks that the selected source is usable.
func (c *Config) Validate() error {
	var missing []string
	switch c.Source {
	case SourceInoreader:
		if c.Inoreader.AppID == "" {
			missing = append(missing, "inoreader.app_id")
		}
		if c.Inoreader.AppKey == "" {
			missing = append(missing, "inoreader.app_key")
		}
		if c.Inoreader.Token == "" {
			missing = append(missing, "inoreader.token")
		}
	case SourceMiniflux:
		if c.Miniflux.Host == "" {
			missing = append(missing, "miniflux.host")
		}
		if c.Miniflux.APIKey == "" {
			missing = append(missing, "miniflux.api_key")
		}
	case SourceLocal:
		if c.Local.Path == "" {
			missing = append(missing, "local.path")
		}
	case SourceRSS:
		if len(c.RSS.Feeds) == 0 {
			missing = append(missing, "rss.feeds")
		}
	default:
		return fmt.Errorf("unknown source %q", c.Source)
	}
	if len(missing) > 0 {
		return fmt.Errorf("source %s: missing %v", c.Source, missing)
	}
	if c.Stream == "" {
		return errors.New("stream must not be empty")
	}
	return nil
}
