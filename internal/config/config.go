package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL      = "http://localhost:8000"
	DefaultHTTPTimeout = 30 * time.Second
	DefaultPort        = "8888"
	DefaultJournalPath = "labeler.db"
)

// Config is the single configuration object handed to every backend client.
type Config struct {
	API     API     `yaml:"api"`
	Server  Server  `yaml:"server"`
	Journal Journal `yaml:"journal"`
	Logging Logging `yaml:"logging"`
}

// API locates the queue/similarity service and the record store.
type API struct {
	URL string `yaml:"url"`
	// RecordsURL defaults to URL when empty; both services usually share a host.
	RecordsURL string        `yaml:"records_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

type Server struct {
	Port string `yaml:"port"`
}

type Journal struct {
	// Path to the SQLite file. Empty disables the journal.
	Path string `yaml:"path"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API: API{
			URL:     DefaultAPIURL,
			Timeout: DefaultHTTPTimeout,
		},
		Server:  Server{Port: DefaultPort},
		Journal: Journal{Path: DefaultJournalPath},
		Logging: Logging{Level: "info", Format: "text"},
	}
}

// Load reads an optional YAML file on top of the defaults, then applies
// LABELER_* environment overrides. A missing file at path is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("Config file not found, using defaults", "path", path)
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LABELER_API_URL":      &c.API.URL,
		"LABELER_RECORDS_URL":  &c.API.RecordsURL,
		"LABELER_JOURNAL_PATH": &c.Journal.Path,
		"LABELER_PORT":         &c.Server.Port,
		"LABELER_LOG_LEVEL":    &c.Logging.Level,
		"LABELER_LOG_FORMAT":   &c.Logging.Format,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	if v, ok := lookup("LABELER_HTTP_TIMEOUT"); ok && v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("LABELER_HTTP_TIMEOUT: %w", err)
		}
		c.API.Timeout = d
	}
	return nil
}

// parseDuration accepts Go durations ("45s") or a bare number of seconds.
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(strings.TrimSpace(v))
}

func (c *Config) normalize() {
	c.API.URL = strings.TrimRight(strings.TrimSpace(c.API.URL), "/")
	c.API.RecordsURL = strings.TrimRight(strings.TrimSpace(c.API.RecordsURL), "/")
	if c.API.URL == "" {
		c.API.URL = DefaultAPIURL
	}
	if c.API.RecordsURL == "" {
		c.API.RecordsURL = c.API.URL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultHTTPTimeout
	}
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.API.URL, "http://") && !strings.HasPrefix(c.API.URL, "https://") {
		return fmt.Errorf("api.url must be an http(s) URL, got %q", c.API.URL)
	}
	if !strings.HasPrefix(c.API.RecordsURL, "http://") && !strings.HasPrefix(c.API.RecordsURL, "https://") {
		return fmt.Errorf("api.records_url must be an http(s) URL, got %q", c.API.RecordsURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if _, err := c.Logging.level(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

func (l Logging) level() (slog.Level, error) {
	switch l.Level {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", l.Level)
	}
}

// NewLogger builds the slog logger described by l, writing to w.
func (l Logging) NewLogger(w io.Writer) *slog.Logger {
	lvl, _ := l.level()
	opts := &slog.HandlerOptions{Level: lvl}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
