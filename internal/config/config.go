package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ulule/limiter/v3"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config holds client and server settings. Precedence, lowest first:
// defaults, config file, .env, process environment.
type Config struct {
	ServerURL      string        `yaml:"server_url"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	Theme          string        `yaml:"theme"`
	LogFile        string        `yaml:"log_file"`
	Debug          bool          `yaml:"debug"`
	ListenAddr     string        `yaml:"listen_addr"`
	Store          string        `yaml:"store"`
	DBPath         string        `yaml:"db_path"`
	ServerToken    string        `yaml:"server_token"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RateLimit      string        `yaml:"rate_limit"`    // limiter format, e.g. "20-S"; empty disables
	OTLPEndpoint   string        `yaml:"otlp_endpoint"` // host:port; empty disables tracing
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		ServerURL:   "http://localhost:8080",
		CallTimeout: 10 * time.Second,
		Theme:       "classic",
		LogFile:     filepath.Join(Dir(), "notes.log"),
		ListenAddr:  "localhost:8080",
		Store:       StoreMemory,
		DBPath:      "notes.sqlite3",
	}
}

// Dir is where per-user files live (~/.notes).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".notes"
	}
	return filepath.Join(home, ".notes")
}

// Load reads .env (if present), the YAML file named by NOTES_CONFIG (or
// ~/.notes/config.yaml if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	path, explicit := os.LookupEnv("NOTES_CONFIG")
	if !explicit {
		path = filepath.Join(Dir(), "config.yaml")
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.ServerURL = getEnv("NOTES_SERVER_URL", c.ServerURL)
	c.Theme = getEnv("NOTES_THEME", c.Theme)
	c.LogFile = getEnv("NOTES_LOG_FILE", c.LogFile)
	c.Debug = getEnvBool("NOTES_DEBUG", c.Debug)
	c.ListenAddr = getEnv("NOTES_LISTEN_ADDR", c.ListenAddr)
	c.Store = getEnv("NOTES_STORE", c.Store)
	c.DBPath = getEnv("NOTES_DB_PATH", c.DBPath)
	c.ServerToken = getEnv("NOTES_SERVER_TOKEN", c.ServerToken)
	c.RateLimit = getEnv("NOTES_RATE_LIMIT", c.RateLimit)
	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
	if v := os.Getenv("NOTES_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("NOTES_CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("NOTES_CALL_TIMEOUT: %w", err)
		}
		c.CallTimeout = d
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server url is required")
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call timeout must be positive, got %s", c.CallTimeout)
	}
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("db path is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreMemory, StoreSQLite)
	}
	if _, _, err := c.Rate(); err != nil {
		return err
	}
	return nil
}

// Rate parses RateLimit. ok is false when rate limiting is off.
func (c *Config) Rate() (rate limiter.Rate, ok bool, err error) {
	if c.RateLimit == "" {
		return limiter.Rate{}, false, nil
	}
	rate, err = limiter.NewRateFromFormatted(c.RateLimit)
	if err != nil {
		return limiter.Rate{}, false, fmt.Errorf("rate limit %q: %w", c.RateLimit, err)
	}
	return rate, true, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		return value == "yes"
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
