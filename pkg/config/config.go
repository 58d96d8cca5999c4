package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

type Config struct {
	Port        string
	DocsDir     string
	CORSOrigins []string

	CacheBackend string
	CacheDBPath  string
	CacheTTL     time.Duration
	RedisURL     string

	UpstreamTimeout      time.Duration
	UpstreamMaxRedirects int
	UpstreamConcurrency  int

	LogLevel  string
	LogFormat string
	Tracing   string

	Retailers map[string]Retailer
}

// Retailer overrides the built-in settings of one integration. Zero values
// keep the integration's defaults.
type Retailer struct {
	Enabled  *bool  `yaml:"enabled"`
	BaseURL  string `yaml:"base_url"`
	Store    string `yaml:"store"`
	Location string `yaml:"location"`
}

// IsEnabled reports the configured flag, or def when none was set.
func (r Retailer) IsEnabled(def bool) bool {
	if r.Enabled == nil {
		return def
	}
	return *r.Enabled
}

type retailersFile struct {
	Retailers map[string]Retailer `yaml:"retailers"`
}

// Load reads .env when present, then the environment, then the optional
// retailers YAML file named by RETAILERS_FILE.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Port:                 getEnv("PORT", "9090"),
		DocsDir:              getEnv("DOCS_DIR", "./"),
		CORSOrigins:          splitList(os.Getenv("CORS_ORIGINS")),
		CacheBackend:         strings.ToLower(getEnv("CACHE_BACKEND", CacheSQLite)),
		CacheDBPath:          getEnv("CACHE_DB_PATH", "./cache.db"),
		CacheTTL:             time.Duration(getPositiveInt("CACHE_TTL_MINUTES", 1440)) * time.Minute,
		RedisURL:             getEnv("REDIS_URL", "redis://localhost:6379/0"),
		UpstreamTimeout:      time.Duration(getPositiveInt("UPSTREAM_TIMEOUT_SECONDS", 15)) * time.Second,
		UpstreamMaxRedirects: getNonNegativeInt("UPSTREAM_MAX_REDIRECTS", 3),
		UpstreamConcurrency:  getPositiveInt("UPSTREAM_CONCURRENCY", 3),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
		Tracing:              strings.ToLower(getEnv("TRACING", "none")),
		Retailers:            map[string]Retailer{},
	}

	switch cfg.CacheBackend {
	case CacheSQLite, CacheRedis, CacheNone:
	default:
		return Config{}, fmt.Errorf("unknown CACHE_BACKEND %q (want sqlite, redis or none)", cfg.CacheBackend)
	}

	if path := os.Getenv("RETAILERS_FILE"); path != "" {
		retailers, err := loadRetailers(path)
		if err != nil {
			return Config{}, err
		}
		cfg.Retailers = retailers
	}

	if val := os.Getenv("EXTRA_ENABLED"); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return Config{}, fmt.Errorf("parse EXTRA_ENABLED: %w", err)
		}
		extra := cfg.Retailers["extra"]
		extra.Enabled = &enabled
		cfg.Retailers["extra"] = extra
	}

	return cfg, nil
}

// Retailer returns the overrides for key, or the zero value.
func (c Config) Retailer(key string) Retailer {
	return c.Retailers[key]
}

func loadRetailers(path string) (map[string]Retailer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read retailers file: %w", err)
	}
	var file retailersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse retailers file %s: %w", path, err)
	}
	if file.Retailers == nil {
		file.Retailers = map[string]Retailer{}
	}
	return file.Retailers, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getPositiveInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

func getNonNegativeInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return def
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
