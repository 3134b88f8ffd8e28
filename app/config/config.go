package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ingredient-matcher/internal/normalizer"
)

// Config is the full service configuration.
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	Log         LogConfig        `mapstructure:"log"`
	Mongo       MongoConfig      `mapstructure:"mongo"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Meilisearch MeiliConfig      `mapstructure:"meilisearch"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Index       IndexConfig      `mapstructure:"index"`
	Normalizer  NormalizerConfig `mapstructure:"normalizer"`
	Jobs        JobsConfig       `mapstructure:"jobs"`
	Source      SourceConfig     `mapstructure:"source"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MongoConfig struct {
	URI      string        `mapstructure:"uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type MeiliConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	URL       string        `mapstructure:"url"`
	APIKey    string        `mapstructure:"api_key"`
	IndexName string        `mapstructure:"index_name"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// CacheConfig selects the match cache backend.
type CacheConfig struct {
	Mode   string        `mapstructure:"mode"` // none, memory, redis, mongo, hybrid
	L1Size int           `mapstructure:"l1_size"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type IndexConfig struct {
	MaxCandidates   int           `mapstructure:"max_candidates"` // 0 = unbounded
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type NormalizerConfig struct {
	AccentFolding string `mapstructure:"accent_folding"` // none, strip, transliterate
	LexiconPath   string `mapstructure:"lexicon_path"`   // empty = embedded
}

type JobsConfig struct {
	Workers         int           `mapstructure:"workers"`
	MaxLines        int           `mapstructure:"max_lines"`
	Retention       time.Duration `mapstructure:"retention"`
	RematchInterval time.Duration `mapstructure:"rematch_interval"` // worker only
	RematchLimit    int           `mapstructure:"rematch_limit"`    // 0 = all
}

// SourceConfig selects where canonical ingredients are loaded from.
type SourceConfig struct {
	Type        string        `mapstructure:"type"` // mongo, sql, http, file
	SQLDSN      string        `mapstructure:"sql_dsn"`
	HTTPBaseURL string        `mapstructure:"http_base_url"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	FilePath    string        `mapstructure:"file_path"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

var (
	cacheModes  = []string{"none", "memory", "redis", "mongo", "hybrid"}
	sourceTypes = []string{"mongo", "sql", "http", "file"}
)

// Load reads configuration from an optional YAML file, an optional .env file
// and APP_* environment variables, in increasing order of precedence.
// An empty path searches ./config/app.yaml and ./app.yaml.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("app")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading files or env.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ingredient-matcher")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.version", "dev")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_body_bytes", 10<<20)

	v.SetDefault("log.level", "info")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "recipes")
	v.SetDefault("mongo.timeout", 5*time.Second)

	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("meilisearch.enabled", false)
	v.SetDefault("meilisearch.url", "http://localhost:7700")
	v.SetDefault("meilisearch.api_key", "")
	v.SetDefault("meilisearch.index_name", "canonical_ingredients")
	v.SetDefault("meilisearch.timeout", 10*time.Second)

	v.SetDefault("cache.mode", "memory")
	v.SetDefault("cache.l1_size", 10000)
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("index.max_candidates", 200000)
	v.SetDefault("index.refresh_interval", time.Duration(0))

	v.SetDefault("normalizer.accent_folding", "none")
	v.SetDefault("normalizer.lexicon_path", "")

	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.max_lines", 20000)
	v.SetDefault("jobs.retention", time.Hour)
	v.SetDefault("jobs.rematch_interval", 15*time.Minute)
	v.SetDefault("jobs.rematch_limit", 0)

	v.SetDefault("source.type", "mongo")
	v.SetDefault("source.sql_dsn", "file:recipes.db")
	v.SetDefault("source.http_base_url", "")
	v.SetDefault("source.http_timeout", 10*time.Second)
	v.SetDefault("source.file_path", "config/canonical_ingredients.yaml")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 600)
	v.SetDefault("rate_limit.window", time.Minute)
}

// Validate checks enumerated and bounded fields.
func (c *Config) Validate() error {
	if !oneOf(c.Cache.Mode, cacheModes) {
		return fmt.Errorf("cache.mode %q: want one of %s", c.Cache.Mode, strings.Join(cacheModes, ", "))
	}
	if !oneOf(c.Source.Type, sourceTypes) {
		return fmt.Errorf("source.type %q: want one of %s", c.Source.Type, strings.Join(sourceTypes, ", "))
	}
	if c.Source.Type == "http" && c.Source.HTTPBaseURL == "" {
		return errors.New("source.http_base_url is required when source.type is http")
	}
	if _, err := normalizer.ParseAccentFolding(c.Normalizer.AccentFolding); err != nil {
		return fmt.Errorf("normalizer.accent_folding: %w", err)
	}
	if c.Index.MaxCandidates < 0 {
		return errors.New("index.max_candidates must be >= 0")
	}
	if c.Jobs.Workers < 1 {
		return errors.New("jobs.workers must be >= 1")
	}
	if c.Jobs.MaxLines < 1 {
		return errors.New("jobs.max_lines must be >= 1")
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
