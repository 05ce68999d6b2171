// Package config loads the process configuration: struct defaults, then a
// .env file, then the environment. The result is validated before use.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/callmeahab/catalog-titles/internal/catalog"
)

// EnvPrefix scopes the generic SECTION_KEY variables, e.g.
// TITLEGEN_BATCH_MAX_SIZE -> batch.max_size.
const EnvPrefix = "TITLEGEN_"

// envMappings keeps the well-known variable names working.
var envMappings = map[string]string{
	"DATABASE_URL":      "database.url",
	"MEILI_URL":         "search.url",
	"MEILI_API_KEY":     "search.api_key",
	"ANTHROPIC_API_KEY": "engine.api_key",
	"ANTHROPIC_MODEL":   "engine.model",
	"LOG_LEVEL":         "log.level",
	"LOG_FORMAT":        "log.format",
	"PORT":              "server.port",
}

type Config struct {
	Server     Server     `koanf:"server"`
	Engine     Engine     `koanf:"engine"`
	Batch      Batch      `koanf:"batch"`
	Validation Validation `koanf:"validation"`
	Database   Database   `koanf:"database"`
	Search     Search     `koanf:"search"`
	Log        Log        `koanf:"log"`
	Data       Data       `koanf:"data"`
}

type Server struct {
	Host           string   `koanf:"host"`
	Port           int      `koanf:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// Addr is the listen address.
func (s Server) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

type Engine struct {
	APIKey       string        `koanf:"api_key"`
	Model        string        `koanf:"model" validate:"required"`
	Temperature  float64       `koanf:"temperature" validate:"gte=0,lte=1"`
	MaxRetries   uint64        `koanf:"max_retries" validate:"lte=10"`
	RetryBackoff time.Duration `koanf:"retry_backoff" validate:"gte=0"`
	RateLimit    float64       `koanf:"rate_limit" validate:"gte=0"`
	// Stub swaps the model for the deterministic engine.
	Stub bool `koanf:"stub"`
}

type Batch struct {
	MaxSize int           `koanf:"max_size" validate:"min=1,max=50"`
	Pause   time.Duration `koanf:"pause" validate:"gte=0"`
}

type Validation struct {
	EnableAI       bool `koanf:"enable_ai"`
	NormalizeUnits bool `koanf:"normalize_units"`
}

// Database is optional. An empty URL disables persistence.
type Database struct {
	URL string `koanf:"url"`
}

// Search is optional. An empty URL disables indexing.
type Search struct {
	URL    string `koanf:"url" validate:"omitempty,url"`
	APIKey string `koanf:"api_key"`
	Index  string `koanf:"index" validate:"required"`
}

type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type Data struct {
	NomenclaturePath string `koanf:"nomenclature_path" validate:"required"`
	MemoryPath       string `koanf:"memory_path"`
}

func Default() *Config {
	return &Config{
		Server: Server{
			Port:           50051,
			AllowedOrigins: []string{"*"},
		},
		Engine: Engine{
			Model:        "claude-sonnet-4-20250514",
			Temperature:  0,
			MaxRetries:   2,
			RetryBackoff: time.Second,
		},
		Batch: Batch{
			MaxSize: 25,
			Pause:   500 * time.Millisecond,
		},
		Validation: Validation{
			EnableAI:       true,
			NormalizeUnits: true,
		},
		Search: Search{Index: "titles"},
		Log:    Log{Level: "info", Format: "json"},
		Data:   Data{NomenclaturePath: "nomenclatura.csv"},
	}
}

// RequireEngine reports a missing API key for commands that call the model.
func (c *Config) RequireEngine() error {
	if c.Engine.Stub || strings.TrimSpace(c.Engine.APIKey) != "" {
		return nil
	}
	return &catalog.ConfigError{Setting: "ANTHROPIC_API_KEY", Reason: "not set"}
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.Engine.APIKey != "" {
		c.Engine.APIKey = "****"
	}
	if c.Search.APIKey != "" {
		c.Search.APIKey = "****"
	}
	if c.Database.URL != "" {
		c.Database.URL = "****"
	}
	return c
}

type LoadOption func(*loadOptions)

type loadOptions struct {
	dotenv  []string
	environ func() []string
}

// WithDotEnv loads the given files into the environment first. Missing files
// are skipped; existing variables win.
func WithDotEnv(paths ...string) LoadOption {
	return func(o *loadOptions) { o.dotenv = append(o.dotenv, paths...) }
}

// WithEnviron replaces os.Environ as the variable source.
func WithEnviron(fn func() []string) LoadOption {
	return func(o *loadOptions) { o.environ = fn }
}

// Load builds the configuration.
func Load(opts ...LoadOption) (*Config, error) {
	o := loadOptions{environ: os.Environ}
	for _, opt := range opts {
		opt(&o)
	}

	for _, path := range o.dotenv {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		EnvironFunc:   o.environ,
		TransformFunc: transformEnv,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// transformEnv maps a variable to its koanf path, or "" to ignore it. Blank
// variables count as unset.
func transformEnv(key, value string) (string, any) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	if path, ok := envMappings[key]; ok {
		return path, value
	}
	if !strings.HasPrefix(key, EnvPrefix) {
		return "", nil
	}
	return envKeyPath(strings.TrimPrefix(key, EnvPrefix)), value
}

// envKeyPath turns BATCH_MAX_SIZE into batch.max_size.
func envKeyPath(s string) string {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return r == '_' })
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}
