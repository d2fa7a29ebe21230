package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/naromat/internal/parser"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "NAROMAT_"

// EnvFile is loaded from the working directory when present. Variables
// already set in the environment win over its entries.
const EnvFile = ".env"

type Config struct {
	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Reading
	Encoding             string   `yaml:"encoding"`
	Normalize            bool     `yaml:"normalize"`
	Include              []string `yaml:"include"`
	PDFFallbackPdftotext bool     `yaml:"pdf_fallback_pdftotext"`

	// HTTP service
	Addr           string        `yaml:"addr"`
	APIKey         string        `yaml:"api_key"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	ResultTTL      time.Duration `yaml:"result_ttl"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Encoding:             parser.EncodingAuto,
		Include:              []string{"**/*"},
		PDFFallbackPdftotext: true,
		Addr:                 ":8090",
		MaxUploadBytes:       10 << 20, // 10MB
		ResultTTL:            time.Hour,
	}
}

// Load layers the defaults, the YAML file at path (skipped when path is
// empty), the .env file and NAROMAT_* environment variables.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load %s: %w", EnvFile, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)

	c.Encoding = envOr("ENCODING", c.Encoding)
	c.Normalize = envBool("NORMALIZE", c.Normalize)
	if v := os.Getenv(EnvPrefix + "INCLUDE"); v != "" {
		c.Include = splitList(v)
	}
	c.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", c.PDFFallbackPdftotext)

	c.Addr = envOr("ADDR", c.Addr)
	c.APIKey = envOr("API_KEY", c.APIKey)
	c.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.ResultTTL = envDuration("RESULT_TTL", c.ResultTTL)
}

func (c Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text; got %q", c.LogFormat)
	}
	if !parser.IsKnownEncoding(c.Encoding) {
		return fmt.Errorf("encoding must be one of %s; got %q", strings.Join(parser.Encodings, ", "), c.Encoding)
	}
	for _, pattern := range c.Include {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid include pattern %q", pattern)
		}
	}
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	if c.ResultTTL <= 0 {
		return fmt.Errorf("result_ttl must be positive")
	}
	return nil
}

// ParserOptions returns the reader settings.
func (c Config) ParserOptions() parser.Options {
	return parser.Options{
		Encoding:          c.Encoding,
		NormalizeNFC:      c.Normalize,
		FallbackPdftotext: c.PDFFallbackPdftotext,
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
