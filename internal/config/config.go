package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Flow names accepted in configuration.
const (
	FlowSuggest = "suggest"
	FlowDirect  = "direct"
)

type Config struct {
	Env            string
	ServiceName    string
	ServiceVersion string

	RedisURL      string
	SessionSecret string

	OtelExporterOTLPEndpoint string
	OtelExporterOTLPHeaders  string
	SentryDSN                string

	Port string

	Component ComponentConfig
}

// ComponentConfig is everything that differs between deployments of the recipe component.
type ComponentConfig struct {
	Flow           string        `yaml:"flow"`
	DetectURL      string        `yaml:"detect_url"`
	GenerateURL    string        `yaml:"generate_url"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	ActionsPerMin  int           `yaml:"actions_per_minute"`
	RawMarkup      bool          `yaml:"raw_markup"`
}

func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile reads the environment, then overlays the YAML file at path if it exists.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{
		Env:                      os.Getenv("ENV"),
		ServiceName:              os.Getenv("SERVICE_NAME"),
		ServiceVersion:           os.Getenv("SERVICE_VERSION"),
		RedisURL:                 os.Getenv("REDIS_URL"),
		SessionSecret:            os.Getenv("SESSION_SECRET"),
		OtelExporterOTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OtelExporterOTLPHeaders:  os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		SentryDSN:                os.Getenv("SENTRY_DSN"),
		Port:                     os.Getenv("PORT"),
		Component: ComponentConfig{
			Flow:        os.Getenv("RECIPE_FLOW"),
			DetectURL:   os.Getenv("DETECT_URL"),
			GenerateURL: os.Getenv("GENERATE_URL"),
		},
	}

	if v := os.Getenv("REMOTE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REMOTE_TIMEOUT: %w", err)
		}
		cfg.Component.Timeout = d
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.Component.MaxUploadBytes = n
	}

	// Load from YAML file if available
	if err := cfg.LoadFromYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load YAML config: %w", err)
	}

	// Set defaults
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "recgen"
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "1.0.0"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.SessionSecret == "" && cfg.Env != "production" {
		cfg.SessionSecret = "recgen-development-secret"
	}

	cfg.SetComponentDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) LoadFromYAML(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is not an error
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlConfig struct {
		Component ComponentConfig `yaml:"component"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	y := yamlConfig.Component
	if y.Flow != "" {
		c.Component.Flow = y.Flow
	}
	if y.DetectURL != "" {
		c.Component.DetectURL = y.DetectURL
	}
	if y.GenerateURL != "" {
		c.Component.GenerateURL = y.GenerateURL
	}
	if y.Timeout != 0 {
		c.Component.Timeout = y.Timeout
	}
	if y.MaxUploadBytes != 0 {
		c.Component.MaxUploadBytes = y.MaxUploadBytes
	}
	if y.SessionTTL != 0 {
		c.Component.SessionTTL = y.SessionTTL
	}
	if y.ActionsPerMin != 0 {
		c.Component.ActionsPerMin = y.ActionsPerMin
	}
	if y.RawMarkup {
		c.Component.RawMarkup = true
	}

	return nil
}

func (c *Config) SetComponentDefaults() {
	c.Component.Flow = strings.ToLower(strings.TrimSpace(c.Component.Flow))
	if c.Component.Flow == "" {
		c.Component.Flow = FlowSuggest
	}
	if c.Component.DetectURL == "" {
		c.Component.DetectURL = "http://localhost:8000/detect-and-suggest"
	}
	if c.Component.GenerateURL == "" && c.Component.Flow == FlowSuggest {
		c.Component.GenerateURL = "http://localhost:8000/generate-recipe"
	}
	if c.Component.Timeout == 0 {
		c.Component.Timeout = 2 * time.Minute
	}
	if c.Component.MaxUploadBytes == 0 {
		c.Component.MaxUploadBytes = 10 << 20
	}
	if c.Component.SessionTTL == 0 {
		c.Component.SessionTTL = 24 * time.Hour
	}
	if c.Component.ActionsPerMin == 0 {
		c.Component.ActionsPerMin = 30
	}
}

// OTLPHeaders parses OTEL_EXPORTER_OTLP_HEADERS ("k1=v1,k2=v2").
func (c *Config) OTLPHeaders() map[string]string {
	if c.OtelExporterOTLPHeaders == "" {
		return nil
	}
	headers := make(map[string]string)
	for _, pair := range strings.Split(c.OtelExporterOTLPHeaders, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return headers
}

func (c *Config) validate() error {
	switch c.Component.Flow {
	case FlowSuggest:
		if c.Component.GenerateURL == "" {
			return fmt.Errorf("GENERATE_URL is required for the %q flow", FlowSuggest)
		}
	case FlowDirect:
	default:
		return fmt.Errorf("RECIPE_FLOW must be %q or %q, got %q", FlowSuggest, FlowDirect, c.Component.Flow)
	}
	if c.Component.DetectURL == "" {
		return fmt.Errorf("DETECT_URL is required")
	}
	if c.Component.Timeout < 0 {
		return fmt.Errorf("remote timeout must not be negative")
	}
	if c.Component.MaxUploadBytes < 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must not be negative")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	return nil
}
