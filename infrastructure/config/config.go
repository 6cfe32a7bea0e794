package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	domainconfig "github.com/frenb/accelent/domain/config"
	"gopkg.in/yaml.v3"
)

// Text generation providers
const (
	ProviderNone   = "none"
	ProviderHTTP   = "http"
	ProviderOpenAI = "openai"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"serverAddress"`
	Environment   string `yaml:"environment"`

	// Logging
	LogLevel string `yaml:"logLevel"`

	// Text generation
	TextGenProvider string        `yaml:"textgenProvider"`
	TextGenURL      string        `yaml:"textgenUrl"`
	TextGenTimeout  time.Duration `yaml:"textgenTimeout"`
	OpenAIAPIKey    string        `yaml:"-"`
	OpenAIModel     string        `yaml:"openaiModel"`

	// Tabular documents
	DocumentsURL string `yaml:"documentsUrl"`

	// Timing
	ClassifyDebounce time.Duration `yaml:"classifyDebounce"`
	PromptDebounce   time.Duration `yaml:"promptDebounce"`
	ClassifyCacheTTL time.Duration `yaml:"classifyCacheTtl"`

	// Canvas
	CanvasWidth     float64 `yaml:"canvasWidth"`
	CanvasHeight    float64 `yaml:"canvasHeight"`
	VerticalSpacing float64 `yaml:"verticalSpacing"`

	// AWS configuration
	AWSRegion          string        `yaml:"awsRegion"`
	EventBusName       string        `yaml:"eventBusName"`
	EventFlushInterval time.Duration `yaml:"eventFlushInterval"`

	// CORS
	AllowedOrigins []string `yaml:"allowedOrigins"`

	// Tracing
	OTLPEndpoint string `yaml:"otlpEndpoint"`

	// Feature flags
	EnableMetrics bool `yaml:"enableMetrics"`
	EnableTracing bool `yaml:"enableTracing"`
	EnableCORS    bool `yaml:"enableCors"`

	// File the config was read from, if any
	File string `yaml:"-"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	domain := domainconfig.DefaultDomainConfig()
	return &Config{
		ServerAddress:      ":8080",
		Environment:        "development",
		LogLevel:           "info",
		TextGenProvider:    ProviderNone,
		TextGenTimeout:     60 * time.Second,
		OpenAIModel:        "gpt-4o-mini",
		ClassifyDebounce:   domain.ClassifyDebounce,
		PromptDebounce:     domain.PromptDebounce,
		ClassifyCacheTTL:   domain.ClassificationCacheTTL,
		CanvasWidth:        domain.CanvasWidth,
		CanvasHeight:       domain.CanvasHeight,
		VerticalSpacing:    domain.VerticalSpacing,
		AWSRegion:          "us-west-2",
		EventFlushInterval: time.Second,
		AllowedOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		EnableMetrics:      true,
		EnableCORS:         true,
	}
}

// LoadConfig loads configuration from defaults, then the YAML file named by
// CONFIG_FILE, then environment variables
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads the YAML file at path over the defaults and applies the
// environment on top
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	c.File = path
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.TextGenProvider = strings.ToLower(getEnv("TEXTGEN_PROVIDER", c.TextGenProvider))
	c.TextGenURL = getEnv("TEXTGEN_URL", c.TextGenURL)
	c.TextGenTimeout = getEnvDuration("TEXTGEN_TIMEOUT", c.TextGenTimeout)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIModel = getEnv("OPENAI_MODEL", c.OpenAIModel)

	c.DocumentsURL = getEnv("DOCUMENTS_URL", c.DocumentsURL)

	c.ClassifyDebounce = getEnvDuration("CLASSIFY_DEBOUNCE", c.ClassifyDebounce)
	c.PromptDebounce = getEnvDuration("PROMPT_DEBOUNCE", c.PromptDebounce)
	c.ClassifyCacheTTL = getEnvDuration("CLASSIFY_CACHE_TTL", c.ClassifyCacheTTL)

	c.CanvasWidth = getEnvFloat("CANVAS_WIDTH", c.CanvasWidth)
	c.CanvasHeight = getEnvFloat("CANVAS_HEIGHT", c.CanvasHeight)
	c.VerticalSpacing = getEnvFloat("VERTICAL_SPACING", c.VerticalSpacing)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)
	c.EventFlushInterval = getEnvDuration("EVENT_FLUSH_INTERVAL", c.EventFlushInterval)
	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}
	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	switch c.TextGenProvider {
	case ProviderNone, "":
	case ProviderHTTP:
		if c.TextGenURL == "" {
			return fmt.Errorf("TEXTGEN_URL is required for the http provider")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown TEXTGEN_PROVIDER %q", c.TextGenProvider)
	}

	if c.ClassifyDebounce <= 0 {
		return fmt.Errorf("CLASSIFY_DEBOUNCE must be positive")
	}
	if c.PromptDebounce <= 0 {
		return fmt.Errorf("PROMPT_DEBOUNCE must be positive")
	}
	if c.ClassifyCacheTTL < 0 {
		return fmt.Errorf("CLASSIFY_CACHE_TTL cannot be negative")
	}
	if c.CanvasWidth <= 0 || c.CanvasHeight <= 0 {
		return fmt.Errorf("canvas dimensions must be positive")
	}
	if c.VerticalSpacing <= 0 {
		return fmt.Errorf("VERTICAL_SPACING must be positive")
	}
	if c.EnableTracing && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when tracing is enabled")
	}
	return nil
}

// DomainConfig returns the placement and timing rules for the stores
func (c *Config) DomainConfig() *domainconfig.DomainConfig {
	d := domainconfig.DefaultDomainConfig()
	d.CanvasWidth = c.CanvasWidth
	d.CanvasHeight = c.CanvasHeight
	d.VerticalSpacing = c.VerticalSpacing
	d.ClassifyDebounce = c.ClassifyDebounce
	d.PromptDebounce = c.PromptDebounce
	d.ClassificationCacheTTL = c.ClassifyCacheTTL
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("1500ms") or plain milliseconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
