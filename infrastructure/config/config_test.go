package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, ProviderNone, cfg.TextGenProvider)
	assert.Equal(t, time.Second, cfg.ClassifyDebounce)
	assert.Equal(t, time.Second, cfg.PromptDebounce)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accelent.yaml")
	writeFile(t, path, `
serverAddress: ":9000"
logLevel: debug
promptDebounce: 2s
canvasWidth: 1600
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("CLASSIFY_DEBOUNCE", "250")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ServerAddress)
	assert.Equal(t, "warn", cfg.LogLevel, "environment wins over the file")
	assert.Equal(t, 2*time.Second, cfg.PromptDebounce)
	assert.Equal(t, 250*time.Millisecond, cfg.ClassifyDebounce)
	assert.Equal(t, path, cfg.File)

	domain := cfg.DomainConfig()
	assert.Equal(t, 1600.0, domain.CanvasWidth)
	assert.Equal(t, 2*time.Second, domain.PromptDebounce)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"http without url", func(c *Config) { c.TextGenProvider = ProviderHTTP }, "TEXTGEN_URL"},
		{"openai without key", func(c *Config) { c.TextGenProvider = ProviderOpenAI }, "OPENAI_API_KEY"},
		{"unknown provider", func(c *Config) { c.TextGenProvider = "carrier-pigeon" }, "unknown TEXTGEN_PROVIDER"},
		{"zero debounce", func(c *Config) { c.PromptDebounce = 0 }, "PROMPT_DEBOUNCE"},
		{"negative ttl", func(c *Config) { c.ClassifyCacheTTL = -time.Second }, "CLASSIFY_CACHE_TTL"},
		{"tracing without endpoint", func(c *Config) { c.EnableTracing = true }, "OTEL_EXPORTER_OTLP_ENDPOINT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWatcher_Reloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accelent.yaml")
	writeFile(t, path, "logLevel: info\n")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	w, err := NewWatcher(cfg, nil)
	require.NoError(t, err)
	defer w.Stop()

	changed := make(chan string, 1)
	w.OnChange(func(_, next *Config) {
		select {
		case changed <- next.LogLevel:
		default:
		}
	})
	w.Start()

	writeFile(t, path, "logLevel: debug\n")

	select {
	case level := <-changed:
		assert.Equal(t, "debug", level)
		assert.Equal(t, "debug", w.Current().LogLevel)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestNewWatcher_RequiresFile(t *testing.T) {
	_, err := NewWatcher(Default(), nil)
	assert.Error(t, err)
}
