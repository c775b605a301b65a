// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct shared by both services.
type Config struct {
	App       AppConfig                 `mapstructure:"app"`
	Server    ServerConfig              `mapstructure:"server"`
	Upstreams map[string]UpstreamConfig `mapstructure:"upstreams"`
	Fallbacks FallbackConfig            `mapstructure:"fallbacks"`
	Render    RenderConfig              `mapstructure:"render"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Tracing   TracingConfig             `mapstructure:"tracing"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// UpstreamConfig describes one logical upstream service.
type UpstreamConfig struct {
	URL     string `mapstructure:"url"`
	Method  string `mapstructure:"method"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// --- Pipeline Configuration ---

// FallbackConfig holds the literals substituted when a data source is down.
type FallbackConfig struct {
	ImageURL string `mapstructure:"image_url"`
	Phrase   string `mapstructure:"phrase"`
}

// RenderConfig holds settings for the meminator render stage.
type RenderConfig struct {
	TempDir           string `mapstructure:"temp_dir"`
	FallbackImagePath string `mapstructure:"fallback_image_path"`
	MaxWidth          int    `mapstructure:"max_width"`
	MaxHeight         int    `mapstructure:"max_height"`
	Binary            string `mapstructure:"binary"`
	Font              string `mapstructure:"font"`
	PointSize         int    `mapstructure:"point_size"`
	Fill              string `mapstructure:"fill"`
	Undercolor        string `mapstructure:"undercolor"`
	Gravity           string `mapstructure:"gravity"`
	Timeout           int    `mapstructure:"timeout"`          // milliseconds
	DownloadTimeout   int    `mapstructure:"download_timeout"` // milliseconds

	// Request defaults for /applyPhraseToPicture
	DefaultPhrase   string `mapstructure:"default_phrase"`
	MissingPhrase   string `mapstructure:"missing_phrase"`
	MissingImageURL string `mapstructure:"missing_image_url"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TracingConfig controls span export. Spans are always created; they are only
// shipped when Enabled and a collector endpoint is configured.
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}
