// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Logical upstream names the pipeline depends on.
const (
	UpstreamImageSource  = "image-source"
	UpstreamPhraseSource = "phrase-source"
	UpstreamRender       = "render"
)

// RequiredUpstreams lists the upstreams both loaders and the registry file must provide.
var RequiredUpstreams = []string{UpstreamImageSource, UpstreamPhraseSource, UpstreamRender}

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top of it
// and applies environment overrides for every known key.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // ignore error if not found

	return finalize(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finalize(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	registerDefaults(v)

	// UPSTREAMS_IMAGE_SOURCE_URL overrides upstreams.image-source.url
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finalize(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	resolveUpstreams(v, &cfg)

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// resolveUpstreams re-reads the required upstreams key by key. Unmarshal
// decodes the upstreams map as a single value, so it misses env overrides
// and the defaults of entries a file leaves out.
func resolveUpstreams(v *viper.Viper, cfg *Config) {
	if cfg.Upstreams == nil {
		cfg.Upstreams = make(map[string]UpstreamConfig, len(RequiredUpstreams))
	}
	for _, name := range RequiredUpstreams {
		prefix := "upstreams." + name + "."
		cfg.Upstreams[name] = UpstreamConfig{
			URL:     v.GetString(prefix + "url"),
			Method:  v.GetString(prefix + "method"),
			Timeout: v.GetInt(prefix + "timeout"),
		}
	}
}

// registerDefaults makes every key known to viper so AutomaticEnv can override
// it during Unmarshal even when no config file mentions it.
func registerDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "meminator")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.port", 10115)
	v.SetDefault("server.read_timeout", 15000)
	v.SetDefault("server.write_timeout", 60000)
	v.SetDefault("server.shutdown_timeout", 30000)

	v.SetDefault("upstreams.image-source.url", "http://image-picker:10116/imageUrl")
	v.SetDefault("upstreams.image-source.method", "GET")
	v.SetDefault("upstreams.image-source.timeout", 5000)
	v.SetDefault("upstreams.phrase-source.url", "http://phrase-picker:10118/phrase")
	v.SetDefault("upstreams.phrase-source.method", "GET")
	v.SetDefault("upstreams.phrase-source.timeout", 5000)
	v.SetDefault("upstreams.render.url", "http://meminator:10117/applyPhraseToPicture")
	v.SetDefault("upstreams.render.method", "POST")
	v.SetDefault("upstreams.render.timeout", 30000)

	v.SetDefault("fallbacks.image_url", DefaultFallbackImageURL)
	v.SetDefault("fallbacks.phrase", DefaultFallbackPhrase)

	v.SetDefault("render.temp_dir", os.TempDir())
	v.SetDefault("render.fallback_image_path", "assets/BusinessWitch.png")
	v.SetDefault("render.max_width", 1000)
	v.SetDefault("render.max_height", 1000)
	v.SetDefault("render.binary", "convert")
	v.SetDefault("render.font", "Angkor-Regular")
	v.SetDefault("render.point_size", 48)
	v.SetDefault("render.fill", "white")
	v.SetDefault("render.undercolor", "#00000080")
	v.SetDefault("render.gravity", "North")
	v.SetDefault("render.timeout", 20000)
	v.SetDefault("render.download_timeout", 10000)
	v.SetDefault("render.default_phrase", "I got you")
	v.SetDefault("render.missing_phrase", "words go here")
	v.SetDefault("render.missing_image_url", "http://missing.booo/no-url-here.png")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Fallback literals used when the image or phrase source is unavailable.
const (
	DefaultFallbackImageURL = "https://upload.wikimedia.org/wikipedia/commons/thumb/8/8a/Banana-Single.jpg/1360px-Banana-Single.jpg"
	DefaultFallbackPhrase   = "This is sparta"
)

// loadEnvFile loads .env from the working directory or any parent up to the module root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// applyDefaults fills zero values that survive unmarshalling (e.g. an explicit 0 in yaml).
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 10115
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	for name, upstream := range cfg.Upstreams {
		upstream.Method = strings.ToUpper(strings.TrimSpace(upstream.Method))
		if upstream.Method == "" {
			upstream.Method = "GET"
		}
		if upstream.Timeout == 0 {
			upstream.Timeout = 10000
		}
		cfg.Upstreams[name] = upstream
	}

	if cfg.Fallbacks.ImageURL == "" {
		cfg.Fallbacks.ImageURL = DefaultFallbackImageURL
	}
	if cfg.Fallbacks.Phrase == "" {
		cfg.Fallbacks.Phrase = DefaultFallbackPhrase
	}

	if cfg.Render.TempDir == "" {
		cfg.Render.TempDir = os.TempDir()
	}
	if cfg.Render.MaxWidth == 0 {
		cfg.Render.MaxWidth = 1000
	}
	if cfg.Render.MaxHeight == 0 {
		cfg.Render.MaxHeight = 1000
	}
	if cfg.Render.Binary == "" {
		cfg.Render.Binary = "convert"
	}
	if cfg.Render.PointSize == 0 {
		cfg.Render.PointSize = 48
	}
	if cfg.Render.Timeout == 0 {
		cfg.Render.Timeout = 20000
	}
	if cfg.Render.DownloadTimeout == 0 {
		cfg.Render.DownloadTimeout = 10000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	for _, name := range RequiredUpstreams {
		upstream, ok := cfg.Upstreams[name]
		if !ok || upstream.URL == "" {
			return fmt.Errorf("upstreams.%s.url is required", name)
		}
	}

	if cfg.Render.MaxWidth < 0 || cfg.Render.MaxHeight < 0 {
		return fmt.Errorf("render.max_width and render.max_height must be positive")
	}

	if cfg.Render.FallbackImagePath == "" {
		return fmt.Errorf("render.fallback_image_path is required")
	}

	if cfg.Tracing.Enabled && cfg.Tracing.JaegerEndpoint == "" {
		return fmt.Errorf("tracing.jaeger_endpoint is required when tracing is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
