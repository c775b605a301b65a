// internal/services/meminator/download-image/config.go
package downloadimage

import (
	"time"

	"meminator/internal/common/config"
)

type Config struct {
	TempDir           string
	FallbackImagePath string
	Timeout           time.Duration
}

func LoadConfig(cfg config.RenderConfig) *Config {
	return &Config{
		TempDir:           cfg.TempDir,
		FallbackImagePath: cfg.FallbackImagePath,
		Timeout:           config.GetDuration(cfg.DownloadTimeout),
	}
}
