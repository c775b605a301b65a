// internal/services/meminator/apply-phrase/config.go
package applyphrase

import (
	"time"

	"meminator/internal/common/config"
)

type Config struct {
	TempDir    string
	Binary     string
	Font       string
	PointSize  int
	Fill       string
	Undercolor string
	Gravity    string
	MaxWidth   int
	MaxHeight  int
	Timeout    time.Duration

	DefaultPhrase   string
	MissingPhrase   string
	MissingImageURL string
}

func LoadConfig(cfg config.RenderConfig) *Config {
	return &Config{
		TempDir:         cfg.TempDir,
		Binary:          cfg.Binary,
		Font:            cfg.Font,
		PointSize:       cfg.PointSize,
		Fill:            cfg.Fill,
		Undercolor:      cfg.Undercolor,
		Gravity:         cfg.Gravity,
		MaxWidth:        cfg.MaxWidth,
		MaxHeight:       cfg.MaxHeight,
		Timeout:         config.GetDuration(cfg.Timeout),
		DefaultPhrase:   cfg.DefaultPhrase,
		MissingPhrase:   cfg.MissingPhrase,
		MissingImageURL: cfg.MissingImageURL,
	}
}
