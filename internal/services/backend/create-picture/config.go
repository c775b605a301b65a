// internal/services/backend/create-picture/config.go
package createpicture

import "meminator/internal/common/config"

type Config struct {
	FallbackImageURL string
	FallbackPhrase   string
}

func LoadConfig(cfg config.FallbackConfig) *Config {
	c := &Config{
		FallbackImageURL: cfg.ImageURL,
		FallbackPhrase:   cfg.Phrase,
	}
	if c.FallbackImageURL == "" {
		c.FallbackImageURL = config.DefaultFallbackImageURL
	}
	if c.FallbackPhrase == "" {
		c.FallbackPhrase = config.DefaultFallbackPhrase
	}
	return c
}
