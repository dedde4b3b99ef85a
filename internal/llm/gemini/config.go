package gemini

import (
	"errors"

	"github.com/harishm17/study-buddy-sub001/internal/config"
)

// holds Gemini-specific configuration
type Config struct {
	APIKey         string
	Model          string
	MiniModel      string
	EmbeddingModel string
	Dimensions     int
	BaseURL        string
}

func NewConfig(cfg *config.Config) (*Config, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable is required")
	}

	c := &Config{
		APIKey:         cfg.Gemini.APIKey,
		Model:          cfg.Gemini.Model,
		MiniModel:      cfg.Gemini.MiniModel,
		EmbeddingModel: cfg.Gemini.EmbeddingModel,
		Dimensions:     cfg.Embedding.Dimensions,
		BaseURL:        cfg.Gemini.BaseURL,
	}
	if c.Model == "" {
		c.Model = "gemini-2.5-flash"
	}
	if c.MiniModel == "" {
		c.MiniModel = c.Model
	}
	return c, nil
}
