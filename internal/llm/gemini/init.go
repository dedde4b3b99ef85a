package gemini

import (
	"github.com/harishm17/study-buddy-sub001/internal/config"
	"github.com/harishm17/study-buddy-sub001/internal/llm"
)

// Register Gemini provider on package import
func init() {
	llm.RegisterProvider("gemini", func(cfg *config.Config) (llm.Provider, error) {
		c, err := NewConfig(cfg)
		if err != nil {
			return nil, err
		}
		return NewClient(c)
	})
}
