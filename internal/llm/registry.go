package llm

import (
	"fmt"
	"sort"

	"github.com/harishm17/study-buddy-sub001/internal/config"
)

// defines a function that creates a new provider instance
type ProviderFactory func(cfg *config.Config) (Provider, error)

// global registry of available providers
var providers = make(map[string]ProviderFactory)

// registers a provider factory with the given name
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// creates a new provider instance based on the configured name
func NewProvider(cfg *config.Config) (Provider, error) {
	factory, exists := providers[cfg.AI.Provider]
	if !exists {
		return nil, fmt.Errorf("unsupported provider: %s", cfg.AI.Provider)
	}
	return factory(cfg)
}

func RegisteredProviders() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
