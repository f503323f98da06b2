// Package llm wraps the language model providers tablescribe talks to: a
// cloud vision model that reads table images and a model that writes SQL.
//
// Providers register a factory by name. "gemini" uses the Google GenAI SDK;
// "openai" and "local" speak the OpenAI chat completions protocol, the latter
// against a locally hosted server.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Default settings applied by NewGenerator when a field is left empty.
const (
	DefaultProvider = "gemini"
	DefaultModel    = "gemini-2.5-flash"
	DefaultTimeout  = 2 * time.Minute
)

// Config selects and configures a provider.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Generator produces text from a prompt, optionally with one image attached.
type Generator interface {
	// Name returns the provider name.
	Name() string

	// Generate returns the model's text answer to prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateWithImage sends prompt together with an image of the given
	// MIME type.
	GenerateWithImage(ctx context.Context, prompt string, image []byte, mime string) (string, error)
}

// Factory builds a Generator from a config.
type Factory func(ctx context.Context, cfg Config, logger *slog.Logger) (Generator, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a provider factory to the registry.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// ListProviders returns all registered provider names (sorted).
func ListProviders() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewGenerator creates the generator named by cfg.Provider.
func NewGenerator(ctx context.Context, cfg Config, logger *slog.Logger) (Generator, error) {
	if cfg.Provider == "" {
		cfg.Provider = DefaultProvider
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	registryMu.RLock()
	factory, ok := registry[cfg.Provider]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownProviderError{Provider: cfg.Provider, Available: ListProviders()}
	}
	return factory(ctx, cfg, logger.With(slog.String("provider", cfg.Provider)))
}

// UnknownProviderError is returned when an unknown provider is requested.
type UnknownProviderError struct {
	Provider  string
	Available []string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown model provider %q\nAvailable providers: %v\nHint: Check your model.provider in tablescribe.yaml", e.Provider, e.Available)
}

func init() {
	Register("gemini", newGemini)
	Register("openai", newOpenAI)
	Register("local", newLocal)
}
