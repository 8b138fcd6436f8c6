// Package llm classifies uploaded documents against an expected document
// type using an external text/vision model.
package llm

import (
	"context"
	"fmt"
	"strings"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"
const defaultOpenAIModel = "gpt-4o-mini"

// Prompt is one request/response exchange with a provider. Image fields are
// set only for image content.
type Prompt struct {
	System        string
	Text          string
	ImageBase64   string
	ImageMimeType string
	MaxTokens     int64
	Temperature   float64
}

type Provider interface {
	Complete(ctx context.Context, p Prompt) (string, error)
	Name() string
	Model() string
}

type ProviderConfig struct {
	Provider      string
	Model         string
	AnthropicKey  string
	OpenAIKey     string
	OpenAIBaseURL string
}

// NewProvider builds the provider selected by cfg.Provider.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "anthropic":
		return NewAnthropicProvider(cfg.AnthropicKey, cfg.Model), nil
	case "openai":
		return NewOpenAIProvider(cfg.OpenAIKey, cfg.Model, cfg.OpenAIBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
