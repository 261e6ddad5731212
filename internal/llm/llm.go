// Package llm implements the model-invoker layer: a uniform way to send a
// structured prompt to a configured LLM provider and get back generated text
// or a typed failure the pipeline's fallback policy can branch on.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/mainos-ai/mainos/config"
)

// FailureKind classifies a provider failure. The pipeline's fallback policy
// branches on this closed enumeration rather than on error message text.
type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureRateLimited
	FailureUnavailable
	FailureInvalidResponse
)

func (k FailureKind) String() string {
	switch k {
	case FailureRateLimited:
		return "rate_limited"
	case FailureUnavailable:
		return "unavailable"
	case FailureInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// Transient reports whether the failure should trigger the provider
// fallback policy. Rate limits, timeouts and provider outages qualify;
// malformed responses do not.
func (k FailureKind) Transient() bool {
	return k == FailureRateLimited || k == FailureUnavailable
}

// ProviderError is the typed failure returned by every Invoker
// implementation.
type ProviderError struct {
	Kind     FailureKind
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s/%s: %s: %v", e.Provider, e.Model, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Classify extracts the FailureKind from err, or FailureUnknown when err is
// not a ProviderError.
func Classify(err error) FailureKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureUnavailable
	}
	return FailureUnknown
}

// Request is a single generation request.
type Request struct {
	Provider     string
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
}

// Invoker sends a generation request to a model provider.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// provider is the per-vendor client interface behind the router.
type provider interface {
	Generate(ctx context.Context, model, system, user string, temperature float64) (string, error)
}

// Router routes requests to the configured provider clients by name.
type Router struct {
	providers map[string]provider
}

// NewRouter builds provider clients from configuration.
func NewRouter(cfg config.LLMConfig) (*Router, error) {
	if len(cfg.Providers) == 0 {
		return nil, errors.New("no LLM providers configured")
	}
	providers := make(map[string]provider, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		switch pc.Type {
		case "openai", "":
			providers[name] = NewOpenAIClient(name, pc)
		case "gemini":
			providers[name] = NewGeminiClient(name, pc)
		default:
			return nil, fmt.Errorf("unsupported LLM provider type: %s", pc.Type)
		}
	}
	return &Router{providers: providers}, nil
}

// Invoke dispatches the request to the provider named in it.
func (r *Router) Invoke(ctx context.Context, req Request) (string, error) {
	p, ok := r.providers[req.Provider]
	if !ok {
		return "", &ProviderError{
			Kind:     FailureUnknown,
			Provider: req.Provider,
			Model:    req.Model,
			Err:      fmt.Errorf("provider %q not configured", req.Provider),
		}
	}
	return p.Generate(ctx, req.Model, req.SystemPrompt, req.UserPrompt, req.Temperature)
}
