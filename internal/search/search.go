// Package search implements the web-search collector: it fans queries out to
// a configured search provider and merges the results into a deduplicated
// source map keyed by canonical URL.
package search

import (
	"context"
	"errors"

	"github.com/mainos-ai/mainos/config"
)

// Source is one deduplicated search hit.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Content string `json:"content,omitempty"` // readable page text when fetched
}

// WebSearcher issues a single query against an external search engine.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Source, error)
}

// ErrUnsupportedProvider is returned for unknown search provider names.
var ErrUnsupportedProvider = errors.New("unsupported search provider")

// NewWebSearcher builds the configured search provider client.
func NewWebSearcher(cfg config.SearchConfig) (WebSearcher, error) {
	switch cfg.Provider {
	case "serper", "":
		return &Serper{APIKey: cfg.SerperAPIKey, Timeout: cfg.Timeout}, nil
	case "tavily":
		return NewTavily(cfg.TavilyAPIKey, cfg.Timeout), nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
