package search

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/mainos-ai/mainos/config"
)

type fakeSearcher struct {
	results map[string][]Source
	errs    map[string]error
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]Source, error) {
	if err, ok := f.errs[query]; ok {
		return nil, err
	}
	return f.results[query], nil
}

func discardLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestCollectDeduplicatesByCanonicalURL(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]Source{
		"ev market": {
			{Title: "A", URL: "https://example.com/a?utm_source=news", Snippet: "first"},
			{Title: "B", URL: "https://other.org/b", Snippet: "second"},
		},
		"ev trends": {
			{Title: "A again", URL: "example.com/a", Snippet: "duplicate"},
		},
	}}
	c := NewCollector(config.SearchConfig{MaxResults: 5}, searcher, discardLogger())

	merged, err := c.Collect(context.Background(), []string{"ev market", "ev trends"})
	if err != nil {
		t.Fatal(err)
	}
	if len(merged) != 2 {
		t.Fatalf("expected 2 deduplicated sources, got %d", len(merged))
	}
	if _, ok := merged["https://example.com/a"]; !ok {
		t.Fatalf("expected canonical key for example.com/a, have %v", merged)
	}
}

func TestCollectIsIdempotentAcrossReruns(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]Source{
		"q": {{Title: "A", URL: "https://example.com/a", Snippet: "s"}},
	}}
	c := NewCollector(config.SearchConfig{}, searcher, discardLogger())

	first, err := c.Collect(context.Background(), []string{"q"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Collect(context.Background(), []string{"q"})
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("rerun changed result count: %d vs %d", len(first), len(second))
	}
	for key, src := range first {
		if second[key] != src {
			t.Fatalf("rerun changed source under key %s", key)
		}
	}
}

func TestCollectToleratesPartialFailure(t *testing.T) {
	searcher := &fakeSearcher{
		results: map[string][]Source{"ok": {{Title: "A", URL: "https://example.com/a"}}},
		errs:    map[string]error{"bad": errors.New("upstream 500")},
	}
	c := NewCollector(config.SearchConfig{}, searcher, discardLogger())

	merged, err := c.Collect(context.Background(), []string{"ok", "bad"})
	if err != nil {
		t.Fatalf("partial failure must not fail the collect: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("expected 1 source, got %d", len(merged))
	}
}

func TestCollectFailsWhenEverythingFails(t *testing.T) {
	searcher := &fakeSearcher{errs: map[string]error{
		"a": errors.New("down"),
		"b": errors.New("down"),
	}}
	c := NewCollector(config.SearchConfig{}, searcher, discardLogger())

	_, err := c.Collect(context.Background(), []string{"a", "b"})
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
}
