package engine

import (
	"fmt"
	"sort"

	"github.com/blevesearch/bleve"

	"github.com/mainos-ai/mainos/internal/search"
)

// sourceIndex ranks collected sources against a section's subject using an
// in-memory full-text index.
type sourceIndex struct {
	idx     bleve.Index
	sources map[string]search.Source
}

// newSourceIndex indexes every collected source by title, snippet and
// readable content.
func newSourceIndex(sources map[string]search.Source) (*sourceIndex, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("source index: %w", err)
	}
	for key, src := range sources {
		doc := map[string]string{
			"title":   src.Title,
			"snippet": src.Snippet,
			"content": src.Content,
		}
		if err := idx.Index(key, doc); err != nil {
			idx.Close()
			return nil, fmt.Errorf("index %s: %w", key, err)
		}
	}
	return &sourceIndex{idx: idx, sources: sources}, nil
}

func (s *sourceIndex) Close() {
	if s.idx != nil {
		s.idx.Close()
	}
}

// Select returns the k sources most relevant to the query, best first. When
// the query matches nothing it falls back to the first k sources in
// deterministic key order, so a drafting prompt never goes out empty-handed
// while sources exist.
func (s *sourceIndex) Select(query string, k int) []search.Source {
	if k <= 0 || len(s.sources) == 0 {
		return nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), k, 0, false)
	res, err := s.idx.Search(req)
	if err == nil && len(res.Hits) > 0 {
		out := make([]search.Source, 0, len(res.Hits))
		for _, hit := range res.Hits {
			if src, ok := s.sources[hit.ID]; ok {
				out = append(out, src)
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	keys := make([]string, 0, len(s.sources))
	for key := range s.sources {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if len(keys) > k {
		keys = keys[:k]
	}
	out := make([]search.Source, 0, len(keys))
	for _, key := range keys {
		out = append(out, s.sources[key])
	}
	return out
}
