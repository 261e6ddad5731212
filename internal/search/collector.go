package search

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mainos-ai/mainos/config"
	"github.com/mainos-ai/mainos/internal/helpers"
)

// ErrNoResults is returned when every query failed and no sources were
// collected at all.
var ErrNoResults = errors.New("search: all queries failed, no results collected")

// Collector fans search queries out concurrently and merges the hits into a
// deduplicated map keyed by canonical URL. Individual query failures are
// tolerated: the collector only errors when nothing at all was gathered.
type Collector struct {
	searcher WebSearcher
	reader   *Reader
	cfg      config.SearchConfig
	logger   *log.Logger
}

// NewCollector wires a Collector from configuration.
func NewCollector(cfg config.SearchConfig, searcher WebSearcher, logger *log.Logger) *Collector {
	c := &Collector{searcher: searcher, cfg: cfg, logger: logger}
	if cfg.FetchReadable {
		c.reader = NewReader(cfg.Timeout)
	}
	return c
}

// Collect issues every query and returns the merged, deduplicated sources.
// Re-collecting the same queries yields the same keys, so merging into an
// existing result set is idempotent.
func (c *Collector) Collect(ctx context.Context, queries []string) (map[string]Source, error) {
	merged := make(map[string]Source)
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		failed int
	)

	for _, query := range queries {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			results, err := c.searcher.Search(ctx, q, c.maxResults())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				c.logger.Printf("query %q failed: %v", q, err)
				return
			}
			for _, src := range results {
				key, err := helpers.CanonicalURL(src.URL)
				if err != nil {
					continue
				}
				if _, seen := merged[key]; seen {
					continue
				}
				src.URL = key
				merged[key] = src
			}
		}(query)
	}
	wg.Wait()

	if len(merged) == 0 && failed == len(queries) {
		return nil, ErrNoResults
	}
	if failed > 0 {
		c.logger.Printf("%d/%d queries failed, continuing with %d sources", failed, len(queries), len(merged))
	}

	c.enrich(ctx, merged)
	return merged, nil
}

// enrich fetches readable page text for the first few sources, best effort.
func (c *Collector) enrich(ctx context.Context, sources map[string]Source) {
	if c.reader == nil || c.cfg.FetchTopKPages <= 0 {
		return
	}
	keys := make([]string, 0, len(sources))
	for key := range sources {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if len(keys) > c.cfg.FetchTopKPages {
		keys = keys[:c.cfg.FetchTopKPages]
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, key := range keys {
		k := key
		g.Go(func() error {
			text, err := c.reader.Fetch(ctx, sources[k].URL)
			if err != nil {
				c.logger.Printf("readable fetch failed for %s: %v", k, err)
				return nil
			}
			mu.Lock()
			src := sources[k]
			src.Content = text
			sources[k] = src
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Collector) maxResults() int {
	if c.cfg.MaxResults > 0 {
		return c.cfg.MaxResults
	}
	return 5
}
