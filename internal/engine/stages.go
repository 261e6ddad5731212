package engine

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mainos-ai/mainos/internal/llm"
	"github.com/mainos-ai/mainos/internal/search"
)

// stageQueryAndSearch generates search queries for the topic, issues them
// through the collector and merges the deduplicated results into the state.
// Merging is idempotent: a source already present under its canonical key is
// left untouched.
func (e *Engine) stageQueryAndSearch(ctx context.Context, st RunState, fb *fallback) (RunState, error) {
	out := st.Clone()

	resp, err := e.invoke(ctx, &out, fb, out.Config.Planner, "", queryWriterPrompt(out.Topic, out.Config.QueryCount))
	if err != nil {
		if llm.Classify(err) == llm.FailureInvalidResponse {
			// Query generation is best-effort: fall back to searching the
			// topic itself.
			e.logger.Printf("query generation returned no usable text, searching topic directly: %v", err)
			resp = ""
		} else {
			return out, err
		}
	}

	queries := parseQueries(resp, out.Config.QueryCount)
	if len(queries) == 0 {
		queries = []string{out.Topic}
	}

	results, err := e.collector.Collect(ctx, queries)
	if err != nil {
		return out, &RunError{Stage: StageQuerySearch, Kind: FailSearch, Err: err}
	}

	for _, q := range queries {
		if !containsString(out.Queries, q) {
			out.Queries = append(out.Queries, q)
		}
	}
	for key, src := range results {
		if _, ok := out.SearchResults[key]; !ok {
			out.SearchResults[key] = src
		}
	}
	return out, nil
}

// stagePlan asks the planner model for a section plan and parses it into the
// outline. Unparseable output degrades to the default outline, never to an
// error.
func (e *Engine) stagePlan(ctx context.Context, st RunState, fb *fallback) (RunState, error) {
	out := st.Clone()

	system := reportPlanInstructions(out.Config.ReportType, out.Topic, out.Config.Tone, out.Config.Length)
	user := planUserPrompt(out.Config.ReportType, out.Topic, out.SearchResults)

	resp, err := e.invoke(ctx, &out, fb, out.Config.Planner, system, user)
	if err != nil {
		return out, err
	}

	out.Outline = parseOutline(resp)
	return out, nil
}

// sectionDraft is one section-writer outcome within a pass.
type sectionDraft struct {
	title string
	text  string
	err   error
}

// stageWrite drafts every pending outline entry concurrently and merges the
// successful drafts into the state. It returns the state with all successes
// applied plus the pass's most actionable error: a transient provider error
// when one occurred, otherwise the first failure.
func (e *Engine) stageWrite(ctx context.Context, st RunState, fb *fallback) (RunState, error) {
	out := st.Clone()
	pending := out.Pending()
	if len(pending) == 0 {
		return out, nil
	}

	idx, idxErr := newSourceIndex(out.SearchResults)
	if idxErr != nil {
		e.logger.Printf("source index unavailable, drafting with unranked sources: %v", idxErr)
		idx = nil
	}
	if idx != nil {
		defer idx.Close()
	}

	limit := out.Config.MaxConcurrent
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	drafts := make([]sectionDraft, len(pending))
	var wg sync.WaitGroup

	for i, meta := range pending {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, meta SectionMeta) {
			defer wg.Done()
			defer func() { <-sem }()

			sources := e.selectSources(idx, out, meta)
			prompt := sectionWriterPrompt(out, meta, sources)
			text, err := e.invoker.Invoke(ctx, llm.Request{
				Provider:     out.Config.Writer.Provider,
				Model:        out.Config.Writer.Model,
				SystemPrompt: sectionWriterInstructions,
				UserPrompt:   prompt,
				Temperature:  out.Config.Temperature,
			})
			e.recordCall(out.Config.Writer.Provider, err)
			drafts[i] = sectionDraft{title: meta.Title, text: text, err: err}
		}(i, meta)
	}
	wg.Wait()

	var passErr error
	for _, d := range drafts {
		if d.err != nil {
			if passErr == nil || (llm.Classify(d.err).Transient() && !llm.Classify(passErr).Transient()) {
				passErr = d.err
			}
			continue
		}
		out.Sections[d.title] = d.text
	}
	return out, passErr
}

// selectSources picks the sources most relevant to one section.
func (e *Engine) selectSources(idx *sourceIndex, st RunState, meta SectionMeta) []search.Source {
	k := st.Config.SourcesPerDraft
	if k <= 0 {
		k = 5
	}
	if idx != nil {
		return idx.Select(meta.Title+" "+meta.Description, k)
	}
	keys := make([]string, 0, len(st.SearchResults))
	for key := range st.SearchResults {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if len(keys) > k {
		keys = keys[:k]
	}
	out := make([]search.Source, 0, len(keys))
	for _, key := range keys {
		out = append(out, st.SearchResults[key])
	}
	return out
}

// parseQueries extracts up to max query lines from model output, dropping
// numbering, bullets and blank lines.
func parseQueries(text string, max int) []string {
	var out []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		line = strings.TrimLeft(line, "-*0123456789. ")
		line = strings.Trim(line, `"`)
		if line == "" {
			continue
		}
		out = append(out, line)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
