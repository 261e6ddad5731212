// Package export renders finished documents into delivery formats.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mainos-ai/mainos/internal/engine"
)

// Markdown renders the document as a standalone markdown report: title,
// sections in order, a sources list and, when present, the benchmark scores.
func Markdown(doc *engine.Document) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	fmt.Fprintf(&b, "_%s · %s tone · %s_\n\n", doc.ReportType, doc.Tone, doc.Length)

	for _, s := range doc.Sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", s.Title, strings.TrimSpace(s.Content))
	}

	if len(doc.Sources) > 0 {
		b.WriteString("## Sources\n\n")
		for _, src := range doc.Sources {
			title := src.Title
			if title == "" {
				title = src.URL
			}
			fmt.Fprintf(&b, "- [%s](%s)\n", title, src.URL)
		}
		b.WriteString("\n")
	}

	if doc.Benchmark != nil {
		b.WriteString("## Quality assessment\n\n")
		if doc.BenchmarkError != "" {
			fmt.Fprintf(&b, "Evaluation unavailable: %s\n", doc.BenchmarkError)
		} else {
			fmt.Fprintf(&b, "Overall score: %.1f/10\n\n", doc.Benchmark.Overall)
			names := make([]string, 0, len(doc.Benchmark.Criteria))
			for name := range doc.Benchmark.Criteria {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(&b, "- %s: %.1f/10\n", name, doc.Benchmark.Criteria[name])
			}
			if len(doc.Benchmark.Recommendations) > 0 {
				b.WriteString("\nRecommendations:\n\n")
				for _, r := range doc.Benchmark.Recommendations {
					fmt.Fprintf(&b, "- %s\n", r)
				}
			}
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
