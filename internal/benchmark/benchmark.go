// Package benchmark scores generated reports with an LLM judge against
// per-report-type quality criteria.
package benchmark

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/mainos-ai/mainos/config"
	"github.com/mainos-ai/mainos/internal/engine"
	"github.com/mainos-ai/mainos/internal/llm"
)

// defaultCriteria lists the quality criteria the judge scores per report
// type. Types without a dedicated list share the generic one.
var defaultCriteria = map[engine.ReportType][]string{
	engine.TypeMarketAnalysis: {
		"Use of recent data",
		"Competitor analysis",
		"Quantified forecasts",
		"Credible source citations",
	},
	engine.TypeSWOTAnalysis: {
		"Internal and external factors clearly separated",
		"Balanced coverage of all four categories",
		"Strategic recommendations",
		"Factor prioritization",
	},
	engine.TypeRiskReport: {
		"Risks ranked by likelihood and impact",
		"Concrete mitigation measures",
		"Credible source citations",
	},
	engine.TypeBusinessPlan: {
		"Realistic financial assumptions",
		"Clear market positioning",
		"Actionable roadmap",
	},
}

var genericCriteria = []string{
	"Coherent structure",
	"Factual content",
	"Cited sources",
	"Clarity of argument",
}

// Judge evaluates a finished document with a dedicated model route. It
// implements engine.Evaluator.
type Judge struct {
	route   config.LLMRoute
	invoker llm.Invoker
	logger  *log.Logger
}

func New(route config.LLMRoute, invoker llm.Invoker, logger *log.Logger) *Judge {
	return &Judge{route: route, invoker: invoker, logger: logger}
}

// Evaluate asks the judge model to score the document and parses its free
// text answer into structured scores.
func (j *Judge) Evaluate(ctx context.Context, doc *engine.Document) (engine.Evaluation, error) {
	resp, err := j.invoker.Invoke(ctx, llm.Request{
		Provider:     j.route.Provider,
		Model:        j.route.Model,
		SystemPrompt: evaluationPrompt(doc),
		UserPrompt:   "Evaluate this report against the criteria provided.",
		Temperature:  0,
	})
	if err != nil {
		return engine.Evaluation{}, fmt.Errorf("benchmark judge: %w", err)
	}

	eval := parseEvaluation(resp)
	if eval.Overall == 0 && len(eval.Criteria) == 0 {
		j.logger.Printf("judge answer carried no scores, treating as invalid: %.80q", resp)
		return engine.Evaluation{}, fmt.Errorf("benchmark judge: %w",
			&llm.ProviderError{Kind: llm.FailureInvalidResponse, Provider: j.route.Provider, Model: j.route.Model, Err: fmt.Errorf("no scores in answer")})
	}
	return eval, nil
}

// criteriaFor returns the scoring criteria for a report type.
func criteriaFor(t engine.ReportType) []string {
	if c, ok := defaultCriteria[t]; ok {
		return c
	}
	return genericCriteria
}

func evaluationPrompt(doc *engine.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert reviewer of professional documents, specialized in %s reports.\n", doc.ReportType)
	b.WriteString("Evaluate the quality of the report below against the listed criteria. Give each criterion a score from 0 to 10 and an overall score.\n\n")

	b.WriteString("# Report under evaluation\n\n")
	fmt.Fprintf(&b, "Title: %s\n\n", doc.Title)
	for _, s := range doc.Sections {
		fmt.Fprintf(&b, "## %s\n%s\n\n", s.Title, s.Content)
	}

	b.WriteString("# Evaluation criteria\n\n")
	for _, c := range criteriaFor(doc.ReportType) {
		fmt.Fprintf(&b, "- %s\n", c)
	}

	b.WriteString(`
# Answer format

Overall score: [0-10]

Per-criterion evaluation:
- Criterion: [score]/10
...

Improvement recommendations:
- Recommendation
...
`)
	return b.String()
}

var (
	overallRe   = regexp.MustCompile(`(?i)overall score\s*:\s*(\d+(?:\.\d+)?)`)
	criterionRe = regexp.MustCompile(`(?m)^[-*]\s*([^:\n]+):\s*(\d+(?:\.\d+)?)\s*/\s*10`)
	bulletRe    = regexp.MustCompile(`(?m)^[-*]\s*([^\n]+)`)
)

// parseEvaluation extracts the overall score, per-criterion scores and
// recommendation bullets from the judge's free text. Bullets that carry a
// score are criteria, the rest are recommendations.
func parseEvaluation(text string) engine.Evaluation {
	eval := engine.Evaluation{Criteria: map[string]float64{}}

	if m := overallRe.FindStringSubmatch(text); m != nil {
		eval.Overall, _ = strconv.ParseFloat(m[1], 64)
	}
	for _, m := range criterionRe.FindAllStringSubmatch(text, -1) {
		score, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		eval.Criteria[strings.TrimSpace(m[1])] = score
	}
	for _, m := range bulletRe.FindAllStringSubmatch(text, -1) {
		line := strings.TrimSpace(m[1])
		if criterionRe.MatchString("- " + line) {
			continue
		}
		eval.Recommendations = append(eval.Recommendations, line)
	}
	return eval
}
