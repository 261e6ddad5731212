package benchmark

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/mainos-ai/mainos/config"
	"github.com/mainos-ai/mainos/internal/engine"
	"github.com/mainos-ai/mainos/internal/llm"
)

type fakeInvoker struct {
	answer string
	err    error
	last   llm.Request
}

func (f *fakeInvoker) Invoke(_ context.Context, req llm.Request) (string, error) {
	f.last = req
	return f.answer, f.err
}

func testDoc() *engine.Document {
	return &engine.Document{
		Title:      "Market Analysis: Electric vehicles in Europe",
		ReportType: engine.TypeMarketAnalysis,
		Sections: []engine.DocumentSection{
			{Title: "Trends", Content: "Sales keep growing."},
		},
	}
}

func TestEvaluateParsesJudgeAnswer(t *testing.T) {
	inv := &fakeInvoker{answer: `Overall score: 7.5

Per-criterion evaluation:
- Use of recent data: 8/10
- Competitor analysis: 6.5/10

Improvement recommendations:
- Add quantified forecasts
- Cite more primary sources
`}
	judge := New(config.LLMRoute{Provider: "openai", Model: "gpt-4o"}, inv, log.New(io.Discard, "", 0))

	eval, err := judge.Evaluate(context.Background(), testDoc())
	if err != nil {
		t.Fatal(err)
	}
	if eval.Overall != 7.5 {
		t.Fatalf("overall = %v, want 7.5", eval.Overall)
	}
	if eval.Criteria["Use of recent data"] != 8 || eval.Criteria["Competitor analysis"] != 6.5 {
		t.Fatalf("unexpected criteria scores: %v", eval.Criteria)
	}
	if len(eval.Recommendations) != 2 || eval.Recommendations[0] != "Add quantified forecasts" {
		t.Fatalf("unexpected recommendations: %v", eval.Recommendations)
	}
	if inv.last.Temperature != 0 {
		t.Fatalf("judge calls must be deterministic, temperature = %v", inv.last.Temperature)
	}
}

func TestEvaluateRejectsScorelessAnswer(t *testing.T) {
	inv := &fakeInvoker{answer: "I cannot evaluate this report."}
	judge := New(config.LLMRoute{Provider: "openai", Model: "gpt-4o"}, inv, log.New(io.Discard, "", 0))

	_, err := judge.Evaluate(context.Background(), testDoc())
	if err == nil {
		t.Fatal("expected an error for an answer without scores")
	}
	if llm.Classify(err) != llm.FailureInvalidResponse {
		t.Fatalf("expected an invalid-response classification, got %v", err)
	}
}

func TestEvaluatePropagatesProviderFailure(t *testing.T) {
	inv := &fakeInvoker{err: &llm.ProviderError{Kind: llm.FailureRateLimited, Provider: "openai", Err: errors.New("429")}}
	judge := New(config.LLMRoute{Provider: "openai", Model: "gpt-4o"}, inv, log.New(io.Discard, "", 0))

	_, err := judge.Evaluate(context.Background(), testDoc())
	if !llm.Classify(err).Transient() {
		t.Fatalf("provider failures must keep their classification, got %v", err)
	}
}

func TestCriteriaFor(t *testing.T) {
	if got := criteriaFor(engine.TypeSWOTAnalysis); got[0] != "Internal and external factors clearly separated" {
		t.Fatalf("unexpected swot criteria: %v", got)
	}
	if got := criteriaFor(engine.TypeNewsletter); got[0] != genericCriteria[0] {
		t.Fatalf("types without a dedicated list must use the generic criteria, got %v", got)
	}
}
