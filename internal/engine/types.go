// Package engine implements the report-synthesis orchestration pipeline:
// query generation and web search, outline planning, completion-gated
// section writing, provider fallback, and output adaptation.
package engine

import (
	"context"
	"time"

	"github.com/mainos-ai/mainos/config"
	"github.com/mainos-ai/mainos/internal/search"
)

// ReportType is a report archetype. Unrecognized values fall back to the
// generic archetype instead of failing.
type ReportType string

const (
	TypeMarketAnalysis   ReportType = "market_analysis"
	TypeRiskReport       ReportType = "risk_report"
	TypeNewsletter       ReportType = "newsletter"
	TypeCourse           ReportType = "course"
	TypeSWOTAnalysis     ReportType = "swot_analysis"
	TypeBusinessPlan     ReportType = "business_plan"
	TypeCompetitiveStudy ReportType = "competitive_study"
	TypeGeneric          ReportType = "generic"
)

// Normalize maps unknown report types onto the generic archetype.
func (t ReportType) Normalize() ReportType {
	switch t {
	case TypeMarketAnalysis, TypeRiskReport, TypeNewsletter, TypeCourse,
		TypeSWOTAnalysis, TypeBusinessPlan, TypeCompetitiveStudy:
		return t
	default:
		return TypeGeneric
	}
}

// Tone adjusts the writing voice.
type Tone string

const (
	ToneProfessional   Tone = "professional"
	ToneAcademic       Tone = "academic"
	ToneInformative    Tone = "informative"
	ToneConversational Tone = "conversational"
	ToneCautious       Tone = "cautious"
	ToneOptimistic     Tone = "optimistic"
	ToneEducational    Tone = "educational"
	ToneAnalytical     Tone = "analytical"
)

// Length selects how detailed each section should be.
type Length string

const (
	LengthShort    Length = "short"
	LengthMedium   Length = "medium"
	LengthDetailed Length = "detailed"
)

// RunRequest is one caller-facing report request.
type RunRequest struct {
	Topic      string         `json:"topic"`
	ReportType ReportType     `json:"report_type"`
	Tone       Tone           `json:"tone"`
	Length     Length         `json:"length"`
	Benchmark  bool           `json:"benchmark"`
	Options    map[string]any `json:"options,omitempty"`
}

// RunConfig is the configuration snapshot taken at run start. It is
// read-only for all stages; only the controller's fallback logic swaps the
// planner and writer routes mid-run.
type RunConfig struct {
	ReportType      ReportType
	Tone            Tone
	Length          Length
	Benchmark       bool
	Options         map[string]any
	Planner         config.LLMRoute
	Writer          config.LLMRoute
	Temperature     float64
	QueryCount      int
	MaxConcurrent   int
	SourcesPerDraft int
}

// SectionMeta is one planned outline entry: a unique title plus the
// free-text description used as drafting context.
type SectionMeta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// RunState is the aggregate threaded through the pipeline. Stage nodes take
// a RunState value and return a new one; the maps are cloned on write so no
// two snapshots alias mutable structure.
type RunState struct {
	Topic         string
	Config        RunConfig
	Queries       []string
	SearchResults map[string]search.Source
	Outline       []SectionMeta // insertion order is presentation order
	Sections      map[string]string
}

// Clone returns a deep copy of the state's mutable collections.
func (s RunState) Clone() RunState {
	out := s
	out.Queries = append([]string(nil), s.Queries...)
	out.Outline = append([]SectionMeta(nil), s.Outline...)
	out.SearchResults = make(map[string]search.Source, len(s.SearchResults))
	for k, v := range s.SearchResults {
		out.SearchResults[k] = v
	}
	out.Sections = make(map[string]string, len(s.Sections))
	for k, v := range s.Sections {
		out.Sections[k] = v
	}
	return out
}

// Complete is the completion gate: true once every outline entry has an
// authored section.
func (s RunState) Complete() bool {
	for _, meta := range s.Outline {
		if _, ok := s.Sections[meta.Title]; !ok {
			return false
		}
	}
	return true
}

// Pending returns the outline entries not yet authored, in outline order.
func (s RunState) Pending() []SectionMeta {
	var out []SectionMeta
	for _, meta := range s.Outline {
		if _, ok := s.Sections[meta.Title]; !ok {
			out = append(out, meta)
		}
	}
	return out
}

// DocumentSection is one authored section in presentation order.
type DocumentSection struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Document is the adapted output shape exposed to callers and to the
// benchmark evaluator.
type Document struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Topic          string            `json:"topic"`
	ReportType     ReportType        `json:"report_type"`
	Tone           Tone              `json:"tone"`
	Length         Length            `json:"length"`
	Sections       []DocumentSection `json:"sections"`
	Sources        []search.Source   `json:"sources"`
	Benchmark      *Evaluation       `json:"benchmark,omitempty"`
	BenchmarkError string            `json:"benchmark_error,omitempty"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// Evaluation is the benchmark evaluator's verdict.
type Evaluation struct {
	Overall         float64            `json:"overall_score"`
	Criteria        map[string]float64 `json:"criteria_scores"`
	Recommendations []string           `json:"recommendations"`
}

// SearchCollector issues search queries and returns deduplicated sources.
type SearchCollector interface {
	Collect(ctx context.Context, queries []string) (map[string]search.Source, error)
}

// Evaluator scores a finished document. Failures degrade, they never abort
// a run.
type Evaluator interface {
	Evaluate(ctx context.Context, doc *Document) (Evaluation, error)
}
