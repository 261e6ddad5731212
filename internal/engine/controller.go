package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mainos-ai/mainos/config"
	"github.com/mainos-ai/mainos/internal/llm"
	"github.com/mainos-ai/mainos/internal/search"
	"github.com/mainos-ai/mainos/internal/telemetry"
)

// Engine is the pipeline controller. It sequences the stage nodes, owns the
// provider fallback policy and the writer repeat loop, and adapts the final
// state into the caller-facing document.
type Engine struct {
	cfg       *config.Config
	invoker   llm.Invoker
	collector SearchCollector
	evaluator Evaluator
	telemetry *telemetry.Telemetry
	logger    *log.Logger

	// writePass is the section-writer stage node; swappable in tests.
	writePass func(context.Context, RunState, *fallback) (RunState, error)
}

// New wires an Engine. evaluator and tele may be nil; the logger must not be.
func New(cfg *config.Config, invoker llm.Invoker, collector SearchCollector, evaluator Evaluator, tele *telemetry.Telemetry, logger *log.Logger) *Engine {
	e := &Engine{
		cfg:       cfg,
		invoker:   invoker,
		collector: collector,
		evaluator: evaluator,
		telemetry: tele,
		logger:    logger,
	}
	e.writePass = e.stageWrite
	return e
}

// fallback tracks the run's provider state machine. A run starts on the
// caller-requested routes; the first transient failure downgrades both the
// planner and writer roles to the fallback route. There is no way back to
// the primary provider within a run.
type fallback struct {
	route      config.LLMRoute
	downgraded bool
	primaryErr error
}

// extraWriterPasses bounds the writer repeat loop beyond one pass per
// outline entry.
const extraWriterPasses = 2

// Run executes one report run end to end. The outcome is binary: a complete
// document, or a *RunError describing why and where the run failed.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*Document, error) {
	start := time.Now()
	doc, err := e.run(ctx, req)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	e.telemetry.RecordRun(outcome, time.Since(start))
	return doc, err
}

func (e *Engine) run(ctx context.Context, req RunRequest) (*Document, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, &RunError{Stage: StageQuerySearch, Kind: FailInvalid, Err: ErrEmptyTopic}
	}

	state := e.newRunState(req)
	fb := &fallback{route: e.cfg.LLM.Routing.Fallback}

	var err error
	for _, step := range []struct {
		stage Stage
		fn    func(context.Context, RunState, *fallback) (RunState, error)
	}{
		{StageQuerySearch, e.stageQueryAndSearch},
		{StagePlan, e.stagePlan},
	} {
		if cerr := checkpoint(ctx, step.stage); cerr != nil {
			return nil, cerr
		}
		begin := time.Now()
		state, err = step.fn(ctx, state, fb)
		e.telemetry.RecordStage(string(step.stage), time.Since(begin))
		if err != nil {
			return nil, asRunError(step.stage, err)
		}
	}

	if err := e.writeLoop(ctx, &state, fb); err != nil {
		return nil, err
	}

	if cerr := checkpoint(ctx, StageAdapt); cerr != nil {
		return nil, cerr
	}
	doc := e.adapt(state)

	if state.Config.Benchmark && e.evaluator != nil {
		eval, err := e.evaluator.Evaluate(ctx, doc)
		if err != nil {
			// Benchmark failures degrade; the run stays successful.
			e.logger.Printf("benchmark evaluation failed: %v", err)
			doc.Benchmark = &Evaluation{}
			doc.BenchmarkError = err.Error()
		} else {
			doc.Benchmark = &eval
		}
	}
	return doc, nil
}

// writeLoop re-invokes the section writer until the completion gate holds.
// Termination is guaranteed by the iteration cap and by treating a pass with
// zero forward progress (and no downgrade) as a fatal stall.
func (e *Engine) writeLoop(ctx context.Context, state *RunState, fb *fallback) error {
	maxPasses := len(state.Outline) + extraWriterPasses
	for pass := 0; pass < maxPasses; pass++ {
		if state.Complete() {
			return nil
		}
		if cerr := checkpoint(ctx, StageWrite); cerr != nil {
			return cerr
		}

		before := len(state.Sections)
		begin := time.Now()
		next, werr := e.writePass(ctx, *state, fb)
		e.telemetry.RecordStage(string(StageWrite), time.Since(begin))
		*state = next

		if werr != nil {
			if cerr := ctx.Err(); cerr != nil {
				return &RunError{Stage: StageWrite, Kind: FailCancelled, Err: cerr}
			}
			kind := llm.Classify(werr)
			switch {
			case kind.Transient() && !fb.downgraded:
				e.downgrade(state, fb, werr)
				continue
			case kind.Transient():
				return &RunError{Stage: StageWrite, Kind: FailProvider, Err: &FallbackExhaustedError{Primary: fb.primaryErr, Fallback: werr}}
			default:
				return &RunError{Stage: StageWrite, Kind: FailProvider, Err: werr}
			}
		}
		if len(state.Sections) == before && !state.Complete() {
			return &RunError{Stage: StageWrite, Kind: FailStalled, Err: ErrStalled}
		}
	}
	if !state.Complete() {
		return &RunError{Stage: StageWrite, Kind: FailStalled, Err: fmt.Errorf("iteration cap %d reached: %w", maxPasses, ErrStalled)}
	}
	return nil
}

// invoke performs a single generation call under the fallback policy: a
// transient failure on the active route downgrades the run to the fallback
// route and retries the call exactly once; a second transient failure is
// terminal for the run.
func (e *Engine) invoke(ctx context.Context, st *RunState, fb *fallback, route config.LLMRoute, system, user string) (string, error) {
	out, err := e.invoker.Invoke(ctx, llm.Request{
		Provider:     route.Provider,
		Model:        route.Model,
		SystemPrompt: system,
		UserPrompt:   user,
		Temperature:  st.Config.Temperature,
	})
	e.recordCall(route.Provider, err)
	if err == nil {
		return out, nil
	}
	// A cancelled or expired run context is terminal for the run; it never
	// enters the fallback policy.
	if cerr := ctx.Err(); cerr != nil {
		return "", cerr
	}
	if !llm.Classify(err).Transient() {
		return "", err
	}
	if fb.downgraded {
		return "", &FallbackExhaustedError{Primary: fb.primaryErr, Fallback: err}
	}

	e.downgrade(st, fb, err)
	out, retryErr := e.invoker.Invoke(ctx, llm.Request{
		Provider:     fb.route.Provider,
		Model:        fb.route.Model,
		SystemPrompt: system,
		UserPrompt:   user,
		Temperature:  st.Config.Temperature,
	})
	e.recordCall(fb.route.Provider, retryErr)
	if retryErr != nil {
		return "", &FallbackExhaustedError{Primary: err, Fallback: retryErr}
	}
	return out, nil
}

// downgrade swaps both the planner and writer roles to the fallback route
// for the rest of the run.
func (e *Engine) downgrade(st *RunState, fb *fallback, cause error) {
	fb.downgraded = true
	fb.primaryErr = cause
	st.Config.Planner = fb.route
	st.Config.Writer = fb.route
	e.telemetry.RecordFallback()
	e.logger.Printf("provider downgraded to %s/%s after: %v", fb.route.Provider, fb.route.Model, cause)
}

// adapt maps the final run state into the flat ordered document shape.
func (e *Engine) adapt(state RunState) *Document {
	sections := make([]DocumentSection, 0, len(state.Outline))
	for _, meta := range state.Outline {
		sections = append(sections, DocumentSection{Title: meta.Title, Content: state.Sections[meta.Title]})
	}

	keys := make([]string, 0, len(state.SearchResults))
	for key := range state.SearchResults {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	sources := make([]search.Source, 0, len(keys))
	for _, key := range keys {
		sources = append(sources, state.SearchResults[key])
	}

	return &Document{
		ID:          uuid.NewString(),
		Title:       fmt.Sprintf("%s: %s", typeLabel(state.Config.ReportType), state.Topic),
		Topic:       state.Topic,
		ReportType:  state.Config.ReportType,
		Tone:        state.Config.Tone,
		Length:      state.Config.Length,
		Sections:    sections,
		Sources:     sources,
		GeneratedAt: time.Now().UTC(),
	}
}

// newRunState builds the immutable configuration snapshot for one run.
func (e *Engine) newRunState(req RunRequest) RunState {
	rc := e.cfg.Report
	tone := req.Tone
	if tone == "" {
		tone = Tone(rc.DefaultTone)
	}
	length := req.Length
	if length == "" {
		length = Length(rc.DefaultLength)
	}
	reportType := req.ReportType
	if reportType == "" {
		reportType = ReportType(rc.DefaultType)
	}
	return RunState{
		Topic: strings.TrimSpace(req.Topic),
		Config: RunConfig{
			ReportType:      reportType.Normalize(),
			Tone:            tone,
			Length:          length,
			Benchmark:       req.Benchmark || rc.BenchmarkDefault,
			Options:         req.Options,
			Planner:         e.cfg.LLM.Routing.Planner,
			Writer:          e.cfg.LLM.Routing.Writer,
			Temperature:     rc.Temperature,
			QueryCount:      rc.QueryCount,
			MaxConcurrent:   rc.MaxConcurrent,
			SourcesPerDraft: rc.SourcesPerDraft,
		},
		SearchResults: map[string]search.Source{},
		Sections:      map[string]string{},
	}
}

func (e *Engine) recordCall(provider string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = llm.Classify(err).String()
	}
	e.telemetry.RecordProviderCall(provider, outcome)
}

// checkpoint enforces cooperative cancellation at stage boundaries.
func checkpoint(ctx context.Context, stage Stage) error {
	if err := ctx.Err(); err != nil {
		return &RunError{Stage: stage, Kind: FailCancelled, Err: err}
	}
	return nil
}

// asRunError wraps provider errors into the structured run failure; errors
// that already carry stage context pass through untouched.
func asRunError(stage Stage, err error) error {
	if _, ok := err.(*RunError); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &RunError{Stage: stage, Kind: FailCancelled, Err: err}
	}
	return &RunError{Stage: stage, Kind: FailProvider, Err: err}
}

var typeLabels = map[ReportType]string{
	TypeMarketAnalysis:   "Market Analysis",
	TypeRiskReport:       "Risk Report",
	TypeNewsletter:       "Newsletter",
	TypeCourse:           "Course",
	TypeSWOTAnalysis:     "SWOT Analysis",
	TypeBusinessPlan:     "Business Plan",
	TypeCompetitiveStudy: "Competitive Study",
	TypeGeneric:          "Report",
}

func typeLabel(t ReportType) string {
	if label, ok := typeLabels[t]; ok {
		return label
	}
	return typeLabels[TypeGeneric]
}
