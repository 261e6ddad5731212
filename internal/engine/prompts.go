package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mainos-ai/mainos/internal/search"
)

// Planning instructions per report archetype. Each instructs the model to
// answer with a numbered section plan so the outline parser has explicit
// markers to work with.
var reportInstructions = map[ReportType]string{
	TypeMarketAnalysis: `You are an expert market analyst. Produce a structured plan for a complete, factual market analysis on the topic: %s.

The plan must cover, as numbered sections:
1. Executive Summary - a concise overview of the key findings
2. Key Trends - current and emerging trends in this market
3. Competitive Landscape - the key players, their market shares and strategies
4. Market Segmentation - how the market splits by product, geography and demographics
5. Opportunities and Challenges - growth opportunities and obstacles
6. Forecast - market projections for the next 3-5 years with justification
7. Recommendations - strategic advice grounded in the analysis`,

	TypeRiskReport: `You are a professional risk analyst. Produce a structured plan for a complete risk assessment on the topic: %s.

The plan must cover, as numbered sections:
1. Executive Summary - the main identified risks and their potential impact
2. Context - the setting of this assessment
3. Methodology - how risks were identified and rated
4. Risk Identification - the risks found, described in detail
5. Risk Evaluation - likelihood, impact and overall severity per risk
6. Mitigation Strategies - measures to manage or reduce each risk
7. Monitoring Plan - how to track risk evolution over time
8. Conclusion - synthesis and outlook`,

	TypeNewsletter: `You are a newsletter editor who makes complex topics accessible. Produce a structured plan for an engaging newsletter on the topic: %s.

The plan must cover, as numbered sections:
1. Opening Hook - a captivating introduction
2. Top Stories - the most important recent developments
3. Deep Dive - a closer look at one aspect of the topic
4. Trends to Watch - what may matter next
5. Useful Resources - pointers for readers who want more`,

	TypeCourse: `You are an experienced teacher. Produce a structured, pedagogical course plan on the topic: %s.

The plan must cover, as numbered sections:
1. Introduction and Learning Objectives - what learners will master
2. Prerequisites - knowledge needed to follow the course
3. Key Concepts - the fundamental notions
4. Core Content - the body of the course, in logical progression
5. Worked Examples - concrete applications of the concepts
6. Exercises - activities that reinforce the learning
7. Summary - the essential takeaways
8. Further Reading - material to go deeper`,

	TypeSWOTAnalysis: `You are a corporate strategy consultant. Produce a structured plan for a thorough SWOT analysis on the topic: %s.

The plan must cover, as numbered sections:
1. Introduction - context and purpose of the analysis
2. Strengths - internal advantages
3. Weaknesses - internal limitations
4. Opportunities - favorable external factors
5. Threats - unfavorable external factors
6. Cross Analysis - using strengths to seize opportunities and counter threats
7. Strategic Recommendations - concrete actions based on the analysis
8. Conclusion - synthesis and outlook`,

	TypeBusinessPlan: `You are a business consultant. Produce a structured plan for a complete business plan on the topic: %s.

The plan must cover, as numbered sections:
1. Executive Summary - the venture in brief
2. Market Opportunity - the problem and the demand
3. Product and Services - what is offered
4. Go-to-Market Strategy - how customers will be reached
5. Operations - how the venture runs
6. Financial Projections - revenue, cost and funding outlook
7. Risks and Mitigations - what could go wrong and the response
8. Conclusion - why the plan holds together`,

	TypeCompetitiveStudy: `You are a competitive intelligence analyst. Produce a structured plan for a competitive study on the topic: %s.

The plan must cover, as numbered sections:
1. Executive Summary - the competitive picture in brief
2. Market Definition - scope and boundaries of the comparison
3. Competitor Profiles - the main players, one by one
4. Comparative Analysis - strengths and weaknesses side by side
5. Positioning - where each player sits and why
6. Strategic Implications - what the landscape means for the reader
7. Conclusion - synthesis and outlook`,

	TypeGeneric: `You are a professional report writer. Produce a structured plan for a clear, well-sourced report on the topic: %s.

The plan must cover, as numbered sections:
1. Introduction - frame the topic and why it matters
2. Body - the main findings, organized logically
3. Conclusion - synthesis and outlook`,
}

// reportPlanInstructions renders the archetype planning system prompt.
func reportPlanInstructions(reportType ReportType, topic string, tone Tone, length Length) string {
	tpl, ok := reportInstructions[reportType]
	if !ok {
		tpl = reportInstructions[TypeGeneric]
	}
	var b strings.Builder
	fmt.Fprintf(&b, tpl, topic)
	fmt.Fprintf(&b, "\n\nTone: %s\nLength: %s\n", tone, length)
	b.WriteString("\nUse recent data and make sure every claim can be supported by credible sources.")
	return b.String()
}

// queryWriterPrompt asks the planner model for web search queries.
func queryWriterPrompt(topic string, count int) string {
	return fmt.Sprintf(`Generate %d distinct web search queries that together cover the topic below from complementary angles. Return one query per line with no numbering and no commentary.

Topic: %s`, count, topic)
}

// planUserPrompt is the user half of the planning request.
func planUserPrompt(reportType ReportType, topic string, sources map[string]search.Source) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a structured section plan for a %q report on the topic: %s\n", reportType, topic)
	if len(sources) > 0 {
		b.WriteString("\nCollected source material:\n")
		b.WriteString(formatSources(sources, 10))
	}
	b.WriteString("\nAnswer with one numbered line per section, in presentation order.")
	return b.String()
}

const sectionWriterInstructions = `You are a section writer for structured reports. Write the full prose for exactly one section of the report, staying strictly on that section's subject. Ground every claim in the provided source material where possible. Do not repeat the section title as a heading; write body text only.`

// sectionWriterPrompt builds the drafting request for one outline entry.
func sectionWriterPrompt(state RunState, meta SectionMeta, sources []search.Source) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report topic: %s\n", state.Topic)
	fmt.Fprintf(&b, "Report type: %s\nTone: %s\nLength: %s\n\n", state.Config.ReportType, state.Config.Tone, state.Config.Length)
	fmt.Fprintf(&b, "Section to write: %s\n", meta.Title)
	if meta.Description != "" && meta.Description != meta.Title {
		fmt.Fprintf(&b, "Section brief: %s\n", meta.Description)
	}
	if len(sources) > 0 {
		b.WriteString("\nRelevant sources:\n")
		for _, src := range sources {
			fmt.Fprintf(&b, "- %s (%s): %s\n", src.Title, src.URL, snippetOf(src))
		}
	}
	return b.String()
}

// formatSources renders up to limit sources as bullet lines, in a
// deterministic order.
func formatSources(sources map[string]search.Source, limit int) string {
	keys := make([]string, 0, len(sources))
	for key := range sources {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	var b strings.Builder
	for _, key := range keys {
		src := sources[key]
		fmt.Fprintf(&b, "- %s (%s): %s\n", src.Title, src.URL, snippetOf(src))
	}
	return b.String()
}

func snippetOf(src search.Source) string {
	if src.Content != "" {
		return src.Content
	}
	return src.Snippet
}
