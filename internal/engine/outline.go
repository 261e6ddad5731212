package engine

import "strings"

// headerKind tags how an outline line was recognized.
type headerKind int

const (
	headerNone headerKind = iota
	headerNumbered
	headerKeyword
)

// structuralKeywords are lowercase prefixes that mark a line as an implicit
// section header when the model omits numeric markers.
var structuralKeywords = []string{
	"introduction",
	"executive summary",
	"summary",
	"conclusion",
	"methodology",
	"background",
	"context",
	"overview",
	"recommendations",
}

// defaultOutline is installed when the planner output yields no sections.
func defaultOutline() []SectionMeta {
	return []SectionMeta{
		{Title: "Introduction", Description: "Introduce the topic and frame the report."},
		{Title: "Body", Description: "Develop the main findings on the topic."},
		{Title: "Conclusion", Description: "Summarize the findings and close the report."},
	}
}

// classifyLine tags a single trimmed line. A numbered header is a line
// starting with a numeric marker followed by a period ("3. Competitors");
// a keyword header is a line whose lowercase text starts with a recognized
// structural keyword.
func classifyLine(line string) (title string, kind headerKind) {
	if line == "" {
		return "", headerNone
	}
	if line[0] >= '0' && line[0] <= '9' {
		head := line
		if len(head) > 5 {
			head = head[:5]
		}
		if dot := strings.Index(head, "."); dot > 0 {
			title = strings.TrimSpace(line[strings.Index(line, ".")+1:])
			title = strings.Trim(title, "*# ")
			if title != "" {
				return title, headerNumbered
			}
		}
		return "", headerNone
	}
	lower := strings.ToLower(line)
	for _, kw := range structuralKeywords {
		if strings.HasPrefix(lower, kw) {
			return strings.Trim(line, "*# "), headerKeyword
		}
	}
	return "", headerNone
}

// parseOutline extracts an ordered, unique-titled outline from free-form
// planner output. The heuristic is two-pass: numbered headers win when any
// exist; otherwise keyword headers are used; when neither matches a single
// line the default three-entry outline is installed. Malformed input never
// errors, it only degrades.
func parseOutline(text string) []SectionMeta {
	var numbered, keyword []SectionMeta
	seenNumbered := map[string]bool{}
	seenKeyword := map[string]bool{}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		title, kind := classifyLine(line)
		switch kind {
		case headerNumbered:
			if !seenNumbered[title] {
				seenNumbered[title] = true
				numbered = append(numbered, SectionMeta{Title: title, Description: line})
			}
		case headerKeyword:
			if !seenKeyword[title] {
				seenKeyword[title] = true
				keyword = append(keyword, SectionMeta{Title: title, Description: line})
			}
		}
	}

	if len(numbered) > 0 {
		return numbered
	}
	if len(keyword) > 0 {
		return keyword
	}
	return defaultOutline()
}
