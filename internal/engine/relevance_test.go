package engine

import (
	"testing"

	"github.com/mainos-ai/mainos/internal/search"
)

func relevanceSources() map[string]search.Source {
	return map[string]search.Source{
		"https://a.example/batteries": {Title: "Battery chemistry advances", URL: "https://a.example/batteries", Snippet: "Solid state battery cells promise longer range."},
		"https://b.example/charging":  {Title: "Charging networks", URL: "https://b.example/charging", Snippet: "Fast charging corridors across member states."},
		"https://c.example/policy":    {Title: "Subsidy policy", URL: "https://c.example/policy", Snippet: "Purchase incentives and emission rules."},
	}
}

func TestSourceIndexRanksByRelevance(t *testing.T) {
	idx, err := newSourceIndex(relevanceSources())
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	got := idx.Select("battery range", 2)
	if len(got) == 0 {
		t.Fatal("expected at least one match")
	}
	if got[0].URL != "https://a.example/batteries" {
		t.Fatalf("expected the battery source first, got %q", got[0].URL)
	}
	if len(got) > 2 {
		t.Fatalf("selection must honor k, got %d sources", len(got))
	}
}

func TestSourceIndexFallsBackWhenNothingMatches(t *testing.T) {
	idx, err := newSourceIndex(relevanceSources())
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	got := idx.Select("zzqx nonsense", 2)
	if len(got) != 2 {
		t.Fatalf("expected the deterministic fallback to fill k slots, got %d", len(got))
	}
	if got[0].URL != "https://a.example/batteries" {
		t.Fatalf("fallback must be in key order, got %q first", got[0].URL)
	}
}

func TestSourceIndexEmpty(t *testing.T) {
	idx, err := newSourceIndex(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	if got := idx.Select("anything", 3); got != nil {
		t.Fatalf("expected no sources, got %v", got)
	}
	if got := idx.Select("anything", 0); got != nil {
		t.Fatalf("k of zero must select nothing, got %v", got)
	}
}
