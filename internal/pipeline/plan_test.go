package pipeline

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kol-labs/kol-core/internal/textseg"
)

func TestBuildPlanSingleChunk(t *testing.T) {
	plan := BuildPlan("  שלום, איך הולך?  ", "greeting", textseg.DefaultBudget())
	if plan.Multi {
		t.Fatal("short text must not be marked multi")
	}
	if len(plan.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(plan.Entries))
	}
	if plan.Entries[0].ID != "greeting" {
		t.Fatalf("single chunk keeps the base name, got %q", plan.Entries[0].ID)
	}
	if plan.Entries[0].Text != "שלום, איך הולך?" {
		t.Fatalf("expected trimmed text, got %q", plan.Entries[0].Text)
	}
}

func TestBuildPlanMultiChunkIdentifiers(t *testing.T) {
	sentence := strings.Repeat("מילה ", 20) + "סוף."
	text := strings.Repeat(sentence+" ", 4)

	plan := BuildPlan(text, "story", textseg.Budget{MaxChars: 150})
	if !plan.Multi {
		t.Fatal("expected multi-chunk plan")
	}
	if len(plan.Entries) < 2 {
		t.Fatalf("expected >=2 entries, got %d", len(plan.Entries))
	}

	seen := make(map[string]bool)
	for i, e := range plan.Entries {
		want := identifierFor("story", i+1, len(plan.Entries))
		if e.ID != want {
			t.Fatalf("entry %d: id %q, want %q", i, e.ID, want)
		}
		if seen[e.ID] {
			t.Fatalf("duplicate identifier %q", e.ID)
		}
		seen[e.ID] = true
		if n := utf8.RuneCountInString(e.Text); n > 150 {
			t.Fatalf("entry %d has %d runes", i, n)
		}
	}
}

func TestBuildPlanDeterministic(t *testing.T) {
	sentence := strings.Repeat("עוד מילים פה ", 10) + "."
	text := strings.Repeat(sentence, 5)
	budget := textseg.Budget{MaxChars: 100}

	first := BuildPlan(text, "base", budget)
	second := BuildPlan(text, "base", budget)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical inputs must produce identical plans")
	}
}

func identifierFor(base string, i, n int) string {
	return fmt.Sprintf("%s_part_%03d_of_%03d", base, i, n)
}
