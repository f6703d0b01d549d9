// Package pipeline plans, drives and assembles chunked speech synthesis:
// one input text becomes an ordered chunk plan, one synthesis call per
// chunk, and one stitched output waveform.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/kol-labs/kol-core/internal/textseg"
)

// Entry pairs a stable identifier with the chunk text it names. The
// identifier doubles as the artifact base filename.
type Entry struct {
	ID   string
	Text string
}

// Plan is the ordered set of chunks derived from one request.
type Plan struct {
	Entries []Entry
	Multi   bool
}

// BuildPlan segments text and assigns identifiers. A single piece keeps the
// caller's base name; multiple pieces get zero-padded positional suffixes
// ({base}_part_001_of_003). Pure and deterministic.
func BuildPlan(text, baseName string, budget textseg.Budget) Plan {
	pieces := textseg.Segment(text, budget)

	if len(pieces) <= 1 {
		chunk := strings.TrimSpace(text)
		if len(pieces) == 1 {
			chunk = pieces[0]
		}
		return Plan{Entries: []Entry{{ID: baseName, Text: chunk}}}
	}

	entries := make([]Entry, 0, len(pieces))
	for i, piece := range pieces {
		entries = append(entries, Entry{
			ID:   fmt.Sprintf("%s_part_%03d_of_%03d", baseName, i+1, len(pieces)),
			Text: piece,
		})
	}
	return Plan{Entries: entries, Multi: true}
}
