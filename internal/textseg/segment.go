// Package textseg splits Hebrew-dominant text into pieces small enough for
// a single synthesis call, preferring sentence boundaries, then clause
// pauses, then plain word gaps.
package textseg

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxChars matches the model's training-data sweet spot.
	DefaultMaxChars = 150

	// tokenCeiling keeps a safety margin under the tokenizer's 512 limit.
	tokenCeiling = 400

	// maxWordsPerChunk caps word-level fallback pieces.
	maxWordsPerChunk = 20
)

var (
	// Sentence enders include the Hebrew gershayim and geresh.
	sentenceEnds = regexp.MustCompile(`[.!?״׳]\s*`)
	// Clause pauses include en/em dash and the Hebrew maqaf.
	clauseBounds = regexp.MustCompile(`[,;:–—־]\s*`)
	wordBounds   = regexp.MustCompile(`\s+`)
)

// Budget bounds the size of a single synthesis piece.
type Budget struct {
	MaxChars int
}

// DefaultBudget returns the budget used when a request does not override it.
func DefaultBudget() Budget {
	return Budget{MaxChars: DefaultMaxChars}
}

// EstimateTokens approximates token count from rune length. Hebrew averages
// around two characters per token; 1.5 keeps the estimate conservative.
// It is a soft secondary gate, not a real tokenizer.
func EstimateTokens(text string) int {
	return int(float64(utf8.RuneCountInString(text)) / 1.5)
}

// Fits reports whether text is acceptable as a single piece without any
// splitting: non-empty after trimming, within the character budget, and
// under the token ceiling.
func (b Budget) Fits(text string) bool {
	return len(strings.TrimSpace(text)) > 0 &&
		utf8.RuneCountInString(text) <= b.MaxChars &&
		EstimateTokens(text) <= tokenCeiling
}

// Segment splits text into ordered non-empty pieces, each within budget
// (best effort: a single word longer than the budget is returned as-is).
// Delimiters at split points are dropped; whitespace between merged units
// collapses to single spaces.
func Segment(text string, b Budget) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if b.Fits(text) {
		return []string{text}
	}

	var chunks []string
	current := ""

	flush := func() {
		if s := strings.TrimSpace(current); s != "" {
			chunks = append(chunks, s)
		}
		current = ""
	}
	// Greedy accumulate: grow the buffer while it stays within budget,
	// otherwise flush and restart from the new piece.
	accumulate := func(piece string) {
		joined := strings.TrimSpace(current + " " + piece)
		if utf8.RuneCountInString(joined) <= b.MaxChars {
			current = joined
			return
		}
		flush()
		current = piece
	}

	for _, sentence := range splitSentences(text) {
		if utf8.RuneCountInString(sentence) <= b.MaxChars {
			accumulate(sentence)
			continue
		}
		// Oversized sentence: finish the pending buffer, then descend
		// into clause-level splitting.
		flush()
		for _, clause := range splitClauses(sentence) {
			if utf8.RuneCountInString(clause) <= b.MaxChars {
				accumulate(clause)
				continue
			}
			// Oversized clause: word-level fallback.
			for _, wordChunk := range splitWords(clause, maxWordsPerChunk) {
				accumulate(wordChunk)
			}
		}
	}
	flush()

	return chunks
}

// splitSentences splits on sentence-terminal punctuation, dropping the
// delimiters and empty segments.
func splitSentences(text string) []string {
	return nonEmpty(sentenceEnds.Split(text, -1))
}

// splitClauses splits on pause punctuation, dropping the delimiters and
// empty segments.
func splitClauses(text string) []string {
	return nonEmpty(clauseBounds.Split(text, -1))
}

// splitWords packs whitespace-separated words into groups of at most
// maxWords each.
func splitWords(text string, maxWords int) []string {
	words := wordBounds.Split(strings.TrimSpace(text), -1)
	var chunks []string
	for i := 0; i < len(words); i += maxWords {
		end := i + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.TrimSpace(strings.Join(words[i:end], " "))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

func nonEmpty(parts []string) []string {
	var out []string
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
