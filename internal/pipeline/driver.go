package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/kol-labs/kol-core/internal/audio"
	"github.com/kol-labs/kol-core/internal/synth"
)

// ErrNoArtifact marks a synthesis call that produced no audio file.
var ErrNoArtifact = errors.New("no audio artifact produced")

// ChunkDiag records one attempted chunk for debugging output.
type ChunkDiag struct {
	ID    string
	Chars int
}

func (d ChunkDiag) String() string {
	return fmt.Sprintf("%s: %d chars", d.ID, d.Chars)
}

// driver runs synthesis once per plan entry, strictly in plan order. The
// backend holds a single shared model, so no calls overlap.
type driver struct {
	synth   synth.Synthesizer
	workDir string
	log     *slog.Logger
}

// run synthesizes every entry and returns the artifacts alongside
// diagnostics for each attempted chunk. The first entry whose artifact is
// missing aborts the whole run: delivering some chunks of a request would
// silently truncate the speech, which is worse than an explicit error.
// Diagnostics accumulated up to and including the failed chunk are returned
// with the error.
func (d *driver) run(ctx context.Context, plan Plan, params synthParams) ([]audio.Artifact, []ChunkDiag, error) {
	var (
		artifacts []audio.Artifact
		diags     []ChunkDiag
	)
	for i, entry := range plan.Entries {
		diags = append(diags, ChunkDiag{ID: entry.ID, Chars: utf8.RuneCountInString(entry.Text)})

		outPath := filepath.Join(d.workDir, entry.ID+".wav")
		d.log.Info("synthesizing chunk",
			slog.String("chunk", entry.ID),
			slog.Int("position", i+1),
			slog.Int("total", len(plan.Entries)))

		err := d.synth.Synthesize(ctx, synth.Request{
			ID:            entry.ID,
			Text:          entry.Text,
			SpeakerPrompt: params.speakerPrompt,
			OutputPath:    outPath,
			SampleRate:    params.sampleRate,
			TopK:          params.topK,
			Temperature:   params.temperature,
		})
		if err != nil {
			return nil, diags, fmt.Errorf("synthesize chunk %s: %w", entry.ID, err)
		}
		if _, statErr := os.Stat(outPath); statErr != nil {
			return nil, diags, fmt.Errorf("chunk %s: %w", entry.ID, ErrNoArtifact)
		}
		artifacts = append(artifacts, audio.Artifact{ID: entry.ID, Path: outPath})
	}
	return artifacts, diags, nil
}

type synthParams struct {
	speakerPrompt string
	sampleRate    int
	topK          int
	temperature   float64
}
