package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kol-labs/kol-core/internal/audio"
	"github.com/kol-labs/kol-core/internal/synth"
	"github.com/kol-labs/kol-core/internal/textseg"
)

// ErrInvalidInput marks empty or whitespace-only request text.
var ErrInvalidInput = errors.New("text is empty")

// Request describes one synthesis run. WorkDir must be exclusively owned by
// this run; concurrent runs need distinct working directories.
type Request struct {
	Text          string
	BaseName      string
	WorkDir       string
	MaxChars      int
	InsertSilence bool
	SpeakerPrompt string
	TopK          int
	Temperature   float64
}

// Outcome is the result of one run. Diagnostics cover every attempted chunk
// in plan order and survive a later-stage failure.
type Outcome struct {
	AudioPath   string
	Chunked     bool
	Diagnostics []ChunkDiag
	Err         error
}

// Succeeded reports whether the run produced a final audio artifact.
func (o Outcome) Succeeded() bool { return o.Err == nil }

// ChunkInfo renders diagnostics as human-readable strings.
func (o Outcome) ChunkInfo() []string {
	info := make([]string, 0, len(o.Diagnostics))
	for _, d := range o.Diagnostics {
		info = append(info, d.String())
	}
	return info
}

// Pipeline sequences planning, per-chunk synthesis and audio assembly.
// Strictly linear: no stage is revisited and nothing is retried here; retry
// policy, if any, belongs to the synthesizer backend.
type Pipeline struct {
	synth synth.Synthesizer
	asm   *audio.Assembler
	log   *slog.Logger
}

// New builds a pipeline around a synthesizer backend and an assembler.
func New(s synth.Synthesizer, asm *audio.Assembler, log *slog.Logger) *Pipeline {
	return &Pipeline{
		synth: s,
		asm:   asm,
		log:   log.With(slog.String("component", "pipeline")),
	}
}

// Process runs the full pipeline for one request and returns the outcome.
// The final artifact is <WorkDir>/<BaseName>.wav.
func (p *Pipeline) Process(ctx context.Context, req Request) Outcome {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Outcome{Err: ErrInvalidInput}
	}

	budget := textseg.DefaultBudget()
	if req.MaxChars > 0 {
		budget.MaxChars = req.MaxChars
	}

	plan := BuildPlan(text, req.BaseName, budget)
	p.log.Info("planned synthesis",
		slog.String("base", req.BaseName),
		slog.Int("chars", utf8.RuneCountInString(text)),
		slog.Int("chunks", len(plan.Entries)),
		slog.Bool("multi", plan.Multi))

	drv := &driver{synth: p.synth, workDir: req.WorkDir, log: p.log}
	artifacts, diags, err := drv.run(ctx, plan, synthParams{
		speakerPrompt: req.SpeakerPrompt,
		sampleRate:    p.asm.TargetRate(),
		topK:          req.TopK,
		temperature:   req.Temperature,
	})
	if err != nil {
		return Outcome{Chunked: plan.Multi, Diagnostics: diags, Err: err}
	}

	finalPath := filepath.Join(req.WorkDir, req.BaseName+".wav")
	if err := p.asm.Assemble(artifacts, req.InsertSilence, finalPath); err != nil {
		return Outcome{
			Chunked:     plan.Multi,
			Diagnostics: diags,
			Err:         fmt.Errorf("assemble audio: %w", err),
		}
	}

	return Outcome{
		AudioPath:   finalPath,
		Chunked:     plan.Multi,
		Diagnostics: diags,
	}
}
