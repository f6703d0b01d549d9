package synth

import (
	"context"
	"unicode/utf8"

	"github.com/kol-labs/kol-core/internal/audio"
)

type mockSynth struct {
	sampleRate int
}

// NewMockSynth returns a backend that writes a silent WAV artifact whose
// duration grows with the text length. Useful for development and tests.
func NewMockSynth(sampleRate int) Synthesizer {
	return &mockSynth{sampleRate: sampleRate}
}

func (m *mockSynth) Synthesize(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rate := req.SampleRate
	if rate <= 0 {
		rate = m.sampleRate
	}
	// 50ms base plus 5ms per rune keeps durations deterministic.
	frames := rate/20 + utf8.RuneCountInString(req.Text)*rate/200
	return audio.SaveMono(req.OutputPath, make([]int, frames), rate)
}
