package synth

import "context"

// Request asks the backend to synthesize one chunk of text. The backend is
// expected to leave a WAV artifact at OutputPath; the pipeline checks for
// the file rather than consuming a return payload.
type Request struct {
	ID            string
	Text          string
	SpeakerPrompt string
	OutputPath    string
	SampleRate    int
	TopK          int
	Temperature   float64
}

// Synthesizer is the contract for producing per-chunk audio. The model
// behind it is assumed to be a single shared instance, so implementations
// must tolerate strictly sequential callers and nothing more.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) error
}
