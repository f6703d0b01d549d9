package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

type execSynth struct {
	cmd []string
	mu  sync.Mutex
}

type execRequest struct {
	ID            string  `json:"id"`
	Text          string  `json:"text"`
	SpeakerPrompt string  `json:"speaker_prompt"`
	OutputPath    string  `json:"output_path"`
	SampleRate    int     `json:"sample_rate"`
	TopK          int     `json:"top_k"`
	Temperature   float64 `json:"temperature"`
}

// NewExecSynth wraps an external synthesis process. The command receives a
// JSON request on stdin and must write a WAV file at output_path before
// exiting successfully. Calls are serialized: the process owns a single
// loaded model.
func NewExecSynth(command string) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse synth command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("synth command empty")
	}
	return &execSynth{cmd: args}, nil
}

func (e *execSynth) Synthesize(ctx context.Context, req Request) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	payload, err := json.Marshal(execRequest{
		ID:            req.ID,
		Text:          req.Text,
		SpeakerPrompt: req.SpeakerPrompt,
		OutputPath:    req.OutputPath,
		SampleRate:    req.SampleRate,
		TopK:          req.TopK,
		Temperature:   req.Temperature,
	})
	if err != nil {
		return fmt.Errorf("marshal synth request: %w", err)
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("synth command failed: %w: %s", err, stderr.String())
	}
	return nil
}
