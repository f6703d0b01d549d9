package audio

import (
	"fmt"
	"log/slog"
	"os"
	"time"
)

// DefaultSilence is inserted between consecutive chunks for natural pacing.
const DefaultSilence = 300 * time.Millisecond

// Artifact is one chunk's synthesized waveform file, keyed by its plan
// identifier.
type Artifact struct {
	ID   string
	Path string
}

// Assembler stitches per-chunk waveforms into one output file at a fixed
// target sample rate.
type Assembler struct {
	targetRate int
	silence    time.Duration
	log        *slog.Logger
}

// NewAssembler builds an assembler. A non-positive silence duration falls
// back to DefaultSilence.
func NewAssembler(targetRate int, silence time.Duration, log *slog.Logger) *Assembler {
	if silence <= 0 {
		silence = DefaultSilence
	}
	return &Assembler{
		targetRate: targetRate,
		silence:    silence,
		log:        log.With(slog.String("component", "assembler")),
	}
}

// TargetRate returns the output sample rate.
func (a *Assembler) TargetRate() int { return a.targetRate }

// Assemble combines the given artifacts, in order, into finalPath.
//
// A single artifact is renamed into place without re-encoding, so the output
// is byte-identical to the source. Multiple artifacts are decoded, resampled
// to the target rate where needed, optionally separated by silence, and
// concatenated. The concatenated file is written to a temporary path and
// renamed, so a failed run never leaves a partial final file. Intermediate
// chunk files are deleted after success; deletion failures are only logged.
func (a *Assembler) Assemble(artifacts []Artifact, insertSilence bool, finalPath string) error {
	if len(artifacts) == 0 {
		return fmt.Errorf("no artifacts to assemble")
	}

	if len(artifacts) == 1 {
		if artifacts[0].Path == finalPath {
			return nil
		}
		if err := os.Rename(artifacts[0].Path, finalPath); err != nil {
			return fmt.Errorf("rename %s: %w", artifacts[0].ID, err)
		}
		return nil
	}

	var combined []int
	gap := Silence(a.targetRate, a.silence)
	for i, art := range artifacts {
		samples, rate, err := LoadMono(art.Path)
		if err != nil {
			return fmt.Errorf("load chunk %s: %w", art.ID, err)
		}
		if rate != a.targetRate {
			a.log.Warn("resampling chunk",
				slog.String("chunk", art.ID),
				slog.Int("from", rate),
				slog.Int("to", a.targetRate))
			samples = Resample(samples, rate, a.targetRate)
		}
		combined = append(combined, samples...)
		if insertSilence && i < len(artifacts)-1 {
			combined = append(combined, gap...)
		}
	}

	tmpPath := finalPath + ".partial"
	if err := SaveMono(tmpPath, combined, a.targetRate); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write combined audio: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("finalize combined audio: %w", err)
	}

	a.cleanup(artifacts)
	a.log.Info("assembled audio",
		slog.Int("chunks", len(artifacts)),
		slog.String("output", finalPath))
	return nil
}

// cleanup removes intermediate chunk files, best effort.
func (a *Assembler) cleanup(artifacts []Artifact) {
	for _, art := range artifacts {
		if err := os.Remove(art.Path); err != nil && !os.IsNotExist(err) {
			a.log.Warn("failed to remove chunk file",
				slog.String("chunk", art.ID),
				slog.String("error", err.Error()))
		}
	}
}
