// Package audio loads, generates, resamples and stitches WAV waveforms for
// the synthesis pipeline. Everything downstream of decoding is mono PCM.
package audio

import (
	"fmt"
	"os"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const outputBitDepth = 16

// LoadMono decodes a WAV file into mono samples plus its sample rate.
// Multi-channel input is downmixed by averaging across channels.
func LoadMono(path string) ([]int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.SampleRate == 0 {
		return nil, 0, fmt.Errorf("wav %s has no format info", path)
	}

	channels := buf.Format.NumChannels
	if channels <= 1 {
		return buf.Data, buf.Format.SampleRate, nil
	}
	frames := len(buf.Data) / channels
	mono := make([]int, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c]
		}
		mono[i] = sum / channels
	}
	return mono, buf.Format.SampleRate, nil
}

// SaveMono encodes mono samples as a 16-bit PCM WAV file.
func SaveMono(path string, samples []int, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: outputBitDepth,
	}
	enc := wav.NewEncoder(f, sampleRate, outputBitDepth, 1, 1)
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// Silence produces an all-zero mono buffer of the given duration.
func Silence(sampleRate int, d time.Duration) []int {
	frames := int(float64(sampleRate) * d.Seconds())
	if frames < 0 {
		frames = 0
	}
	return make([]int, frames)
}

// Resample converts mono samples from srcRate to dstRate by linear
// interpolation. Equal rates return the input unchanged.
func Resample(samples []int, srcRate, dstRate int) []int {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	outFrames := int(float64(len(samples)) * float64(dstRate) / float64(srcRate))
	if outFrames < 1 {
		outFrames = 1
	}
	out := make([]int, outFrames)
	if outFrames == 1 {
		out[0] = samples[0]
		return out
	}
	ratio := float64(len(samples)-1) / float64(outFrames-1)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * ratio
		left := int(pos)
		if left >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(left)
		out[i] = int(float64(samples[left])*(1-frac) + float64(samples[left+1])*frac)
	}
	return out
}
