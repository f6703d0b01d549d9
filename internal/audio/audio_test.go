package audio

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	samples := []int{0, 1000, -1000, 32767, -32768, 42}

	if err := SaveMono(path, samples, 24000); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, rate, err := LoadMono(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rate != 24000 {
		t.Fatalf("expected rate 24000, got %d", rate)
	}
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("sample %d: got %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestLoadMonoMissingFile(t *testing.T) {
	if _, _, err := LoadMono(filepath.Join(t.TempDir(), "nope.wav")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSilenceDuration(t *testing.T) {
	gap := Silence(24000, 300*time.Millisecond)
	if len(gap) != 7200 {
		t.Fatalf("expected 7200 frames, got %d", len(gap))
	}
	for i, s := range gap {
		if s != 0 {
			t.Fatalf("silence sample %d is %d", i, s)
		}
	}
}

func TestResample(t *testing.T) {
	samples := make([]int, 24000)
	for i := range samples {
		samples[i] = i % 100
	}

	same := Resample(samples, 24000, 24000)
	if len(same) != len(samples) {
		t.Fatal("equal rates must be a no-op")
	}

	up := Resample(samples, 24000, 48000)
	if len(up) != 48000 {
		t.Fatalf("expected 48000 frames, got %d", len(up))
	}
	down := Resample(samples, 24000, 12000)
	if len(down) != 12000 {
		t.Fatalf("expected 12000 frames, got %d", len(down))
	}
}

func TestAssembleSinglePassthrough(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "only.wav")
	if err := SaveMono(src, []int{1, 2, 3, 4}, 24000); err != nil {
		t.Fatal(err)
	}
	original, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}

	final := filepath.Join(dir, "final.wav")
	asm := NewAssembler(24000, 300*time.Millisecond, newLogger())
	if err := asm.Assemble([]Artifact{{ID: "only", Path: src}}, true, final); err != nil {
		t.Fatalf("assemble: %v", err)
	}

	moved, err := os.ReadFile(final)
	if err != nil {
		t.Fatalf("read final: %v", err)
	}
	if !bytes.Equal(original, moved) {
		t.Fatal("single-artifact assembly must be byte-identical")
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source should have been renamed away")
	}
}

func TestAssembleMultiWithSilence(t *testing.T) {
	dir := t.TempDir()
	lens := []int{4800, 2400, 1200}
	var artifacts []Artifact
	for i, n := range lens {
		p := filepath.Join(dir, "chunk"+string(rune('a'+i))+".wav")
		if err := SaveMono(p, make([]int, n), 24000); err != nil {
			t.Fatal(err)
		}
		artifacts = append(artifacts, Artifact{ID: p, Path: p})
	}

	final := filepath.Join(dir, "all.wav")
	asm := NewAssembler(24000, 300*time.Millisecond, newLogger())
	if err := asm.Assemble(artifacts, true, final); err != nil {
		t.Fatalf("assemble: %v", err)
	}

	samples, rate, err := LoadMono(final)
	if err != nil {
		t.Fatal(err)
	}
	if rate != 24000 {
		t.Fatalf("unexpected rate %d", rate)
	}
	want := 4800 + 2400 + 1200 + 2*7200
	if len(samples) != want {
		t.Fatalf("expected %d frames, got %d", want, len(samples))
	}

	// Intermediates cleaned up.
	for _, a := range artifacts {
		if _, err := os.Stat(a.Path); !os.IsNotExist(err) {
			t.Fatalf("chunk %s not cleaned up", a.Path)
		}
	}
}

func TestAssembleMultiNoSilence(t *testing.T) {
	dir := t.TempDir()
	var artifacts []Artifact
	for i := 0; i < 2; i++ {
		p := filepath.Join(dir, "c"+string(rune('0'+i))+".wav")
		if err := SaveMono(p, make([]int, 1000), 24000); err != nil {
			t.Fatal(err)
		}
		artifacts = append(artifacts, Artifact{ID: p, Path: p})
	}

	final := filepath.Join(dir, "out.wav")
	asm := NewAssembler(24000, 300*time.Millisecond, newLogger())
	if err := asm.Assemble(artifacts, false, final); err != nil {
		t.Fatal(err)
	}
	samples, _, err := LoadMono(final)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2000 {
		t.Fatalf("expected 2000 frames without silence, got %d", len(samples))
	}
}

func TestAssembleResamplesMismatchedRate(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.wav")
	if err := SaveMono(a, make([]int, 2400), 24000); err != nil {
		t.Fatal(err)
	}
	// Second chunk at half rate resamples up to 2400 frames.
	if err := SaveMono(b, make([]int, 1200), 12000); err != nil {
		t.Fatal(err)
	}

	final := filepath.Join(dir, "out.wav")
	asm := NewAssembler(24000, 300*time.Millisecond, newLogger())
	if err := asm.Assemble([]Artifact{{ID: "a", Path: a}, {ID: "b", Path: b}}, false, final); err != nil {
		t.Fatal(err)
	}
	samples, _, err := LoadMono(final)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 4800 {
		t.Fatalf("expected 4800 frames after resampling, got %d", len(samples))
	}
}

func TestAssembleMissingChunkLeavesNoFinal(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	if err := SaveMono(a, make([]int, 100), 24000); err != nil {
		t.Fatal(err)
	}

	final := filepath.Join(dir, "out.wav")
	asm := NewAssembler(24000, 300*time.Millisecond, newLogger())
	err := asm.Assemble([]Artifact{
		{ID: "a", Path: a},
		{ID: "b", Path: filepath.Join(dir, "missing.wav")},
	}, true, final)
	if err == nil {
		t.Fatal("expected error for missing chunk")
	}
	if _, statErr := os.Stat(final); !os.IsNotExist(statErr) {
		t.Fatal("no partial final file may be left behind")
	}
}
