package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/kol-labs/kol-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	cfg := config.JobStoreConfig{RetentionMode: "ephemeral"}
	s, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Ensure(); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if err := s.AppendJob(ctx, Job{RequestID: "r1"}, nil); err != nil {
		t.Fatalf("ephemeral append must be a no-op: %v", err)
	}
}

func TestAppendAndQuery(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.JobStoreConfig{Path: filepath.Join(tmp, "jobs.db"), RetentionMode: "session"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open job store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	job := Job{
		RequestID: "req-123",
		Speaker:   "osim",
		TextChars: 420,
		Chunked:   true,
		Chunks:    3,
		Status:    "succeeded",
	}
	chunks := []ChunkRecord{
		{RequestID: "req-123", Position: 0, ChunkID: "out_part_001_of_003", Chars: 148},
		{RequestID: "req-123", Position: 1, ChunkID: "out_part_002_of_003", Chars: 150},
		{RequestID: "req-123", Position: 2, ChunkID: "out_part_003_of_003", Chars: 122},
	}
	if err := s.AppendJob(context.Background(), job, chunks); err != nil {
		t.Fatalf("append job: %v", err)
	}

	got, err := s.GetJob(context.Background(), "req-123")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Speaker != "osim" || got.Chunks != 3 || got.Status != "succeeded" {
		t.Fatalf("unexpected job: %+v", got)
	}

	gotChunks, err := s.ListJobChunks(context.Background(), "req-123")
	if err != nil {
		t.Fatalf("list chunks: %v", err)
	}
	if len(gotChunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(gotChunks))
	}
	if gotChunks[1].ChunkID != "out_part_002_of_003" || gotChunks[1].Chars != 150 {
		t.Fatalf("unexpected chunk row: %+v", gotChunks[1])
	}
}

func TestGetJobMissing(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.JobStoreConfig{Path: filepath.Join(tmp, "jobs.db"), RetentionMode: "session"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open job store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if _, err := s.GetJob(context.Background(), "ghost"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestPruneByDaysAndMaxJobs(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.JobStoreConfig{Path: filepath.Join(tmp, "jobs.db"), RetentionMode: "persistent", RetentionDays: 1, MaxJobs: 1}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open job store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	s.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := s.AppendJob(context.Background(), Job{RequestID: "old", Status: "succeeded"}, nil); err != nil {
		t.Fatalf("append old job: %v", err)
	}

	s.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := s.AppendJob(context.Background(), Job{RequestID: "new", Status: "succeeded"}, nil); err != nil {
		t.Fatalf("append new job: %v", err)
	}
	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	if _, err := s.GetJob(context.Background(), "old"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatal("expected old job pruned")
	}
	if _, err := s.GetJob(context.Background(), "new"); err != nil {
		t.Fatalf("new job should survive prune: %v", err)
	}
}
