package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kol-labs/kol-core/internal/config"
	_ "modernc.org/sqlite"
)

// Job records one synthesis request outcome.
type Job struct {
	ID        int64
	RequestID string
	Speaker   string
	TextChars int
	Chunked   bool
	Chunks    int
	Status    string
	Error     string
	CreatedAt time.Time
}

// ChunkRecord is one chunk diagnostic row belonging to a job.
type ChunkRecord struct {
	RequestID string
	Position  int
	ChunkID   string
	Chars     int
}

// Store wraps a SQLite-backed synthesis job log.
type Store struct {
	db    *sql.DB
	cfg   config.JobStoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the job store according to config. Ephemeral retention
// keeps nothing and opens no database.
func Open(ctx context.Context, cfg config.JobStoreConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if err := s.vacuum(ctx); err != nil {
			log.Warn("job store vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("job store prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ddl := `
CREATE TABLE IF NOT EXISTS jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT NOT NULL UNIQUE,
    speaker TEXT,
    text_chars INTEGER NOT NULL,
    chunked INTEGER NOT NULL,
    chunks INTEGER NOT NULL,
    status TEXT NOT NULL,
    error TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS job_chunks (
    request_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    chunk_id TEXT NOT NULL,
    chars INTEGER NOT NULL,
    FOREIGN KEY(request_id) REFERENCES jobs(request_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);
CREATE INDEX IF NOT EXISTS idx_job_chunks_request ON job_chunks(request_id, position);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) vacuum(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AppendJob writes a job row plus its chunk diagnostics.
func (s *Store) AppendJob(ctx context.Context, job Job, chunks []ChunkRecord) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.clock().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO jobs(request_id, speaker, text_chars, chunked, chunks, status, error, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		job.RequestID, job.Speaker, job.TextChars, job.Chunked, job.Chunks, job.Status, job.Error, job.CreatedAt)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO job_chunks(request_id, position, chunk_id, chars) VALUES(?, ?, ?, ?)`,
			job.RequestID, c.Position, c.ChunkID, c.Chars); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

// GetJob retrieves one job row by request id.
func (s *Store) GetJob(ctx context.Context, requestID string) (Job, error) {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return Job{}, sql.ErrNoRows
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, request_id, speaker, text_chars, chunked, chunks, status, error, created_at
		 FROM jobs WHERE request_id = ?`, requestID)
	var j Job
	var created string
	if err := row.Scan(&j.ID, &j.RequestID, &j.Speaker, &j.TextChars, &j.Chunked, &j.Chunks, &j.Status, &j.Error, &created); err != nil {
		return Job{}, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		j.CreatedAt = ts
	}
	return j, nil
}

// ListJobChunks retrieves chunk diagnostics for a job, ordered by position.
func (s *Store) ListJobChunks(ctx context.Context, requestID string) ([]ChunkRecord, error) {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, position, chunk_id, chars
		 FROM job_chunks WHERE request_id = ? ORDER BY position ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []ChunkRecord
	for rows.Next() {
		var c ChunkRecord
		if err := rows.Scan(&c.RequestID, &c.Position, &c.ChunkID, &c.Chars); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Prune applies configured retention (called on startup and can be scheduled).
func (s *Store) Prune(ctx context.Context) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM jobs WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if s.cfg.MaxJobs > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM jobs WHERE request_id IN (
			SELECT request_id FROM jobs ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxJobs)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

// Ensure supplies a no-op store when persistence is disabled.
func (s *Store) Ensure() error {
	if s.cfg.RetentionMode == "ephemeral" && s.db != nil {
		return errors.New("ephemeral store should not have database connection")
	}
	return nil
}
