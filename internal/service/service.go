// Package service exposes the synthesis pipeline over the message bus:
// one request in, one base64 WAV result out.
package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kol-labs/kol-core/internal/bus"
	"github.com/kol-labs/kol-core/internal/config"
	"github.com/kol-labs/kol-core/internal/jobstore"
	"github.com/kol-labs/kol-core/internal/pipeline"
	"github.com/kol-labs/kol-core/internal/protocol"
	"github.com/kol-labs/kol-core/internal/speakers"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const requestTimeout = 5 * time.Minute

type Service struct {
	cfg      config.Config
	bus      *bus.Client
	pipe     *pipeline.Pipeline
	catalog  speakers.Catalog
	store    *jobstore.Store
	sub      *nats.Subscription
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *slog.Logger
	requests metric.Int64Counter
	chunks   metric.Int64Counter
}

func NewService(parent context.Context, cfg config.Config, busClient *bus.Client, pipe *pipeline.Pipeline, catalog speakers.Catalog, store *jobstore.Store, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	meter := otel.Meter("github.com/kol-labs/kol-core/internal/service")
	requests, _ := meter.Int64Counter("kol_synthesis_requests_total",
		metric.WithDescription("Synthesis requests handled, by outcome"))
	chunks, _ := meter.Int64Counter("kol_synthesis_chunks_total",
		metric.WithDescription("Chunks attempted across all requests"))
	return &Service{
		cfg:      cfg,
		bus:      busClient,
		pipe:     pipe,
		catalog:  catalog,
		store:    store,
		ctx:      ctx,
		cancel:   cancel,
		logger:   log.With(slog.String("component", "synthesis-service")),
		requests: requests,
		chunks:   chunks,
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectSynthesisRequest, s.handleRequest)
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return s.sub != nil }

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.SynthesisRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode synthesis request", slogError(err))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, requestTimeout)
		defer cancel()

		result := s.process(ctx, req)
		s.publishResult(msg, result)
	}()
}

func (s *Service) process(ctx context.Context, req protocol.SynthesisRequest) protocol.SynthesisResult {
	result := protocol.SynthesisResult{RequestID: req.RequestID, Timestamp: time.Now().UTC()}

	speakerName := req.Speaker
	if speakerName == "" {
		speakerName = s.cfg.Speakers.DefaultSpeaker
	}
	speaker, ok := s.catalog.Get(speakerName)
	if !ok {
		result.Error = "invalid speaker: " + speakerName
		result.AvailableSpeakers = s.catalog.Names()
		s.count(ctx, "rejected")
		return result
	}

	baseName := req.Filename
	if baseName == "" {
		baseName = "output"
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.Synth.TopK
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = s.cfg.Synth.Temperature
	}
	maxChars := req.MaxChars
	if maxChars <= 0 {
		maxChars = s.cfg.Chunking.MaxChars
	}
	if req.NoChunking {
		// Oversized requests still go through as one chunk; the model may
		// truncate, but the caller asked for it.
		maxChars = utf8.RuneCountInString(req.Text) + 1
	}

	workDir, err := os.MkdirTemp("", "kol_tts_")
	if err != nil {
		result.Error = "create working directory: " + err.Error()
		s.count(ctx, "error")
		return result
	}
	defer os.RemoveAll(workDir)

	outcome := s.pipe.Process(ctx, pipeline.Request{
		Text:          req.Text,
		BaseName:      baseName,
		WorkDir:       workDir,
		MaxChars:      maxChars,
		InsertSilence: s.cfg.Chunking.InsertSilence,
		SpeakerPrompt: speaker.TextPrompt,
		TopK:          topK,
		Temperature:   temperature,
	})

	result.Chunked = outcome.Chunked
	result.ChunkInfo = outcome.ChunkInfo()
	result.OriginalLength = utf8.RuneCountInString(req.Text)
	result.ChunksProcessed = len(outcome.Diagnostics)
	s.chunks.Add(ctx, int64(len(outcome.Diagnostics)))

	if !outcome.Succeeded() {
		result.Error = outcome.Err.Error()
		s.recordJob(req, speakerName, outcome, "failed")
		s.count(ctx, "failed")
		return result
	}

	audioData, err := os.ReadFile(outcome.AudioPath)
	if err != nil {
		result.Error = "read final audio: " + err.Error()
		s.recordJob(req, speakerName, outcome, "failed")
		s.count(ctx, "failed")
		return result
	}

	result.AudioBase64 = base64.StdEncoding.EncodeToString(audioData)
	result.Filename = baseName + ".wav"
	result.SampleRate = s.cfg.Synth.SampleRate
	result.Format = "wav"
	s.recordJob(req, speakerName, outcome, "succeeded")
	s.count(ctx, "succeeded")
	return result
}

func (s *Service) publishResult(msg *nats.Msg, result protocol.SynthesisResult) {
	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("failed to marshal synthesis result", slogError(err))
		return
	}
	subject := protocol.SubjectSynthesisResult
	if msg.Reply != "" {
		subject = msg.Reply
	}
	if err := s.bus.Conn().Publish(subject, data); err != nil {
		s.logger.Warn("failed to publish synthesis result", slogError(err))
	}
}

func (s *Service) recordJob(req protocol.SynthesisRequest, speaker string, outcome pipeline.Outcome, status string) {
	if s.store == nil {
		return
	}
	job := jobstore.Job{
		RequestID: req.RequestID,
		Speaker:   speaker,
		TextChars: utf8.RuneCountInString(req.Text),
		Chunked:   outcome.Chunked,
		Chunks:    len(outcome.Diagnostics),
		Status:    status,
	}
	if outcome.Err != nil {
		job.Error = outcome.Err.Error()
	}
	chunks := make([]jobstore.ChunkRecord, 0, len(outcome.Diagnostics))
	for i, d := range outcome.Diagnostics {
		chunks = append(chunks, jobstore.ChunkRecord{
			RequestID: req.RequestID,
			Position:  i,
			ChunkID:   d.ID,
			Chars:     d.Chars,
		})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.AppendJob(ctx, job, chunks); err != nil {
		s.logger.Warn("failed to record job", slogError(err))
	}
}

func (s *Service) count(ctx context.Context, outcome string) {
	s.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
