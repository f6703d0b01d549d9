package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kol-labs/kol-core/internal/audio"
	"github.com/kol-labs/kol-core/internal/bus"
	"github.com/kol-labs/kol-core/internal/config"
	"github.com/kol-labs/kol-core/internal/jobstore"
	"github.com/kol-labs/kol-core/internal/natsserver"
	"github.com/kol-labs/kol-core/internal/pipeline"
	"github.com/kol-labs/kol-core/internal/service"
	"github.com/kol-labs/kol-core/internal/speakers"
	"github.com/kol-labs/kol-core/internal/synth"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	busClient, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer busClient.Close()

	store, err := jobstore.Open(ctx, r.cfg.JobStore, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open job store: %w", err)
	}
	defer store.Close()

	catalog, err := speakers.Load(r.cfg.Speakers.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load speaker catalog: %w", err)
	}
	if _, ok := catalog.Get(r.cfg.Speakers.DefaultSpeaker); !ok {
		return fmt.Errorf("default speaker %q not in catalog", r.cfg.Speakers.DefaultSpeaker)
	}

	backend, err := r.buildSynth()
	if err != nil {
		return fmt.Errorf("failed to build synthesis backend: %w", err)
	}

	assembler := audio.NewAssembler(
		r.cfg.Synth.SampleRate,
		time.Duration(r.cfg.Chunking.SilenceMS)*time.Millisecond,
		r.logger,
	)
	pipe := pipeline.New(backend, assembler, r.logger)

	svc := service.NewService(ctx, r.cfg, busClient, pipe, catalog, store, r.logger)
	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start synthesis service: %w", err)
	}
	defer svc.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("synth_mode", r.cfg.Synth.Mode),
		slog.Int("speakers", len(catalog.Names())))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) buildSynth() (synth.Synthesizer, error) {
	switch r.cfg.Synth.Mode {
	case "exec":
		return synth.NewExecSynth(r.cfg.Synth.Command)
	default:
		return synth.NewMockSynth(r.cfg.Synth.SampleRate), nil
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
