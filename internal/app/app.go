// Package app encapsulates server assembly and lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/sidharthgd/LabVerse/internal/retention"
	"github.com/sidharthgd/LabVerse/pkg/agent"
	"github.com/sidharthgd/LabVerse/pkg/config"
	"github.com/sidharthgd/LabVerse/pkg/embedding"
	"github.com/sidharthgd/LabVerse/pkg/index"
	"github.com/sidharthgd/LabVerse/pkg/ingest"
	"github.com/sidharthgd/LabVerse/pkg/llm"
	"github.com/sidharthgd/LabVerse/pkg/logger"
	"github.com/sidharthgd/LabVerse/pkg/migrate"
	"github.com/sidharthgd/LabVerse/pkg/sandbox"
	"github.com/sidharthgd/LabVerse/pkg/session"
	"github.com/sidharthgd/LabVerse/pkg/state"
	"github.com/sidharthgd/LabVerse/pkg/store"
	"github.com/sidharthgd/LabVerse/pkg/telemetry"
	"github.com/sidharthgd/LabVerse/pkg/validation"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	sessions  *session.Manager
	index     *index.Index
	queue     *ingest.Queue
	processor *ingest.Processor
	sources   *ingest.Registry
	assistant *agent.Assistant

	retentionCancel context.CancelFunc
	ingestStop      chan struct{}
	srv             *http.Server
}

// New initializes resources that do not require a running context: the
// store, the vector index, the pipeline services and validation rules. Call
// Run to start workers and the HTTP server and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	// runtime keys
	runtimeCfg := &config.RuntimeConfig{
		BackendKeys:  map[string]struct{}{},
		FrontendKeys: map[string]struct{}{},
		AdminKeys:    map[string]struct{}{},
	}
	for _, k := range eff.Config.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
	}
	for _, k := range eff.Config.Security.APIKeys.Frontend {
		runtimeCfg.FrontendKeys[k] = struct{}{}
	}
	for _, k := range eff.Config.Security.APIKeys.Admin {
		runtimeCfg.AdminKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	initValidation(eff)

	if r := eff.Config.Logging.TraceSampleRate; r > 0 {
		telemetry.SetSampleRate(r)
	}
	if ms := eff.Config.Logging.SlowRequestMS; ms > 0 {
		telemetry.SetSlowThreshold(time.Duration(ms) * time.Millisecond)
	}

	if err := state.EnsureStateDirs(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to prepare state directories: %w", err)
	}
	if err := logger.AttachAuditFileSink(state.PathsVar.Audit); err != nil {
		logger.Warn("audit_sink_unavailable", "error", err)
	}
	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	engine, err := embedding.NewEngine(embedding.Config{
		Provider: eff.Config.Embedding.Provider,
		APIKey:   eff.Config.Embedding.APIKey,
		BaseURL:  eff.Config.Embedding.BaseURL,
		Endpoint: eff.Config.Embedding.Endpoint,
		Model:    eff.Config.Embedding.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build embedding engine: %w", err)
	}

	ix := index.New(engine)
	if err := ix.Load(); err != nil {
		return nil, fmt.Errorf("failed to load catalog index: %w", err)
	}
	telemetry.SetIndexedDocuments(ix.Len())

	client, err := llm.New(llm.Config{
		Provider: eff.Config.LLM.Provider,
		APIKey:   eff.Config.LLM.APIKey,
		BaseURL:  eff.Config.LLM.BaseURL,
		Model:    eff.Config.LLM.Model,
		Timeout:  eff.Config.LLMTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build llm client: %w", err)
	}
	if client == nil {
		logger.Warn("llm_not_configured", "msg", "running with catalog lookups only")
	}

	runner := sandbox.New(eff.Config.Sandbox.Enabled, eff.Config.Sandbox.Interpreter, eff.Config.SandboxTimeout())
	sessions := session.NewManager()

	queue := ingest.NewQueue(eff.Config.Ingest.QueueCapacity)
	processor := ingest.NewProcessor(queue, eff.Config.Ingest.Workers)
	sources := ingest.NewRegistry()
	if d := eff.Config.Ingest.DriveMirror; d != "" {
		sources.Register(ingest.NewMirrorConnector("drive", d))
	}
	if b := eff.Config.Ingest.BoxMirror; b != "" {
		sources.Register(ingest.NewMirrorConnector("box", b))
	}
	if dd := eff.Config.Storage.DataDir; dd != "" {
		sources.Register(ingest.NewMirrorConnector("local", dd))
	}
	ingest.RegisterDefaultHandlers(processor, ingest.NewScanner(), ix, sources)

	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		sessions:  sessions,
		index:     ix,
		queue:     queue,
		processor: processor,
		sources:   sources,
		assistant: agent.New(sessions, ix, client, runner),
	}
	return a, nil
}

// Run starts migrations, workers, retention and the HTTP server, and blocks
// until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	if _, err := migrate.Run(ctx, a.version); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	a.ingestStop = make(chan struct{})
	a.processor.Start(ctx)
	ingest.StartMonitor(a.queue, a.ingestStop)
	a.startStoreMonitor()

	// index the local data directory on startup so a fresh instance is
	// usable without a manual sync call
	if _, ok := a.sources.Get("local"); ok {
		if err := a.queue.TryEnqueue(&ingest.Op{Type: ingest.OpSync, Source: "local"}); err != nil {
			logger.Warn("startup_scan_enqueue_failed", "error", err)
		}
	}

	retention.SetEffectiveConfig(a.eff)
	retention.SetHooks(a.sessions.Evict, a.reindex)
	cancelRet, err := retention.Start(ctx, a.eff)
	if err != nil {
		return fmt.Errorf("failed to start retention: %w", err)
	}
	a.retentionCancel = cancelRet

	a.printBanner()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

// startStoreMonitor exports pebble health gauges until shutdown.
func (a *App) startStoreMonitor() {
	go func() {
		t := time.NewTicker(30 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				h := store.GetHealth()
				telemetry.SetStoreMetrics(h.SizeBytes, h.L0Files, h.CompactionBacklog)
			case <-a.ingestStop:
				return
			}
		}
	}()
}

// reindex re-enqueues a sync of every configured source.
func (a *App) reindex(ctx context.Context) error {
	for _, name := range a.sources.Names() {
		if err := a.queue.Enqueue(ctx, &ingest.Op{Type: ingest.OpSync, Source: name}); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) shutdown() {
	if a.retentionCancel != nil {
		a.retentionCancel()
	}
	if a.ingestStop != nil {
		close(a.ingestStop)
	}
	a.processor.Stop()
	a.queue.CloseAndDrain()
	if a.srv != nil {
		_ = a.srv.Close()
	}
	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	logger.Info("shutdown_complete")
}

// initValidation builds validation rules from config and sets them globally.
func initValidation(eff config.EffectiveConfigResult) {
	vr := validation.Rules{Types: map[string]string{}, MaxLen: map[string]int{}, Enums: map[string][]string{}}
	vr.Required = append(vr.Required, eff.Config.Validation.Required...)
	for _, t := range eff.Config.Validation.Types {
		vr.Types[t.Path] = t.Type
	}
	for _, ml := range eff.Config.Validation.MaxLen {
		vr.MaxLen[ml.Path] = ml.Max
	}
	for _, e := range eff.Config.Validation.Enums {
		vr.Enums[e.Path] = append([]string{}, e.Values...)
	}
	validation.SetRules(vr)
}
