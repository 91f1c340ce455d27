package app

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/google/uuid"

	"github.com/jotdown/jotdown/internal/attachment"
	"github.com/jotdown/jotdown/internal/config"
	"github.com/jotdown/jotdown/internal/generate"
	"github.com/jotdown/jotdown/internal/log"
	"github.com/jotdown/jotdown/internal/note"
	"github.com/jotdown/jotdown/internal/observability"
	"github.com/jotdown/jotdown/internal/storage"
	"github.com/jotdown/jotdown/internal/weekly"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup. Call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = log.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	a.Registry = attachment.NewRegistry(logger)
	a.Store = note.New(a.Registry, logger)

	gw, err := storage.Open(cfg.ProfileDir, a.Registry, logger)
	if err != nil {
		return nil, err
	}
	a.Gateway = gw

	sessions, activeID, err := gw.LoadAll(ctx)
	switch {
	case err != nil:
		// The damaged file stays on disk untouched until the autosaver's
		// first write; starting fresh must not be the thing that clobbers it.
		logger.Warn("loading sessions failed, starting fresh", "error", err)
		a.Store.ReplaceAll(nil, uuid.Nil)
	case sessions == nil:
		a.Store.ReplaceAll(nil, uuid.Nil)
		if !gw.SaveAll(ctx, a.Store.Sessions(), a.Store.ActiveID()) {
			logger.Warn("writing initial session failed")
		}
	default:
		a.Store.ReplaceAll(sessions, activeID)
	}

	a.Autosaver = storage.NewAutosaver(a.Store, gw, cfg.AutosaveDelay(), logger)
	a.Store.SetOnChange(a.Autosaver.Schedule)

	g, err := provideGenkit(ctx, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	client, err := generate.NewGeminiClient(generate.ClientConfig{
		Genkit:         g,
		APIKey:         os.Getenv("GEMINI_API_KEY"),
		ModelOverrides: modeOverrides(cfg.ModelOverrides()),
		Temperature:    cfg.Temperature,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	a.Client = client

	a.Orchestrator = generate.NewOrchestrator(client, a.Store, logger)
	a.Aggregator = weekly.NewAggregator(a.Store, a.Orchestrator, logger)
	a.Scheduler = weekly.NewScheduler(a.Aggregator, gw, weekly.Config{
		Day:  cfg.Weekly.Weekday(),
		Hour: cfg.Weekly.Hour,
	}, logger)

	return a, nil
}

// provideOtelShutdown wires trace export before genkit initialization so the
// span processor lands on the provider genkit owns. Export failures never
// block startup; the app degrades to running untraced.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if !cfg.Tracing.Enabled {
		return func() {}
	}

	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.Tracing.Environment,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		logger.Warn("tracing setup failed, continuing without export", "error", err)
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes genkit. The googlegenai plugin refuses to start
// without GEMINI_API_KEY, so a keyless environment gets a pluginless
// instance and generation reports the missing key per request instead.
func provideGenkit(ctx context.Context, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit
	if os.Getenv("GEMINI_API_KEY") == "" {
		g = genkit.Init(ctx)
		logger.Warn("GEMINI_API_KEY is not set, generation is disabled")
	} else {
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	}
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	return g, nil
}

// modeOverrides converts configured mode names to typed mode keys.
func modeOverrides(m map[string]string) map[note.Mode]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[note.Mode]string, len(m))
	for mode, model := range m {
		out[note.Mode(mode)] = model
	}
	return out
}
