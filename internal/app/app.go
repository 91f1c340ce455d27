// Package app provides application initialization and lifecycle.
//
// App is the container the CLI and an embedding UI work against: the
// session store, persistence gateway, autosaver, generation orchestrator
// and weekly summarizer, fully wired. Setup builds it from configuration;
// Close flushes pending changes and releases everything in reverse order.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"

	"github.com/jotdown/jotdown/internal/attachment"
	"github.com/jotdown/jotdown/internal/config"
	"github.com/jotdown/jotdown/internal/generate"
	"github.com/jotdown/jotdown/internal/log"
	"github.com/jotdown/jotdown/internal/note"
	"github.com/jotdown/jotdown/internal/storage"
	"github.com/jotdown/jotdown/internal/weekly"
)

// closeTimeout bounds the final flush on shutdown.
const closeTimeout = 10 * time.Second

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Collection and persistence
	Registry  *attachment.Registry
	Store     *note.Store
	Gateway   *storage.Gateway
	Autosaver *storage.Autosaver

	// Generation
	Genkit       *genkit.Genkit
	Client       *generate.GeminiClient
	Orchestrator *generate.Orchestrator

	// Weekly summary
	Aggregator *weekly.Aggregator
	Scheduler  *weekly.Scheduler

	otelCleanup func()
	schedCancel context.CancelFunc
	schedDone   chan struct{}
}

// StartScheduler runs the weekly scheduler in the background until ctx is
// canceled or the App closes. No-op when the schedule is disabled in
// configuration or a scheduler is already running.
func (a *App) StartScheduler(ctx context.Context) {
	if !a.Config.Weekly.Enabled || a.schedCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	a.schedCancel = cancel
	a.schedDone = make(chan struct{})
	go func() {
		defer close(a.schedDone)
		a.Scheduler.Run(ctx)
	}()
}

// SaveStatus reports the autosave indicator for the UI, idle before the
// autosaver exists on a partially built App.
func (a *App) SaveStatus() (storage.SaveStatus, time.Time) {
	if a.Autosaver == nil {
		return storage.SaveIdle, time.Time{}
	}
	return a.Autosaver.Status()
}

// Close flushes unsaved changes and shuts everything down in reverse
// setup order. Safe on a partially built App.
func (a *App) Close() error {
	if a.schedCancel != nil {
		a.schedCancel()
		<-a.schedDone
		a.schedCancel = nil
	}

	if a.Autosaver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		if !a.Autosaver.Flush(ctx) {
			a.Logger.Warn("final save failed, latest changes were not persisted")
		}
		cancel()
		a.Autosaver.Close()
	}

	var closeErr error
	if a.Gateway != nil {
		if err := a.Gateway.Close(); err != nil {
			closeErr = fmt.Errorf("closing storage: %w", err)
		}
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return closeErr
}
