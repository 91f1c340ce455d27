package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jotdown/jotdown/internal/note"
)

// SaveStatus is the persistence indicator surfaced to the user.
type SaveStatus string

const (
	// SaveIdle means everything is persisted.
	SaveIdle SaveStatus = "idle"
	// SaveDirty means a change is waiting for the debounce window to pass.
	SaveDirty SaveStatus = "dirty"
	// SaveSaving means a write is in flight.
	SaveSaving SaveStatus = "saving"
	// SaveFailed means the last write failed; changes are retained in
	// memory until a later save succeeds.
	SaveFailed SaveStatus = "failed"
)

// DefaultSaveDelay is the debounce window between a change and its write.
const DefaultSaveDelay = 2 * time.Second

// saveTimeout bounds a background write triggered by the timer.
const saveTimeout = 10 * time.Second

// Snapshotter supplies the collection snapshot to persist.
type Snapshotter interface {
	Sessions() []*note.Session
	ActiveID() uuid.UUID
}

// Writer persists a full snapshot, reporting success.
type Writer interface {
	SaveAll(ctx context.Context, sessions []*note.Session, activeID uuid.UUID) bool
}

// Autosaver coalesces change notifications into debounced full saves.
// Wire Schedule as the store's change hook; every mutation then restarts
// the debounce timer, so a burst of edits costs one write.
type Autosaver struct {
	source Snapshotter
	sink   Writer
	delay  time.Duration
	logger *slog.Logger

	// saveMu serializes write executions so Flush blocks behind an
	// in-flight background save instead of racing it.
	saveMu sync.Mutex

	mu        sync.Mutex
	status    SaveStatus
	lastSaved time.Time
	timer     *time.Timer
	closed    bool
}

// NewAutosaver wires a snapshot source to a durable sink. A non-positive
// delay falls back to DefaultSaveDelay.
func NewAutosaver(source Snapshotter, sink Writer, delay time.Duration, logger *slog.Logger) *Autosaver {
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Autosaver{
		source: source,
		sink:   sink,
		delay:  delay,
		logger: logger,
		status: SaveIdle,
	}
}

// Schedule marks the collection dirty and restarts the debounce timer.
func (a *Autosaver) Schedule() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.status = SaveDirty
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, a.fire)
}

func (a *Autosaver) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	a.save(ctx)
}

// save writes a snapshot when unsaved changes exist. Reports whether the
// store is clean afterwards.
func (a *Autosaver) save(ctx context.Context) bool {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	if a.closed || (a.status != SaveDirty && a.status != SaveFailed) {
		a.mu.Unlock()
		return true
	}
	a.status = SaveSaving
	a.mu.Unlock()

	sessions := a.source.Sessions()
	activeID := a.source.ActiveID()
	ok := a.sink.SaveAll(ctx, sessions, activeID)

	a.mu.Lock()
	defer a.mu.Unlock()
	if ok {
		// A Schedule that landed mid-save already re-dirtied the status
		// and armed a new timer; leave it alone.
		if a.status == SaveSaving {
			a.status = SaveIdle
		}
		a.lastSaved = time.Now()
		a.logger.Debug("autosave complete", "sessions", len(sessions))
		return true
	}
	if a.status == SaveSaving {
		a.status = SaveFailed
	}
	a.logger.Warn("autosave failed, changes retained in memory")
	return false
}

// Flush cancels any pending timer and writes immediately when unsaved
// changes exist. Reports whether the store is clean afterwards.
func (a *Autosaver) Flush(ctx context.Context) bool {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()
	return a.save(ctx)
}

// Close stops the background timer. Call Flush first on shutdown; Close
// discards whatever is still pending.
func (a *Autosaver) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// Status reports the save indicator and the time of the last successful
// save, which is zero before the first one.
func (a *Autosaver) Status() (SaveStatus, time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status, a.lastSaved
}
