package attachment

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// HandleScheme prefixes every display handle issued by a Registry.
const HandleScheme = "mem://"

// Registry issues and tracks ephemeral display handles for attachment
// payloads. A handle stays valid exactly as long as its Ref is reachable from
// the in-memory session store; detaching or deleting revokes it.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Ref
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
// logger may be nil, in which case slog.Default() is used.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handles: make(map[string]*Ref),
		logger:  logger,
	}
}

// Issue assigns a fresh display handle to ref, revoking any handle it already
// holds. The new handle is recorded on ref.DisplayHandle and returned.
func (g *Registry) Issue(ref *Ref) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ref.DisplayHandle != "" {
		delete(g.handles, ref.DisplayHandle)
	}

	handle := HandleScheme + uuid.NewString()
	ref.DisplayHandle = handle
	g.handles[handle] = ref

	g.logger.Debug("issued display handle", "handle", handle, "attachment_id", ref.ID)
	return handle
}

// Revoke invalidates a handle. Unknown handles are a no-op. The owning Ref's
// DisplayHandle is cleared so it cannot leak a stale identifier.
func (g *Registry) Revoke(handle string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ref, ok := g.handles[handle]
	if !ok {
		return
	}
	delete(g.handles, handle)
	if ref.DisplayHandle == handle {
		ref.DisplayHandle = ""
	}

	g.logger.Debug("revoked display handle", "handle", handle)
}

// Resolve returns the Ref a live handle points at.
func (g *Registry) Resolve(handle string) (*Ref, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ref, ok := g.handles[handle]
	return ref, ok
}

// Live reports whether a handle is currently valid.
func (g *Registry) Live(handle string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.handles[handle]
	return ok
}

// Count returns the number of live handles. Tests use it to prove that
// deletions do not leak registrations.
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.handles)
}
