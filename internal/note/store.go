package note

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jotdown/jotdown/internal/attachment"
	"github.com/jotdown/jotdown/internal/markup"
)

// Store is the in-memory collection of note sessions.
//
// Store is safe for concurrent use by multiple goroutines. Accessors return
// deep copies; mutations go through the exported operations so the invariants
// hold: newest-first ordering, exactly one active session, content stored
// without highlight overlay, display handles revoked when their session goes.
//
// Unknown session ids are logged no-ops, not errors. The UI dispatches
// against state that may have changed underneath it; dropping a stale
// mutation is the documented behavior.
type Store struct {
	mu       sync.RWMutex
	sessions []*Session // index 0 is newest
	activeID uuid.UUID
	registry *attachment.Registry
	logger   *slog.Logger
	onChange func()
}

// New creates an empty store.
//
// Parameters:
//   - registry: display-handle registry for attachment payloads
//   - logger: Logger for debugging (nil = use default)
func New(registry *attachment.Registry, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		registry: registry,
		logger:   logger,
	}
}

// SetOnChange installs the hook fired after every mutation. The autosaver
// registers its Schedule here. The hook runs outside the store lock.
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// lookup returns the live session and its index. Callers hold the lock.
func (s *Store) lookup(id uuid.UUID) (*Session, int) {
	for i, sess := range s.sessions {
		if sess.ID == id {
			return sess, i
		}
	}
	return nil, -1
}

// Create inserts a blank session at the front and makes it active.
func (s *Store) Create(title string) uuid.UUID {
	sess := NewSession(title)

	s.mu.Lock()
	s.sessions = append([]*Session{sess}, s.sessions...)
	s.activeID = sess.ID
	s.mu.Unlock()

	s.logger.Debug("created session", "id", sess.ID, "title", title)
	s.notify()
	return sess.ID
}

// Update applies a field-level patch. Content writes are stripped of any
// highlight overlay before they land; the stored markup never contains it.
func (s *Store) Update(id uuid.UUID, patch Patch) {
	s.mu.Lock()
	sess, _ := s.lookup(id)
	if sess == nil {
		s.mu.Unlock()
		s.logger.Debug("update for unknown session dropped", "id", id)
		return
	}
	if patch.Title != nil {
		sess.Title = *patch.Title
	}
	if patch.Content != nil {
		sess.Content = markup.StripHighlight(*patch.Content)
	}
	if patch.Mode != nil {
		sess.Mode = *patch.Mode
	}
	s.mu.Unlock()

	s.notify()
}

// Delete removes a session and revokes its display handles.
//
// If the active session was deleted, the session that preceded it in the
// ordering takes over; when the deleted session was at the front, the new
// front becomes active. Deleting the last session synthesizes a fresh blank
// one so the collection is never empty.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	sess, i := s.lookup(id)
	if sess == nil {
		s.mu.Unlock()
		s.logger.Debug("delete for unknown session dropped", "id", id)
		return
	}

	for _, ref := range sess.Attachments {
		if ref.DisplayHandle != "" {
			s.registry.Revoke(ref.DisplayHandle)
		}
	}
	s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)

	if len(s.sessions) == 0 {
		replacement := NewSession("")
		s.sessions = []*Session{replacement}
		s.activeID = replacement.ID
		s.mu.Unlock()

		s.logger.Debug("deleted last session, synthesized replacement",
			"deleted", id, "replacement", replacement.ID)
		s.notify()
		return
	}

	if s.activeID == id {
		if i > 0 {
			s.activeID = s.sessions[i-1].ID
		} else {
			s.activeID = s.sessions[0].ID
		}
	}
	s.mu.Unlock()

	s.logger.Debug("deleted session", "id", id)
	s.notify()
}

// Duplicate clones a session to the front of the list. The copy gets fresh
// identity and timestamps, reset status, error and conversation, reissued
// display handles, and shares the immutable attachment bytes with the
// original. The active session does not change.
//
// Returns uuid.Nil when the source session is unknown.
func (s *Store) Duplicate(id uuid.UUID) uuid.UUID {
	s.mu.Lock()
	src, _ := s.lookup(id)
	if src == nil {
		s.mu.Unlock()
		s.logger.Debug("duplicate for unknown session dropped", "id", id)
		return uuid.Nil
	}

	dup := NewSession(src.Title)
	dup.Content = src.Content
	dup.Mode = src.Mode
	if src.Result != nil {
		r := *src.Result
		dup.Result = &r
	}
	if len(src.Attachments) > 0 {
		dup.Attachments = make([]*attachment.Ref, len(src.Attachments))
		for i, ref := range src.Attachments {
			clone := ref.Clone()
			s.registry.Issue(clone)
			dup.Attachments[i] = clone
		}
	}

	s.sessions = append([]*Session{dup}, s.sessions...)
	s.mu.Unlock()

	s.logger.Debug("duplicated session", "source", id, "copy", dup.ID)
	s.notify()
	return dup.ID
}

// SetActive switches the active session. Unknown ids are a no-op.
func (s *Store) SetActive(id uuid.UUID) {
	s.mu.Lock()
	sess, _ := s.lookup(id)
	if sess == nil {
		s.mu.Unlock()
		s.logger.Debug("set-active for unknown session dropped", "id", id)
		return
	}
	s.activeID = id
	s.mu.Unlock()

	s.notify()
}

// ActiveID returns the id of the active session.
func (s *Store) ActiveID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Active returns a copy of the active session.
func (s *Store) Active() (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, _ := s.lookup(s.activeID)
	if sess == nil {
		return nil, false
	}
	return sess.Clone(), true
}

// Get returns a copy of a session.
func (s *Store) Get(id uuid.UUID) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, _ := s.lookup(id)
	if sess == nil {
		return nil, false
	}
	return sess.Clone(), true
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sessions returns copies of all sessions, newest first.
func (s *Store) Sessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Clone()
	}
	return out
}

// Search returns copies of the sessions matching every whitespace-separated
// token of the query, case-insensitively, across title, content plain text
// and the last generated text. An empty query matches everything.
func (s *Store) Search(query string) []*Session {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return s.Sessions()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Session
	for _, sess := range s.sessions {
		var sb strings.Builder
		sb.WriteString(sess.Title)
		sb.WriteString("\n")
		sb.WriteString(markup.PlainText(sess.Content))
		if sess.Result != nil {
			sb.WriteString("\n")
			sb.WriteString(sess.Result.GeneratedText)
		}
		haystack := strings.ToLower(sb.String())

		matched := true
		for _, tok := range tokens {
			if !strings.Contains(haystack, tok) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, sess.Clone())
		}
	}
	return out
}

// Attach ingests a binary payload into a session: detects its type, issues a
// display handle and appends it in insertion order. Duplicate filenames are
// allowed. Returns the attachment id and its display handle, or uuid.Nil and
// "" when the session is unknown.
func (s *Store) Attach(id uuid.UUID, filename string, data []byte) (uuid.UUID, string) {
	s.mu.Lock()
	sess, _ := s.lookup(id)
	if sess == nil {
		s.mu.Unlock()
		s.logger.Debug("attach for unknown session dropped", "id", id, "filename", filename)
		return uuid.Nil, ""
	}

	ref := attachment.NewRef(filename, data)
	handle := s.registry.Issue(ref)
	sess.Attachments = append(sess.Attachments, ref)
	s.mu.Unlock()

	s.logger.Debug("attached payload",
		"session_id", id, "attachment_id", ref.ID, "kind", ref.Kind, "bytes", len(ref.Data))
	s.notify()
	return ref.ID, handle
}

// RemoveAttachment detaches a payload and revokes its display handle.
func (s *Store) RemoveAttachment(id, refID uuid.UUID) {
	s.mu.Lock()
	sess, _ := s.lookup(id)
	if sess == nil {
		s.mu.Unlock()
		s.logger.Debug("detach for unknown session dropped", "id", id)
		return
	}

	for i, ref := range sess.Attachments {
		if ref.ID != refID {
			continue
		}
		if ref.DisplayHandle != "" {
			s.registry.Revoke(ref.DisplayHandle)
		}
		sess.Attachments = append(sess.Attachments[:i], sess.Attachments[i+1:]...)
		s.mu.Unlock()

		s.logger.Debug("detached payload", "session_id", id, "attachment_id", refID)
		s.notify()
		return
	}
	s.mu.Unlock()

	s.logger.Debug("detach for unknown attachment dropped", "session_id", id, "attachment_id", refID)
}

// AppendTurn appends a conversation turn to a session.
func (s *Store) AppendTurn(id uuid.UUID, turn Turn) {
	s.mu.Lock()
	sess, _ := s.lookup(id)
	if sess == nil {
		s.mu.Unlock()
		s.logger.Debug("turn for unknown session dropped", "id", id)
		return
	}
	sess.Conversation = append(sess.Conversation, turn)
	s.mu.Unlock()

	s.notify()
}

// ClearError dismisses a recorded generation failure, returning the session
// to idle.
func (s *Store) ClearError(id uuid.UUID) {
	s.mu.Lock()
	sess, _ := s.lookup(id)
	if sess == nil {
		s.mu.Unlock()
		return
	}
	sess.Error = ""
	if sess.Status == StatusError {
		sess.Status = StatusIdle
	}
	s.mu.Unlock()

	s.notify()
}

// ResetResult discards the recorded generation result. Content is untouched;
// merged output stays in the note.
func (s *Store) ResetResult(id uuid.UUID) {
	s.mu.Lock()
	sess, _ := s.lookup(id)
	if sess == nil {
		s.mu.Unlock()
		return
	}
	sess.Result = nil
	if sess.Status == StatusSuccess {
		sess.Status = StatusIdle
	}
	s.mu.Unlock()

	s.notify()
}

// BeginProcessing atomically moves a session into StatusProcessing, clearing
// any previous error. Reports false when the session is unknown or a
// generation is already in flight, which keeps at most one generation per
// session.
func (s *Store) BeginProcessing(id uuid.UUID) bool {
	s.mu.Lock()
	sess, _ := s.lookup(id)
	if sess == nil || sess.Status == StatusProcessing {
		s.mu.Unlock()
		return false
	}
	sess.Status = StatusProcessing
	sess.Error = ""
	s.mu.Unlock()

	s.notify()
	return true
}

// Mutate runs fn on the live session under the store lock and reports
// whether the session existed. The generation pipeline uses it to merge
// results atomically against concurrent edits.
//
// fn must not block and must not retain the pointer past its return. Content
// written by fn is the caller's responsibility to keep free of highlight
// overlay.
func (s *Store) Mutate(id uuid.UUID, fn func(*Session)) bool {
	s.mu.Lock()
	sess, _ := s.lookup(id)
	if sess == nil {
		s.mu.Unlock()
		return false
	}
	fn(sess)
	s.mu.Unlock()

	s.notify()
	return true
}

// ReplaceAll swaps in a freshly loaded collection, newest first, and
// self-heals the active id: unknown active falls back to the newest session,
// an empty collection synthesizes a blank one.
//
// This is the load path; it does not fire the change hook.
func (s *Store) ReplaceAll(sessions []*Session, activeID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]*Session, len(sessions))
	copy(sorted, sessions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	s.sessions = sorted

	if len(s.sessions) == 0 {
		replacement := NewSession("")
		s.sessions = []*Session{replacement}
		s.activeID = replacement.ID
		s.logger.Debug("loaded empty collection, synthesized blank session",
			"id", replacement.ID)
		return
	}

	if sess, _ := s.lookup(activeID); sess == nil {
		s.activeID = s.sessions[0].ID
		s.logger.Debug("active session missing after load, healed to newest",
			"requested", activeID, "active", s.activeID)
		return
	}
	s.activeID = activeID
}
