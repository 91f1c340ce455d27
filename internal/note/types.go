// Package note holds the note-session model and the in-memory session store
// that is the single source of truth for the application's working state.
//
// Sessions are kept newest-first. Exactly one session is active at any time;
// the store self-heals that invariant on every mutation that could break it.
// Persistence is somebody else's job: the store exposes snapshots and a change
// hook, and the storage layer decides when to write them out.
package note

import (
	"time"

	"github.com/google/uuid"

	"github.com/jotdown/jotdown/internal/attachment"
)

// Status tracks a session through the generation lifecycle.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// Mode selects the generation behavior for a session. The prompt and model
// behind each mode live in the generate package.
type Mode string

const (
	ModeStructured Mode = "structured"
	ModeTranscribe Mode = "transcribe"
	ModeActions    Mode = "actions"
	ModeWeekly     Mode = "weekly"
)

// Result is the outcome of the most recent successful generation. It is
// cleared only by an explicit reset, never by later edits.
type Result struct {
	GeneratedText string
	GeneratedAt   time.Time
}

// Speaker values for conversation turns.
const (
	SpeakerUser      = "user"
	SpeakerAssistant = "assistant"
)

// Turn is one exchange in a session's side conversation. The conversation is
// independent from the note content.
type Turn struct {
	Speaker string
	Text    string
	At      time.Time
	IsError bool
}

// DefaultContent seeds a fresh session with one empty paragraph, matching
// what the editor produces for a blank note.
const DefaultContent = "<p></p>"

// Session is one note session.
//
// Content is an HTML fragment and the single source of truth for the note.
// It may embed base64 data-URL images and link annotations, but never the
// transient search-highlight overlay.
//
// Zero values:
//   - Title: "" (valid; the UI renders a placeholder)
//   - Result: nil (never generated, or explicitly reset)
//   - Error: "" (only set between a failed generation and its dismissal)
type Session struct {
	ID           uuid.UUID
	Title        string
	Content      string
	Attachments  []*attachment.Ref
	Result       *Result
	Status       Status
	Error        string
	CreatedAt    time.Time
	Mode         Mode
	Conversation []Turn
}

// NewSession constructs a blank idle session with template content.
func NewSession(title string) *Session {
	return &Session{
		ID:        uuid.New(),
		Title:     title,
		Content:   DefaultContent,
		Status:    StatusIdle,
		CreatedAt: time.Now(),
		Mode:      ModeStructured,
	}
}

// Clone returns a deep copy with the same identity. Attachment payload bytes
// are shared (they are immutable); everything else is copied so the caller
// can read the snapshot without holding the store lock.
//
// Clone preserves IDs and display handles. Duplicating a session as a user
// operation is Store.Duplicate, which resets identity and reissues handles.
func (n *Session) Clone() *Session {
	c := *n

	if n.Attachments != nil {
		c.Attachments = make([]*attachment.Ref, len(n.Attachments))
		for i, ref := range n.Attachments {
			refCopy := *ref
			c.Attachments[i] = &refCopy
		}
	}
	if n.Result != nil {
		r := *n.Result
		c.Result = &r
	}
	if n.Conversation != nil {
		c.Conversation = make([]Turn, len(n.Conversation))
		copy(c.Conversation, n.Conversation)
	}
	return &c
}

// Patch is a field-level update applied by Store.Update. Nil fields leave
// the session untouched.
type Patch struct {
	Title   *string
	Content *string
	Mode    *Mode
}
