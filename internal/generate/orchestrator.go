package generate

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/jotdown/jotdown/internal/log"
	"github.com/jotdown/jotdown/internal/markup"
	"github.com/jotdown/jotdown/internal/note"
)

// ErrSessionNotFound reports a call against an id the store does not hold.
var ErrSessionNotFound = errors.New("session not found")

// SeparatorAttr marks the boundary between user-authored content and a
// merged generation block. The weekly aggregator truncates each note at the
// first occurrence so summaries never feed on earlier generated output.
const SeparatorAttr = "data-generated-at"

// emptyNotePrompt is sent when a session has neither content nor
// attachments, so the model still returns a useful scaffold.
const emptyNotePrompt = "This note is empty. Produce a short starter outline " +
	"for structured note-taking: a title suggestion and three or four section " +
	"headings with one-line hints."

// markdown renders generated Markdown into the note's markup dialect.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Orchestrator owns the generation cycle per session: processing guard,
// payload assembly, model call, and the merge of the result back into the
// store.
type Orchestrator struct {
	client Client
	store  *note.Store
	logger log.Logger
	now    func() time.Time
}

// NewOrchestrator wires the orchestrator to its collaborators.
func NewOrchestrator(client Client, store *note.Store, logger log.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		client: client,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Generate runs one generation cycle for the session. At most one cycle
// runs per session at a time; a call while one is in flight is a no-op.
//
// The returned error reports the outcome to the invoker. Session state
// carries the same outcome: StatusError plus a message on failure,
// StatusSuccess plus the merged content on success. A session deleted
// mid-flight absorbs neither; its result is dropped with a debug log.
func (o *Orchestrator) Generate(ctx context.Context, id uuid.UUID) error {
	if !o.store.BeginProcessing(id) {
		if _, ok := o.store.Get(id); !ok {
			return ErrSessionNotFound
		}
		o.logger.Debug("generation already in flight", "session_id", id)
		return nil
	}

	snapshot, ok := o.store.Get(id)
	if !ok {
		// Deleted between the guard and the snapshot.
		return nil
	}

	parts := noteParts(snapshot)
	if len(parts) == 0 {
		parts = append(parts, ai.NewTextPart(emptyNotePrompt))
	}
	o.logger.Debug("starting generation",
		"session_id", id,
		"mode", snapshot.Mode,
		"parts", len(parts),
	)

	res, err := o.client.Generate(ctx, Request{Parts: parts, Mode: snapshot.Mode})
	if err != nil {
		o.recordFailure(id, err)
		return err
	}

	o.merge(id, res)
	return nil
}

// Converse answers a question about the note in the session's side
// conversation. Content, Result and Status stay untouched; the exchange
// lands in the conversation log, with a flagged turn on failure.
func (o *Orchestrator) Converse(ctx context.Context, id uuid.UUID, question string) error {
	snapshot, ok := o.store.Get(id)
	if !ok {
		return ErrSessionNotFound
	}

	o.store.AppendTurn(id, note.Turn{
		Speaker: note.SpeakerUser,
		Text:    question,
		At:      o.now(),
	})

	// The snapshot predates the appended turn, so the question rides in
	// the payload exactly once.
	parts := append(noteParts(snapshot), ai.NewTextPart(question))
	res, err := o.client.Generate(ctx, Request{
		Parts:   parts,
		History: snapshot.Conversation,
		Mode:    modeConversation,
	})
	if err != nil {
		o.store.AppendTurn(id, note.Turn{
			Speaker: note.SpeakerAssistant,
			Text:    err.Error(),
			At:      o.now(),
			IsError: true,
		})
		return err
	}

	o.store.AppendTurn(id, note.Turn{
		Speaker: note.SpeakerAssistant,
		Text:    res.Text,
		At:      o.now(),
	})
	return nil
}

// merge folds a successful result into the session. The content append runs
// inside the store lock and reads the live session, so edits made while the
// model was working are preserved and the block lands after them.
func (o *Orchestrator) merge(id uuid.UUID, res *Result) {
	now := o.now()
	block := renderBlock(res, now)
	merged := o.store.Mutate(id, func(sess *note.Session) {
		sess.Content += block
		if strings.TrimSpace(sess.Title) == "" {
			sess.Title = "Notes - " + now.Format("2006-01-02")
		}
		sess.Result = &note.Result{GeneratedText: res.Text, GeneratedAt: now}
		sess.Status = note.StatusSuccess
		sess.Error = ""
	})
	if !merged {
		o.logger.Debug("dropping generation result, session deleted", "session_id", id)
	}
}

func (o *Orchestrator) recordFailure(id uuid.UUID, genErr error) {
	recorded := o.store.Mutate(id, func(sess *note.Session) {
		sess.Status = note.StatusError
		sess.Error = genErr.Error()
	})
	if !recorded {
		o.logger.Debug("dropping generation failure, session deleted", "session_id", id)
	}
}

// noteParts flattens the session into model parts: content segments in
// document order, then one media part per attachment.
func noteParts(sess *note.Session) []*ai.Part {
	segments := markup.Flatten(markup.StripHighlight(sess.Content))
	parts := make([]*ai.Part, 0, len(segments)+len(sess.Attachments))
	for _, seg := range segments {
		if seg.IsBinary() {
			parts = append(parts, mediaPart(seg.MIME, seg.Data))
			continue
		}
		parts = append(parts, ai.NewTextPart(seg.Text))
	}
	for _, ref := range sess.Attachments {
		parts = append(parts, ai.NewMediaPart(ref.MIME, ref.DataURL()))
	}
	return parts
}

func mediaPart(mediaType string, data []byte) *ai.Part {
	encoded := base64.StdEncoding.EncodeToString(data)
	return ai.NewMediaPart(mediaType, "data:"+mediaType+";base64,"+encoded)
}

// renderBlock renders the merge block: timestamped separator, converted
// reply, then sources.
func renderBlock(res *Result, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<hr %s=%q/>`, SeparatorAttr, now.Format(time.RFC3339))
	b.WriteString(renderMarkdown(res.Text))
	b.WriteString(renderSources(res.Citations))
	return b.String()
}

// renderMarkdown converts the model's Markdown reply to markup. Conversion
// failure degrades to an escaped literal block; the reply is never lost.
func renderMarkdown(src string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "<pre>" + html.EscapeString(src) + "</pre>"
	}
	return strings.TrimSpace(buf.String())
}

// renderSources renders citations in arrival order, one anchor per source.
func renderSources(citations []Citation) string {
	if len(citations) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<h3>Sources</h3><ul>")
	for _, c := range citations {
		title := c.Title
		if title == "" {
			title = c.URI
		}
		b.WriteString(`<li><a href="` + html.EscapeString(c.URI) + `">` +
			html.EscapeString(title) + `</a></li>`)
	}
	b.WriteString("</ul>")
	return b.String()
}
