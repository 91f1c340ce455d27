package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jotdown/jotdown/internal/app"
	"github.com/jotdown/jotdown/internal/markup"
	"github.com/jotdown/jotdown/internal/note"
	"github.com/jotdown/jotdown/internal/weekly"
)

// runList prints every session newest first, the active one marked.
func runList(a *app.App, w io.Writer) error {
	sessions := a.Store.Sessions()
	activeID := a.Store.ActiveID()

	for _, sess := range sessions {
		marker := " "
		if sess.ID == activeID {
			marker = "*"
		}
		line := fmt.Sprintf("%s %s  %-12s %s", marker, shortID(sess.ID),
			formatTime(sess.CreatedAt), displayTitle(sess))
		if sess.Status != note.StatusIdle {
			line += "  [" + string(sess.Status) + "]"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

// runNew creates a session with the given title and makes it active.
func runNew(a *app.App, args []string, w io.Writer) error {
	title := strings.TrimSpace(strings.Join(args, " "))
	id := a.Store.Create(title)
	fmt.Fprintf(w, "Created session %s\n", shortID(id))
	return nil
}

// runShow prints one session: header, plain-text content, conversation.
func runShow(a *app.App, args []string, w io.Writer) error {
	sess, err := resolveSession(a, args)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Session: %s\n", sess.ID)
	fmt.Fprintf(w, "Title: %s\n", displayTitle(sess))
	fmt.Fprintf(w, "Created: %s\n", formatTime(sess.CreatedAt))
	fmt.Fprintf(w, "Mode: %s\n", sess.Mode)
	fmt.Fprintf(w, "Status: %s\n", sess.Status)
	if sess.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", sess.Error)
	}
	if len(sess.Attachments) > 0 {
		names := make([]string, len(sess.Attachments))
		for i, ref := range sess.Attachments {
			names[i] = ref.Filename
		}
		fmt.Fprintf(w, "Attachments: %s\n", strings.Join(names, ", "))
	}
	if sess.Result != nil {
		fmt.Fprintf(w, "Last generated: %s\n", formatTime(sess.Result.GeneratedAt))
	}

	fmt.Fprintln(w)
	if text := strings.TrimSpace(markup.PlainText(sess.Content)); text != "" {
		fmt.Fprintln(w, text)
	} else {
		fmt.Fprintln(w, "(empty note)")
	}

	for _, turn := range sess.Conversation {
		speaker := "You"
		if turn.Speaker == note.SpeakerAssistant {
			speaker = "jotdown"
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s> %s\n", speaker, turn.Text)
	}
	return nil
}

// runGenerate runs one generation cycle and prints the merged result.
func runGenerate(ctx context.Context, a *app.App, args []string, w io.Writer) error {
	sess, err := resolveSession(a, args)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Generating %s (%s mode)...\n", shortID(sess.ID), sess.Mode)
	if err := a.Orchestrator.Generate(ctx, sess.ID); err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	updated, ok := a.Store.Get(sess.ID)
	if !ok || updated.Result == nil {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, newMarkdownRenderer().Render(updated.Result.GeneratedText))
	return nil
}

// runAsk sends one question about the active note and prints the reply.
func runAsk(ctx context.Context, a *app.App, args []string, w io.Writer) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("usage: jotdown ask <question>")
	}

	sess, ok := a.Store.Active()
	if !ok {
		return errors.New("no active session")
	}

	if err := a.Orchestrator.Converse(ctx, sess.ID, question); err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	updated, ok := a.Store.Get(sess.ID)
	if !ok || len(updated.Conversation) == 0 {
		return nil
	}
	reply := updated.Conversation[len(updated.Conversation)-1].Text
	fmt.Fprintln(w, newMarkdownRenderer().Render(reply))
	return nil
}

// runWeekly builds this week's summary immediately, outside the schedule.
func runWeekly(ctx context.Context, a *app.App, w io.Writer) error {
	id, err := a.Aggregator.Aggregate(ctx)
	if errors.Is(err, weekly.ErrNothingToSummarize) {
		fmt.Fprintln(w, "Nothing to summarize this week.")
		return nil
	}
	if err != nil {
		// The summary session exists and carries the error state.
		return fmt.Errorf("weekly summary %s: %w", shortID(id), err)
	}

	if sess, ok := a.Store.Get(id); ok {
		fmt.Fprintf(w, "Created %q (%s)\n", sess.Title, shortID(id))
	}
	return nil
}

// runWatch keeps the process alive so the weekly schedule can fire.
func runWatch(ctx context.Context, a *app.App, w io.Writer) error {
	if !a.Config.Weekly.Enabled {
		return errors.New("weekly schedule is disabled; set weekly.enabled in config")
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a.StartScheduler(ctx)
	fmt.Fprintf(w, "Watching for the weekly window (%s %02d:00). Ctrl+C to stop.\n",
		a.Config.Weekly.Weekday(), a.Config.Weekly.Hour)

	<-ctx.Done()
	fmt.Fprintln(w, "Stopped.")
	return nil
}

// resolveSession picks the session a command targets: the active one when no
// argument is given, otherwise a unique id prefix match.
func resolveSession(a *app.App, args []string) (*note.Session, error) {
	if len(args) == 0 {
		sess, ok := a.Store.Active()
		if !ok {
			return nil, errors.New("no active session")
		}
		return sess, nil
	}

	prefix := strings.ToLower(args[0])
	var matches []*note.Session
	for _, sess := range a.Store.Sessions() {
		if strings.HasPrefix(sess.ID.String(), prefix) {
			matches = append(matches, sess)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no session matches %q", args[0])
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("session id %q is ambiguous (%d matches)", args[0], len(matches))
	}
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func displayTitle(sess *note.Session) string {
	if title := strings.TrimSpace(sess.Title); title != "" {
		return title
	}
	return "Untitled Note"
}

// formatTime formats time in a human-readable format.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
