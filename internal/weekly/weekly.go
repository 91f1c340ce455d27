// Package weekly folds the working week's notes into one generated summary
// session.
package weekly

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jotdown/jotdown/internal/generate"
	"github.com/jotdown/jotdown/internal/log"
	"github.com/jotdown/jotdown/internal/note"
)

// TitlePrefix marks sessions produced by the aggregator. Sessions carrying
// it never feed a later aggregation.
const TitlePrefix = "Weekly Summary"

// ErrNothingToSummarize means the window held no qualifying sessions. It is
// a distinct outcome, not a failure: nothing was created and nothing ran.
var ErrNothingToSummarize = errors.New("no sessions in the weekly window")

// Window returns the Monday through Friday span of the working week
// containing now, closed on both ends. Saturday still belongs to the week
// just worked, and Sunday rolls back to that same window rather than
// forward into the week that has not begun.
func Window(now time.Time) (start, end time.Time) {
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	y, m, d := now.Date()
	start = time.Date(y, m, d-daysSinceMonday, 0, 0, 0, 0, now.Location())
	fy, fm, fd := start.AddDate(0, 0, 4).Date()
	end = time.Date(fy, fm, fd, 23, 59, 59, 999999999, now.Location())
	return start, end
}

// Aggregator assembles one digest note from the week's sessions and drives
// a weekly-mode generation over it.
type Aggregator struct {
	store  *note.Store
	orch   *generate.Orchestrator
	logger log.Logger
	now    func() time.Time
}

// NewAggregator wires the aggregator to its collaborators.
func NewAggregator(store *note.Store, orch *generate.Orchestrator, logger log.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		store:  store,
		orch:   orch,
		logger: logger,
		now:    time.Now,
	}
}

// Aggregate collects the window's sessions into a fresh summary session and
// generates over it, returning the new session's id. With no qualifying
// sessions it returns ErrNothingToSummarize and creates nothing.
//
// A failed generation still returns the created id: the session exists and
// carries the error state.
func (a *Aggregator) Aggregate(ctx context.Context) (uuid.UUID, error) {
	start, end := Window(a.now())
	digest := a.digest(start, end)
	if digest == "" {
		return uuid.Nil, ErrNothingToSummarize
	}

	id := a.store.Create(TitlePrefix + " - " + start.Format("2006-01-02"))
	mode := note.ModeWeekly
	a.store.Update(id, note.Patch{Content: &digest, Mode: &mode})

	a.logger.Info("aggregating weekly summary",
		"session_id", id,
		"window_start", start.Format("2006-01-02"),
		"window_end", end.Format("2006-01-02"),
	)
	if err := a.orch.Generate(ctx, id); err != nil {
		return id, fmt.Errorf("weekly generation failed: %w", err)
	}
	return id, nil
}

// digest renders the qualifying sessions oldest first, each under a dated
// heading, truncated at its first generation separator so earlier model
// output never feeds the summary.
func (a *Aggregator) digest(start, end time.Time) string {
	sessions := a.store.Sessions()
	var b strings.Builder
	for i := len(sessions) - 1; i >= 0; i-- {
		sess := sessions[i]
		if sess.CreatedAt.Before(start) || sess.CreatedAt.After(end) {
			continue
		}
		if sess.Mode == note.ModeWeekly || strings.HasPrefix(sess.Title, TitlePrefix) {
			continue
		}

		title := strings.TrimSpace(sess.Title)
		if title == "" {
			title = "Untitled Note"
		}
		b.WriteString("<h2>" + sess.CreatedAt.Format("2006-01-02") + " - " +
			html.EscapeString(title) + "</h2>")
		b.WriteString(strings.TrimSpace(userAuthored(sess.Content)))
	}
	return b.String()
}

// userAuthored cuts content at the first generation separator.
func userAuthored(content string) string {
	if idx := strings.Index(content, "<hr "+generate.SeparatorAttr); idx >= 0 {
		return content[:idx]
	}
	return content
}
