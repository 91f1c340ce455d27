package weekly

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jotdown/jotdown/internal/log"
	"github.com/jotdown/jotdown/internal/storage"
)

// Config sets when the scheduled weekly run fires.
type Config struct {
	Day      time.Weekday  // scheduled weekday; zero value is Sunday, so set it
	Hour     int           // earliest hour of the day, 0..23
	Interval time.Duration // tick period
}

// DefaultConfig fires Friday from 17:00, checking once a minute.
func DefaultConfig() Config {
	return Config{Day: time.Friday, Hour: 17, Interval: time.Minute}
}

// markerStore is the durable key-value surface the scheduler needs.
// *storage.Gateway satisfies it.
type markerStore interface {
	Meta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
}

// summarizer runs one aggregation. *Aggregator satisfies it.
type summarizer interface {
	Aggregate(ctx context.Context) (uuid.UUID, error)
}

// Scheduler fires the weekly aggregation at the configured weekday and
// hour, at most once per calendar day across restarts.
type Scheduler struct {
	agg    summarizer
	meta   markerStore
	cfg    Config
	logger log.Logger
	now    func() time.Time
}

// NewScheduler creates a scheduler. A zero Interval falls back to the
// default tick period.
func NewScheduler(agg summarizer, meta markerStore, cfg Config, logger log.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		agg:    agg,
		meta:   meta,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Run blocks until ctx is canceled, checking the schedule on every tick.
// Callers must track the goroutine with a WaitGroup. One check runs
// immediately, so a process started after the scheduled hour still
// summarizes that day.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce fires the aggregation when the scheduled time has arrived and no
// run is recorded for today. The marker is written after every attempt,
// success or not, which keeps the schedule at most once per day.
func (s *Scheduler) runOnce(ctx context.Context) {
	now := s.now()
	if now.Weekday() != s.cfg.Day || now.Hour() < s.cfg.Hour {
		return
	}

	today := now.Format("2006-01-02")
	last, err := s.meta.Meta(ctx, storage.MetaWeeklyLastRun)
	if err != nil {
		s.logger.Warn("weekly marker read failed", "error", err)
		return
	}
	if last == today {
		return
	}

	id, err := s.agg.Aggregate(ctx)
	switch {
	case errors.Is(err, ErrNothingToSummarize):
		s.logger.Info("weekly run found nothing to summarize")
	case err != nil:
		s.logger.Error("weekly aggregation failed", "error", err)
	default:
		s.logger.Info("weekly summary created", "session_id", id)
	}

	if err := s.meta.SetMeta(ctx, storage.MetaWeeklyLastRun, today); err != nil {
		s.logger.Warn("weekly marker write failed", "error", err)
	}
}
