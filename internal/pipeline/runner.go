package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/limnosat/sif-harvester/internal/catalog"
)

// DateProcessor is the per-date entry point the runner drives.
type DateProcessor interface {
	ProcessDate(ctx context.Context, date time.Time, opts Options) (Result, error)
}

// Summary tallies one walk over the date range.
type Summary struct {
	Dates       int
	Completed   int
	DateExists  int
	URLExists   int
	Unavailable int
	Rows        int
	Elapsed     time.Duration
}

// Runner walks dates from today backwards to the configured start date,
// newest first, handing each to the processor.
type Runner struct {
	proc    DateProcessor
	clock   clockwork.Clock
	start   time.Time
	opts    Options
	catalog *catalog.Catalog
	log     *slog.Logger
}

// NewRunner creates a Runner. catalog may be nil to disable run recording.
func NewRunner(proc DateProcessor, clock clockwork.Clock, start time.Time, opts Options, cat *catalog.Catalog, log *slog.Logger) *Runner {
	return &Runner{proc: proc, clock: clock, start: start, opts: opts, catalog: cat, log: log}
}

// Run processes every date in [start, today], descending. It stops at the
// first fatal error, surfacing it unmodified. Catalog failures are logged
// and do not interrupt the walk.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	began := r.clock.Now()
	now := began.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var sum Summary
	var runID int64
	recording := r.catalog != nil
	if recording {
		id, err := r.catalog.BeginRun(ctx, today, r.start)
		if err != nil {
			r.log.Warn("run catalog unavailable", "error", err)
			recording = false
		} else {
			runID = id
		}
	}

	for d := today; !d.Before(r.start); d = d.AddDate(0, 0, -1) {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := r.proc.ProcessDate(ctx, d, r.opts)
		if err != nil {
			if recording {
				if cerr := r.catalog.RecordDate(ctx, runID, d, "error", 0, err.Error()); cerr != nil {
					r.log.Warn("catalog write failed", "error", cerr)
				}
			}
			return sum, err
		}

		sum.Dates++
		sum.Rows += res.Rows
		switch res.Outcome {
		case OutcomeDateExists:
			sum.DateExists++
		case OutcomeURLExists:
			sum.URLExists++
		case OutcomeUnavailable:
			sum.Unavailable++
		case OutcomeCompleted:
			sum.Completed++
		}

		if recording {
			if cerr := r.catalog.RecordDate(ctx, runID, d, string(res.Outcome), int64(res.Rows), ""); cerr != nil {
				r.log.Warn("catalog write failed", "error", cerr)
				recording = false
			}
		}
	}

	if recording {
		if cerr := r.catalog.FinishRun(ctx, runID, int64(sum.Rows)); cerr != nil {
			r.log.Warn("catalog write failed", "error", cerr)
		}
	}

	sum.Elapsed = r.clock.Now().Sub(began)
	r.log.Info("run complete",
		"dates", sum.Dates,
		"completed", sum.Completed,
		"date_exists", sum.DateExists,
		"url_exists", sum.URLExists,
		"unavailable", sum.Unavailable,
		"rows", sum.Rows,
		"elapsed", sum.Elapsed)
	return sum, nil
}
