// Package pipeline orchestrates the per-date harvest: ledger checks, listing
// resolution, granule downloads, geographic filtering, extraction, and the
// append to the output table.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/limnosat/sif-harvester/internal/extract"
	"github.com/limnosat/sif-harvester/internal/geo"
	"github.com/limnosat/sif-harvester/internal/granule"
	"github.com/limnosat/sif-harvester/internal/ledger"
	"github.com/limnosat/sif-harvester/internal/metrics"
)

// Outcome is the terminal result of processing one date.
type Outcome string

const (
	// OutcomeDateExists means the date ledger already had the date.
	OutcomeDateExists Outcome = "date exists"
	// OutcomeURLExists means the listing ledger already had the listing URL.
	OutcomeURLExists Outcome = "URL exists"
	// OutcomeUnavailable means the listing could not be fetched; the date
	// and URL are nonetheless marked seen and will not be retried.
	OutcomeUnavailable Outcome = "unable to download"
	// OutcomeCompleted means every candidate file was handled, possibly
	// appending zero rows.
	OutcomeCompleted Outcome = "completed"
)

// Options are the driver flags for one invocation.
type Options struct {
	// Write enables ledger and table writes. When false the pipeline does a
	// full fetch/filter/extract pass but records nothing.
	Write bool
	// SkipDateCheck bypasses the date-ledger short circuit.
	SkipDateCheck bool
	// SkipListingCheck bypasses the listing-ledger short circuit.
	SkipListingCheck bool
	// SkipFileCheck bypasses the per-file ledger skip.
	SkipFileCheck bool
}

// DefaultOptions enables writes with all ledger checks active.
func DefaultOptions() Options {
	return Options{Write: true}
}

// Result is the terminal outcome for one date plus the rows it appended.
type Result struct {
	Outcome Outcome
	Rows    int
}

// Archive is the remote-archive capability set the pipeline needs.
type Archive interface {
	ListingURL(date time.Time) string
	GranuleURL(listingURL, name string) string
	FetchListing(ctx context.Context, url string) ([]string, error)
	Download(ctx context.Context, fileURL, destPath string) error
}

// Appender writes extracted rows to the output table.
type Appender interface {
	Append(rows [][]string) error
}

// Deps wires the pipeline's collaborators.
type Deps struct {
	Ledger      ledger.Ledger
	Archive     Archive
	Reader      granule.Reader
	Box         geo.Box
	Sink        Appender
	Metrics     *metrics.Metrics
	ScratchPath string
	Logger      *slog.Logger
}

// Pipeline processes one date at a time, strictly sequentially.
type Pipeline struct {
	ledger      ledger.Ledger
	archive     Archive
	extractor   *extract.Extractor
	reader      granule.Reader
	box         geo.Box
	sink        Appender
	metrics     *metrics.Metrics
	scratchPath string
	log         *slog.Logger
}

// New creates a Pipeline from its collaborators.
func New(deps Deps) *Pipeline {
	return &Pipeline{
		ledger:      deps.Ledger,
		archive:     deps.Archive,
		extractor:   extract.New(deps.Reader),
		reader:      deps.Reader,
		box:         deps.Box,
		sink:        deps.Sink,
		metrics:     deps.Metrics,
		scratchPath: deps.ScratchPath,
		log:         deps.Logger,
	}
}

// ProcessDate runs the state machine for one date. Recoverable failures
// (listing unavailable, one granule failing to download or extract) are
// absorbed here; only ledger and table I/O errors propagate, and they halt
// the run.
func (p *Pipeline) ProcessDate(ctx context.Context, date time.Time, opts Options) (Result, error) {
	token := date.Format("2006-01-02")
	log := p.log.With("date", token)

	if !opts.SkipDateCheck {
		seen, err := p.ledger.HasSeen(ledger.KindDate, token)
		if err != nil {
			return Result{}, err
		}
		if seen {
			log.Info("date already processed")
			p.metrics.DatesSkipped.WithLabelValues("date_exists").Inc()
			return Result{Outcome: OutcomeDateExists}, nil
		}
	}
	// The date is recorded before any network I/O: at-least-once, not
	// exactly-once.
	if opts.Write {
		if err := p.ledger.MarkSeen(ledger.KindDate, token); err != nil {
			return Result{}, err
		}
	}

	listingURL := p.archive.ListingURL(date)
	if !opts.SkipListingCheck {
		seen, err := p.ledger.HasSeen(ledger.KindListing, listingURL)
		if err != nil {
			return Result{}, err
		}
		if seen {
			log.Info("listing URL already processed", "url", listingURL)
			p.metrics.DatesSkipped.WithLabelValues("url_exists").Inc()
			return Result{Outcome: OutcomeURLExists}, nil
		}
	}
	if opts.Write {
		if err := p.ledger.MarkSeen(ledger.KindListing, listingURL); err != nil {
			return Result{}, err
		}
	}

	names, err := p.archive.FetchListing(ctx, listingURL)
	if err != nil {
		log.Warn("listing unavailable", "url", listingURL, "error", err)
		p.metrics.FetchErrors.Inc()
		p.metrics.DatesSkipped.WithLabelValues("unavailable").Inc()
		return Result{Outcome: OutcomeUnavailable}, nil
	}
	log.Info("listing resolved", "url", listingURL, "granules", len(names))

	rows := 0
	for _, name := range names {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		n, err := p.processGranule(ctx, log, listingURL, name, opts)
		if err != nil {
			return Result{}, err
		}
		rows += n
	}

	p.metrics.DatesProcessed.Inc()
	log.Info("date complete", "rows", rows)
	return Result{Outcome: OutcomeCompleted, Rows: rows}, nil
}

// processGranule handles one candidate file. Recoverable failures return
// (0, nil) after logging; the returned error is fatal.
func (p *Pipeline) processGranule(ctx context.Context, log *slog.Logger, listingURL, name string, opts Options) (int, error) {
	glog := log.With("granule", name)

	if !opts.SkipFileCheck {
		seen, err := p.ledger.HasSeen(ledger.KindFile, name)
		if err != nil {
			return 0, err
		}
		if seen {
			glog.Info("granule already processed, skipping")
			p.metrics.GranulesSkipped.Inc()
			return 0, nil
		}
	}
	// Marked before the download attempt: a failed download is never
	// retried.
	if opts.Write {
		if err := p.ledger.MarkSeen(ledger.KindFile, name); err != nil {
			return 0, err
		}
	}

	fileURL := p.archive.GranuleURL(listingURL, name)
	glog.Info("downloading granule", "url", fileURL)

	start := time.Now()
	if err := p.archive.Download(ctx, fileURL, p.scratchPath); err != nil {
		glog.Warn("download failed", "error", err)
		p.metrics.FetchErrors.Inc()
		return 0, nil
	}
	p.metrics.GranulesDownloaded.Inc()
	p.metrics.DownloadDuration.Observe(time.Since(start).Seconds())

	lats, err := p.reader.Floats(p.scratchPath, granule.FieldLatitude)
	if err != nil {
		glog.Warn("extraction failed", "error", err)
		p.metrics.ExtractErrors.Inc()
		return 0, nil
	}
	lons, err := p.reader.Floats(p.scratchPath, granule.FieldLongitude)
	if err != nil {
		glog.Warn("extraction failed", "error", err)
		p.metrics.ExtractErrors.Inc()
		return 0, nil
	}

	indices, err := p.box.MatchIndices(lats, lons)
	if err != nil {
		glog.Warn("extraction failed", "error", err)
		p.metrics.ExtractErrors.Inc()
		return 0, nil
	}
	if len(indices) == 0 {
		glog.Debug("no soundings in box", "soundings", len(lats))
		return 0, nil
	}

	records, err := p.extractor.Extract(p.scratchPath, name, fileURL, indices)
	if err != nil {
		glog.Warn("extraction failed", "error", err)
		p.metrics.ExtractErrors.Inc()
		return 0, nil
	}

	if opts.Write {
		out := make([][]string, len(records))
		for i, r := range records {
			out[i] = r.Row()
		}
		if err := p.sink.Append(out); err != nil {
			return 0, fmt.Errorf("append %d rows for %s: %w", len(records), name, err)
		}
	}

	p.metrics.RowsAppended.Add(float64(len(records)))
	glog.Info("extracted soundings", "in_box", len(indices), "rows", len(records))
	return len(records), nil
}
