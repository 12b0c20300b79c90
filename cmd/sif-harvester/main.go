package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/limnosat/sif-harvester/internal/archive"
	"github.com/limnosat/sif-harvester/internal/catalog"
	"github.com/limnosat/sif-harvester/internal/config"
	"github.com/limnosat/sif-harvester/internal/extract"
	"github.com/limnosat/sif-harvester/internal/geo"
	"github.com/limnosat/sif-harvester/internal/granule"
	"github.com/limnosat/sif-harvester/internal/ledger"
	"github.com/limnosat/sif-harvester/internal/logging"
	"github.com/limnosat/sif-harvester/internal/metrics"
	"github.com/limnosat/sif-harvester/internal/pipeline"
	"github.com/limnosat/sif-harvester/internal/publish"
	"github.com/limnosat/sif-harvester/internal/sink"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	var (
		configPath       = flag.String("config", "", "path to YAML config file")
		dateArg          = flag.String("date", "", "process a single date (YYYY-MM-DD) instead of walking the range")
		noWrite          = flag.Bool("no-write", false, "dry run: fetch and filter but write nothing")
		skipDateCheck    = flag.Bool("skip-date-check", false, "bypass the date ledger check")
		skipListingCheck = flag.Bool("skip-listing-check", false, "bypass the listing-URL ledger check")
		skipFileCheck    = flag.Bool("skip-file-check", false, "bypass the per-file ledger check")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level})
	log := logging.Component("main")
	log.Info("sif-harvester starting", "version", version, "git_sha", gitSHA)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		log.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.Serve(cfg.Metrics.Address, reg)
		log.Info("metrics endpoint up", "address", cfg.Metrics.Address)
	}

	led, err := ledger.NewFileLedger(cfg.Paths.LedgerDir)
	if err != nil {
		log.Error("ledger init failed", "dir", cfg.Paths.LedgerDir, "error", err)
		os.Exit(1)
	}

	var cat *catalog.Catalog
	if cfg.Catalog.Path != "" {
		cat, err = catalog.Open(ctx, cfg.Catalog.Path)
		if err != nil {
			log.Error("run catalog init failed", "path", cfg.Catalog.Path, "error", err)
			os.Exit(1)
		}
		defer cat.Close()
	}

	p := pipeline.New(pipeline.Deps{
		Ledger:  led,
		Archive: archive.NewClient(cfg.Archive, logging.Component("archive")),
		Reader:  granule.NewParquetReader(),
		Box: geo.Box{
			LatMin: cfg.Box.LatMin,
			LatMax: cfg.Box.LatMax,
			LonMin: cfg.Box.LonMin,
			LonMax: cfg.Box.LonMax,
		},
		Sink:        sink.NewAppender(cfg.Paths.TablePath, extract.Columns),
		Metrics:     m,
		ScratchPath: cfg.Paths.ScratchPath,
		Logger:      logging.Component("pipeline"),
	})

	opts := pipeline.Options{
		Write:            !*noWrite,
		SkipDateCheck:    *skipDateCheck,
		SkipListingCheck: *skipListingCheck,
		SkipFileCheck:    *skipFileCheck,
	}

	if err := run(ctx, p, cat, cfg, opts, *dateArg, log); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("shutdown complete")
		} else {
			log.Error("harvest failed", "error", err)
			os.Exit(1)
		}
	}

	if cfg.Publish.BucketURL != "" {
		pub := publish.New(cfg.Publish.BucketURL, cfg.Publish.Prefix, logging.Component("publish"))
		paths := append([]string{cfg.Paths.TablePath}, led.Paths()...)
		// Publish failures do not fail the run; the local artifacts are
		// already durable.
		if err := pub.Publish(context.Background(), paths); err != nil {
			log.Error("publish failed", "error", err)
		}
	}

	if metricsSrv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

// run executes either a single-date harvest or the full descending walk.
func run(ctx context.Context, p *pipeline.Pipeline, cat *catalog.Catalog, cfg *config.Config, opts pipeline.Options, dateArg string, log *slog.Logger) error {
	if dateArg != "" {
		date, err := time.ParseInLocation("2006-01-02", dateArg, time.UTC)
		if err != nil {
			return fmt.Errorf("parse -date %q: %w", dateArg, err)
		}
		res, err := p.ProcessDate(ctx, date, opts)
		if err != nil {
			return err
		}
		log.Info("date processed", "date", dateArg, "outcome", string(res.Outcome), "rows", res.Rows)
		return nil
	}

	runner := pipeline.NewRunner(p, clockwork.NewRealClock(), cfg.Run.Start(), opts, cat, logging.Component("runner"))
	_, err := runner.Run(ctx)
	return err
}
