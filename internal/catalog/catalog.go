// Package catalog records run and per-date lineage in a sqlite database.
// The catalog is optional and advisory: callers log catalog errors and keep
// going, the harvest never fails because of it.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Run is one invocation of the harvester.
type Run struct {
	bun.BaseModel `bun:"table:runs,alias:r"`

	ID         int64     `bun:"id,pk,autoincrement"`
	StartedAt  time.Time `bun:"started_at,notnull"`
	FinishedAt time.Time `bun:"finished_at,nullzero"`
	FirstDate  string    `bun:"first_date,notnull"` // newest date of the walk
	LastDate   string    `bun:"last_date,notnull"`  // configured start date
	Rows       int64     `bun:"rows_appended"`
}

// DateOutcome is the terminal result for one date within a run.
type DateOutcome struct {
	bun.BaseModel `bun:"table:date_outcomes,alias:d"`

	ID        int64     `bun:"id,pk,autoincrement"`
	RunID     int64     `bun:"run_id,notnull"`
	Date      string    `bun:"date,notnull"`
	Outcome   string    `bun:"outcome,notnull"`
	Rows      int64     `bun:"rows_appended"`
	Error     string    `bun:"error"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Catalog wraps the sqlite database.
type Catalog struct {
	db *bun.DB
}

// Open opens (creating if needed) the catalog database at path.
func Open(ctx context.Context, path string) (*Catalog, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := db.ExecContext(ctx, `
        PRAGMA journal_mode = WAL;
        PRAGMA synchronous = NORMAL;
        PRAGMA foreign_keys = ON;
    `); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply catalog pragmas: %w", err)
	}

	for _, model := range []any{(*Run)(nil), (*DateOutcome)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("create catalog tables: %w", err)
		}
	}

	return &Catalog{db: db}, nil
}

// BeginRun inserts a run row and returns its id.
func (c *Catalog) BeginRun(ctx context.Context, firstDate, lastDate time.Time) (int64, error) {
	run := &Run{
		StartedAt: time.Now().UTC(),
		FirstDate: firstDate.Format("2006-01-02"),
		LastDate:  lastDate.Format("2006-01-02"),
	}
	if _, err := c.db.NewInsert().Model(run).Exec(ctx); err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return run.ID, nil
}

// RecordDate inserts the terminal outcome for one date.
func (c *Catalog) RecordDate(ctx context.Context, runID int64, date time.Time, outcome string, rows int64, errText string) error {
	out := &DateOutcome{
		RunID:   runID,
		Date:    date.Format("2006-01-02"),
		Outcome: outcome,
		Rows:    rows,
		Error:   errText,
	}
	if _, err := c.db.NewInsert().Model(out).Exec(ctx); err != nil {
		return fmt.Errorf("insert date outcome: %w", err)
	}
	return nil
}

// FinishRun stamps the run row with its end time and total appended rows.
func (c *Catalog) FinishRun(ctx context.Context, runID int64, rows int64) error {
	_, err := c.db.NewUpdate().
		Model((*Run)(nil)).
		Set("finished_at = ?", time.Now().UTC()).
		Set("rows_appended = ?", rows).
		Where("id = ?", runID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	return nil
}

// Outcomes returns the recorded outcomes for a run, oldest insert first.
func (c *Catalog) Outcomes(ctx context.Context, runID int64) ([]DateOutcome, error) {
	var outs []DateOutcome
	err := c.db.NewSelect().
		Model(&outs).
		Where("run_id = ?", runID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select outcomes for run %d: %w", runID, err)
	}
	return outs, nil
}

// Close releases the database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}
