package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	results map[string]Result
	err     error
	errOn   string
	dates   []string
}

func (p *fakeProcessor) ProcessDate(ctx context.Context, date time.Time, opts Options) (Result, error) {
	token := date.Format("2006-01-02")
	p.dates = append(p.dates, token)
	if p.errOn == token {
		return Result{}, p.err
	}
	if res, ok := p.results[token]; ok {
		return res, nil
	}
	return Result{Outcome: OutcomeCompleted}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunnerWalksDescending(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2020, time.March, 10, 14, 30, 0, 0, time.UTC))
	start := time.Date(2020, time.March, 7, 0, 0, 0, 0, time.UTC)
	proc := &fakeProcessor{}

	r := NewRunner(proc, clock, start, DefaultOptions(), nil, discardLogger())
	sum, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"2020-03-10", "2020-03-09", "2020-03-08", "2020-03-07"}, proc.dates)
	assert.Equal(t, 4, sum.Dates)
	assert.Equal(t, 4, sum.Completed)
}

func TestRunnerTalliesOutcomes(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2020, time.March, 10, 6, 0, 0, 0, time.UTC))
	start := time.Date(2020, time.March, 7, 0, 0, 0, 0, time.UTC)
	proc := &fakeProcessor{results: map[string]Result{
		"2020-03-10": {Outcome: OutcomeCompleted, Rows: 12},
		"2020-03-09": {Outcome: OutcomeDateExists},
		"2020-03-08": {Outcome: OutcomeURLExists},
		"2020-03-07": {Outcome: OutcomeUnavailable},
	}}

	r := NewRunner(proc, clock, start, DefaultOptions(), nil, discardLogger())
	sum, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Dates)
	assert.Equal(t, 1, sum.Completed)
	assert.Equal(t, 1, sum.DateExists)
	assert.Equal(t, 1, sum.URLExists)
	assert.Equal(t, 1, sum.Unavailable)
	assert.Equal(t, 12, sum.Rows)
}

func TestRunnerStopsOnFatalError(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2020, time.March, 10, 6, 0, 0, 0, time.UTC))
	start := time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)
	fatal := errors.New("ledger write failed")
	proc := &fakeProcessor{err: fatal, errOn: "2020-03-09"}

	r := NewRunner(proc, clock, start, DefaultOptions(), nil, discardLogger())
	sum, err := r.Run(context.Background())
	require.ErrorIs(t, err, fatal)
	assert.Equal(t, []string{"2020-03-10", "2020-03-09"}, proc.dates)
	assert.Equal(t, 1, sum.Dates, "only the completed date is tallied")
}

func TestRunnerSingleDayRange(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2020, time.March, 7, 23, 59, 0, 0, time.UTC))
	start := time.Date(2020, time.March, 7, 0, 0, 0, 0, time.UTC)
	proc := &fakeProcessor{}

	r := NewRunner(proc, clock, start, DefaultOptions(), nil, discardLogger())
	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-03-07"}, proc.dates)
	assert.Equal(t, 1, sum.Dates)
}

func TestRunnerContextCancelled(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2020, time.March, 10, 6, 0, 0, 0, time.UTC))
	start := time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)
	proc := &fakeProcessor{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(proc, clock, start, DefaultOptions(), nil, discardLogger())
	_, err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, proc.dates)
}
