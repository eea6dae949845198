// Package backfill implements the resumable bulk fetch loop: it walks an
// ordered identifier list, fetches each identifier's records once, tolerates
// per-identifier failures, and checkpoints progress so an interrupted run
// resumes where it left off.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/courtside-labs/gamelog-backfill/internal/checkpoint"
	"github.com/courtside-labs/gamelog-backfill/internal/dataset"
	"github.com/courtside-labs/gamelog-backfill/internal/metrics"
)

const (
	// DefaultInterval is the number of identifiers processed between checkpoints.
	DefaultInterval = 25
	// DefaultTimeout bounds a single fetch call.
	DefaultTimeout = 30 * time.Second
)

// ErrNoIdentifiers is returned when the identifier source yields nothing.
var ErrNoIdentifiers = errors.New("identifier source returned no identifiers")

// Lister is the identifier source, called once per run.
type Lister interface {
	ListIdentifiers(ctx context.Context) ([]dataset.Identifier, error)
}

// ListerFunc adapts a function to Lister.
type ListerFunc func(ctx context.Context) ([]dataset.Identifier, error)

// ListIdentifiers calls f.
func (f ListerFunc) ListIdentifiers(ctx context.Context) ([]dataset.Identifier, error) {
	return f(ctx)
}

// Fetcher retrieves every record for one identifier. It must honour ctx,
// which carries the per-call deadline.
type Fetcher interface {
	Fetch(ctx context.Context, id dataset.Identifier) ([]dataset.Record, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, id dataset.Identifier) ([]dataset.Record, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, id dataset.Identifier) ([]dataset.Record, error) {
	return f(ctx, id)
}

// Pacer is implemented by fetchers whose upstream can ask callers to back
// off. The runner waits on it before each fetch, outside the per-call
// timeout, so a throttled identifier is delayed instead of failed.
type Pacer interface {
	WaitBackoff(ctx context.Context) error
}

// Options tunes a Runner.
type Options struct {
	// Interval is the number of identifiers attempted between checkpoints.
	Interval int
	// Delay is slept before every fetch call.
	Delay time.Duration
	// Timeout bounds every fetch call.
	Timeout time.Duration
	// Policy decides what a failed identifier means for the processed set.
	Policy FailurePolicy
}

// Failure records one identifier whose fetch failed.
type Failure struct {
	ID  dataset.Identifier
	Err error
}

// Report summarises a completed run.
type Report struct {
	Dataset *dataset.Dataset

	Total     int
	Skipped   int
	Succeeded int
	Empty     int
	Failed    []Failure
	Records   int

	Checkpoints    int
	Resumed        bool
	CheckpointKept bool
	Duration       time.Duration
}

// Attempted returns the number of identifiers fetched during this run.
func (r *Report) Attempted() int {
	return r.Succeeded + r.Empty + len(r.Failed)
}

// Runner executes one backfill. It is strictly sequential.
type Runner struct {
	lister  Lister
	fetcher Fetcher
	store   checkpoint.Store
	opts    Options
	metrics *metrics.Metrics
	logger  *logrus.Entry

	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	onReady func(total int)
}

// NewRunner creates a Runner. m may be nil.
func NewRunner(lister Lister, fetcher Fetcher, store checkpoint.Store, opts Options, m *metrics.Metrics, logger *logrus.Entry) *Runner {
	if opts.Interval < 1 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Policy == "" {
		opts.Policy = PolicySkip
	}
	return &Runner{
		lister:  lister,
		fetcher: fetcher,
		store:   store,
		opts:    opts,
		metrics: m,
		logger:  logger.WithField("component", "backfill"),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// OnReady registers fn to be called once the checkpoint is loaded and the
// identifier list is known, before the first fetch.
func (r *Runner) OnReady(fn func(total int)) {
	r.onReady = fn
}

// Run performs the backfill and returns the accumulated dataset in the
// report. Only checkpoint storage errors, identifier source errors and
// cancellation of ctx are returned; per-identifier failures are recorded
// in the report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := r.now()

	ds, resumed, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := r.lister.ListIdentifiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing identifiers: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrNoIdentifiers
	}

	r.metrics.SetIdentifiers(len(ids))
	r.metrics.SetProcessed(ds.ProcessedCount())
	r.logger.WithFields(logrus.Fields{
		"identifiers": len(ids),
		"processed":   ds.ProcessedCount(),
		"interval":    r.opts.Interval,
		"policy":      r.opts.Policy,
	}).Info("starting backfill")
	if r.onReady != nil {
		r.onReady(len(ids))
	}

	report := &Report{Total: len(ids), Resumed: resumed}
	sinceCheckpoint := 0

	for i, id := range ids {
		if ds.IsProcessed(id) {
			report.Skipped++
			continue
		}

		if err := r.sleep(ctx, r.opts.Delay); err != nil {
			return nil, fmt.Errorf("backfill interrupted before %s: %w", id, err)
		}
		if p, ok := r.fetcher.(Pacer); ok {
			if err := p.WaitBackoff(ctx); err != nil {
				return nil, fmt.Errorf("backfill interrupted before %s: %w", id, err)
			}
		}

		res, took := r.fetch(ctx, id)
		if res.Kind() == dataset.KindFailure && ctx.Err() != nil {
			// The run is being cancelled; the identifier was not really attempted.
			return nil, fmt.Errorf("backfill interrupted during %s: %w", id, ctx.Err())
		}

		kind := r.apply(ds, res, report)
		appended := len(res.Records)
		if kind == dataset.KindFailure {
			appended = 0
		}
		r.metrics.ObserveFetch(kind.String(), appended, took)
		r.metrics.SetProcessed(ds.ProcessedCount())

		sinceCheckpoint++
		if sinceCheckpoint >= r.opts.Interval {
			if err := r.save(ctx, ds, report); err != nil {
				return nil, err
			}
			sinceCheckpoint = 0
			r.logger.WithFields(logrus.Fields{
				"position": i + 1,
				"total":    len(ids),
				"records":  ds.Len(),
			}).Info("progress")
		}
	}

	if err := r.finish(ctx, ds, report); err != nil {
		return nil, err
	}

	report.Dataset = ds
	report.Duration = r.now().Sub(start)
	r.metrics.RunSucceeded(r.now())

	r.logger.WithFields(logrus.Fields{
		"records":   ds.Len(),
		"succeeded": report.Succeeded,
		"empty":     report.Empty,
		"failed":    len(report.Failed),
		"skipped":   report.Skipped,
		"duration":  report.Duration.Round(time.Millisecond),
	}).Info("backfill finished")

	return report, nil
}

// load restores the dataset from the checkpoint, or starts empty.
func (r *Runner) load(ctx context.Context) (*dataset.Dataset, bool, error) {
	snap, err := r.store.Load(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("loading checkpoint: %w", err)
	}
	if snap == nil {
		r.logger.Info("no checkpoint found, starting fresh")
		return dataset.New(), false, nil
	}

	ds := snap.Dataset()
	if err := ds.Verify(); err != nil {
		return nil, false, fmt.Errorf("loading checkpoint: %w", err)
	}

	log := r.logger.WithFields(logrus.Fields{
		"processed": ds.ProcessedCount(),
		"records":   ds.Len(),
		"saved_at":  snap.SavedAt,
	})
	if snap.Dropped > 0 {
		log = log.WithField("dropped", snap.Dropped)
	}
	log.Info("checkpoint found, resuming")
	return ds, true, nil
}

// fetch calls the fetcher under the per-call timeout.
func (r *Runner) fetch(ctx context.Context, id dataset.Identifier) (dataset.FetchResult, time.Duration) {
	fctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	start := r.now()
	records, err := r.fetcher.Fetch(fctx, id)
	took := r.now().Sub(start)
	if err != nil {
		return dataset.Failure(id, err), took
	}
	return dataset.Success(id, records), took
}

// apply folds one result into the dataset and report and returns the
// effective outcome.
func (r *Runner) apply(ds *dataset.Dataset, res dataset.FetchResult, report *Report) dataset.ResultKind {
	log := r.logger.WithField("identifier", res.ID)

	switch res.Kind() {
	case dataset.KindSuccess:
		if err := ds.Append(res.ID, res.Records); err != nil {
			r.fail(ds, dataset.Failure(res.ID, err), report)
			return dataset.KindFailure
		}
		ds.MarkProcessed(res.ID)
		report.Succeeded++
		report.Records += len(res.Records)
		log.WithField("records", len(res.Records)).Debug("fetched")
		return dataset.KindSuccess

	case dataset.KindEmpty:
		ds.MarkProcessed(res.ID)
		report.Empty++
		log.Debug("no records")
		return dataset.KindEmpty

	default:
		r.fail(ds, res, report)
		return dataset.KindFailure
	}
}

func (r *Runner) fail(ds *dataset.Dataset, res dataset.FetchResult, report *Report) {
	report.Failed = append(report.Failed, Failure{ID: res.ID, Err: res.Err})
	if r.opts.Policy.marksFailed() {
		ds.MarkProcessed(res.ID)
	}
	r.logger.WithError(res.Err).WithFields(logrus.Fields{
		"identifier": res.ID,
		"policy":     r.opts.Policy,
	}).Warn("fetch failed, skipping")
}

func (r *Runner) save(ctx context.Context, ds *dataset.Dataset, report *Report) error {
	if err := r.store.Save(ctx, checkpoint.NewSnapshot(ds, r.now())); err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	report.Checkpoints++
	r.metrics.CheckpointWritten()
	r.logger.WithFields(logrus.Fields{
		"processed": ds.ProcessedCount(),
		"records":   ds.Len(),
	}).Info("checkpoint saved")
	return nil
}

// finish clears the checkpoint, or under the retry policy keeps a final
// one when identifiers still need another attempt.
func (r *Runner) finish(ctx context.Context, ds *dataset.Dataset, report *Report) error {
	if !r.opts.Policy.marksFailed() && len(report.Failed) > 0 {
		if err := r.save(ctx, ds, report); err != nil {
			return err
		}
		report.CheckpointKept = true
		r.logger.WithField("failed", len(report.Failed)).
			Warn("checkpoint kept; failed identifiers will be retried on the next run")
		return nil
	}

	if err := r.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing checkpoint: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
