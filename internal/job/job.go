// Package job wires the stats client, checkpoint store, metrics, HTTP server
// and output writers into a single backfill run.
package job

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/courtside-labs/gamelog-backfill/internal/backfill"
	"github.com/courtside-labs/gamelog-backfill/internal/checkpoint"
	"github.com/courtside-labs/gamelog-backfill/internal/config"
	"github.com/courtside-labs/gamelog-backfill/internal/features"
	"github.com/courtside-labs/gamelog-backfill/internal/metrics"
	"github.com/courtside-labs/gamelog-backfill/internal/output"
	"github.com/courtside-labs/gamelog-backfill/internal/server"
	"github.com/courtside-labs/gamelog-backfill/internal/statsapi"
)

// Job is the application orchestrator.
type Job struct {
	config   *config.Config
	lister   backfill.Lister
	fetcher  backfill.Fetcher
	store    checkpoint.Store
	metrics  *metrics.Metrics
	server   *server.Server
	uploader *output.Uploader
	logger   *logrus.Entry
}

// New creates the job:
//  1. Creates the stats API client.
//  2. Creates the checkpoint store (Redis, memory or files).
//  3. Creates the S3 client when upload is enabled.
//  4. Creates the metrics and, if a listen address is set, the HTTP server.
func New(cfg *config.Config, logger *logrus.Entry) (*Job, error) {
	log := logger.WithField("component", "job")

	// --- 1. Stats API client ---
	client := statsapi.New(statsapi.Options{
		BaseURL:              cfg.StatsAPI.BaseURL,
		LeagueID:             cfg.StatsAPI.LeagueID,
		Season:               cfg.StatsAPI.Season,
		SeasonType:           cfg.StatsAPI.SeasonType,
		OnlyCurrentSeason:    cfg.StatsAPI.OnlyCurrentSeason,
		Timeout:              cfg.Fetcher.Timeout(),
		UserAgent:            cfg.StatsAPI.UserAgent,
		MaxRequestsPerSecond: cfg.StatsAPI.MaxRequestsPerSecond,
		Burst:                cfg.StatsAPI.BurstRequests,
	}, log)

	// --- 2. Checkpoint store ---
	store, err := NewStore(cfg, log)
	if err != nil {
		return nil, err
	}

	// --- 3. S3 client ---
	var objects output.ObjectStore
	if s3 := cfg.Output.S3; s3.Enabled {
		c, err := output.NewS3Client(output.S3Options{
			Endpoint:        s3.Endpoint,
			Region:          s3.Region,
			AccessKeyID:     s3.AccessKeyID,
			SecretAccessKey: s3.SecretAccessKey,
			UseSSL:          s3.UseSSL,
		})
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		objects = c
	}

	return newJob(cfg, client, client, store, objects, log), nil
}

// newJob assembles a Job from already built collaborators. objects may be
// nil to disable upload.
func newJob(cfg *config.Config, lister backfill.Lister, fetcher backfill.Fetcher, store checkpoint.Store, objects output.ObjectStore, log *logrus.Entry) *Job {
	// --- 4. Metrics and HTTP server ---
	m := metrics.New()
	var srv *server.Server
	if cfg.Server.ListenAddress != "" {
		srv = server.NewServer(cfg, m.Registry(), log)
	}

	var up *output.Uploader
	if objects != nil {
		up = output.NewUploader(objects, cfg.Output.S3.Bucket, cfg.Output.S3.Prefix, log)
	}

	return &Job{
		config:   cfg,
		lister:   lister,
		fetcher:  fetcher,
		store:    store,
		metrics:  m,
		server:   srv,
		uploader: up,
		logger:   log,
	}
}

// NewStore creates the checkpoint store selected by cfg.Checkpoint.Backend.
func NewStore(cfg *config.Config, logger *logrus.Entry) (checkpoint.Store, error) {
	switch cfg.Checkpoint.Backend {
	case "redis":
		rs, err := checkpoint.NewRedisStore(cfg.Redis.URL, cfg.Checkpoint.RedisKeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("creating redis checkpoint store: %w", err)
		}
		logger.Info("using Redis checkpoint store")
		return rs, nil
	case "memory":
		logger.Warn("using in-memory checkpoint store; progress will not survive a restart")
		return checkpoint.NewMemoryStore(), nil
	default:
		logger.WithFields(logrus.Fields{
			"records":   cfg.Checkpoint.RecordsPath,
			"processed": cfg.Checkpoint.ProcessedPath,
		}).Info("using file checkpoint store")
		return checkpoint.NewFileStore(cfg.Checkpoint.RecordsPath, cfg.Checkpoint.ProcessedPath), nil
	}
}

// Run executes the backfill and writes its outputs. The HTTP server, if
// configured, runs for the duration of the call.
func (j *Job) Run(ctx context.Context) (*backfill.Report, error) {
	if j.server != nil {
		if err := j.server.Start(ctx); err != nil {
			return nil, fmt.Errorf("starting server: %w", err)
		}
		defer func() {
			j.server.SetReady(false)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := j.server.Stop(shutdownCtx); err != nil {
				j.logger.WithError(err).Error("error during server shutdown")
			}
		}()
	}

	policy, err := backfill.ParsePolicy(j.config.Fetcher.FailurePolicy)
	if err != nil {
		return nil, err
	}

	runner := backfill.NewRunner(j.lister, j.fetcher, j.store, backfill.Options{
		Interval: j.config.Checkpoint.Interval,
		Delay:    j.config.Fetcher.Delay(),
		Timeout:  j.config.Fetcher.Timeout(),
		Policy:   policy,
	}, j.metrics, j.logger)
	runner.OnReady(func(int) {
		if j.server != nil {
			j.server.SetReady(true)
		}
	})

	report, err := runner.Run(ctx)
	if err != nil {
		return nil, err
	}

	files, err := j.writeOutputs(report)
	if err != nil {
		return nil, err
	}

	if j.uploader != nil {
		if err := j.uploader.Upload(ctx, files...); err != nil {
			return nil, fmt.Errorf("uploading outputs: %w", err)
		}
	}

	if url := j.config.Metrics.PushgatewayURL; url != "" {
		if err := j.metrics.Push(ctx, url, j.config.Metrics.JobName); err != nil {
			j.logger.WithError(err).Warn("failed to push metrics")
		}
	}

	j.logSummary(report)
	return report, nil
}

func (j *Job) writeOutputs(report *backfill.Report) ([]string, error) {
	records := report.Dataset.Records()
	if len(records) == 0 {
		j.logger.Warn("no game logs were fetched; writing header only")
	}

	path := j.config.Output.Path
	if err := output.WriteCSV(path, records); err != nil {
		return nil, err
	}
	j.logger.WithFields(logrus.Fields{"path": path, "records": len(records)}).Info("game logs written")
	files := []string{path}

	if rolling := j.config.Output.Rolling; rolling.Enabled {
		rows, err := features.RollingAverages(records, rolling.Window)
		if err != nil {
			return nil, fmt.Errorf("computing rolling averages: %w", err)
		}
		if err := output.WriteCSV(rolling.Path, rows); err != nil {
			return nil, err
		}
		j.logger.WithFields(logrus.Fields{
			"path":   rolling.Path,
			"rows":   len(rows),
			"window": rolling.Window,
		}).Info("rolling averages written")
		files = append(files, rolling.Path)
	}
	return files, nil
}

func (j *Job) logSummary(r *backfill.Report) {
	log := j.logger.WithFields(logrus.Fields{
		"identifiers": r.Total,
		"skipped":     r.Skipped,
		"succeeded":   r.Succeeded,
		"empty":       r.Empty,
		"failed":      len(r.Failed),
		"records":     r.Dataset.Len(),
		"checkpoints": r.Checkpoints,
		"resumed":     r.Resumed,
		"duration":    r.Duration.Round(time.Second),
	})
	if r.CheckpointKept {
		log.Warn("run finished with failures; rerun to retry them")
		return
	}
	log.Info("run complete")
}

// Status returns the current checkpoint, or nil when none exists.
func (j *Job) Status(ctx context.Context) (*checkpoint.Snapshot, error) {
	snap, err := j.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}
	return snap, nil
}

// Clear removes the checkpoint so the next run starts fresh.
func (j *Job) Clear(ctx context.Context) error {
	if err := j.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing checkpoint: %w", err)
	}
	j.logger.Info("checkpoint cleared")
	return nil
}

// Close releases the checkpoint store.
func (j *Job) Close() error {
	return j.store.Close()
}
