package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/veranemoloko/clipfetch/internal/domain"
	"github.com/veranemoloko/clipfetch/internal/storage"
)

// DefaultMaxParallel limits how many jobs a BatchService runs at once.
const DefaultMaxParallel = 2

// BatchResult is the outcome of one submission in a batch.
type BatchResult struct {
	Key        string
	Submission domain.Submission
	Outcome    *Outcome
	Err        error
}

// Failed reports whether the job did not complete.
func (r BatchResult) Failed() bool {
	return r.Err != nil || r.Outcome == nil || r.Outcome.State.Phase() != domain.PhaseCompleted
}

// BatchService runs several submissions concurrently. Every submission gets
// its own DownloadService and its states are recorded in a JobRegistry.
type BatchService struct {
	api         JobAPI
	registry    *storage.JobRegistry
	maxParallel int
	jobOpts     []Option
	logger      *slog.Logger
}

// NewBatchService creates a BatchService. jobOpts are applied to every
// DownloadService the batch creates.
func NewBatchService(api JobAPI, registry *storage.JobRegistry, maxParallel int, logger *slog.Logger, jobOpts ...Option) *BatchService {
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchService{
		api:         api,
		registry:    registry,
		maxParallel: maxParallel,
		jobOpts:     jobOpts,
		logger:      logger,
	}
}

// Registry returns the registry the batch records into.
func (b *BatchService) Registry() *storage.JobRegistry {
	return b.registry
}

// Run submits every entry of subs and waits for all of them. A failing job
// does not stop the others. notify, when not nil, receives the record of a
// job after each of its transitions. Results are returned in the order of
// subs; the error is only set when ctx ended before the batch finished.
func (b *BatchService) Run(ctx context.Context, subs []domain.Submission, notify func(storage.JobRecord)) ([]BatchResult, error) {
	results := make([]BatchResult, len(subs))

	g := new(errgroup.Group)
	g.SetLimit(b.maxParallel)

	for i, sub := range subs {
		key := fmt.Sprintf("job-%03d", i+1)
		b.registry.Track(key, sub)
		results[i] = BatchResult{Key: key, Submission: sub}
	}

	b.logger.Info("batch started",
		"jobs", len(subs),
		"max_parallel", b.maxParallel,
	)

	for i := range subs {
		i := i
		g.Go(func() error {
			res := &results[i]
			if ctx.Err() != nil {
				res.Err = ctx.Err()
				return nil
			}

			svc := b.newJobService(res.Key, notify)
			res.Outcome, res.Err = svc.Submit(ctx, res.Submission)
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, r := range results {
		if !r.Failed() {
			succeeded++
		}
	}
	b.logger.Info("batch finished",
		"jobs", len(results),
		"completed", succeeded,
		"failed", len(results)-succeeded,
	)

	return results, ctx.Err()
}

func (b *BatchService) newJobService(key string, notify func(storage.JobRecord)) *DownloadService {
	listener := func(h domain.JobHandle, s domain.DownloadState) {
		if h != "" {
			b.registry.SetHandle(key, h)
		}
		b.registry.Update(key, s)
		if notify != nil {
			if rec, ok := b.registry.Get(key); ok {
				notify(rec)
			}
		}
	}

	opts := append([]Option{WithLogger(b.logger)}, b.jobOpts...)
	opts = append(opts, WithStateListener(listener))
	return NewDownloadService(b.api, opts...)
}
