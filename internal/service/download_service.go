package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/veranemoloko/clipfetch/internal/domain"
	apperrors "github.com/veranemoloko/clipfetch/internal/errors"
	"github.com/veranemoloko/clipfetch/internal/metrics"
	"github.com/veranemoloko/clipfetch/internal/storage"
	"github.com/veranemoloko/clipfetch/internal/validation"
	"github.com/veranemoloko/clipfetch/internal/worker"
)

// DefaultPollInterval is the delay between two status requests.
const DefaultPollInterval = time.Second

// JobAPI is the server side of the job protocol.
type JobAPI interface {
	StartDownload(ctx context.Context, jr domain.JobRequest) (domain.JobHandle, error)
	Status(ctx context.Context, h domain.JobHandle) (*domain.JobStatus, error)
	ResolveFileURL(h domain.JobHandle, fileURL string) (string, error)
}

// FileFetcher copies a finished file to a temporary location.
type FileFetcher interface {
	FetchFile(ctx context.Context, fileURL, ext string) (worker.FetchResult, error)
}

// DocumentStore moves temporary files into the documents area. Remove
// deletes a file Adopt returned.
type DocumentStore interface {
	Adopt(tempPath, ext string) (string, error)
	Remove(path string) error
}

// MediaLibrary writes videos to the device gallery. Authorize must grant
// access before SaveVideo is called.
type MediaLibrary interface {
	Authorize(ctx context.Context) (storage.Authorization, error)
	SaveVideo(ctx context.Context, path string) error
}

// StateListener observes every transition. The handle is empty until the
// server accepted the job.
type StateListener func(h domain.JobHandle, s domain.DownloadState)

// Outcome is the result of one Submit call.
type Outcome struct {
	Handle domain.JobHandle
	State  domain.DownloadState
	// SaveErr is set when the job completed but its video could not be
	// written to the media library.
	SaveErr error
}

// Option configures a DownloadService.
type Option func(*DownloadService)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(s *DownloadService) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithFileStorage makes completed jobs copy their file to this device.
func WithFileStorage(fetcher FileFetcher, store DocumentStore) Option {
	return func(s *DownloadService) {
		s.fetcher = fetcher
		s.store = store
	}
}

// WithMediaLibrary sets the gallery used for the gallery save location.
func WithMediaLibrary(lib MediaLibrary) Option {
	return func(s *DownloadService) { s.library = lib }
}

// WithStateListener registers fn for state transitions.
func WithStateListener(fn StateListener) Option {
	return func(s *DownloadService) { s.listener = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *DownloadService) { s.logger = l }
}

// DownloadService drives a single job from submission to a terminal state.
// It tracks at most one job at a time.
type DownloadService struct {
	api          JobAPI
	fetcher      FileFetcher
	store        DocumentStore
	library      MediaLibrary
	listener     StateListener
	logger       *slog.Logger
	pollInterval time.Duration

	mu     sync.Mutex
	state  domain.DownloadState
	handle domain.JobHandle
	cancel context.CancelFunc
	// gen changes on every Submit and Reset; transitions from an older
	// generation are dropped.
	gen uint64
}

// NewDownloadService creates an idle DownloadService talking to api.
func NewDownloadService(api JobAPI, opts ...Option) *DownloadService {
	s := &DownloadService{
		api:          api,
		logger:       slog.Default(),
		pollInterval: DefaultPollInterval,
		state:        domain.Idle{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *DownloadService) State() domain.DownloadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handle returns the handle of the tracked job, if the server assigned one.
func (s *DownloadService) Handle() domain.JobHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Submit validates sub, creates a job on the server and polls it until it
// completes or fails. It blocks for the whole job. Submit returns ErrBusy
// unless the service is idle. When ctx is canceled or Reset is called while
// the job is in flight, polling stops, the state returns to Idle and the
// context error is returned.
func (s *DownloadService) Submit(ctx context.Context, sub domain.Submission) (*Outcome, error) {
	// The check and the move to Preparing share one critical section, so
	// only one caller can leave Idle.
	s.mu.Lock()
	if s.state.Phase() != domain.PhaseIdle {
		s.mu.Unlock()
		return nil, apperrors.ErrBusy
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.state = domain.Preparing{}
	listener := s.listener
	s.mu.Unlock()
	defer cancel()

	if listener != nil {
		listener("", domain.Preparing{})
	}

	started := time.Now()
	log := s.logger.With("service", sub.Service, "format", sub.Format)

	if err := validation.ValidateSubmission(sub); err != nil {
		log.Warn("submission rejected", "url", sub.URL, "error", err)
		return s.fail(gen, sub, "", started, err)
	}

	jr, err := sub.JobRequest()
	if err != nil {
		return s.fail(gen, sub, "", started, apperrors.Wrap(apperrors.ErrRequestBuild, err))
	}

	h, err := s.api.StartDownload(runCtx, jr)
	if err != nil {
		if runCtx.Err() != nil {
			return s.abandon(gen, "", runCtx.Err())
		}
		log.Error("failed to start download", "error", err)
		return s.fail(gen, sub, "", started, err)
	}

	metrics.JobsSubmitted.WithLabelValues(string(sub.Service)).Inc()
	log = log.With("task_id", h)
	if id, ok := validation.ExtractVideoID(sub.URL); ok {
		log = log.With("video_id", id)
	}
	log.Info("job submitted", "location", sub.Location, "remove_watermark", jr.RemoveWatermark)

	s.mu.Lock()
	if s.gen == gen {
		s.handle = h
	}
	s.mu.Unlock()

	s.transition(gen, domain.NewDownloading(0))

	return s.poll(runCtx, gen, sub, h, started, log)
}

func (s *DownloadService) poll(ctx context.Context, gen uint64, sub domain.Submission, h domain.JobHandle, started time.Time, log *slog.Logger) (*Outcome, error) {
	for {
		status, err := s.api.Status(ctx, h)
		metrics.Polls.Inc()
		if err != nil {
			if ctx.Err() != nil {
				return s.abandon(gen, h, ctx.Err())
			}
			log.Error("status request failed", "error", err)
			return s.fail(gen, sub, h, started, err)
		}

		if status.Status != domain.JobPending && !status.Status.IsFinished() {
			return s.fail(gen, sub, h, started,
				fmt.Errorf("%w: unexpected status %q", apperrors.ErrMalformedResponse, status.Status))
		}

		switch status.Status {
		case domain.JobPending:
			progress := status.ProgressValue()
			log.Debug("job pending", "progress", progress)
			if !s.transition(gen, domain.NewDownloading(progress)) {
				return s.abandon(gen, h, context.Canceled)
			}

			timer := time.NewTimer(s.pollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return s.abandon(gen, h, ctx.Err())
			case <-timer.C:
			}

		case domain.JobCompleted:
			return s.complete(ctx, gen, sub, h, status, started, log)

		case domain.JobFailed:
			jobErr := apperrors.NewJobFailed(status.Error)
			log.Warn("job failed on server", "error", jobErr.Message)
			return s.fail(gen, sub, h, started, jobErr)
		}
	}
}

func (s *DownloadService) complete(ctx context.Context, gen uint64, sub domain.Submission, h domain.JobHandle, status *domain.JobStatus, started time.Time, log *slog.Logger) (*Outcome, error) {
	fileURL, err := s.api.ResolveFileURL(h, status.FileURL)
	if err != nil {
		return s.fail(gen, sub, h, started, err)
	}
	done := domain.Completed{FileURL: fileURL}

	if s.fetcher != nil && s.store != nil {
		s.transition(gen, domain.NewDownloading(1))
		local, err := s.storeLocally(ctx, fileURL, sub.Format.FileExtension())
		if err != nil {
			if ctx.Err() != nil {
				return s.abandon(gen, h, ctx.Err())
			}
			log.Error("failed to store file", "file_url", fileURL, "error", err)
			return s.fail(gen, sub, h, started, err)
		}
		done.LocalPath = local
	}

	var saveErr error
	if sub.Location.WantsGallery(sub.Format) {
		saveErr = s.saveToGallery(ctx, done.LocalPath)
		if saveErr != nil {
			metrics.GallerySaveFailures.Inc()
			done.Warning = apperrors.Message(saveErr)
			log.Warn("failed to save video to gallery", "error", saveErr)
		}
	}

	if !s.transition(gen, done) {
		if done.LocalPath != "" {
			if err := s.store.Remove(done.LocalPath); err != nil {
				log.Warn("failed to remove abandoned file", "local_path", done.LocalPath, "error", err)
			}
		}
		return s.abandon(gen, h, context.Canceled)
	}

	metrics.JobsCompleted.WithLabelValues(string(sub.Service)).Inc()
	metrics.JobDuration.Observe(time.Since(started).Seconds())
	log.Info("job completed", "file_url", done.FileURL, "local_path", done.LocalPath)

	return &Outcome{Handle: h, State: done, SaveErr: saveErr}, nil
}

func (s *DownloadService) storeLocally(ctx context.Context, fileURL, ext string) (string, error) {
	fetched, err := s.fetcher.FetchFile(ctx, fileURL, ext)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrSaveFailed, err)
	}
	path, err := s.store.Adopt(fetched.TempPath, ext)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrSaveFailed, err)
	}
	return path, nil
}

func (s *DownloadService) saveToGallery(ctx context.Context, localPath string) error {
	if s.library == nil {
		return fmt.Errorf("%w: no media library available", apperrors.ErrPermissionDenied)
	}
	if localPath == "" {
		return fmt.Errorf("%w: no local copy of the video", apperrors.ErrSaveFailed)
	}

	auth, err := s.library.Authorize(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPermissionDenied, err)
	}
	if auth != storage.AuthorizationGranted {
		return apperrors.ErrPermissionDenied
	}

	if err := s.library.SaveVideo(ctx, localPath); err != nil {
		if errors.Is(err, apperrors.ErrSaveFailed) {
			return err
		}
		return apperrors.Wrap(apperrors.ErrSaveFailed, err)
	}
	return nil
}

// Reset returns the service to Idle and forgets the tracked job. A job still
// in flight stops polling.
func (s *DownloadService) Reset() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.state = domain.Idle{}
	s.handle = ""
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener("", domain.Idle{})
	}
}

// transition stores next if gen is still current and reports whether it did.
func (s *DownloadService) transition(gen uint64, next domain.DownloadState) bool {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false
	}
	s.state = next
	h := s.handle
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener(h, next)
	}
	return true
}

func (s *DownloadService) fail(gen uint64, sub domain.Submission, h domain.JobHandle, started time.Time, err error) (*Outcome, error) {
	failed := domain.Failed{Message: apperrors.Message(err)}
	if !s.transition(gen, failed) {
		return s.abandon(gen, h, context.Canceled)
	}
	metrics.JobsFailed.WithLabelValues(string(sub.Service)).Inc()
	metrics.JobDuration.Observe(time.Since(started).Seconds())
	return &Outcome{Handle: h, State: failed}, err
}

// abandon handles a job whose tracking was stopped by Reset or by the
// caller's context. The service ends up Idle.
func (s *DownloadService) abandon(gen uint64, h domain.JobHandle, cause error) (*Outcome, error) {
	s.mu.Lock()
	current := s.gen == gen
	s.mu.Unlock()
	if current {
		s.Reset()
	}
	s.logger.Info("job tracking stopped", "task_id", h, "reason", cause)
	return &Outcome{Handle: h, State: domain.Idle{}}, cause
}
