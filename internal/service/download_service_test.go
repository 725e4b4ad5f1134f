package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/clipfetch/internal/api/client"
	"github.com/veranemoloko/clipfetch/internal/api/stub"
	"github.com/veranemoloko/clipfetch/internal/domain"
	apperrors "github.com/veranemoloko/clipfetch/internal/errors"
	"github.com/veranemoloko/clipfetch/internal/metrics"
	"github.com/veranemoloko/clipfetch/internal/storage"
	"github.com/veranemoloko/clipfetch/internal/worker"
)

const (
	youtubeURL = "https://youtu.be/dQw4w9WgXcQ"
	tiktokURL  = "https://vm.tiktok.com/ZMabc123/"
)

// mp4Header is enough of an ISO media file for content sniffing.
var mp4Header = []byte("\x00\x00\x00\x20ftypisom\x00\x00\x02\x00isomiso2avc1mp41\x00\x00\x00\x08free")

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStubAPI(t *testing.T, srv *stub.Server) *client.JobClient {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	c, err := client.New(ts.URL, ts.Client(), newTestLogger())
	require.NoError(t, err)
	return c
}

type recorder struct {
	mu     sync.Mutex
	states []domain.DownloadState
}

func (r *recorder) listen(_ domain.JobHandle, s domain.DownloadState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) phases() []domain.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Phase, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, s.Phase())
	}
	return out
}

type mockLibrary struct {
	mu             sync.Mutex
	auth           storage.Authorization
	authErr        error
	saveErr        error
	authorizeCalls int
	saved          []string
}

func (m *mockLibrary) Authorize(ctx context.Context) (storage.Authorization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authorizeCalls++
	return m.auth, m.authErr
}

func (m *mockLibrary) SaveVideo(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, path)
	return m.saveErr
}

// scriptedAPI answers from Go code instead of HTTP.
type scriptedAPI struct {
	mu          sync.Mutex
	startCalls  int
	statusCalls int
	startErr    error
	status      func(call int) (*domain.JobStatus, error)
}

func (a *scriptedAPI) StartDownload(ctx context.Context, jr domain.JobRequest) (domain.JobHandle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.startCalls++
	if a.startErr != nil {
		return "", a.startErr
	}
	return "task-1", nil
}

func (a *scriptedAPI) Status(ctx context.Context, h domain.JobHandle) (*domain.JobStatus, error) {
	a.mu.Lock()
	a.statusCalls++
	call := a.statusCalls
	fn := a.status
	a.mu.Unlock()
	return fn(call)
}

func (a *scriptedAPI) ResolveFileURL(h domain.JobHandle, fileURL string) (string, error) {
	return fileURL, nil
}

func (a *scriptedAPI) calls() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startCalls, a.statusCalls
}

func pending(p float64) *domain.JobStatus {
	return &domain.JobStatus{Status: domain.JobPending, Progress: &p}
}

func youtubeSubmission(format domain.FormatChoice, loc domain.SaveLocation) domain.Submission {
	return domain.Submission{
		Service:  domain.ServiceYouTube,
		URL:      youtubeURL,
		Format:   format,
		Location: loc,
	}
}

func TestDownloadService_SubmitSendsRequestBody(t *testing.T) {
	srv := stub.NewServer()
	svc := NewDownloadService(newStubAPI(t, srv),
		WithPollInterval(time.Millisecond),
		WithLogger(newTestLogger()),
	)

	sub := youtubeSubmission(domain.FormatMP4720p, domain.SaveToFiles)
	sub.RemoveWatermark = true

	out, err := svc.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCompleted, out.State.Phase())

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.JobRequest{
		URL:             youtubeURL,
		Format:          "bestvideo[height<=720]+bestaudio/best[height<=720]",
		RemoveWatermark: false,
	}, reqs[0])
}

func TestDownloadService_TikTokForwardsWatermark(t *testing.T) {
	srv := stub.NewServer()
	svc := NewDownloadService(newStubAPI(t, srv), WithPollInterval(time.Millisecond), WithLogger(newTestLogger()))

	_, err := svc.Submit(context.Background(), domain.Submission{
		Service:         domain.ServiceTikTok,
		URL:             tiktokURL,
		Format:          domain.FormatMP3128,
		Location:        domain.SaveToFiles,
		RemoveWatermark: true,
	})
	require.NoError(t, err)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "best", reqs[0].Format)
	assert.True(t, reqs[0].RemoveWatermark)
}

func TestDownloadService_CompletedToFiles(t *testing.T) {
	srv := stub.NewServer(stub.WithScript(stub.Completed("https://host/f/abc.mp4")))
	lib := &mockLibrary{auth: storage.AuthorizationGranted}
	rec := &recorder{}
	svc := NewDownloadService(newStubAPI(t, srv),
		WithMediaLibrary(lib),
		WithStateListener(rec.listen),
		WithLogger(newTestLogger()),
	)

	out, err := svc.Submit(context.Background(), youtubeSubmission(domain.FormatMP41080p, domain.SaveToFiles))
	require.NoError(t, err)

	assert.Equal(t, domain.Completed{FileURL: "https://host/f/abc.mp4"}, out.State)
	assert.Equal(t, out.State, svc.State())
	assert.NoError(t, out.SaveErr)
	assert.Zero(t, lib.authorizeCalls)
	assert.Empty(t, lib.saved)
	assert.Equal(t, []domain.Phase{
		domain.PhasePreparing,
		domain.PhaseDownloading,
		domain.PhaseCompleted,
	}, rec.phases())
}

func TestDownloadService_ServerFailure(t *testing.T) {
	tests := []struct {
		name  string
		reply stub.Reply
		want  string
	}{
		{"with message", stub.Raw(`{"status":"failed","error":"network unreachable"}`), "network unreachable"},
		{"without message", stub.Raw(`{"status":"failed"}`), "unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := stub.NewServer(stub.WithScript(tt.reply))
			svc := NewDownloadService(newStubAPI(t, srv), WithLogger(newTestLogger()))

			out, err := svc.Submit(context.Background(), youtubeSubmission(domain.FormatMP3320, domain.SaveToFiles))

			var jobErr *apperrors.JobFailedError
			require.ErrorAs(t, err, &jobErr)
			assert.Equal(t, domain.Failed{Message: tt.want}, out.State)
			assert.Equal(t, domain.Failed{Message: tt.want}, svc.State())
		})
	}
}

func TestDownloadService_InvalidURLMakesNoNetworkCall(t *testing.T) {
	api := &scriptedAPI{status: func(int) (*domain.JobStatus, error) { return pending(0), nil }}
	svc := NewDownloadService(api, WithLogger(newTestLogger()))

	sub := youtubeSubmission(domain.FormatMP4720p, domain.SaveToFiles)
	sub.URL = "https://youtu.be/tooShort"

	out, err := svc.Submit(context.Background(), sub)
	assert.ErrorIs(t, err, apperrors.ErrInvalidURL)
	assert.Equal(t, domain.Failed{Message: "invalid youtube URL"}, out.State)
	assert.Equal(t, domain.PhaseFailed, svc.State().Phase())

	svc.Reset()
	sub.URL = ""
	out, err = svc.Submit(context.Background(), sub)
	assert.ErrorIs(t, err, apperrors.ErrInvalidURL)
	assert.Equal(t, domain.Failed{Message: "invalid youtube URL"}, out.State)

	starts, polls := api.calls()
	assert.Zero(t, starts)
	assert.Zero(t, polls)
}

func TestDownloadService_PendingPollsAgain(t *testing.T) {
	srv := stub.NewServer(stub.WithScript(
		stub.Pending(0.1),
		stub.Pending(0.6),
		stub.Completed(""),
	))
	rec := &recorder{}
	svc := NewDownloadService(newStubAPI(t, srv),
		WithPollInterval(time.Millisecond),
		WithStateListener(rec.listen),
		WithLogger(newTestLogger()),
	)

	out, err := svc.Submit(context.Background(), youtubeSubmission(domain.FormatMP4480p, domain.SaveToFiles))
	require.NoError(t, err)

	assert.Equal(t, 3, srv.StatusCalls(string(out.Handle)))
	assert.Contains(t, out.State.(domain.Completed).FileURL, "/download/"+string(out.Handle))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.states, 5)
	assert.Equal(t, domain.Preparing{}, rec.states[0])
	assert.Equal(t, domain.Downloading{Progress: 0}, rec.states[1])
	assert.Equal(t, domain.Downloading{Progress: 0.1}, rec.states[2])
	assert.Equal(t, domain.Downloading{Progress: 0.6}, rec.states[3])
	assert.Equal(t, domain.PhaseCompleted, rec.states[4].Phase())
}

func TestDownloadService_PendingNeverTerminal(t *testing.T) {
	var svc *DownloadService
	api := &scriptedAPI{}
	api.status = func(call int) (*domain.JobStatus, error) {
		// Every earlier pending reply must have left the job downloading.
		assert.Equal(t, domain.PhaseDownloading, svc.State().Phase(), "call %d", call)
		if call == 4 {
			svc.Reset()
		}
		return pending(float64(call) / 10), nil
	}
	svc = NewDownloadService(api, WithPollInterval(time.Millisecond), WithLogger(newTestLogger()))

	out, err := svc.Submit(context.Background(), youtubeSubmission(domain.FormatMP4720p, domain.SaveToFiles))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.Idle{}, out.State)

	// Reset stopped the loop: no poll follows the fourth one.
	time.Sleep(20 * time.Millisecond)
	_, polls := api.calls()
	assert.Equal(t, 4, polls)
	assert.Equal(t, domain.Idle{}, svc.State())
}

func TestDownloadService_MalformedStatus(t *testing.T) {
	srv := stub.NewServer(stub.WithScript(stub.Pending(0.2), stub.Raw(`{"progress":0.4}`)))
	svc := NewDownloadService(newStubAPI(t, srv), WithPollInterval(time.Millisecond), WithLogger(newTestLogger()))

	out, err := svc.Submit(context.Background(), youtubeSubmission(domain.FormatMP4720p, domain.SaveToFiles))
	assert.ErrorIs(t, err, apperrors.ErrMalformedResponse)
	assert.Equal(t, domain.Failed{Message: "invalid response"}, out.State)
	assert.Equal(t, 2, srv.StatusCalls(string(out.Handle)), "polling stops after a malformed reply")
}

func TestDownloadService_TransportErrorWhilePolling(t *testing.T) {
	api := &scriptedAPI{status: func(call int) (*domain.JobStatus, error) {
		if call == 1 {
			return pending(0.3), nil
		}
		return nil, apperrors.Wrap(apperrors.ErrTransport, errors.New("connection reset"))
	}}
	svc := NewDownloadService(api, WithPollInterval(time.Millisecond), WithLogger(newTestLogger()))

	out, err := svc.Submit(context.Background(), youtubeSubmission(domain.FormatMP4720p, domain.SaveToFiles))
	assert.ErrorIs(t, err, apperrors.ErrTransport)
	assert.Equal(t, domain.Failed{Message: "transport error: connection reset"}, out.State)

	_, polls := api.calls()
	assert.Equal(t, 2, polls)
}

func TestDownloadService_StartRejected(t *testing.T) {
	srv := stub.NewServer(stub.WithStartReply(500, `{"error":"disk full"}`))
	svc := NewDownloadService(newStubAPI(t, srv), WithLogger(newTestLogger()))

	before := testutil.ToFloat64(metrics.JobsFailed.WithLabelValues("youtube"))

	out, err := svc.Submit(context.Background(), youtubeSubmission(domain.FormatMP4720p, domain.SaveToFiles))
	assert.ErrorIs(t, err, apperrors.ErrTransport)
	require.IsType(t, domain.Failed{}, out.State)
	assert.Contains(t, out.State.(domain.Failed).Message, "disk full")
	assert.Empty(t, out.Handle)
	assert.Zero(t, srv.TotalStatusCalls())

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.JobsFailed.WithLabelValues("youtube")))
}

func TestDownloadService_BusyAndResetInFlight(t *testing.T) {
	release := make(chan struct{})
	api := &scriptedAPI{status: func(call int) (*domain.JobStatus, error) {
		<-release
		return pending(0.5), nil
	}}
	svc := NewDownloadService(api, WithPollInterval(time.Hour), WithLogger(newTestLogger()))

	type result struct {
		out *Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := svc.Submit(context.Background(), youtubeSubmission(domain.FormatMP4720p, domain.SaveToFiles))
		done <- result{out, err}
	}()

	require.Eventually(t, func() bool {
		return svc.State().Phase() == domain.PhaseDownloading
	}, time.Second, time.Millisecond)
	assert.Equal(t, domain.JobHandle("task-1"), svc.Handle())

	_, err := svc.Submit(context.Background(), youtubeSubmission(domain.FormatMP4720p, domain.SaveToFiles))
	assert.ErrorIs(t, err, apperrors.ErrBusy)

	close(release)
	// The loop now waits an hour for the next poll; Reset must end it.
	require.Eventually(t, func() bool {
		_, polls := api.calls()
		return polls == 1 && svc.State() == domain.DownloadState(domain.Downloading{Progress: 0.5})
	}, time.Second, time.Millisecond)

	svc.Reset()

	select {
	case r := <-done:
		assert.ErrorIs(t, r.err, context.Canceled)
		assert.Equal(t, domain.Idle{}, r.out.State)
	case <-time.After(time.Second):
		t.Fatal("Reset did not stop the poll loop")
	}
	assert.Equal(t, domain.Idle{}, svc.State())
	assert.Empty(t, svc.Handle())
}

func TestDownloadService_ConcurrentSubmitOnlyOneRuns(t *testing.T) {
	api := &scriptedAPI{status: func(int) (*domain.JobStatus, error) {
		return &domain.JobStatus{Status: domain.JobCompleted, FileURL: "https://host/f/abc.mp4"}, nil
	}}
	svc := NewDownloadService(api, WithPollInterval(time.Millisecond), WithLogger(newTestLogger()))

	const callers = 16
	start := make(chan struct{})
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Submit(context.Background(), youtubeSubmission(domain.FormatMP4720p, domain.SaveToFiles))
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		if errors.Is(err, apperrors.ErrBusy) {
			continue
		}
		assert.NoError(t, err)
		accepted++
	}
	assert.Equal(t, 1, accepted)

	starts, _ := api.calls()
	assert.Equal(t, 1, starts)
	assert.Equal(t, domain.PhaseCompleted, svc.State().Phase())
}

func TestDownloadService_ContextCanceled(t *testing.T) {
	api := &scriptedAPI{status: func(int) (*domain.JobStatus, error) { return pending(0.1), nil }}
	svc := NewDownloadService(api, WithPollInterval(time.Hour), WithLogger(newTestLogger()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	out, err := svc.Submit(ctx, youtubeSubmission(domain.FormatMP4720p, domain.SaveToFiles))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.Idle{}, out.State)
	assert.Equal(t, domain.Idle{}, svc.State())
}

func TestDownloadService_ResetFromTerminal(t *testing.T) {
	srv := stub.NewServer(stub.WithScript(stub.Completed("https://host/f/abc.mp4")))
	svc := NewDownloadService(newStubAPI(t, srv), WithLogger(newTestLogger()))

	_, err := svc.Submit(context.Background(), youtubeSubmission(domain.FormatMP4720p, domain.SaveToFiles))
	require.NoError(t, err)
	assert.NotEmpty(t, svc.Handle())

	_, err = svc.Submit(context.Background(), youtubeSubmission(domain.FormatMP4720p, domain.SaveToFiles))
	assert.ErrorIs(t, err, apperrors.ErrBusy, "terminal states need an explicit reset")

	svc.Reset()
	assert.Equal(t, domain.Idle{}, svc.State())
	assert.Empty(t, svc.Handle())

	out, err := svc.Submit(context.Background(), youtubeSubmission(domain.FormatMP4720p, domain.SaveToFiles))
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCompleted, out.State.Phase())
	assert.Len(t, srv.Requests(), 2)
}

type localStore struct {
	fetcher *worker.DownloadWorker
	files   *storage.FileStorage
	docs    string
}

func newLocalStore(t *testing.T, api *client.JobClient) localStore {
	t.Helper()
	root := t.TempDir()
	docs := filepath.Join(root, "documents")
	fs := storage.NewFileStorage(docs, filepath.Join(root, "tmp"))
	return localStore{
		fetcher: worker.NewDownloadWorker(fs, api.HTTPClient(), newTestLogger()),
		files:   fs,
		docs:    docs,
	}
}

func TestDownloadService_StoresFileLocally(t *testing.T) {
	srv := stub.NewServer(stub.WithContent([]byte("ID3 audio")))
	api := newStubAPI(t, srv)
	ls := newLocalStore(t, api)
	svc := NewDownloadService(api,
		WithPollInterval(time.Millisecond),
		WithFileStorage(ls.fetcher, ls.files),
		WithLogger(newTestLogger()),
	)

	out, err := svc.Submit(context.Background(), youtubeSubmission(domain.FormatMP3256, domain.SaveToFiles))
	require.NoError(t, err)

	done := out.State.(domain.Completed)
	assert.Equal(t, ls.docs, filepath.Dir(done.LocalPath))
	assert.Equal(t, ".mp3", filepath.Ext(done.LocalPath))

	data, err := os.ReadFile(done.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "ID3 audio", string(data))
}

func TestDownloadService_StoreFailureFails(t *testing.T) {
	srv := stub.NewServer(stub.WithScript(stub.Completed("/nowhere/abc.mp4")))
	api := newStubAPI(t, srv)
	ls := newLocalStore(t, api)
	svc := NewDownloadService(api, WithFileStorage(ls.fetcher, ls.files), WithLogger(newTestLogger()))

	out, err := svc.Submit(context.Background(), youtubeSubmission(domain.FormatMP4720p, domain.SaveToFiles))
	assert.ErrorIs(t, err, apperrors.ErrSaveFailed)
	assert.Equal(t, domain.PhaseFailed, out.State.Phase())
}

func TestDownloadService_Gallery(t *testing.T) {
	tests := []struct {
		name        string
		library     *mockLibrary
		format      domain.FormatChoice
		wantSaved   int
		wantAuthz   int
		wantErr     error
		wantWarning bool
	}{
		{
			name:      "granted",
			library:   &mockLibrary{auth: storage.AuthorizationGranted},
			format:    domain.FormatMP4720p,
			wantSaved: 1,
			wantAuthz: 1,
		},
		{
			name:        "denied",
			library:     &mockLibrary{auth: storage.AuthorizationDenied},
			format:      domain.FormatMP4720p,
			wantAuthz:   1,
			wantErr:     apperrors.ErrPermissionDenied,
			wantWarning: true,
		},
		{
			name:        "write fails",
			library:     &mockLibrary{auth: storage.AuthorizationGranted, saveErr: errors.New("disk full")},
			format:      domain.FormatMP41080p,
			wantSaved:   1,
			wantAuthz:   1,
			wantErr:     apperrors.ErrSaveFailed,
			wantWarning: true,
		},
		{
			name:    "audio goes to files",
			library: &mockLibrary{auth: storage.AuthorizationGranted},
			format:  domain.FormatMP3128,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := stub.NewServer(stub.WithContent(mp4Header))
			api := newStubAPI(t, srv)
			ls := newLocalStore(t, api)
			svc := NewDownloadService(api,
				WithPollInterval(time.Millisecond),
				WithFileStorage(ls.fetcher, ls.files),
				WithMediaLibrary(tt.library),
				WithLogger(newTestLogger()),
			)

			out, err := svc.Submit(context.Background(), youtubeSubmission(tt.format, domain.SaveToGallery))
			require.NoError(t, err, "gallery problems never fail the job")

			done, ok := out.State.(domain.Completed)
			require.True(t, ok)
			assert.FileExists(t, done.LocalPath)
			assert.Equal(t, tt.wantAuthz, tt.library.authorizeCalls)
			assert.Len(t, tt.library.saved, tt.wantSaved)
			if tt.wantSaved > 0 {
				assert.Equal(t, done.LocalPath, tt.library.saved[0])
			}

			if tt.wantErr != nil {
				assert.ErrorIs(t, out.SaveErr, tt.wantErr)
			} else {
				assert.NoError(t, out.SaveErr)
			}
			assert.Equal(t, tt.wantWarning, done.Warning != "")
			assert.Equal(t, domain.PhaseCompleted, svc.State().Phase())
		})
	}
}

// resettingLibrary resets the service while it is asked for authorization.
type resettingLibrary struct {
	svc *DownloadService
}

func (l *resettingLibrary) Authorize(ctx context.Context) (storage.Authorization, error) {
	l.svc.Reset()
	return storage.AuthorizationGranted, nil
}

func (l *resettingLibrary) SaveVideo(ctx context.Context, path string) error {
	return nil
}

func TestDownloadService_ResetAfterStoreRemovesFile(t *testing.T) {
	srv := stub.NewServer(stub.WithContent(mp4Header))
	api := newStubAPI(t, srv)
	ls := newLocalStore(t, api)
	lib := &resettingLibrary{}
	svc := NewDownloadService(api,
		WithPollInterval(time.Millisecond),
		WithFileStorage(ls.fetcher, ls.files),
		WithMediaLibrary(lib),
		WithLogger(newTestLogger()),
	)
	lib.svc = svc

	out, err := svc.Submit(context.Background(), youtubeSubmission(domain.FormatMP4720p, domain.SaveToGallery))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.Idle{}, out.State)
	assert.Equal(t, domain.Idle{}, svc.State())

	entries, err := os.ReadDir(ls.docs)
	require.NoError(t, err)
	assert.Empty(t, entries, "the abandoned job must not leave its file behind")
}

func TestDownloadService_GalleryWithoutLibrary(t *testing.T) {
	srv := stub.NewServer(stub.WithScript(stub.Completed("https://host/f/abc.mp4")))
	svc := NewDownloadService(newStubAPI(t, srv), WithLogger(newTestLogger()))

	out, err := svc.Submit(context.Background(), youtubeSubmission(domain.FormatMP4720p, domain.SaveToGallery))
	require.NoError(t, err)
	assert.ErrorIs(t, out.SaveErr, apperrors.ErrPermissionDenied)
	assert.Equal(t, "https://host/f/abc.mp4", out.State.(domain.Completed).FileURL)
}

func TestDownloadService_GalleryWithRealDirectory(t *testing.T) {
	srv := stub.NewServer(stub.WithContent(mp4Header))
	api := newStubAPI(t, srv)
	ls := newLocalStore(t, api)
	galleryDir := filepath.Join(t.TempDir(), "gallery")
	svc := NewDownloadService(api,
		WithPollInterval(time.Millisecond),
		WithFileStorage(ls.fetcher, ls.files),
		WithMediaLibrary(storage.NewGalleryDir(galleryDir)),
		WithLogger(newTestLogger()),
	)

	out, err := svc.Submit(context.Background(), youtubeSubmission(domain.FormatMP4720p, domain.SaveToGallery))
	require.NoError(t, err)
	require.NoError(t, out.SaveErr)

	done := out.State.(domain.Completed)
	assert.FileExists(t, filepath.Join(galleryDir, filepath.Base(done.LocalPath)))
}
