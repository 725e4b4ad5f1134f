package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/veranemoloko/clipfetch/internal/metrics"
	"github.com/veranemoloko/clipfetch/internal/storage"
)

// FetchResult describes a file copied from the server to a temporary location.
type FetchResult struct {
	TempPath  string
	BytesRead int64
}

// DownloadWorker copies finished files from the download server to this device.
type DownloadWorker struct {
	fileStorage *storage.FileStorage
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewDownloadWorker creates a DownloadWorker writing temporary files through
// fileStorage. A nil httpClient uses http.DefaultClient.
func NewDownloadWorker(fileStorage *storage.FileStorage, httpClient *http.Client, logger *slog.Logger) *DownloadWorker {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &DownloadWorker{
		fileStorage: fileStorage,
		httpClient:  httpClient,
		logger:      logger,
	}
}

// FetchFile streams fileURL into a new temporary file with extension ext.
// The temporary file is removed again on any failure.
func (w *DownloadWorker) FetchFile(ctx context.Context, fileURL, ext string) (FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.logger.Error("file request failed",
			"url", fileURL,
			"error", err,
		)
		return FetchResult{}, fmt.Errorf("request file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.logger.Error("file download failed",
			"url", fileURL,
			"status", resp.Status,
		)
		return FetchResult{}, fmt.Errorf("bad status: %s", resp.Status)
	}

	file, err := w.fileStorage.CreateTemp(ext)
	if err != nil {
		return FetchResult{}, fmt.Errorf("create temp file: %w", err)
	}

	bytesRead, err := w.copyWithContext(ctx, file, resp.Body)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(file.Name())
		w.logger.Error("file download failed",
			"url", fileURL,
			"error", err,
		)
		return FetchResult{}, fmt.Errorf("copy data: %w", err)
	}

	metrics.FetchedBytes.Add(float64(bytesRead))
	w.logger.Debug("file fetched",
		"url", fileURL,
		"bytes", bytesRead,
		"temp_path", file.Name(),
	)

	return FetchResult{TempPath: file.Name(), BytesRead: bytesRead}, nil
}

func (w *DownloadWorker) copyWithContext(ctx context.Context, dst *os.File, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
			nr, err := src.Read(buf)
			if nr > 0 {
				nw, err := dst.Write(buf[0:nr])
				if nw > 0 {
					total += int64(nw)
				}
				if err != nil {
					return total, err
				}
				if nr != nw {
					return total, io.ErrShortWrite
				}
			}
			if err != nil {
				if err == io.EOF {
					return total, nil
				}
				return total, err
			}
		}
	}
}
