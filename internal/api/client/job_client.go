// Package client talks to the remote download server: it creates jobs,
// polls their status and resolves the location of finished files.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/veranemoloko/clipfetch/internal/domain"
	apperrors "github.com/veranemoloko/clipfetch/internal/errors"
	"github.com/veranemoloko/clipfetch/internal/validation"
)

const maxResponseSize = 1 << 20

// JobClient is an HTTP client for the job protocol.
type JobClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a JobClient for the server at baseURL. A nil httpClient uses
// http.DefaultClient.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) (*JobClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServerAddress, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrServerAddress, baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobClient{baseURL: u, httpClient: httpClient, logger: logger}, nil
}

// HTTPClient returns the underlying HTTP client so file retrieval shares its
// transport and timeout.
func (c *JobClient) HTTPClient() *http.Client {
	return c.httpClient
}

// StartDownload issues POST /start_download and returns the server's handle.
func (c *JobClient) StartDownload(ctx context.Context, jr domain.JobRequest) (domain.JobHandle, error) {
	body, err := json.Marshal(jr)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrRequestBuild, err)
	}

	endpoint := c.baseURL.JoinPath("start_download")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrRequestBuild, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var resp domain.StartResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("start download: %w", err)
	}

	c.logger.Debug("job accepted", "task_id", resp.TaskID, "format", jr.Format)
	return domain.JobHandle(resp.TaskID), nil
}

// Status issues GET /status/{task_id}.
func (c *JobClient) Status(ctx context.Context, h domain.JobHandle) (*domain.JobStatus, error) {
	endpoint := c.baseURL.JoinPath("status", string(h))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRequestBuild, err)
	}
	req.Header.Set("Accept", "application/json")

	var status domain.JobStatus
	if err := c.do(req, &status); err != nil {
		return nil, fmt.Errorf("job status: %w", err)
	}
	return &status, nil
}

// ResolveFileURL turns the file_url of a completed job into an absolute URL.
// Relative references are resolved against the server address, and an empty
// reference falls back to GET /download/{task_id}.
func (c *JobClient) ResolveFileURL(h domain.JobHandle, fileURL string) (string, error) {
	if fileURL == "" {
		return c.baseURL.JoinPath("download", string(h)).String(), nil
	}
	ref, err := url.Parse(fileURL)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrMalformedResponse, err)
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

func (c *JobClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("server rejected request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", resp.Status,
		)
		return fmt.Errorf("%w: %s", apperrors.ErrTransport, statusMessage(resp.Status, data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Wrap(apperrors.ErrMalformedResponse, err)
	}
	return validation.ValidateResponse(out)
}

func statusMessage(status string, body []byte) string {
	var e domain.ErrorResponse
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Sprintf("server returned %s: %s", status, e.Error)
	}
	return "server returned " + status
}
