package domain

// JobRequest is the body of POST /start_download.
type JobRequest struct {
	URL             string `json:"url"`
	Format          string `json:"format"`
	RemoveWatermark bool   `json:"remove_watermark"`
}

// JobHandle is the server-assigned identifier of a job.
type JobHandle string

func (h JobHandle) String() string {
	return string(h)
}

// StartResponse is the body returned by POST /start_download.
type StartResponse struct {
	TaskID string `json:"task_id" validate:"required"`
}

// JobStatus is the body returned by GET /status/{task_id}. Progress is a
// pointer so a missing value can be told apart from zero.
type JobStatus struct {
	Status   JobState `json:"status" validate:"required,oneof=pending completed failed"`
	Progress *float64 `json:"progress,omitempty" validate:"required_if=Status pending"`
	FileURL  string   `json:"file_url,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// ProgressValue returns the reported progress clamped to [0, 1].
func (s *JobStatus) ProgressValue() float64 {
	if s.Progress == nil {
		return 0
	}
	return clampProgress(*s.Progress)
}

func clampProgress(p float64) float64 {
	switch {
	case p < 0 || p != p:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// ErrorResponse is the JSON error body the server may send with a non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
