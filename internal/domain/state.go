package domain

// Phase names the variant of a DownloadState.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhasePreparing   Phase = "preparing"
	PhaseDownloading Phase = "downloading"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
)

func (p Phase) String() string {
	return string(p)
}

// IsTerminal reports whether no further automatic transition happens from p.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// DownloadState is the client-owned state of the current job. It is one of
// Idle, Preparing, Downloading, Completed or Failed.
type DownloadState interface {
	Phase() Phase
	isDownloadState()
}

// Idle means no job is tracked.
type Idle struct{}

// Preparing means a job-creation call is in flight.
type Preparing struct{}

// Downloading means the server accepted the job and it is being polled.
type Downloading struct {
	Progress float64
}

// Completed means the server produced a file.
type Completed struct {
	// FileURL is the absolute URL of the produced file on the server.
	FileURL string
	// LocalPath is set when the file was stored on this device.
	LocalPath string
	// Warning carries a gallery-save failure. The file is still retrievable.
	Warning string
}

// Failed means the job ended with an error.
type Failed struct {
	Message string
}

func (Idle) Phase() Phase        { return PhaseIdle }
func (Preparing) Phase() Phase   { return PhasePreparing }
func (Downloading) Phase() Phase { return PhaseDownloading }
func (Completed) Phase() Phase   { return PhaseCompleted }
func (Failed) Phase() Phase      { return PhaseFailed }

func (Idle) isDownloadState()        {}
func (Preparing) isDownloadState()   {}
func (Downloading) isDownloadState() {}
func (Completed) isDownloadState()   {}
func (Failed) isDownloadState()      {}

// NewDownloading returns a Downloading state with progress clamped to [0, 1].
func NewDownloading(progress float64) Downloading {
	return Downloading{Progress: clampProgress(progress)}
}
