package domain

// JobState is the server-side lifecycle value of a job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

func (s JobState) String() string {
	return string(s)
}

// IsFinished reports whether the server will not change the job any further.
func (s JobState) IsFinished() bool {
	return s == JobCompleted || s == JobFailed
}
