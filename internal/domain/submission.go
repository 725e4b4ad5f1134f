package domain

// Submission is everything the user chose before starting a download.
type Submission struct {
	Service         Service      `validate:"required,oneof=youtube tiktok"`
	URL             string       `validate:"required"`
	Format          FormatChoice `validate:"required,oneof=mp4_1080p mp4_720p mp4_480p mp3_320 mp3_256 mp3_128"`
	Location        SaveLocation `validate:"required,oneof=gallery files"`
	RemoveWatermark bool
}

// JobRequest converts the submission into the wire request.
func (s Submission) JobRequest() (JobRequest, error) {
	return NewJobRequest(s.Service, s.URL, s.Format, s.RemoveWatermark)
}
