package domain

import "fmt"

var formatCodes = map[Service]map[FormatChoice]string{
	ServiceYouTube: {
		FormatMP41080p: "bestvideo[height<=1080]+bestaudio/best[height<=1080]",
		FormatMP4720p:  "bestvideo[height<=720]+bestaudio/best[height<=720]",
		FormatMP4480p:  "bestvideo[height<=480]+bestaudio/best[height<=480]",
		FormatMP3320:   "bestaudio[abr<=320]/bestaudio/best",
		FormatMP3256:   "bestaudio[abr<=256]/bestaudio/best",
		FormatMP3128:   "bestaudio[abr<=128]/bestaudio/best",
	},
	// TikTok has no separate audio streams, so every mp3 choice asks for "best".
	ServiceTikTok: {
		FormatMP41080p: "best[height<=1080]",
		FormatMP4720p:  "best[height<=720]",
		FormatMP4480p:  "best[height<=480]",
		FormatMP3320:   "best",
		FormatMP3256:   "best",
		FormatMP3128:   "best",
	},
}

// FormatCode returns the selector string the download server understands for
// the given service and format.
func FormatCode(s Service, f FormatChoice) (string, error) {
	codes, ok := formatCodes[s]
	if !ok {
		return "", fmt.Errorf("unknown service %q", s)
	}
	code, ok := codes[f]
	if !ok {
		return "", fmt.Errorf("unknown format %q", f)
	}
	return code, nil
}

// NewJobRequest builds the body of a job-creation call. The watermark flag is
// only meaningful for TikTok and is sent as false for every other service.
func NewJobRequest(s Service, url string, f FormatChoice, removeWatermark bool) (JobRequest, error) {
	code, err := FormatCode(s, f)
	if err != nil {
		return JobRequest{}, err
	}
	return JobRequest{
		URL:             url,
		Format:          code,
		RemoveWatermark: s == ServiceTikTok && removeWatermark,
	}, nil
}
