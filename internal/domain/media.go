package domain

import "fmt"

// Service identifies the video platform a URL belongs to.
type Service string

const (
	ServiceYouTube Service = "youtube"
	ServiceTikTok  Service = "tiktok"
)

// Services lists every supported platform in display order.
var Services = []Service{ServiceYouTube, ServiceTikTok}

func (s Service) String() string {
	return string(s)
}

// ParseService converts user input into a Service.
func ParseService(v string) (Service, error) {
	for _, s := range Services {
		if string(s) == v {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown service %q", v)
}

// FormatChoice is the quality/container the user picked.
type FormatChoice string

const (
	FormatMP41080p FormatChoice = "mp4_1080p"
	FormatMP4720p  FormatChoice = "mp4_720p"
	FormatMP4480p  FormatChoice = "mp4_480p"
	FormatMP3320   FormatChoice = "mp3_320"
	FormatMP3256   FormatChoice = "mp3_256"
	FormatMP3128   FormatChoice = "mp3_128"
)

// FormatChoices lists every format in display order.
var FormatChoices = []FormatChoice{
	FormatMP41080p,
	FormatMP4720p,
	FormatMP4480p,
	FormatMP3320,
	FormatMP3256,
	FormatMP3128,
}

var formatLabels = map[FormatChoice]string{
	FormatMP41080p: "MP4 1080p (video)",
	FormatMP4720p:  "MP4 720p (video)",
	FormatMP4480p:  "MP4 480p (video)",
	FormatMP3320:   "MP3 320kbps (audio)",
	FormatMP3256:   "MP3 256kbps (audio)",
	FormatMP3128:   "MP3 128kbps (audio)",
}

// ParseFormatChoice converts user input into a FormatChoice.
func ParseFormatChoice(v string) (FormatChoice, error) {
	f := FormatChoice(v)
	if _, ok := formatLabels[f]; !ok {
		return "", fmt.Errorf("unknown format %q", v)
	}
	return f, nil
}

func (f FormatChoice) String() string {
	return string(f)
}

// Label returns a human readable description of the format.
func (f FormatChoice) Label() string {
	if l, ok := formatLabels[f]; ok {
		return l
	}
	return string(f)
}

// IsVideo reports whether the format produces an mp4 video.
func (f FormatChoice) IsVideo() bool {
	switch f {
	case FormatMP41080p, FormatMP4720p, FormatMP4480p:
		return true
	}
	return false
}

// FileExtension returns the extension of the produced file, without the dot.
func (f FormatChoice) FileExtension() string {
	if f.IsVideo() {
		return "mp4"
	}
	return "mp3"
}

// SaveLocation is where a finished file ends up on the device.
type SaveLocation string

const (
	SaveToGallery SaveLocation = "gallery"
	SaveToFiles   SaveLocation = "files"
)

// ParseSaveLocation converts user input into a SaveLocation.
func ParseSaveLocation(v string) (SaveLocation, error) {
	switch SaveLocation(v) {
	case SaveToGallery, SaveToFiles:
		return SaveLocation(v), nil
	}
	return "", fmt.Errorf("unknown save location %q", v)
}

// WantsGallery reports whether a file in the given format should be written
// to the media library. Audio always goes to files.
func (l SaveLocation) WantsGallery(f FormatChoice) bool {
	return l == SaveToGallery && f.IsVideo()
}
