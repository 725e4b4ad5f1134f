package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/veranemoloko/clipfetch/internal/domain"
	apperrors "github.com/veranemoloko/clipfetch/internal/errors"
)

var (
	// The id must not be followed by another id character, so 12-char ids fail.
	youtubePattern = regexp.MustCompile(
		`^(?i:https?)://(?:www\.)?(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([A-Za-z0-9_-]{11})(?:[^A-Za-z0-9_-]|$)`)
	tiktokPattern = regexp.MustCompile(`^(?i:https?)://(?:www\.)?(?:vm\.)?tiktok\.com/.+`)
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("youtube_url", validateYouTubeURL)
	_ = validate.RegisterValidation("tiktok_url", validateTikTokURL)
	validate.RegisterStructValidation(validateSubmissionURL, domain.Submission{})
}

// ValidURL reports whether raw is an acceptable video URL for the service.
func ValidURL(service domain.Service, raw string) bool {
	tag, ok := urlTags[service]
	if !ok {
		return false
	}
	return validate.Var(raw, tag) == nil
}

var urlTags = map[domain.Service]string{
	domain.ServiceYouTube: "youtube_url",
	domain.ServiceTikTok:  "tiktok_url",
}

// ExtractVideoID returns the 11-character id of a YouTube URL.
func ExtractVideoID(raw string) (string, bool) {
	m := youtubePattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ValidateSubmission checks every field of s. An empty URL, or one that does
// not match its service, yields an *InvalidURLError.
func ValidateSubmission(s domain.Submission) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "URL" {
				return &apperrors.InvalidURLError{Service: serviceName(s.Service)}
			}
		}
	}
	return fmt.Errorf("invalid submission: %w", err)
}

func serviceName(svc domain.Service) string {
	if _, known := urlTags[svc]; !known {
		return ""
	}
	return string(svc)
}

// ValidateResponse checks a decoded server response against its struct tags.
func ValidateResponse(v any) error {
	if err := validate.Struct(v); err != nil {
		return apperrors.Wrap(apperrors.ErrMalformedResponse, err)
	}
	return nil
}

func validateYouTubeURL(fl validator.FieldLevel) bool {
	return youtubePattern.MatchString(fl.Field().String())
}

func validateTikTokURL(fl validator.FieldLevel) bool {
	return tiktokPattern.MatchString(fl.Field().String())
}

func validateSubmissionURL(sl validator.StructLevel) {
	s := sl.Current().Interface().(domain.Submission)
	if s.URL == "" {
		return
	}
	if _, known := urlTags[s.Service]; !known {
		return
	}
	if !ValidURL(s.Service, s.URL) {
		sl.ReportError(s.URL, "URL", "URL", "video_url", string(s.Service))
	}
}
