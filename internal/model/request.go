package model

import (
	"net/url"
	"strings"
)

// InputKind identifies which variant of an AnalysisRequest is populated.
type InputKind string

const (
	KindText  InputKind = "text"
	KindURL   InputKind = "url"
	KindImage InputKind = "image"
	KindAudio InputKind = "audio"
)

// ParseInputKind maps the form value of "type" to an InputKind. Unknown or
// empty values are treated as text, which is how the web UI behaves.
func ParseInputKind(s string) InputKind {
	switch InputKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindURL:
		return KindURL
	case KindImage:
		return KindImage
	case KindAudio:
		return KindAudio
	default:
		return KindText
	}
}

// AnalysisRequest is one inbound check. Exactly one of Text, URL, Image or
// Audio is meaningful, selected by Kind.
type AnalysisRequest struct {
	Kind       InputKind
	Text       string
	URL        string
	ForceFresh bool

	Image     []byte
	ImageType string

	Audio     []byte
	AudioType string
}

// InputError is a client input violation. It maps to HTTP 400 and carries the
// summary and reason shown to the user.
type InputError struct {
	Summary string
	Reason  string
}

func (e *InputError) Error() string {
	return e.Summary + ": " + e.Reason
}

func missingInput(noun string) *InputError {
	return &InputError{
		Summary: "No " + noun + " provided",
		Reason:  strings.ToUpper(noun[:1]) + noun[1:] + " input is required",
	}
}

// Validate checks that the variant selected by Kind is populated and well
// formed. It returns an *InputError on violation.
func (r AnalysisRequest) Validate() error {
	switch r.Kind {
	case KindImage:
		if len(r.Image) == 0 {
			return missingInput("image")
		}
	case KindAudio:
		if len(r.Audio) == 0 {
			return missingInput("audio")
		}
	case KindURL:
		if strings.TrimSpace(r.URL) == "" {
			return missingInput("URL")
		}
		if !IsHTTPURL(r.URL) {
			return &InputError{
				Summary: "Invalid URL provided",
				Reason:  "URL must be an absolute http(s) address",
			}
		}
	default:
		if strings.TrimSpace(r.Text) == "" {
			return &InputError{
				Summary: "No content provided",
				Reason:  "Text input is required",
			}
		}
	}
	return nil
}

// IsHTTPURL reports whether raw parses as an absolute http or https URL with a host.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
