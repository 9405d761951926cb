package guide

import (
	"errors"

	"github.com/snapetech/iptvguide/internal/safeurl"
)

var (
	// ErrDecode marks a guide body that is neither gzip nor valid text. The body
	// is treated as empty.
	ErrDecode = errors.New("guide: body is not valid UTF-8")

	// ErrNoDirectoryMatch marks a requested id the directory does not know.
	// Resolve reports it as Resolution.Matched == false, not as an error.
	ErrNoDirectoryMatch = errors.New("guide: no directory match")

	// ErrNoGuideSource marks a directory entry with no derivable guide URL.
	ErrNoGuideSource = errors.New("guide: no guide source for directory entry")
)

// TransportError is a failed guide download (network error or non-200).
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return "guide fetch " + safeurl.Redact(e.URL) + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }
