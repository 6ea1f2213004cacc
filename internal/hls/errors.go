package hls

import "fmt"

// ErrorType is the coarse category of an engine failure.
type ErrorType string

const (
	NetworkError ErrorType = "networkError"
	MediaError   ErrorType = "mediaError"
	OtherError   ErrorType = "otherError"
)

// ErrorDetails names the operation that failed.
type ErrorDetails string

const (
	ManifestLoadError    ErrorDetails = "manifestLoadError"
	ManifestParsingError ErrorDetails = "manifestParsingError"
	LevelLoadError       ErrorDetails = "levelLoadError"
	FragLoadError        ErrorDetails = "fragLoadError"
	BufferAppendError    ErrorDetails = "bufferAppendError"
)

// ErrorEvent describes a stream failure. StatusCode is 0 when no HTTP response was received.
type ErrorEvent struct {
	Type       ErrorType
	Details    ErrorDetails
	StatusCode int
	Fatal      bool
	URL        string
	Err        error
}

func (e *ErrorEvent) Error() string {
	msg := fmt.Sprintf("%s/%s", e.Type, e.Details)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ErrorEvent) Unwrap() error { return e.Err }

// IsLoadFailure reports whether the event came from fetching a manifest, level playlist or fragment.
func (e *ErrorEvent) IsLoadFailure() bool {
	switch e.Details {
	case ManifestLoadError, LevelLoadError, FragLoadError:
		return true
	}
	return false
}
