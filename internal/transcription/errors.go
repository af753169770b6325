package transcription

import (
	"errors"
	"fmt"
	"strings"
)

// Typed failures for the transcription pipeline. Everything a component can
// fail with is one of these or one of the audio package's errors; no untyped
// error crosses a package boundary.
var (
	ErrNoProviderConfigured = errors.New("no transcription provider configured")
	ErrNoAPIKey             = errors.New("no API key configured for provider")
	ErrInvalidAPIKey        = errors.New("invalid API key")
	ErrQuotaExceeded        = errors.New("provider quota exceeded")
	ErrTimeout              = errors.New("transcription request timed out")
)

// FileTooLargeError is returned before any upload is attempted when the audio
// file exceeds the provider's stated limit.
type FileTooLargeError struct {
	Provider         Provider
	SizeBytes        int64
	LimitBytes       int64
	EstimatedMinutes float64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file is %.1f MB (~%.0f min), over the %.0f MB limit for %s",
		float64(e.SizeBytes)/(1024*1024), e.EstimatedMinutes,
		float64(e.LimitBytes)/(1024*1024), e.Provider)
}

// ServerError is a non-2xx provider response that is neither an auth nor a
// quota failure. Message is the provider's own message when one was parseable.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Message)
}

// NetworkError is a transport-level failure before any HTTP status was seen.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// CompressionError wraps a failure from the optional compression collaborator.
type CompressionError struct {
	Path string
	Err  error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("compression of %s failed: %v", e.Path, e.Err)
}

func (e *CompressionError) Unwrap() error { return e.Err }

// UnknownModelError is returned when a model has no entry in the rate table.
// Unknown models fail loudly instead of defaulting to a guessed rate.
type UnknownModelError struct {
	Provider Provider
	ModelID  string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("no per-minute rate known for model %q on %s", e.ModelID, e.Provider)
}

// refineProviderError layers best-effort substring checks over the HTTP
// status classification. It only ever narrows a generic server error into a
// more specific one; status-based mapping always wins.
func refineProviderError(statusCode int, message string) error {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "rate_limit") || strings.Contains(lower, "rate limit"):
		return ErrQuotaExceeded
	case strings.Contains(lower, "quota"):
		return ErrQuotaExceeded
	case strings.Contains(lower, "invalid api key") || strings.Contains(lower, "incorrect api key"):
		return ErrInvalidAPIKey
	}
	return &ServerError{StatusCode: statusCode, Message: message}
}
