package mtypes

import (
	"errors"
	"fmt"
)

// Common playback errors
var (
	// ErrNotConnected indicates the guild has no live transport handle
	ErrNotConnected = errors.New("not connected to a voice channel")

	// ErrNothingPlaying indicates there is no current track
	ErrNothingPlaying = errors.New("nothing is playing")

	// ErrQueueFull indicates the guild queue is at capacity
	ErrQueueFull = errors.New("queue is full")

	// ErrInvalidPosition indicates a queue position is out of range
	ErrInvalidPosition = errors.New("invalid queue position")

	// ErrExtractionFailed indicates media metadata extraction failed
	ErrExtractionFailed = errors.New("media extraction failed")

	// ErrCatalogFailed indicates catalog resolution failed
	ErrCatalogFailed = errors.New("catalog lookup failed")

	// ErrTransportFailed indicates the media transport failed
	ErrTransportFailed = errors.New("transport failure")

	// ErrReconnectExhausted indicates every reconnection attempt failed
	ErrReconnectExhausted = errors.New("reconnection attempts exhausted")

	// ErrRateLimited indicates a paced call was cancelled while waiting
	ErrRateLimited = errors.New("rate limit wait cancelled")

	// ErrStillProcessing indicates batch ingestion is running for the guild
	ErrStillProcessing = errors.New("still processing songs")

	// ErrInvalidTrack indicates a track failed validation
	ErrInvalidTrack = errors.New("invalid track")
)

// ErrorCode identifies specific error types
type ErrorCode string

const (
	ErrorCodeNotConnected       ErrorCode = "NOT_CONNECTED"
	ErrorCodeNothingPlaying     ErrorCode = "NOTHING_PLAYING"
	ErrorCodeQueueFull          ErrorCode = "QUEUE_FULL"
	ErrorCodeInvalidPosition    ErrorCode = "INVALID_POSITION"
	ErrorCodeExtraction         ErrorCode = "EXTRACTION_FAILURE"
	ErrorCodeCatalog            ErrorCode = "CATALOG_FAILURE"
	ErrorCodeTransport          ErrorCode = "TRANSPORT_FAILURE"
	ErrorCodeReconnectExhausted ErrorCode = "RECONNECT_EXHAUSTED"
	ErrorCodeRateLimited        ErrorCode = "RATE_LIMITED"
)

var codeSentinels = map[ErrorCode]error{
	ErrorCodeNotConnected:       ErrNotConnected,
	ErrorCodeNothingPlaying:     ErrNothingPlaying,
	ErrorCodeQueueFull:          ErrQueueFull,
	ErrorCodeInvalidPosition:    ErrInvalidPosition,
	ErrorCodeExtraction:         ErrExtractionFailed,
	ErrorCodeCatalog:            ErrCatalogFailed,
	ErrorCodeTransport:          ErrTransportFailed,
	ErrorCodeReconnectExhausted: ErrReconnectExhausted,
	ErrorCodeRateLimited:        ErrRateLimited,
}

// Error is a playback error with a code and additional context.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// NewError creates a new playback error.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel error associated with the code.
func (e *Error) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]
	return ok && sentinel == target
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	e.Context[key] = value
	return e
}

// IsUserVisible reports whether the error should be surfaced to a user.
func (e *Error) IsUserVisible() bool {
	return e.Code != ErrorCodeRateLimited
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
