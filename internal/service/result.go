package service

import (
	"errors"
	"fmt"

	"github.com/dgnsrekt/tunebox/internal/mtypes"
	"github.com/dgnsrekt/tunebox/internal/voice"
)

// Result is the outcome of one command.
type Result struct {
	// Action names the command for display purposes.
	Action string
	OK     bool
	Detail string
	// Changed reports whether playback or queue state changed.
	Changed bool
	Err     error
	// Done closes when background work started by the command finishes.
	// It is nil when the command started none.
	Done <-chan struct{}
}

func success(action, detail string, changed bool) Result {
	return Result{Action: action, OK: true, Detail: detail, Changed: changed}
}

func failure(action, detail string, err error) Result {
	return Result{Action: action, Detail: detail, Err: err}
}

// fromError turns an error into a declined Result with a user message.
func fromError(action string, err error) Result {
	return failure(action, userMessage(err), err)
}

const msgStillProcessing = "Still processing songs, please wait..."

func userMessage(err error) string {
	switch {
	case errors.Is(err, mtypes.ErrStillProcessing):
		return msgStillProcessing
	case errors.Is(err, voice.ErrAlreadyPaused):
		return "The song is already paused!"
	case errors.Is(err, voice.ErrNotPaused):
		return "The song is not paused."
	case errors.Is(err, mtypes.ErrNotConnected):
		return "I'm not connected to a voice channel."
	case errors.Is(err, mtypes.ErrNothingPlaying):
		return "Nothing is playing right now."
	case errors.Is(err, mtypes.ErrQueueFull):
		return "The queue is full."
	case errors.Is(err, mtypes.ErrExtractionFailed):
		return "Could not find or play that song."
	case errors.Is(err, mtypes.ErrCatalogFailed):
		return "Could not load songs from that link."
	case errors.Is(err, mtypes.ErrTransportFailed):
		return "The voice connection failed. Please try again."
	case errors.Is(err, mtypes.ErrInvalidPosition):
		return "Invalid position."
	default:
		return "Something went wrong. Please try again."
	}
}

func invalidPosition(action string, length int) Result {
	err := mtypes.NewError(mtypes.ErrorCodeInvalidPosition, "position out of range", nil).
		WithContext("length", length)
	if length == 0 {
		return failure(action, "The queue is empty!", err)
	}
	return failure(action, fmt.Sprintf("Invalid position. Please use a number between 1 and %d", length), err)
}
