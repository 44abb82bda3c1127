package conversation

import (
	"errors"
	"fmt"
)

// ErrPrecondition is wrapped by every guard failure. A failed guard never
// changes the session state.
var ErrPrecondition = errors.New("precondition violated")

var (
	ErrNoScene                 = fmt.Errorf("%w: no current scene", ErrPrecondition)
	ErrChoiceAlreadySelected   = fmt.Errorf("%w: a choice was already selected this round", ErrPrecondition)
	ErrUnknownChoice           = fmt.Errorf("%w: choice does not belong to the current scene", ErrPrecondition)
	ErrNoChoiceSelected        = fmt.Errorf("%w: no choice selected", ErrPrecondition)
	ErrTerminalRound           = fmt.Errorf("%w: round is terminal", ErrPrecondition)
	ErrConversationNotResolved = fmt.Errorf("%w: conversation has no outcome yet", ErrPrecondition)
	ErrConversationInProgress  = fmt.Errorf("%w: finish the current round first", ErrPrecondition)
)

// ErrFetchInFlight is returned when a scene is requested while another fetch
// for the same session has not completed.
var ErrFetchInFlight = errors.New("scene fetch already in flight")

// ErrStaleScene is returned when a fetch completes after the session moved on
// (difficulty change or reset). The fetched scene is discarded.
var ErrStaleScene = errors.New("scene arrived for a superseded conversation")

// ErrGeneration matches every GenerationError via errors.Is.
var ErrGeneration = errors.New("scene generation failed")

// GenerationError reports a failed generator call. It is recoverable: the
// caller may retry RequestScene.
type GenerationError struct {
	Step int
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("scene generation failed at step %d: %v", e.Step, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }
