package segment

import (
	"errors"
	"fmt"

	"github.com/kingrea/scoresmith/internal/command"
	"github.com/kingrea/scoresmith/internal/scope"
)

var (
	ErrOverlap          = errors.New("segment: overlapping rhythm commands")
	ErrEmptySelection   = errors.New("segment: empty selection")
	ErrDurationMismatch = errors.New("segment: duration mismatch")
	ErrPartOverlap      = errors.New("segment: overlapping part assignment")
	ErrUnknownPart      = errors.New("segment: unknown part")
	ErrDoubledDynamic   = errors.New("segment: doubled dynamic")
	ErrMissingIndicator = errors.New("segment: missing required indicator")
	ErrUnknownContext   = errors.New("segment: unknown context")
	ErrEmptyRecordValue = errors.New("segment: empty record value")
	ErrInvalidInput     = errors.New("segment: invalid input")

	// ErrUnknownVoice is shared with scope resolution so errors.Is matches
	// misses from either layer.
	ErrUnknownVoice = scope.ErrUnknownVoice
)

// CommandError attaches the offending command to a dispatch failure.
type CommandError struct {
	Index   int
	Command command.Command
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("segment: command %d %s: %v", e.Index+1, e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
