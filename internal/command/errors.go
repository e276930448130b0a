package command

import "errors"

// Domain errors for the command package, checkable with errors.Is().
var (
	// ErrCommandNotFound is returned when a command ID does not exist.
	ErrCommandNotFound = errors.New("command: not found")

	// ErrInvalidCommand is returned when the command name is not recognised.
	ErrInvalidCommand = errors.New("command: invalid command")

	// ErrInvalidValue is returned when the value is not valid for the command.
	ErrInvalidValue = errors.New("command: invalid value")

	// ErrInvalidStatus is returned when a status string is not recognised.
	ErrInvalidStatus = errors.New("command: invalid status")

	// ErrInvalidTransition is returned when a status update would move a
	// command backwards or out of a terminal state.
	ErrInvalidTransition = errors.New("command: invalid status transition")
)
