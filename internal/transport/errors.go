package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportUnavailable is returned when no host bridge is attached, or
	// the attached bridge went away.
	ErrTransportUnavailable = errors.New("transport unavailable")

	// ErrTimeout is returned when no response arrives within the call budget.
	ErrTimeout = errors.New("request timed out")

	// ErrProtocolViolation is returned when a response frame for a pending
	// request does not match the wire schema.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrRemoteCommand matches every *RemoteCommandError via errors.Is.
	ErrRemoteCommand = errors.New("remote command failed")
)

// RemoteCommandError is a failure the remote operation reported explicitly.
type RemoteCommandError struct {
	CommandID string
	Message   string
}

func (e *RemoteCommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.CommandID, e.Message)
}

// Is makes errors.Is(err, ErrRemoteCommand) hold.
func (e *RemoteCommandError) Is(target error) bool {
	return target == ErrRemoteCommand
}
