package session

import (
	"errors"
	"fmt"
)

// ErrProtocolTimeout is matched by any *ProtocolError caused by a command
// exceeding its protocol timeout.
var ErrProtocolTimeout = errors.New("protocol command timed out")

// ProtocolError describes a failed protocol command.
type ProtocolError struct {
	// Method is the command that failed.
	Method string

	// Code is the protocol error code, zero for transport failures.
	Code int64

	// Message is the error text reported by the browser or transport.
	Message string

	// Timeout is true when the command was abandoned after its timeout.
	Timeout bool
}

// Error implements error.
func (e *ProtocolError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("protocol error (%s): timed out", e.Method)
	}
	return fmt.Sprintf("protocol error (%s): %s", e.Method, e.Message)
}

// Is lets errors.Is(err, ErrProtocolTimeout) match timeouts.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocolTimeout && e.Timeout
}
