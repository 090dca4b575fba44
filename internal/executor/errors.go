package executor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument is returned when a node name, guest ID, package or
// unit name would not be safe to place in a command line.
var ErrInvalidArgument = errors.New("invalid argument")

// ConnectionError reports that a host could not be reached or rejected
// authentication. Hint carries a user-facing suggestion when one is known.
type ConnectionError struct {
	Host string
	Err  error
	Hint string
}

func (e *ConnectionError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("%s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("%s: %v\n  hint: %s", e.Host, e.Err, e.Hint)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TransportError reports a protocol-level fault after the connection was
// established, such as a session that could not be opened or a command
// that ended without an exit status.
type TransportError struct {
	Host string
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Host, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CommandFailure reports a nonzero exit on a step that the operation
// cannot continue without. Output is the raw captured text.
type CommandFailure struct {
	Step     string
	Command  string
	ExitCode int
	Output   string
}

func (e *CommandFailure) Error() string {
	msg := fmt.Sprintf("%s: %q exited with status %d", e.Step, e.Command, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}
