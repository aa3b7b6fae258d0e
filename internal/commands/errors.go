package commands

import (
	"fmt"

	"limitedwatch/internal/transport/telegram/router"
)

// CommandError is a failed chat command: a bad argument or a failed
// delivery. It is shown to the user as the reply.
type CommandError struct {
	Command string
	Msg     string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err == nil {
		return e.Command + ": " + e.Msg
	}
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Command, e.Msg, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

func usageErr(cmd, msg string) *CommandError {
	return &CommandError{Command: cmd, Msg: msg, Err: router.ErrUsage}
}
