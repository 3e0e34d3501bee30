package dispatcher

import (
	"errors"

	"github.com/thorium-sim/thorium-core/pkg/core"
)

// KindUnknownCommand is the wire name for ErrUnknownCommand.
const KindUnknownCommand core.ErrorKind = "unknown_command"

// ErrorKind classifies a Dispatch error, including ErrUnknownCommand.
func ErrorKind(err error) core.ErrorKind {
	if errors.Is(err, ErrUnknownCommand) {
		return KindUnknownCommand
	}
	return core.KindOf(err)
}
