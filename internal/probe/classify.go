package probe

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// classifyTransport maps a raw transport failure onto the error
// taxonomy. Socket-level timeouts and the explicit deadline surface
// identically as timed-out; anything unrecognized keeps its message
// verbatim for diagnostics.
func classifyTransport(err error) *Error {
	var netErr net.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Kind: KindTimedOut, Message: err.Error()}
	case errors.Is(err, syscall.ECONNRESET):
		return &Error{Kind: KindConnectionReset, Message: err.Error()}
	default:
		return &Error{Kind: KindTransport, Message: err.Error()}
	}
}
