package relay

import (
	"time"

	"git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"
)

// Session errors. Instances carry relay context and a cause but still match
// these values with errors.Is.
var (
	ErrDial             = errors.ConnectionError("could not connect to relay").Build()
	ErrSend             = errors.ConnectionError("could not send frame").Build()
	ErrReceive          = errors.ConnectionError("connection failed").Build()
	ErrUnexpectedClose  = errors.ConnectionError("connection closed unexpectedly").Build()
	ErrAborted          = errors.ConnectionError("exchange aborted").Build()
	ErrDialTimeout      = errors.TimeoutError("connect timed out").Build()
	ErrIdleTimeout      = errors.TimeoutError("no relay activity within idle window").Build()
	ErrAckTimeout       = errors.TimeoutError("no acknowledgement within ack window").Build()
	ErrMalformedFrame   = errors.ProtocolError("malformed frame from relay").Build()
	ErrRejected         = errors.RejectionError("relay rejected event").Build()
	ErrSubscriptionShut = errors.RejectionError("relay closed subscription").Build()
)

func sessionError(kind *errors.ClassifiedError, relay string, cause error) *errors.ClassifiedError {
	return errors.NewError(kind.Category(), kind.Message()).
		WithSeverity(kind.Severity()).
		WithCause(cause).
		WithContext("relay", relay).
		Build()
}

func timeoutError(kind *errors.ClassifiedError, relay string, window time.Duration) *errors.ClassifiedError {
	return sessionError(kind, relay, nil).WithContext("window", window.String())
}

// Kind returns the failure class of a session error: connection, timeout,
// protocol or rejection. Errors from outside a session yield "".
func Kind(err error) errors.ErrorCategory {
	switch cat := errors.GetCategory(err); cat {
	case errors.CategoryConnection, errors.CategoryTimeout, errors.CategoryProtocol, errors.CategoryRejection:
		return cat
	default:
		return ""
	}
}
