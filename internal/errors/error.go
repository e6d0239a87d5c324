package errors

import "errors"

var (
	ErrInvalidPosition      = errors.New("invalid position")
	ErrIllegalMove          = errors.New("illegal move")
	ErrSessionFailed        = errors.New("engine session in error state")
	ErrSessionStopped       = errors.New("engine session stopped")
	ErrHandshakeTimeout     = errors.New("engine handshake timed out")
	ErrTooManyInitAttempts  = errors.New("too many engine initialization attempts")
	ErrProcessExited        = errors.New("engine process exited")
	ErrRequestTimeout       = errors.New("engine request timed out")
	ErrMalformedResponse    = errors.New("malformed engine response")
	ErrNotInTablebase       = errors.New("position not covered by tablebase")
	ErrTablebaseUnavailable = errors.New("tablebase service unavailable")
	ErrMalformedTablebase   = errors.New("malformed tablebase response")
)
