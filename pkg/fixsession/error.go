package fixsession

import "errors"

var (
	ErrBadState         = errors.New("invalid session state")
	ErrNotLoggedIn      = errors.New("not logged in")
	ErrCompIDMismatch   = errors.New("comp id mismatch")
	ErrBadSeqNum        = errors.New("bad sequence number")
	ErrHeartbeatTimeout = errors.New("heartbeat timeout")
	ErrSessionDead      = errors.New("session terminated")
	ErrOutboundFull     = errors.New("outbound queue full")
	ErrAppQueueFull     = errors.New("application queue full")
)
