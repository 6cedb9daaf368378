package websocket

import (
	"context"
	"sync/atomic"
)

type ConnState int32

const (
	StateConnecting ConnState = iota
	StateBootstrapping
	StateActive
	StateTerminating
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateBootstrapping:
		return "bootstrapping"
	case StateActive:
		return "active"
	case StateTerminating:
		return "terminating"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Connection is one live client session as seen by the hub. Send must not
// block and must return an error instead of panicking once Close was called.
type Connection interface {
	ID() string
	UserID() string
	Token() string
	// Context is cancelled when the connection closes.
	Context() context.Context
	Send(frame []byte) error
	Closed() bool
	Close()
	State() ConnState
	SetState(ConnState)
}

type connState struct {
	v atomic.Int32
}

func (s *connState) State() ConnState {
	return ConnState(s.v.Load())
}

func (s *connState) SetState(st ConnState) {
	s.v.Store(int32(st))
}
