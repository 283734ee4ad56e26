// Package transport provides the single ordered, reliable, bidirectional
// message channel the draft protocol runs over. Three implementations:
// a pion/webrtc data channel (the direct peer-to-peer path), a websocket
// relay through registryd (fallback when a direct connection cannot open),
// and an in-memory pipe (tests and solo play).
package transport

import "context"

// State tracks the channel lifecycle: New → Connecting → Open, then
// Closed or Failed. Open is the only state in which Send succeeds.
type State int

const (
	StateNew State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MessageHandler receives one raw frame. Frames arrive in send order.
type MessageHandler func(data []byte)

// StateHandler observes channel state transitions.
type StateHandler func(s State)

// Transport is the open channel as the controller sees it. Send is
// fire-and-forget: the bool reports whether the channel was open at call
// time, not delivery. OnMessage and OnStateChange register the single
// active handler each; they are set once per session, before the channel
// carries traffic.
type Transport interface {
	Send(data []byte) bool
	OnMessage(h MessageHandler)
	OnStateChange(h StateHandler)
	State() State
	Close() error
}

// Negotiator is a Transport that needs an out-of-band offer/answer
// exchange before the channel can open. Roles are asymmetric: the
// initiator calls CreateOffer then AcceptAnswer; the responder calls
// CreateAnswer and waits for the channel to be delivered to it.
type Negotiator interface {
	Transport
	CreateOffer(ctx context.Context) (string, error)
	AcceptAnswer(ctx context.Context, answer string) error
	CreateAnswer(ctx context.Context, offer string) (string, error)
}
