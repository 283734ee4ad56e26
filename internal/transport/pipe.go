package transport

import "sync"

// Pipe returns two connected in-memory endpoints. Frames written to one
// side are delivered synchronously to the other side's handler, in order.
// Both endpoints start Open. Used by tests and by solo play, where one tab
// drives both teams through a loopback.
//
// Synchronous delivery means Send runs the remote handler on the caller's
// goroutine, while the caller may hold its own locks. A pipe pair must
// therefore be driven from one goroutine at a time; two sides issuing
// actions concurrently can deadlock on each other's locks. The network
// transports deliver on their own read loops and have no such constraint.
func Pipe() (*PipeEnd, *PipeEnd) {
	a := &PipeEnd{state: StateOpen}
	b := &PipeEnd{state: StateOpen}
	a.peer, b.peer = b, a
	return a, b
}

// PipeEnd is one side of an in-memory channel pair.
type PipeEnd struct {
	mu      sync.Mutex
	peer    *PipeEnd
	state   State
	onMsg   MessageHandler
	onState StateHandler
}

func (p *PipeEnd) Send(data []byte) bool {
	p.mu.Lock()
	if p.state != StateOpen {
		p.mu.Unlock()
		return false
	}
	peer := p.peer
	p.mu.Unlock()

	peer.mu.Lock()
	h := peer.onMsg
	open := peer.state == StateOpen
	peer.mu.Unlock()
	if open && h != nil {
		// Delivered outside the lock so the handler may call Send back.
		h(append([]byte(nil), data...))
	}
	return true
}

func (p *PipeEnd) OnMessage(h MessageHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onMsg = h
}

func (p *PipeEnd) OnStateChange(h StateHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = h
}

func (p *PipeEnd) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Close shuts both ends down. Idempotent.
func (p *PipeEnd) Close() error {
	p.closeWith(StateClosed)
	p.peer.closeWith(StateClosed)
	return nil
}

func (p *PipeEnd) closeWith(s State) {
	p.mu.Lock()
	if p.state == StateClosed || p.state == StateFailed {
		p.mu.Unlock()
		return
	}
	p.state = s
	h := p.onState
	p.mu.Unlock()
	if h != nil {
		h(s)
	}
}
