// Package controller orchestrates the draft session on one peer: it is
// the single mutator of the local DraftState copy. Locally initiated
// actions go through the state machine and are then broadcast; messages
// received from the peer go through the state machine and are NOT
// re-broadcast. That asymmetry is what prevents echo loops between the
// two peers.
package controller

import (
	"sync"

	"go.uber.org/zap"

	"github.com/pokedraft/draftlink/internal/draft"
	"github.com/pokedraft/draftlink/internal/protocol"
	"github.com/pokedraft/draftlink/internal/transport"
)

// Role is the session-establishment role of this peer.
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Session identifies one draft session, owned by exactly one peer process.
type Session struct {
	RoomID string
	Role   Role
	Status transport.State
}

// Controller owns the session and the local DraftState copy. All state
// mutation funnels through it, serialized by one mutex: the caller's
// goroutine for local actions, the transport's goroutine for remote ones.
type Controller struct {
	log *zap.Logger
	tp  transport.Transport

	mu      sync.Mutex
	session Session
	state   draft.State
}

// New wires a controller to an established transport. The message and
// state handlers are registered here, once per session.
func New(log *zap.Logger, tp transport.Transport, roomID string, role Role) *Controller {
	c := &Controller{
		log:     log,
		tp:      tp,
		session: Session{RoomID: roomID, Role: role, Status: tp.State()},
		state:   draft.NewState(),
	}
	tp.OnMessage(c.handleFrame)
	tp.OnStateChange(c.handleConnState)
	return c
}

// State returns a copy of the current draft state.
func (c *Controller) State() draft.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Session returns the current session descriptor.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SelectPokemon performs the ban or pick the order table expects at the
// current step, then broadcasts it. Returns whether the action was
// accepted locally; broadcast failure (channel not open) is not an error —
// solo play runs with no peer at all.
func (c *Controller) SelectPokemon(item string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, ok := draft.Apply(c.state, item)
	if !ok {
		return false
	}
	c.state = next
	c.broadcast(protocol.PokemonSelect{Item: item})
	return true
}

// Reset returns the draft to the fresh state and tells the peer to do the
// same.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = draft.Reset(c.state)
	c.broadcast(protocol.DraftReset{})
}

// ToggleFirstAttack flips the first-attack side. Only valid at step 0.
// The broadcast carries the resulting side, so applying it remotely is
// idempotent.
func (c *Controller) ToggleFirstAttack() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, ok := draft.ToggleFirstAttack(c.state)
	if !ok {
		return false
	}
	c.state = next
	c.broadcast(protocol.FirstAttackToggle{FirstAttackSide: next.FirstAttackSide})
	return true
}

// SyncState pushes a full snapshot to the peer. This is the recovery
// mechanism after a reconnect: the receiver replaces its state wholesale.
func (c *Controller) SyncState() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broadcast(protocol.GameStateUpdate{State: c.state.Clone()})
}

// broadcast encodes and sends; callers hold c.mu. Send is fire-and-forget
// per the transport contract.
func (c *Controller) broadcast(m protocol.Message) bool {
	raw, err := protocol.Encode(m)
	if err != nil {
		c.log.Error("encode message", zap.Error(err))
		return false
	}
	if !c.tp.Send(raw) {
		c.log.Debug("broadcast skipped, channel not open")
		return false
	}
	return true
}

// handleFrame applies one received frame. Malformed payloads are dropped
// silently (logged, never surfaced); applied messages are never
// re-broadcast.
func (c *Controller) handleFrame(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		c.log.Debug("dropping malformed frame", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch m := msg.(type) {
	case protocol.PokemonSelect:
		next, ok := draft.Apply(c.state, m.Item)
		if !ok {
			// Idempotent rejection: duplicate or late action, no-op.
			c.log.Debug("remote select rejected", zap.String("item", m.Item))
			return
		}
		c.state = next

	case protocol.DraftReset:
		c.state = draft.Reset(c.state)

	case protocol.FirstAttackToggle:
		next, ok := draft.SetFirstAttack(c.state, m.FirstAttackSide)
		if !ok {
			c.log.Debug("remote toggle rejected",
				zap.Int("step", c.state.StepCounter))
			return
		}
		c.state = next

	case protocol.GameStateUpdate:
		// Canonical resync: full overwrite.
		c.state = m.State.Clone()
	}
}

func (c *Controller) handleConnState(s transport.State) {
	c.mu.Lock()
	c.session.Status = s
	c.mu.Unlock()
	c.log.Info("connection state changed", zap.Stringer("state", s))
}

// Close tears the transport down.
func (c *Controller) Close() error {
	return c.tp.Close()
}
