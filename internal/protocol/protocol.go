// Package protocol defines the closed set of messages the two peers
// exchange over the data channel, and the JSON envelope they travel in.
// The set is a tagged union: adding a kind means adding a variant here and
// a case in every switch, which the compiler's exhaustive type switch over
// Message keeps honest.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pokedraft/draftlink/internal/draft"
)

// Wire tags. These are fixed by the original tool's wire format.
const (
	TypePokemonSelect     = "POKEMON_SELECT"
	TypeDraftReset        = "DRAFT_RESET"
	TypeFirstAttackToggle = "FIRST_ATTACK_TOGGLE"
	TypeGameStateUpdate   = "GAME_STATE_UPDATE"
)

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrMalformed   = errors.New("malformed message")
)

// Message is the closed union of peer messages.
type Message interface{ isMessage() }

// PokemonSelect carries one ban or pick action. The step table on each
// side decides whether it lands as a ban or a pick.
type PokemonSelect struct {
	Item string `json:"item"`
}

// DraftReset asks the remote peer to reset to the fresh state.
type DraftReset struct{}

// FirstAttackToggle carries the resulting side, not a flip, so a
// re-delivered or stale toggle cannot desynchronize the peers.
type FirstAttackToggle struct {
	FirstAttackSide draft.Team `json:"firstAttackSide"`
}

// GameStateUpdate is a full snapshot; the receiver replaces its state
// wholesale. It is the resync mechanism, not an incremental update. On the
// wire the payload is the bare DraftState object.
type GameStateUpdate struct {
	State draft.State
}

func (PokemonSelect) isMessage()     {}
func (DraftReset) isMessage()        {}
func (FirstAttackToggle) isMessage() {}
func (GameStateUpdate) isMessage()   {}

// envelope is the on-wire shape: {type, data, timestamp-ms}.
type envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Encode wraps a message in the wire envelope, stamping the current time
// in milliseconds since epoch.
func Encode(m Message) ([]byte, error) {
	return encodeAt(m, time.Now())
}

func encodeAt(m Message, now time.Time) ([]byte, error) {
	var (
		typ  string
		data any
	)
	switch v := m.(type) {
	case PokemonSelect:
		typ, data = TypePokemonSelect, v
	case DraftReset:
		typ, data = TypeDraftReset, struct{}{}
	case FirstAttackToggle:
		typ, data = TypeFirstAttackToggle, v
	case GameStateUpdate:
		typ, data = TypeGameStateUpdate, v.State
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, m)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Type:      typ,
		Data:      raw,
		Timestamp: now.UnixMilli(),
	})
}

// Decode parses a wire payload into its typed message. Callers treat any
// error as "drop the frame": garbage on the channel is logged, never fatal.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypePokemonSelect:
		var m PokemonSelect
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if m.Item == "" {
			return nil, fmt.Errorf("%w: empty item", ErrMalformed)
		}
		return m, nil

	case TypeDraftReset:
		return DraftReset{}, nil

	case TypeFirstAttackToggle:
		var m FirstAttackToggle
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if m.FirstAttackSide != draft.TeamFirst && m.FirstAttackSide != draft.TeamSecond {
			return nil, fmt.Errorf("%w: bad side %q", ErrMalformed, m.FirstAttackSide)
		}
		return m, nil

	case TypeGameStateUpdate:
		var state draft.State
		if err := json.Unmarshal(env.Data, &state); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		// A snapshot replaces the receiver's state wholesale, so one that
		// the state machine could never have produced must be rejected here:
		// applying it would leave the peer stuck or crash the next action.
		if !state.Consistent() {
			return nil, fmt.Errorf("%w: inconsistent snapshot at step %d", ErrMalformed, state.StepCounter)
		}
		return GameStateUpdate{State: state}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}
