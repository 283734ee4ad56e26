package controller

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pokedraft/draftlink/internal/draft"
	"github.com/pokedraft/draftlink/internal/protocol"
	"github.com/pokedraft/draftlink/internal/transport"
)

// recordingTransport counts outgoing frames without any peer attached.
type recordingTransport struct {
	open bool
	sent [][]byte
}

func (r *recordingTransport) Send(data []byte) bool {
	if !r.open {
		return false
	}
	r.sent = append(r.sent, append([]byte(nil), data...))
	return true
}
func (r *recordingTransport) OnMessage(transport.MessageHandler)   {}
func (r *recordingTransport) OnStateChange(transport.StateHandler) {}

func (r *recordingTransport) State() transport.State {
	if r.open {
		return transport.StateOpen
	}
	return transport.StateClosed
}
func (r *recordingTransport) Close() error { r.open = false; return nil }

func pairedControllers(t *testing.T) (*Controller, *Controller) {
	t.Helper()
	log := zap.NewNop()
	a, b := transport.Pipe()
	host := New(log, a, "ROOM0001", RoleHost)
	guest := New(log, b, "ROOM0001", RoleGuest)
	t.Cleanup(func() { _ = host.Close() })
	return host, guest
}

func TestLocalSelectBroadcastsOnce(t *testing.T) {
	tp := &recordingTransport{open: true}
	c := New(zap.NewNop(), tp, "ROOM0001", RoleHost)

	require.True(t, c.SelectPokemon("pikachu"))
	require.Len(t, tp.sent, 1)

	msg, err := protocol.Decode(tp.sent[0])
	require.NoError(t, err)
	assert.Equal(t, protocol.PokemonSelect{Item: "pikachu"}, msg)
}

func TestRejectedSelectDoesNotBroadcast(t *testing.T) {
	tp := &recordingTransport{open: true}
	c := New(zap.NewNop(), tp, "ROOM0001", RoleHost)

	require.True(t, c.SelectPokemon("pikachu"))
	require.False(t, c.SelectPokemon("pikachu"), "duplicate must be rejected")
	assert.Len(t, tp.sent, 1)
}

func TestRemoteSelectIsNotEchoed(t *testing.T) {
	host, guest := pairedControllers(t)

	require.True(t, host.SelectPokemon("pikachu"))

	// The guest converged without sending anything back: a second host
	// action must still be step 1's ban, not a desynced state.
	assert.Equal(t, 1, guest.State().StepCounter)
	assert.Equal(t, host.State(), guest.State())
}

func TestPeersConvergeOverFullDraft(t *testing.T) {
	host, guest := pairedControllers(t)

	// Alternate who initiates, regardless of whose turn the table says it
	// is: the state machine does not police turn ownership.
	for i := 0; i < draft.TotalSteps; i++ {
		item := fmt.Sprintf("mon-%02d", i)
		if i%2 == 0 {
			require.True(t, host.SelectPokemon(item), "step %d", i)
		} else {
			require.True(t, guest.SelectPokemon(item), "step %d", i)
		}
	}

	hs, gs := host.State(), guest.State()
	assert.Equal(t, hs, gs)
	assert.Equal(t, draft.PhaseCompleted, hs.Phase)
	assert.Len(t, hs.History, draft.TotalSteps)
}

func TestResetPropagates(t *testing.T) {
	host, guest := pairedControllers(t)

	host.SelectPokemon("pikachu")
	guest.SelectPokemon("gengar")
	guest.Reset()

	assert.Equal(t, draft.NewState(), host.State())
	assert.Equal(t, draft.NewState(), guest.State())
}

func TestTogglePropagatesAndGuards(t *testing.T) {
	host, guest := pairedControllers(t)

	require.True(t, host.ToggleFirstAttack())
	assert.Equal(t, draft.TeamSecond, guest.State().FirstAttackSide)
	assert.Equal(t, draft.TeamSecond, guest.State().Turn)

	host.SelectPokemon("pikachu")
	assert.False(t, guest.ToggleFirstAttack(), "toggle past step 0 must be rejected")
	assert.Equal(t, host.State(), guest.State())
}

func TestSyncStateOverwritesPeer(t *testing.T) {
	host, guest := pairedControllers(t)

	// Desync the guest on purpose, then let the host resync it.
	host.SelectPokemon("pikachu")
	guest.Reset()
	require.NotEqual(t, host.State(), guest.State())

	require.True(t, host.SyncState())
	assert.Equal(t, host.State(), guest.State())
}

func TestSyncStateIsIdempotent(t *testing.T) {
	log := zap.NewNop()
	a, b := transport.Pipe()
	host := New(log, a, "ROOM0001", RoleHost)
	guest := New(log, b, "ROOM0001", RoleGuest)
	defer host.Close()

	host.SelectPokemon("pikachu")
	host.SelectPokemon("gengar")

	raw, err := protocol.Encode(protocol.GameStateUpdate{State: host.State()})
	require.NoError(t, err)

	guest.handleFrame(raw)
	first := guest.State()
	guest.handleFrame(raw)
	assert.Equal(t, first, guest.State())
	assert.Equal(t, host.State(), guest.State())
}

func TestCorruptSnapshotIsDropped(t *testing.T) {
	host, guest := pairedControllers(t)
	before := guest.State()

	// Shape-valid but unreachable: a step counter pointing past the order
	// table. Applying it would crash the next local action.
	corrupt := before.Clone()
	corrupt.Phase = draft.PhasePick
	corrupt.StepCounter = 99
	raw, err := protocol.Encode(protocol.GameStateUpdate{State: corrupt})
	require.NoError(t, err)

	guest.handleFrame(raw)
	assert.Equal(t, before, guest.State())

	// The next action still lands cleanly as step 0's ban.
	require.True(t, guest.SelectPokemon("pikachu"))
	assert.Equal(t, "pikachu", guest.State().TeamBans[draft.TeamFirst][0])
	assert.Equal(t, host.State(), guest.State())
}

func TestMalformedFramesAreDropped(t *testing.T) {
	host, guest := pairedControllers(t)
	before := guest.State()

	for _, raw := range []string{
		"garbage",
		`{"type":"CHAT","data":{},"timestamp":1}`,
		`{"type":"POKEMON_SELECT","data":{"item":""},"timestamp":1}`,
	} {
		guest.handleFrame([]byte(raw))
	}

	assert.Equal(t, before, guest.State())
	assert.Equal(t, host.State(), guest.State())
}

func TestSoloPlayWithoutPeer(t *testing.T) {
	tp := &recordingTransport{open: false}
	c := New(zap.NewNop(), tp, "ROOM0001", RoleHost)

	// Channel never opened: actions still apply locally, one tab drives
	// both teams.
	for i := 0; i < draft.TotalSteps; i++ {
		require.True(t, c.SelectPokemon(fmt.Sprintf("mon-%02d", i)))
	}
	assert.Equal(t, draft.PhaseCompleted, c.State().Phase)
	assert.Empty(t, tp.sent)
	assert.False(t, c.SyncState())
}

func TestOutOfTurnRemoteSelectIsApplied(t *testing.T) {
	// Turn ownership is a UI convenience, not a machine rule: any valid
	// item applies regardless of which peer sent it.
	host, guest := pairedControllers(t)
	require.True(t, guest.SelectPokemon("pikachu"))
	assert.Equal(t, "pikachu", host.State().TeamBans[draft.TeamFirst][0])
}
