package session

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pokedraft/draftlink/internal/transport"
	"github.com/pokedraft/draftlink/pkg/rooms"
)

// fakeRegistry is an in-memory mailbox matching the registry contract.
type fakeRegistry struct {
	mu    sync.Mutex
	rooms map[string]rooms.Record
	fail  error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{rooms: make(map[string]rooms.Record)}
}

func (f *fakeRegistry) CreateRoom(_ context.Context, roomID, hostOffer string) (rooms.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return rooms.CreateResponse{}, f.fail
	}
	f.rooms[roomID] = rooms.Record{RoomID: roomID, HostOffer: hostOffer}
	return rooms.CreateResponse{RoomID: roomID}, nil
}

func (f *fakeRegistry) CheckRoom(_ context.Context, roomID string) (rooms.CheckResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.rooms[roomID]
	if !ok {
		return rooms.CheckResponse{Exists: false}, nil
	}
	return rooms.CheckResponse{Exists: true, Room: &rec}, nil
}

func (f *fakeRegistry) GetRoomData(_ context.Context, roomID string) (rooms.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rooms[roomID], nil
}

func (f *fakeRegistry) UpdateRoomAnswer(_ context.Context, roomID, guestAnswer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.rooms[roomID]
	rec.GuestAnswer = guestAnswer
	f.rooms[roomID] = rec
	return nil
}

// fakeNegotiator records the handshake without any real connection.
type fakeNegotiator struct {
	*transport.PipeEnd
	offer          string
	answer         string
	acceptedAnswer string
	sawOffer       string
}

func (f *fakeNegotiator) CreateOffer(context.Context) (string, error) {
	return f.offer, nil
}

func (f *fakeNegotiator) AcceptAnswer(_ context.Context, answer string) error {
	f.acceptedAnswer = answer
	return nil
}

func (f *fakeNegotiator) CreateAnswer(_ context.Context, offer string) (string, error) {
	f.sawOffer = offer
	return f.answer, nil
}

func newFakePair() (*fakeNegotiator, *fakeNegotiator) {
	a, b := transport.Pipe()
	host := &fakeNegotiator{PipeEnd: a, offer: "sdp-offer"}
	guest := &fakeNegotiator{PipeEnd: b, answer: "sdp-answer"}
	return host, guest
}

func shortPollEstablisher(reg Registry) *Establisher {
	e := NewEstablisher(zap.NewNop(), reg)
	e.poll = 5 * time.Millisecond
	return e
}

func TestHostRegistersOfferUnderFreshRoomID(t *testing.T) {
	reg := newFakeRegistry()
	e := shortPollEstablisher(reg)
	host, _ := newFakePair()

	roomID, err := e.Host(context.Background(), host)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{8}$`), roomID)

	rec, err := reg.GetRoomData(context.Background(), roomID)
	require.NoError(t, err)
	assert.Equal(t, "sdp-offer", rec.HostOffer)
	assert.Empty(t, rec.GuestAnswer)
}

func TestFullHandshake(t *testing.T) {
	reg := newFakeRegistry()
	e := shortPollEstablisher(reg)
	host, guest := newFakePair()
	ctx := context.Background()

	roomID, err := e.Host(ctx, host)
	require.NoError(t, err)

	require.NoError(t, e.Join(ctx, guest, roomID))
	assert.Equal(t, "sdp-offer", guest.sawOffer)

	require.NoError(t, e.AwaitAnswer(ctx, host, roomID))
	assert.Equal(t, "sdp-answer", host.acceptedAnswer)
}

func TestAwaitAnswerPollsUntilGuestArrives(t *testing.T) {
	reg := newFakeRegistry()
	e := shortPollEstablisher(reg)
	host, guest := newFakePair()
	ctx := context.Background()

	roomID, err := e.Host(ctx, host)
	require.NoError(t, err)

	// Guest joins only after the host has been polling for a while.
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = e.Join(ctx, guest, roomID)
	}()

	require.NoError(t, e.AwaitAnswer(ctx, host, roomID))
	assert.Equal(t, "sdp-answer", host.acceptedAnswer)
}

func TestAwaitAnswerStopsOnCancel(t *testing.T) {
	reg := newFakeRegistry()
	e := shortPollEstablisher(reg)
	host, _ := newFakePair()

	roomID, err := e.Host(context.Background(), host)
	require.NoError(t, err)

	// No guest ever arrives; there is no timeout, only cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(25 * time.Millisecond)
		cancel()
	}()
	err = e.AwaitAnswer(ctx, host, roomID)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJoinUnknownRoom(t *testing.T) {
	reg := newFakeRegistry()
	e := shortPollEstablisher(reg)
	_, guest := newFakePair()

	err := e.Join(context.Background(), guest, "NOPE0000")
	assert.ErrorIs(t, err, ErrNoSuchRoom)
}

func TestHostSurfacesRegistryFailure(t *testing.T) {
	reg := newFakeRegistry()
	reg.fail = errors.New("registry down")
	e := shortPollEstablisher(reg)
	host, _ := newFakePair()

	_, err := e.Host(context.Background(), host)
	assert.ErrorContains(t, err, "registry down")
}
