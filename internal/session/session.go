// Package session drives connection establishment: the out-of-band
// offer/answer exchange through the room registry that has to happen
// before the peer channel can open.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pokedraft/draftlink/internal/registry"
	"github.com/pokedraft/draftlink/internal/transport"
	"github.com/pokedraft/draftlink/pkg/rooms"
)

// ErrNoSuchRoom is returned when joining a room id the registry does not
// know.
var ErrNoSuchRoom = errors.New("no such room")

// Registry is the slice of the registry client the flow needs.
type Registry interface {
	CreateRoom(ctx context.Context, roomID, hostOffer string) (rooms.CreateResponse, error)
	CheckRoom(ctx context.Context, roomID string) (rooms.CheckResponse, error)
	GetRoomData(ctx context.Context, roomID string) (rooms.Record, error)
	UpdateRoomAnswer(ctx context.Context, roomID, guestAnswer string) error
}

var _ Registry = (*registry.Client)(nil)

const defaultPollInterval = 2 * time.Second

// Establisher runs the host and guest sides of the signaling flow.
type Establisher struct {
	log  *zap.Logger
	reg  Registry
	poll time.Duration
}

func NewEstablisher(log *zap.Logger, reg Registry) *Establisher {
	return &Establisher{log: log, reg: reg, poll: defaultPollInterval}
}

// Host creates the offer and registers the room, returning the room id to
// share with the guest. It does not wait for the guest: the host may
// proceed to the draft screen immediately and run solo until (or unless)
// a guest arrives.
func (e *Establisher) Host(ctx context.Context, tp transport.Negotiator) (string, error) {
	roomID, err := registry.NewRoomID()
	if err != nil {
		return "", err
	}

	offer, err := tp.CreateOffer(ctx)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if _, err := e.reg.CreateRoom(ctx, roomID, offer); err != nil {
		return "", err
	}

	e.log.Info("room registered", zap.String("room_id", roomID))
	return roomID, nil
}

// AwaitAnswer polls the mailbox until the guest's answer shows up, then
// completes the handshake. There is deliberately no timeout: a host may
// wait indefinitely, and cancellation comes from ctx.
func (e *Establisher) AwaitAnswer(ctx context.Context, tp transport.Negotiator, roomID string) error {
	ticker := time.NewTicker(e.poll)
	defer ticker.Stop()

	for {
		rec, err := e.reg.GetRoomData(ctx, roomID)
		if err != nil {
			return err
		}
		if rec.GuestAnswer != "" {
			e.log.Info("guest answer received", zap.String("room_id", roomID))
			return tp.AcceptAnswer(ctx, rec.GuestAnswer)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Join runs the guest side: verify the room, consume the host's offer,
// publish the answer. The data channel is then delivered by the transport
// once negotiation completes.
func (e *Establisher) Join(ctx context.Context, tp transport.Negotiator, roomID string) error {
	check, err := e.reg.CheckRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !check.Exists {
		return fmt.Errorf("%w: %s", ErrNoSuchRoom, roomID)
	}

	rec, err := e.reg.GetRoomData(ctx, roomID)
	if err != nil {
		return err
	}
	if rec.HostOffer == "" {
		return fmt.Errorf("%w: room %s has no offer yet", ErrNoSuchRoom, roomID)
	}

	answer, err := tp.CreateAnswer(ctx, rec.HostOffer)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := e.reg.UpdateRoomAnswer(ctx, roomID, answer); err != nil {
		return err
	}

	e.log.Info("answer published", zap.String("room_id", roomID))
	return nil
}
