package registryd

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pokedraft/draftlink/pkg/rooms"
)

const (
	relayWriteTimeout = 3 * time.Second
	relayBuffer       = 64
)

// relayHub pairs exactly two websocket connections per room and forwards
// frames verbatim between them. Frames are opaque here: the draft protocol
// lives entirely in the peers.
type relayHub struct {
	log *zap.Logger

	mu    sync.Mutex
	pairs map[string]*relayPair
}

type relayPair struct {
	host  *relayPeer
	guest *relayPeer
}

type relayPeer struct {
	id   string
	conn *websocket.Conn
	out  chan []byte
}

func newRelayHub(log *zap.Logger) *relayHub {
	return &relayHub{log: log, pairs: make(map[string]*relayPair)}
}

func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room_id")
	role := r.URL.Query().Get("role")
	if role != "host" && role != "guest" {
		httpError(w, http.StatusBadRequest, "role must be host or guest")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	peer := &relayPeer{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan []byte, relayBuffer),
	}
	if !s.relay.join(roomID, role, peer) {
		_ = conn.Close(websocket.StatusPolicyViolation, "role already taken")
		return
	}
	s.log.Info("relay peer joined",
		zap.String("room_id", roomID),
		zap.String("role", role),
		zap.String("peer_id", peer.id))

	// Writer goroutine: the only writer on this connection.
	writeCtx, writeCancel := context.WithCancel(context.Background())
	defer writeCancel()
	go func() {
		for data := range peer.out {
			ctx, cancel := context.WithTimeout(writeCtx, relayWriteTimeout)
			err := conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}()

	defer s.relay.leave(roomID, role, peer)

	// Reader loop: no read deadline — a draft may idle indefinitely.
	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				s.log.Debug("relay read ended", zap.String("peer_id", peer.id), zap.Error(err))
			}
			return
		}
		s.relay.forward(roomID, role, data)
	}
}

// join registers a peer; returns false when the role is already occupied.
// Once both roles are present, both peers get the ready frame.
func (h *relayHub) join(roomID, role string, peer *relayPeer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	pair := h.pairs[roomID]
	if pair == nil {
		pair = &relayPair{}
		h.pairs[roomID] = pair
	}

	switch role {
	case "host":
		if pair.host != nil {
			return false
		}
		pair.host = peer
	case "guest":
		if pair.guest != nil {
			return false
		}
		pair.guest = peer
	}

	if pair.host != nil && pair.guest != nil {
		pair.host.out <- []byte(rooms.RelayReady)
		pair.guest.out <- []byte(rooms.RelayReady)
	}
	return true
}

// forward pushes a frame to the other side of the pair. Frames sent before
// both peers are present are dropped: clients only send once the channel
// reports open.
func (h *relayHub) forward(roomID, role string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pair := h.pairs[roomID]
	if pair == nil || pair.host == nil || pair.guest == nil {
		return
	}
	target := pair.guest
	if role == "guest" {
		target = pair.host
	}
	select {
	case target.out <- data:
	default:
		// Slow consumer: drop the connection rather than block the room.
		h.log.Warn("relay peer too slow, dropping",
			zap.String("room_id", roomID), zap.String("peer_id", target.id))
		_ = target.conn.Close(websocket.StatusPolicyViolation, "too slow")
	}
}

// leave removes a peer and closes its partner: a half-open relay pair is
// useless, the survivor reconnects or falls back to solo play.
func (h *relayHub) leave(roomID, role string, peer *relayPeer) {
	h.mu.Lock()
	pair := h.pairs[roomID]
	if pair == nil {
		h.mu.Unlock()
		return
	}
	var partner *relayPeer
	switch role {
	case "host":
		if pair.host != peer {
			h.mu.Unlock()
			return
		}
		pair.host = nil
		partner = pair.guest
	case "guest":
		if pair.guest != peer {
			h.mu.Unlock()
			return
		}
		pair.guest = nil
		partner = pair.host
	}
	if pair.host == nil && pair.guest == nil {
		delete(h.pairs, roomID)
	}
	h.mu.Unlock()

	close(peer.out)
	if partner != nil {
		_ = partner.conn.Close(websocket.StatusGoingAway, "peer left")
	}
	h.log.Info("relay peer left",
		zap.String("room_id", roomID), zap.String("peer_id", peer.id))
}
