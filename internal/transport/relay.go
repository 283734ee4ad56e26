package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/pokedraft/draftlink/pkg/rooms"
)

const relayWriteTimeout = 3 * time.Second

// Relay carries the draft channel through registryd's websocket relay
// instead of a direct connection. The server forwards frames verbatim
// between the two peers of a room, so ordering and reliability reduce to
// the two TCP connections. Fallback for networks where a direct channel
// cannot be established; no offer/answer negotiation is involved.
type Relay struct {
	log    *zap.Logger
	conn   *websocket.Conn
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	onMsg   MessageHandler
	onState StateHandler
}

// DialRelay connects to a relay endpoint, e.g.
// ws://registry.example/rooms/ABCD1234/relay?role=host. The transport
// reports Connecting until the server signals that both peers are present.
func DialRelay(ctx context.Context, log *zap.Logger, url string) (*Relay, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	r := &Relay{log: log, conn: conn, cancel: cancel, state: StateConnecting}
	go r.readLoop(readCtx)
	return r, nil
}

func (r *Relay) readLoop(ctx context.Context) {
	for {
		_, data, err := r.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				r.setState(StateClosed)
			default:
				if r.State() == StateOpen {
					r.setState(StateClosed)
				} else {
					r.setState(StateFailed)
				}
			}
			return
		}

		if string(data) == rooms.RelayReady {
			r.setState(StateOpen)
			continue
		}

		r.mu.Lock()
		h := r.onMsg
		r.mu.Unlock()
		if h != nil {
			h(data)
		}
	}
}

func (r *Relay) Send(data []byte) bool {
	if r.State() != StateOpen {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), relayWriteTimeout)
	defer cancel()
	if err := r.conn.Write(ctx, websocket.MessageText, data); err != nil {
		r.log.Debug("relay send failed", zap.Error(err))
		return false
	}
	return true
}

func (r *Relay) OnMessage(h MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onMsg = h
}

func (r *Relay) OnStateChange(h StateHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onState = h
}

func (r *Relay) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Close shuts the websocket down. Idempotent.
func (r *Relay) Close() error {
	r.mu.Lock()
	done := r.state == StateClosed || r.state == StateFailed
	r.mu.Unlock()
	if done {
		return nil
	}
	r.cancel()
	err := r.conn.Close(websocket.StatusNormalClosure, "bye")
	r.setState(StateClosed)
	return err
}

func (r *Relay) setState(s State) {
	r.mu.Lock()
	if r.state == s || r.state == StateClosed || r.state == StateFailed {
		r.mu.Unlock()
		return
	}
	r.state = s
	h := r.onState
	r.mu.Unlock()
	if h != nil {
		h(s)
	}
}
