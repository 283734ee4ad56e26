package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// DefaultSTUNServers is used when the caller configures none.
var DefaultSTUNServers = []string{"stun:stun.l.google.com:19302"}

var errNegotiated = errors.New("negotiation already performed")

// WebRTC carries the draft channel over a pion data channel. The channel
// is created ordered and reliable (pion's default), which is what lets the
// controller apply received actions without any reconciliation step.
//
// Signaling is non-trickle: CreateOffer and CreateAnswer block until ICE
// gathering completes and return the full session description as an opaque
// JSON blob, suitable for the registry mailbox.
type WebRTC struct {
	log *zap.Logger
	pc  *webrtc.PeerConnection

	mu      sync.Mutex
	dc      *webrtc.DataChannel
	state   State
	onMsg   MessageHandler
	onState StateHandler
	closed  bool
}

// NewWebRTC builds an unconnected peer. stunServers may be nil.
func NewWebRTC(log *zap.Logger, stunServers []string) (*WebRTC, error) {
	if len(stunServers) == 0 {
		stunServers = DefaultSTUNServers
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunServers}},
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	t := &WebRTC{log: log, pc: pc, state: StateNew}

	pc.OnConnectionStateChange(func(cs webrtc.PeerConnectionState) {
		t.log.Debug("peer connection state", zap.String("state", cs.String()))
		switch cs {
		case webrtc.PeerConnectionStateConnecting:
			t.setState(StateConnecting)
		case webrtc.PeerConnectionStateFailed:
			t.setState(StateFailed)
		case webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			t.setState(StateClosed)
		}
	})

	// Responder path: the initiator creates the channel, we receive it.
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		t.adoptChannel(dc)
	})

	return t, nil
}

// CreateOffer runs the initiator side of negotiation: create the data
// channel, produce an offer, wait for ICE gathering, return the blob.
func (t *WebRTC) CreateOffer(ctx context.Context) (string, error) {
	t.mu.Lock()
	if t.dc != nil {
		t.mu.Unlock()
		return "", errNegotiated
	}
	t.mu.Unlock()

	dc, err := t.pc.CreateDataChannel("draft", nil)
	if err != nil {
		return "", fmt.Errorf("create data channel: %w", err)
	}
	t.adoptChannel(dc)

	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	return t.finishLocalDescription(ctx, offer)
}

// AcceptAnswer completes the initiator handshake with the guest's blob.
func (t *WebRTC) AcceptAnswer(_ context.Context, answer string) error {
	desc, err := decodeDescription(answer)
	if err != nil {
		return err
	}
	if err := t.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	return nil
}

// CreateAnswer runs the responder side: consume the host's offer, produce
// the answer blob. The data channel arrives via OnDataChannel afterwards.
func (t *WebRTC) CreateAnswer(ctx context.Context, offer string) (string, error) {
	desc, err := decodeDescription(offer)
	if err != nil {
		return "", err
	}
	if err := t.pc.SetRemoteDescription(desc); err != nil {
		return "", fmt.Errorf("set remote offer: %w", err)
	}
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	return t.finishLocalDescription(ctx, answer)
}

func (t *WebRTC) finishLocalDescription(ctx context.Context, desc webrtc.SessionDescription) (string, error) {
	gathered := webrtc.GatheringCompletePromise(t.pc)
	if err := t.pc.SetLocalDescription(desc); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	local := t.pc.LocalDescription()
	if local == nil {
		return "", errors.New("no local description after gathering")
	}
	blob, err := json.Marshal(local)
	if err != nil {
		return "", err
	}
	return string(blob), nil
}

func (t *WebRTC) adoptChannel(dc *webrtc.DataChannel) {
	t.mu.Lock()
	t.dc = dc
	t.mu.Unlock()

	dc.OnOpen(func() {
		t.log.Info("data channel open", zap.String("label", dc.Label()))
		t.setState(StateOpen)
	})
	dc.OnClose(func() {
		t.setState(StateClosed)
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.mu.Lock()
		h := t.onMsg
		t.mu.Unlock()
		if h != nil {
			h(msg.Data)
		}
	})
}

func (t *WebRTC) Send(data []byte) bool {
	t.mu.Lock()
	dc, open := t.dc, t.state == StateOpen
	t.mu.Unlock()
	if !open || dc == nil {
		return false
	}
	if err := dc.SendText(string(data)); err != nil {
		t.log.Debug("send failed", zap.Error(err))
		return false
	}
	return true
}

func (t *WebRTC) OnMessage(h MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMsg = h
}

func (t *WebRTC) OnStateChange(h StateHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onState = h
}

func (t *WebRTC) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Close tears down the channel and the connection. Idempotent.
func (t *WebRTC) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	dc := t.dc
	t.mu.Unlock()

	if dc != nil {
		_ = dc.Close()
	}
	err := t.pc.Close()
	t.setState(StateClosed)
	return err
}

func (t *WebRTC) setState(s State) {
	t.mu.Lock()
	if t.state == s {
		t.mu.Unlock()
		return
	}
	// Terminal states stick; a late pion callback must not resurrect a
	// closed transport.
	if t.state == StateClosed || t.state == StateFailed {
		t.mu.Unlock()
		return
	}
	t.state = s
	h := t.onState
	t.mu.Unlock()
	if h != nil {
		h(s)
	}
}

func decodeDescription(blob string) (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal([]byte(blob), &desc); err != nil {
		return desc, fmt.Errorf("malformed session description: %w", err)
	}
	if desc.SDP == "" {
		return desc, errors.New("malformed session description: empty sdp")
	}
	return desc, nil
}
