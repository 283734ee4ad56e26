// Package registry is the client for the room registry: an external
// mailbox service that stores, per room id, the host's offer blob and the
// guest's answer blob until their TTL runs out. It exists purely to
// bootstrap connection establishment; no draft traffic ever passes
// through it.
package registry

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pokedraft/draftlink/pkg/rooms"
)

var (
	// ErrRegistry wraps network and server-side failures. Callers surface
	// these directly to the user; there is no automatic retry.
	ErrRegistry = errors.New("registry request failed")

	// ErrRoomNotFound is returned when a fetched room does not exist.
	ErrRoomNotFound = errors.New("room not found")
)

const defaultTimeout = 10 * time.Second

// Client talks to one registry server.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// NewClient builds a client for the given base URL, e.g.
// "https://registry.example". httpClient may be nil.
func NewClient(log *zap.Logger, baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log,
	}
}

// CreateRoom registers a new mailbox entry, optionally with the host's
// offer already attached.
func (c *Client) CreateRoom(ctx context.Context, roomID, hostOffer string) (rooms.CreateResponse, error) {
	var out rooms.CreateResponse
	err := c.do(ctx, http.MethodPost, "/rooms", rooms.CreateRequest{
		RoomID:    roomID,
		HostOffer: hostOffer,
	}, &out)
	return out, err
}

// CheckRoom probes for a room's existence. Absence is not an error.
func (c *Client) CheckRoom(ctx context.Context, roomID string) (rooms.CheckResponse, error) {
	var out rooms.CheckResponse
	err := c.do(ctx, http.MethodGet, "/rooms/"+url.PathEscape(roomID)+"/check", nil, &out)
	return out, err
}

// GetRoomData fetches the stored offer/answer blobs.
func (c *Client) GetRoomData(ctx context.Context, roomID string) (rooms.Record, error) {
	var out rooms.Record
	err := c.do(ctx, http.MethodGet, "/rooms/"+url.PathEscape(roomID), nil, &out)
	return out, err
}

// UpdateRoomOffer overwrites the stored host offer.
func (c *Client) UpdateRoomOffer(ctx context.Context, roomID, hostOffer string) error {
	var out rooms.MessageResponse
	return c.do(ctx, http.MethodPut, "/rooms/"+url.PathEscape(roomID)+"/offer",
		rooms.OfferRequest{HostOffer: hostOffer}, &out)
}

// UpdateRoomAnswer overwrites the stored guest answer.
func (c *Client) UpdateRoomAnswer(ctx context.Context, roomID, guestAnswer string) error {
	var out rooms.MessageResponse
	return c.do(ctx, http.MethodPut, "/rooms/"+url.PathEscape(roomID)+"/answer",
		rooms.AnswerRequest{GuestAnswer: guestAnswer}, &out)
}

// RelayURL returns the websocket relay endpoint for a room.
func (c *Client) RelayURL(roomID, role string) string {
	ws := strings.Replace(c.baseURL, "http", "ws", 1)
	return ws + "/rooms/" + url.PathEscape(roomID) + "/relay?role=" + url.QueryEscape(role)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrRegistry, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrRoomNotFound, path)
	case resp.StatusCode >= 400:
		c.log.Error("registry error response",
			zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: %s %s: status %d", ErrRegistry, method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRegistry, err)
	}
	return nil
}

const roomIDCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RoomIDLength is fixed by the registry contract.
const RoomIDLength = 8

// NewRoomID generates a caller-side room identifier: 8 uppercase
// alphanumeric characters. The registry does no collision detection.
func NewRoomID() (string, error) {
	id := make([]byte, RoomIDLength)
	for i := range id {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(roomIDCharset))))
		if err != nil {
			return "", err
		}
		id[i] = roomIDCharset[n.Int64()]
	}
	return string(id), nil
}
