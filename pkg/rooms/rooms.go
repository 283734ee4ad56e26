// Package rooms holds the wire types of the room registry REST contract,
// shared by the registry client and the registryd server.
package rooms

import "time"

// ToolTypeDraft tags registry rows created by the draft tool.
const ToolTypeDraft = "draft"

// RelayReady is the control frame registryd sends on the relay websocket
// once both peers are connected. Every frame after it is opaque peer
// traffic, forwarded verbatim.
const RelayReady = "RELAY_READY"

// Record is one mailbox entry: the signaling blobs both peers exchange to
// bootstrap a direct connection. Rows expire after TTL seconds.
type Record struct {
	RoomID      string    `json:"room_id"`
	HostOffer   string    `json:"host_offer"`
	GuestAnswer string    `json:"guest_answer"`
	CreatedAt   time.Time `json:"created_at"`
	TTL         int       `json:"ttl"`
	ToolType    string    `json:"tool_type"`
}

// ExpiresAt returns the moment the record stops being served.
func (r Record) ExpiresAt() time.Time {
	return r.CreatedAt.Add(time.Duration(r.TTL) * time.Second)
}

type CreateRequest struct {
	RoomID    string `json:"room_id"`
	HostOffer string `json:"host_offer"`
}

type CreateResponse struct {
	RoomID  string `json:"room_id"`
	Message string `json:"message"`
}

type CheckResponse struct {
	Exists bool    `json:"exists"`
	Room   *Record `json:"room,omitempty"`
}

type OfferRequest struct {
	HostOffer string `json:"host_offer"`
}

type AnswerRequest struct {
	GuestAnswer string `json:"guest_answer"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
