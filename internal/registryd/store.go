// Package registryd implements the room registry server: a mailbox that
// stores one host-offer and one guest-answer blob per room id, with a TTL,
// plus a websocket relay that forwards frames between the two peers of a
// room when a direct connection cannot be established.
package registryd

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned for rooms that do not exist or have expired.
var ErrNotFound = errors.New("room not found")

// Store persists room records. Create is an upsert: room ids are
// caller-generated and re-posting an id overwrites the mailbox, matching
// the TTL model.
type Store interface {
	Create(ctx context.Context, rec Room) error
	Get(ctx context.Context, roomID string) (Room, error)
	SetOffer(ctx context.Context, roomID, offer string) error
	SetAnswer(ctx context.Context, roomID, answer string) error
	Delete(ctx context.Context, roomID string) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// Room is the stored form of a registry record.
type Room struct {
	RoomID      string    `gorm:"primaryKey;column:room_id"`
	HostOffer   string    `gorm:"column:host_offer;type:text"`
	GuestAnswer string    `gorm:"column:guest_answer;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	TTL         int       `gorm:"column:ttl"`
	ToolType    string    `gorm:"column:tool_type"`
}

func (Room) TableName() string { return "rooms" }

func (r Room) expiresAt() time.Time {
	return r.CreatedAt.Add(time.Duration(r.TTL) * time.Second)
}

// MemoryStore is the default store: a mutex-guarded map. Expired rows are
// invisible to Get immediately and reclaimed by the sweeper.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]Room
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]Room)}
}

func (s *MemoryStore) Create(_ context.Context, rec Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[rec.RoomID] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, roomID string) (Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rooms[roomID]
	if !ok || time.Now().After(rec.expiresAt()) {
		return Room{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) SetOffer(ctx context.Context, roomID, offer string) error {
	return s.update(roomID, func(r *Room) { r.HostOffer = offer })
}

func (s *MemoryStore) SetAnswer(ctx context.Context, roomID, answer string) error {
	return s.update(roomID, func(r *Room) { r.GuestAnswer = answer })
}

func (s *MemoryStore) update(roomID string, fn func(*Room)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rooms[roomID]
	if !ok || time.Now().After(rec.expiresAt()) {
		return ErrNotFound
	}
	fn(&rec)
	s.rooms[roomID] = rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	return nil
}

func (s *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for id, rec := range s.rooms {
		if now.After(rec.expiresAt()) {
			delete(s.rooms, id)
			purged++
		}
	}
	return purged, nil
}
