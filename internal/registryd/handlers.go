package registryd

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pokedraft/draftlink/pkg/rooms"
)

var roomIDPattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req rooms.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !roomIDPattern.MatchString(req.RoomID) {
		httpError(w, http.StatusBadRequest, "room_id must be 8 uppercase alphanumeric characters")
		return
	}

	rec := Room{
		RoomID:    req.RoomID,
		HostOffer: req.HostOffer,
		CreatedAt: time.Now().UTC(),
		TTL:       int(s.cfg.RoomTTL.Seconds()),
		ToolType:  rooms.ToolTypeDraft,
	}
	if err := s.store.Create(r.Context(), rec); err != nil {
		s.log.Error("create room", zap.String("room_id", req.RoomID), zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	s.log.Info("room created", zap.String("room_id", req.RoomID))
	writeJSON(w, http.StatusCreated, rooms.CreateResponse{
		RoomID:  req.RoomID,
		Message: "room created",
	})
}

func (s *Server) handleCheckRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room_id")
	rec, err := s.store.Get(r.Context(), roomID)
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusOK, rooms.CheckResponse{Exists: false})
	case err != nil:
		s.log.Error("check room", zap.String("room_id", roomID), zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to check room")
	default:
		record := toRecord(rec)
		writeJSON(w, http.StatusOK, rooms.CheckResponse{Exists: true, Room: &record})
	}
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room_id")
	rec, err := s.store.Get(r.Context(), roomID)
	switch {
	case errors.Is(err, ErrNotFound):
		httpError(w, http.StatusNotFound, "room not found")
	case err != nil:
		s.log.Error("get room", zap.String("room_id", roomID), zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to get room")
	default:
		writeJSON(w, http.StatusOK, toRecord(rec))
	}
}

func (s *Server) handleUpdateOffer(w http.ResponseWriter, r *http.Request) {
	var req rooms.OfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid json")
		return
	}
	s.handleBlobUpdate(w, r, "offer", func(roomID string) error {
		return s.store.SetOffer(r.Context(), roomID, req.HostOffer)
	})
}

func (s *Server) handleUpdateAnswer(w http.ResponseWriter, r *http.Request) {
	var req rooms.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid json")
		return
	}
	s.handleBlobUpdate(w, r, "answer", func(roomID string) error {
		return s.store.SetAnswer(r.Context(), roomID, req.GuestAnswer)
	})
}

func (s *Server) handleBlobUpdate(w http.ResponseWriter, r *http.Request, kind string, update func(string) error) {
	roomID := chi.URLParam(r, "room_id")
	err := update(roomID)
	switch {
	case errors.Is(err, ErrNotFound):
		httpError(w, http.StatusNotFound, "room not found")
	case err != nil:
		s.log.Error("update "+kind, zap.String("room_id", roomID), zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to update "+kind)
	default:
		writeJSON(w, http.StatusOK, rooms.MessageResponse{Message: kind + " updated"})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func toRecord(r Room) rooms.Record {
	return rooms.Record{
		RoomID:      r.RoomID,
		HostOffer:   r.HostOffer,
		GuestAnswer: r.GuestAnswer,
		CreatedAt:   r.CreatedAt,
		TTL:         r.TTL,
		ToolType:    r.ToolType,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, rooms.MessageResponse{Message: msg})
}
