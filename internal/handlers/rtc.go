package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/signalhop/signalhop/internal/api/middleware"
	"github.com/signalhop/signalhop/internal/models"
	"github.com/signalhop/signalhop/internal/relay"
)

// JoinResponse represents the join response: the other participants recorded
// in the room at the instant of the call.
type JoinResponse struct {
	Success      bool     `json:"success"`
	Participants []string `json:"participants"`
}

// SendSignalRequest represents the send signal request body. TargetID absent
// or null means broadcast.
type SendSignalRequest struct {
	TargetID *string `json:"target_id"`
	Kind     string  `json:"kind"`
	Payload  string  `json:"payload"`
}

// SendSignalResponse represents the send signal response.
type SendSignalResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
}

// SignalResponse represents one relayed signal in poll responses.
type SignalResponse struct {
	ID        int64   `json:"id"`
	Room      string  `json:"room"`
	SenderID  string  `json:"sender_id"`
	TargetID  *string `json:"target_id"`
	Kind      string  `json:"kind"`
	Payload   string  `json:"payload"`
	CreatedAt string  `json:"created_at"`
}

// PollResponse represents the poll response. Latest is the cursor for the
// next poll: the greatest id returned, or the request's since value when no
// signals matched.
type PollResponse struct {
	Success bool             `json:"success"`
	Signals []SignalResponse `json:"signals"`
	Latest  int64            `json:"latest"`
}

// roomParam normalizes the room token from the URL.
func roomParam(r *http.Request) models.RoomToken {
	return models.NormalizeRoom(chi.URLParam(r, "room"))
}

// Join handles registering presence in a room (authenticated).
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())
	if caller == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	others, err := h.relay.Join(r.Context(), roomParam(r), caller.ID.String())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to join room")
		return
	}

	h.JSON(w, http.StatusOK, JoinResponse{Success: true, Participants: others})
}

// Leave handles dropping presence in a room (authenticated). Peers observe
// the departure through the broadcast bye on their next poll.
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())
	if caller == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.relay.Leave(r.Context(), roomParam(r), caller.ID.String()); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to leave room")
		return
	}

	h.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SendSignal handles relaying one signaling message (authenticated).
func (h *Handler) SendSignal(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())
	if caller == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req SendSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	kind := models.SignalKind(strings.TrimSpace(req.Kind))
	id, err := h.relay.Send(r.Context(), roomParam(r), caller.ID.String(), req.TargetID, kind, req.Payload)
	if err != nil {
		switch {
		case errors.Is(err, relay.ErrInvalidKind):
			h.Error(w, http.StatusBadRequest, "invalid kind")
		case errors.Is(err, relay.ErrEmptyPayload):
			h.Error(w, http.StatusBadRequest, "missing payload")
		default:
			h.Error(w, http.StatusInternalServerError, "failed to store signal")
		}
		return
	}

	h.JSON(w, http.StatusOK, SendSignalResponse{Success: true, ID: id})
}

// Poll handles fetching signals addressed to the caller (authenticated).
// Non-blocking: returns immediately with whatever matches since the cursor.
func (h *Handler) Poll(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())
	if caller == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid since cursor")
			return
		}
		since = v
	}

	sigs, latest, err := h.relay.Poll(r.Context(), roomParam(r), caller.ID.String(), since)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch signals")
		return
	}

	out := make([]SignalResponse, len(sigs))
	for i, sig := range sigs {
		out[i] = SignalResponse{
			ID:        sig.ID,
			Room:      sig.Room.String(),
			SenderID:  sig.SenderID,
			TargetID:  sig.TargetID,
			Kind:      string(sig.Kind),
			Payload:   sig.Payload,
			CreatedAt: sig.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	}

	h.JSON(w, http.StatusOK, PollResponse{Success: true, Signals: out, Latest: latest})
}
