package handlers

import (
	"net/http"
	"strconv"
)

// RoomInfo represents one active room in the list response.
type RoomInfo struct {
	Room         string `json:"room"`
	Participants int64  `json:"participants"`
	LastSeen     string `json:"last_seen"`
}

// RoomListResponse represents the active rooms list response.
type RoomListResponse struct {
	Rooms []RoomInfo `json:"rooms"`
	Total int        `json:"total"`
}

// ListRooms handles listing rooms with at least one present participant.
// Rooms are implicit: they appear here while occupied and vanish afterwards.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 100 {
		limit = 100
	}

	rooms, err := h.db.ListActiveRooms(r.Context(), limit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	out := make([]RoomInfo, len(rooms))
	for i, room := range rooms {
		out[i] = RoomInfo{
			Room:         room.Room.String(),
			Participants: room.Participants,
			LastSeen:     room.LastSeen.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}

	h.JSON(w, http.StatusOK, RoomListResponse{
		Rooms: out,
		Total: len(out),
	})
}
