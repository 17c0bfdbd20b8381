package handlers

import (
	"net/http"
	"strconv"
	"time"
)

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalCallers    int64  `json:"total_callers"`
	ActiveRooms     int    `json:"active_rooms"`
	Participants    int64  `json:"participants"`
	RetainedSignals int64  `json:"retained_signals"`
	LastActivity    string `json:"last_activity"`
}

// Stats returns relay statistics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalCallers, err := h.db.CountCallers(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count callers")
		return
	}

	participants, err := h.db.CountParticipants(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count participants")
		return
	}

	rooms, err := h.db.ListActiveRooms(ctx, 100)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}

	signals, err := h.db.CountSignals(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count signals")
		return
	}

	last, err := h.db.LastSignalAt(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to read last activity")
		return
	}
	lastActivity := "no activity yet"
	if last != nil {
		lastActivity = formatTimeAgo(*last)
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalCallers:    totalCallers,
		ActiveRooms:     len(rooms),
		Participants:    participants,
		RetainedSignals: signals,
		LastActivity:    lastActivity,
	})
}

// formatTimeAgo formats a time as a human-readable "X ago" string.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return strconv.Itoa(mins) + " minutes ago"
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return strconv.Itoa(hours) + " hours ago"
	default:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return strconv.Itoa(days) + " days ago"
	}
}
