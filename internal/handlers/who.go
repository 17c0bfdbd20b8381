package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// WhoResponse represents the caller profile response.
type WhoResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	JoinedAt string `json:"joined_at"`
}

// Who handles caller profile lookup.
func (h *Handler) Who(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")

	// Validate UUID format
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid caller ID format")
		return
	}

	caller, err := h.db.GetCallerByID(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	if caller == nil {
		h.Error(w, http.StatusNotFound, "caller not found")
		return
	}

	h.JSON(w, http.StatusOK, WhoResponse{
		ID:       caller.ID.String(),
		Name:     caller.Name,
		JoinedAt: caller.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}
