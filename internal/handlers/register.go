package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/signalhop/signalhop/internal/metrics"
)

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Name string `json:"name"`
}

// RegisterResponse represents the registration response. Token is shown
// exactly once; only its bcrypt hash is stored.
type RegisterResponse struct {
	ID         string `json:"id"`
	Token      string `json:"token"`
	ProfileURL string `json:"profile_url"`
}

// Register handles caller registration.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := sanitizeName(req.Name)
	if name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	secret, err := newTokenSecret()
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to hash token")
		return
	}

	caller, err := h.db.CreateCaller(r.Context(), name, string(hash))
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create caller")
		return
	}

	metrics.CallersRegistered.Inc()

	h.JSON(w, http.StatusCreated, RegisterResponse{
		ID:         caller.ID.String(),
		Token:      fmt.Sprintf("%s.%s", caller.ID.String(), secret),
		ProfileURL: fmt.Sprintf("/who/%s", caller.ID.String()),
	})
}

// newTokenSecret generates the random secret half of a bearer token.
func newTokenSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
