package models

import (
	"time"

	"github.com/google/uuid"
)

// Caller represents a registered caller identity. The relay core treats
// caller IDs as opaque strings; this record only exists at the auth boundary.
type Caller struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name,omitempty"`
	TokenHash string    `json:"-"` // bcrypt hash of the bearer token secret
	CreatedAt time.Time `json:"created_at"`
}
