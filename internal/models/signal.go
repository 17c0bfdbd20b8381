package models

import "time"

// SignalKind enumerates the accepted signaling message kinds.
type SignalKind string

const (
	KindOffer     SignalKind = "offer"
	KindAnswer    SignalKind = "answer"
	KindCandidate SignalKind = "candidate"
	KindHello     SignalKind = "hello"
	KindBye       SignalKind = "bye"
)

// Valid reports whether k is one of the accepted kinds.
func (k SignalKind) Valid() bool {
	switch k {
	case KindOffer, KindAnswer, KindCandidate, KindHello, KindBye:
		return true
	}
	return false
}

// Signal is one relayed signaling message. Records are immutable once
// written; ID is a globally monotonic sequence assigned at insertion and
// serves as the poll cursor. A nil TargetID means broadcast to every other
// participant in the room. Payload is opaque to the relay.
type Signal struct {
	ID        int64      `json:"id"`
	Room      RoomToken  `json:"room"`
	SenderID  string     `json:"sender_id"`
	TargetID  *string    `json:"target_id"`
	Kind      SignalKind `json:"kind"`
	Payload   string     `json:"payload"`
	CreatedAt time.Time  `json:"created_at"`
}
