package models

import (
	"regexp"
	"time"
)

// RoomToken is a normalized room identifier. It is purely a partition key:
// rooms exist implicitly from the first write and vanish once they hold no
// participants and no retained signals. Construct one with NormalizeRoom so
// unsanitized tokens never reach the store layer.
type RoomToken string

// Room names: anything outside alphanumeric/hyphen/underscore is replaced.
var roomBadChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

const maxRoomLen = 64

// NormalizeRoom maps a caller-supplied room name to a bounded-length token,
// replacing non-conforming characters with hyphens.
func NormalizeRoom(raw string) RoomToken {
	s := roomBadChars.ReplaceAllString(raw, "-")
	if len(s) > maxRoomLen {
		s = s[:maxRoomLen]
	}
	return RoomToken(s)
}

func (r RoomToken) String() string {
	return string(r)
}

// RoomOverview summarizes one active room for the rooms listing.
type RoomOverview struct {
	Room         RoomToken `json:"room"`
	Participants int64     `json:"participants"`
	LastSeen     time.Time `json:"last_seen"`
}
