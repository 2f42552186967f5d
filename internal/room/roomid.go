package room

import (
	"strings"

	"github.com/google/uuid"

	"emotional-cup-backend/internal/parse"
)

// NewRoomID generates a fresh room identifier.
func NewRoomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// ResolveRoomID picks the room for this session. A room carried in the share
// URL fragment wins, then the identifier written back by a previous session,
// and finally a newly generated one. generated reports the last case so the
// caller can persist it.
func ResolveRoomID(shareURL, persisted string, gen func() string) (id string, generated bool) {
	if id, ok := parse.RoomFromURL(shareURL); ok {
		return id, false
	}
	if parse.ValidRoomID(persisted) {
		return persisted, false
	}
	return gen(), true
}
