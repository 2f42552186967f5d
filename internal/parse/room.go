package parse

import (
	"regexp"
	"strings"
)

var (
	roomFragmentRe = regexp.MustCompile(`(?:^|&)room=([a-zA-Z0-9_-]+)`)
	roomIDRe       = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// RoomFromFragment extracts the room identifier from a URL fragment such as
// "room=abc123" or "#room=abc123&view=chart".
func RoomFromFragment(fragment string) (string, bool) {
	m := roomFragmentRe.FindStringSubmatch(fragment)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// RoomFromURL extracts the room identifier from the fragment of a share URL.
// A bare fragment without scheme or host is accepted too.
func RoomFromURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return RoomFromFragment(raw[i+1:])
	}
	// 完整 URL 但没有 fragment：不去 query 里找
	if strings.Contains(raw, "://") {
		return "", false
	}
	return RoomFromFragment(raw)
}

// ValidRoomID reports whether id can be carried in a share URL fragment.
func ValidRoomID(id string) bool {
	return roomIDRe.MatchString(id)
}

// ShareURL writes the room identifier into the fragment of base, replacing
// any fragment already present. The rest of the URL is left as is.
func ShareURL(base, roomID string) string {
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base = base[:i]
	}
	return base + "#room=" + roomID
}
