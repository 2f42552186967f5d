package room

import "errors"

var (
	ErrVesselNotFound = errors.New("vessel not found")
	ErrEmptyName      = errors.New("name must not be empty")
	ErrLastVessel     = errors.New("a room must keep at least one vessel")
)

// ErrorKind maps sentinel errors to a stable label for logs and API responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrVesselNotFound):
		return "not_found"
	case errors.Is(err, ErrEmptyName):
		return "empty_name"
	case errors.Is(err, ErrLastVessel):
		return "last_vessel"
	}
	return "unexpected"
}
