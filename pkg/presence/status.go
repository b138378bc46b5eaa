package presence

import "strings"

// Status is the display state of a roster member
type Status int

const (
	// Offline is also the fallback for any status value we do not recognize
	Offline Status = iota
	Online
	Away
	Busy
)

// ParseStatus maps a raw backend status to a display state. It never fails.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "online", "active":
		return Online
	case "away", "idle":
		return Away
	case "busy", "dnd", "do-not-disturb", "do_not_disturb", "in_studio":
		return Busy
	default:
		return Offline
	}
}

// Label returns the human-readable status
func (s Status) Label() string {
	switch s {
	case Online:
		return "Online"
	case Away:
		return "Away"
	case Busy:
		return "Busy"
	default:
		return "Offline"
	}
}

// String returns the wire form of the status
func (s Status) String() string {
	switch s {
	case Online:
		return "online"
	case Away:
		return "away"
	case Busy:
		return "busy"
	default:
		return "offline"
	}
}

// MarshalText encodes the status in its wire form
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes any raw status, falling back to Offline
func (s *Status) UnmarshalText(text []byte) error {
	*s = ParseStatus(string(text))
	return nil
}
