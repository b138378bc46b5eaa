package api

import "time"

// PresenceRecord is one roster row as the backend sends it
type PresenceRecord struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Status     string    `json:"status"` // online, away, busy, offline, or an alias
	Room       string    `json:"room,omitempty"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// RosterResponse wraps the presence roster
type RosterResponse struct {
	Count int              `json:"count"`
	Users []PresenceRecord `json:"users"`
}

// FollowStatusResponse answers the relationship existence check
type FollowStatusResponse struct {
	IsFollowing bool `json:"is_following"`
}

// FollowResponse is returned by follow and unfollow
type FollowResponse struct {
	Message     string `json:"message,omitempty"`
	IsFollowing bool   `json:"is_following"`
}

// PresenceUpdate is the body of a presence broadcast
type PresenceUpdate struct {
	Status string `json:"status"`
	Room   string `json:"room,omitempty"`
}

// ErrorResponse is the error envelope of every non-2xx response
type ErrorResponse struct {
	Code    string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// User is the authenticated caller as the relay sees it
type User struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}
