package model

import "time"

type User struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"displayName,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastPresent *time.Time `json:"lastPresent,omitempty"`
}

// PresenceUser is the users:join / users:leave payload: the user plus the
// room the transition applies to.
type PresenceUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	Room        string `json:"room"`
}
