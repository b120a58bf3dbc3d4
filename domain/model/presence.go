package model

// PresenceEvent describes one join or leave of a user relative to a room.
// It lives for a single dispatch and is never stored.
type PresenceEvent struct {
	UserID          string
	Username        string
	RoomID          string
	RoomSlug        string
	RoomHasPassword bool
	// RoomConfidential is set for private or password-protected rooms.
	RoomConfidential bool
	// Participants receive the event one by one when the room is
	// confidential.
	Participants []string
}

// UsernameChange is the input to a rename announcement.
type UsernameChange struct {
	UserID      string
	OldUsername string
	NewUsername string
}
