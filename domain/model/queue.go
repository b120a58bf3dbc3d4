package model

import "time"

// Message attribute names carried on every envelope. They travel as
// provider-native attributes so receivers can read them without decoding
// the body.
const (
	AttributeEvent = "Event"
	AttributeRoom  = "Room"
)

// Event names announced through the queues.
const (
	EventRoomsNew     = "rooms:new"
	EventRoomsUpdate  = "rooms:update"
	EventRoomsArchive = "rooms:archive"
	EventMessagesNew  = "messages:new"
	EventUsersJoin    = "users:join"
	EventUsersLeave   = "users:leave"
	EventUsersUpdate  = "users:update"
	EventFilesNew     = "files:new"
)

// TemporaryCredential lets a client poll its own queue directly.
type TemporaryCredential struct {
	AccessKeyID     string    `json:"accessKeyId"`
	SecretAccessKey string    `json:"secretAccessKey"`
	SessionToken    string    `json:"sessionToken"`
	ExpireTime      time.Time `json:"expireTime"`
	Region          string    `json:"region"`
}

func (c TemporaryCredential) Expired(now time.Time) bool {
	return c.ExpireTime.IsZero() || !now.Before(c.ExpireTime)
}
