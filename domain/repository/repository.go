package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hilthontt/letschat/domain/model"
)

// ErrNotFound is returned by every repository when the record is absent.
var ErrNotFound = errors.New("not found")

// UserRepository stores user records. LastPresent is never written through
// Create or Update; reads fill it from the presence heartbeat.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetAll(ctx context.Context) ([]*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	SetUsernameIndex(ctx context.Context, username, userID string) error
	DeleteUsernameIndex(ctx context.Context, username string) error
}

type RoomRepository interface {
	Create(ctx context.Context, room *model.Room) error
	Update(ctx context.Context, room *model.Room) error
	GetByID(ctx context.Context, id string) (*model.Room, error)
	GetAll(ctx context.Context) ([]*model.Room, error)
	AddParticipant(ctx context.Context, roomID, userID string) (bool, error)
	RemoveParticipant(ctx context.Context, roomID, userID string) (bool, error)
	// RoomsForUser lists the rooms userID currently occupies.
	RoomsForUser(ctx context.Context, userID string) ([]*model.Room, error)
}

type MessageRepository interface {
	Create(ctx context.Context, message *model.Message) error
	GetByRoom(ctx context.Context, roomID string, limit int64) ([]*model.Message, error)
}

type FileRepository interface {
	Create(ctx context.Context, file *model.File) error
	GetByRoom(ctx context.Context, roomID string) ([]*model.File, error)
}

// PresenceRepository records the last heartbeat of every logged-in user.
type PresenceRepository interface {
	Touch(ctx context.Context, userID string, at time.Time) error
	Clear(ctx context.Context, userID string) error
	// LastSeen reports the last heartbeat, false when there is none.
	LastSeen(ctx context.Context, userID string) (time.Time, bool, error)
	StaleSince(ctx context.Context, cutoff time.Time) ([]string, error)
}

// SessionRepository maps opaque session tokens to user ids.
type SessionRepository interface {
	Create(ctx context.Context, token, userID string, ttl time.Duration) error
	Get(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}
