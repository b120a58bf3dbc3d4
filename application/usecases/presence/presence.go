package presence

import (
	"context"

	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/domain/repository"
	"github.com/hilthontt/letschat/infrastructure/broker"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"go.uber.org/zap"
)

// PresenceUseCase turns join, leave and rename of a user relative to rooms
// into announces. It holds no state of its own.
//
// A failed user lookup emits nothing and returns a nil completion, which
// waits as already done: presence delivery never fails the caller.
type PresenceUseCase interface {
	Join(ctx context.Context, userID string, room *model.Room) *broker.Completion
	Leave(ctx context.Context, userID string, room *model.Room) *broker.Completion
	// UsernameChanged announces a leave under the old name and a join under
	// the new one for every room. The result is done once all 2*len(rooms)
	// announces are.
	UsernameChanged(ctx context.Context, change model.UsernameChange, rooms []*model.Room) *broker.Completion
}

type presenceUseCase struct {
	users  repository.UserRepository
	broker *broker.Broker
	logger *logger.Logger
}

func NewPresenceUseCase(
	users repository.UserRepository,
	announcer *broker.Broker,
	logger *logger.Logger,
) PresenceUseCase {
	return &presenceUseCase{
		users:  users,
		broker: announcer,
		logger: logger,
	}
}

func (uc *presenceUseCase) Join(ctx context.Context, userID string, room *model.Room) *broker.Completion {
	user, ok := uc.lookup(ctx, userID, model.EventUsersJoin)
	if !ok {
		return nil
	}
	return uc.announce(ctx, model.EventUsersJoin, room, event(user, user.Username, room), user)
}

func (uc *presenceUseCase) Leave(ctx context.Context, userID string, room *model.Room) *broker.Completion {
	user, ok := uc.lookup(ctx, userID, model.EventUsersLeave)
	if !ok {
		return nil
	}
	return uc.announce(ctx, model.EventUsersLeave, room, event(user, user.Username, room), user)
}

func (uc *presenceUseCase) UsernameChanged(ctx context.Context, change model.UsernameChange, rooms []*model.Room) *broker.Completion {
	user, ok := uc.lookup(ctx, change.UserID, "rename")
	if !ok {
		return nil
	}

	cs := make([]*broker.Completion, 0, len(rooms)*2)
	for _, room := range rooms {
		cs = append(cs,
			uc.announce(ctx, model.EventUsersLeave, room, event(user, change.OldUsername, room), user),
			uc.announce(ctx, model.EventUsersJoin, room, event(user, change.NewUsername, room), user),
		)
	}

	uc.logger.Info("announced username change",
		zap.String("userID", change.UserID),
		zap.String("from", change.OldUsername),
		zap.String("to", change.NewUsername),
		zap.Int("rooms", len(rooms)),
	)
	return broker.All(cs...)
}

func (uc *presenceUseCase) lookup(ctx context.Context, userID, op string) (*model.User, bool) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil || user == nil {
		uc.logger.Warn("presence lookup failed, nothing announced",
			zap.String("op", op),
			zap.String("userID", userID),
			zap.Error(err),
		)
		return nil, false
	}
	return user, true
}

func event(user *model.User, username string, room *model.Room) model.PresenceEvent {
	return model.PresenceEvent{
		UserID:           user.ID,
		Username:         username,
		RoomID:           room.ID,
		RoomSlug:         room.Slug,
		RoomHasPassword:  room.HasPassword(),
		RoomConfidential: room.Confidential(),
		Participants:     room.Participants,
	}
}

func (uc *presenceUseCase) announce(ctx context.Context, name string, room *model.Room, ev model.PresenceEvent, user *model.User) *broker.Completion {
	payload := model.PresenceUser{
		ID:          ev.UserID,
		Username:    ev.Username,
		DisplayName: user.DisplayName,
		Room:        ev.RoomID,
	}

	// The user is addressed too: a leave has already removed them from the
	// participant list.
	return uc.broker.Audience(room, ev.UserID).Emit(ctx, name, payload)
}
