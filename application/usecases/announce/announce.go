package announce

import (
	"context"

	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/infrastructure/broker"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"go.uber.org/zap"
)

// AnnounceUseCase publishes room, message, file and profile changes. Each
// method returns once the sends are queued; wait on the completion to know
// they were attempted.
type AnnounceUseCase interface {
	RoomCreated(ctx context.Context, room *model.Room) *broker.Completion
	RoomUpdated(ctx context.Context, room *model.Room) *broker.Completion
	RoomArchived(ctx context.Context, room *model.Room) *broker.Completion
	MessagePosted(ctx context.Context, room *model.Room, message *model.Message) *broker.Completion
	// FileUploaded announces the file and, when given, the message that
	// posts it to the room.
	FileUploaded(ctx context.Context, room *model.Room, file *model.File, post *model.Message) *broker.Completion
	UserUpdated(ctx context.Context, user *model.User) *broker.Completion
}

type announceUseCase struct {
	broker *broker.Broker
	logger *logger.Logger
}

func NewAnnounceUseCase(announcer *broker.Broker, logger *logger.Logger) AnnounceUseCase {
	return &announceUseCase{
		broker: announcer,
		logger: logger,
	}
}

func (uc *announceUseCase) RoomCreated(ctx context.Context, room *model.Room) *broker.Completion {
	return uc.room(ctx, model.EventRoomsNew, room)
}

func (uc *announceUseCase) RoomUpdated(ctx context.Context, room *model.Room) *broker.Completion {
	return uc.room(ctx, model.EventRoomsUpdate, room)
}

func (uc *announceUseCase) RoomArchived(ctx context.Context, room *model.Room) *broker.Completion {
	return uc.room(ctx, model.EventRoomsArchive, room)
}

// room sends a private room without a password only to its participants,
// each receiving their own view. Every other room is visible in the room
// list, so it goes to everybody.
func (uc *announceUseCase) room(ctx context.Context, event string, room *model.Room) *broker.Completion {
	if room.Private && !room.HasPassword() {
		cs := make([]*broker.Completion, 0, len(room.Participants))
		for _, id := range room.Participants {
			cs = append(cs, uc.broker.Queue(id).Emit(ctx, event, room.ViewFor(id)))
		}
		uc.logger.Debug("announced private room",
			zap.String("event", event),
			zap.String("roomId", room.ID),
			zap.Int("participants", len(room.Participants)),
		)
		return broker.All(cs...)
	}
	return uc.broker.Emit(ctx, event, room.ViewFor(""))
}

func (uc *announceUseCase) MessagePosted(ctx context.Context, room *model.Room, message *model.Message) *broker.Completion {
	return uc.broker.Audience(room).Emit(ctx, model.EventMessagesNew, message)
}

func (uc *announceUseCase) FileUploaded(ctx context.Context, room *model.Room, file *model.File, post *model.Message) *broker.Completion {
	audience := uc.broker.Audience(room)
	files := audience.Emit(ctx, model.EventFilesNew, file)
	if post == nil {
		return files
	}
	return broker.All(files, audience.Emit(ctx, model.EventMessagesNew, post))
}

func (uc *announceUseCase) UserUpdated(ctx context.Context, user *model.User) *broker.Completion {
	return uc.broker.Emit(ctx, model.EventUsersUpdate, user)
}
