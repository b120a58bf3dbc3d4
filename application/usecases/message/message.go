package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hilthontt/letschat/application/usecases/announce"
	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/domain/repository"
	"github.com/hilthontt/letschat/infrastructure/broker"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"go.uber.org/zap"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrForbidden    = errors.New("user cannot post to this room")
	ErrEmptyMessage = errors.New("message text cannot be empty")
)

const (
	maxMessageLength = 4096
	defaultListLimit = 500
)

type MessageUseCase interface {
	Post(ctx context.Context, user *model.User, roomID, text string) (*model.Message, *broker.Completion, error)
	List(ctx context.Context, userID, roomID string, limit int64) ([]*model.Message, error)
}

type messageUseCase struct {
	messages repository.MessageRepository
	rooms    repository.RoomRepository
	announce announce.AnnounceUseCase
	logger   *logger.Logger
}

func NewMessageUseCase(
	messages repository.MessageRepository,
	rooms repository.RoomRepository,
	announce announce.AnnounceUseCase,
	logger *logger.Logger,
) MessageUseCase {
	return &messageUseCase{
		messages: messages,
		rooms:    rooms,
		announce: announce,
		logger:   logger,
	}
}

func (uc *messageUseCase) Post(ctx context.Context, user *model.User, roomID, text string) (*model.Message, *broker.Completion, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, ErrEmptyMessage
	}
	if len(text) > maxMessageLength {
		return nil, nil, fmt.Errorf("message must be at most %d bytes", maxMessageLength)
	}

	room, err := uc.room(ctx, user.ID, roomID)
	if err != nil {
		return nil, nil, err
	}
	if room.Archived || !room.IsParticipant(user.ID) {
		return nil, nil, ErrForbidden
	}

	message := &model.Message{
		ID:       uuid.NewString(),
		Room:     room.ID,
		Owner:    user.ID,
		Username: user.Username,
		Text:     text,
		PostedAt: time.Now(),
	}
	if err := uc.messages.Create(ctx, message); err != nil {
		uc.logger.Error("failed to store message", zap.Error(err), zap.String("roomID", room.ID))
		return nil, nil, fmt.Errorf("failed to store message: %w", err)
	}

	room.LastActive = message.PostedAt
	if err := uc.rooms.Update(ctx, room); err != nil {
		uc.logger.Warn("failed to touch room", zap.Error(err), zap.String("roomID", room.ID))
	}

	return message, uc.announce.MessagePosted(ctx, room, message), nil
}

func (uc *messageUseCase) List(ctx context.Context, userID, roomID string, limit int64) ([]*model.Message, error) {
	room, err := uc.room(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	if !room.Readable(userID) {
		return nil, ErrForbidden
	}
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	return uc.messages.GetByRoom(ctx, room.ID, limit)
}

func (uc *messageUseCase) room(ctx context.Context, userID, roomID string) (*model.Room, error) {
	room, err := uc.rooms.GetByID(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if !room.VisibleTo(userID) {
		return nil, ErrRoomNotFound
	}
	return room, nil
}
