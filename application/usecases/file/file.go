package file

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
	ErrForbidden    = errors.New("user cannot share files in this room")
	ErrInvalidFile  = errors.New("file name and url are required")
)

// Input describes a file already placed in storage. Storage itself is
// handled outside this service.
type Input struct {
	Name string
	Type string
	Size int64
	URL  string
	// Post also posts a message linking the file in the room.
	Post bool
}

type FileUseCase interface {
	Create(ctx context.Context, user *model.User, roomID string, input Input) (*model.File, *broker.Completion, error)
	List(ctx context.Context, userID, roomID string) ([]*model.File, error)
}

type fileUseCase struct {
	files    repository.FileRepository
	messages repository.MessageRepository
	rooms    repository.RoomRepository
	announce announce.AnnounceUseCase
	logger   *logger.Logger
}

func NewFileUseCase(
	files repository.FileRepository,
	messages repository.MessageRepository,
	rooms repository.RoomRepository,
	announce announce.AnnounceUseCase,
	logger *logger.Logger,
) FileUseCase {
	return &fileUseCase{
		files:    files,
		messages: messages,
		rooms:    rooms,
		announce: announce,
		logger:   logger,
	}
}

func (uc *fileUseCase) Create(ctx context.Context, user *model.User, roomID string, input Input) (*model.File, *broker.Completion, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || input.URL == "" {
		return nil, nil, ErrInvalidFile
	}

	room, err := uc.rooms.GetByID(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get room: %w", err)
	}
	if room.Archived || !room.IsParticipant(user.ID) {
		return nil, nil, ErrForbidden
	}

	now := time.Now()
	file := &model.File{
		ID:         uuid.NewString(),
		Room:       room.ID,
		Owner:      user.ID,
		Name:       name,
		Type:       input.Type,
		Size:       input.Size,
		URL:        input.URL,
		UploadedAt: now,
	}
	if err := uc.files.Create(ctx, file); err != nil {
		uc.logger.Error("failed to store file", zap.Error(err), zap.String("roomID", room.ID))
		return nil, nil, fmt.Errorf("failed to store file: %w", err)
	}

	var post *model.Message
	if input.Post {
		post = &model.Message{
			ID:       uuid.NewString(),
			Room:     room.ID,
			Owner:    user.ID,
			Username: user.Username,
			Text:     "upload://" + file.URL,
			PostedAt: now,
		}
		if err := uc.messages.Create(ctx, post); err != nil {
			// The file is stored; announce it without the post.
			uc.logger.Error("failed to post file message", zap.Error(err), zap.String("fileID", file.ID))
			post = nil
		}
	}

	uc.logger.Info("file shared", zap.String("fileID", file.ID), zap.String("roomID", room.ID), zap.String("userID", user.ID))
	return file, uc.announce.FileUploaded(ctx, room, file, post), nil
}

func (uc *fileUseCase) List(ctx context.Context, userID, roomID string) ([]*model.File, error) {
	room, err := uc.rooms.GetByID(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if !room.Readable(userID) {
		return nil, ErrForbidden
	}
	return uc.files.GetByRoom(ctx, room.ID)
}
