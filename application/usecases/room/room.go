package room

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hilthontt/letschat/application/usecases/announce"
	"github.com/hilthontt/letschat/application/usecases/presence"
	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/domain/repository"
	"github.com/hilthontt/letschat/infrastructure/broker"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrInvalidPassword  = errors.New("invalid room password")
	ErrNotOwner         = errors.New("only the room owner can change the room")
	ErrRoomArchived     = errors.New("room is archived")
	ErrSlugTaken        = errors.New("room slug is already taken")
	ErrNotParticipating = errors.New("user is not in the room")
)

type CreateInput struct {
	Name        string
	Slug        string
	Description string
	Private     bool
	Password    string
}

// UpdateInput fields left nil are unchanged. An empty Password removes it.
type UpdateInput struct {
	Name        *string
	Description *string
	Password    *string
}

type RoomUseCase interface {
	Create(ctx context.Context, owner *model.User, input CreateInput) (*model.Room, *broker.Completion, error)
	Update(ctx context.Context, userID, roomID string, input UpdateInput) (*model.Room, *broker.Completion, error)
	Archive(ctx context.Context, userID, roomID string) (*model.Room, *broker.Completion, error)
	Get(ctx context.Context, userID, roomID string) (*model.Room, error)
	List(ctx context.Context, userID string) ([]model.RoomView, error)
	Join(ctx context.Context, userID, roomID, password string) (*model.Room, *broker.Completion, error)
	Leave(ctx context.Context, userID, roomID string) (*broker.Completion, error)
	Participants(ctx context.Context, userID, roomID string) ([]*model.User, error)
}

type roomUseCase struct {
	rooms    repository.RoomRepository
	users    repository.UserRepository
	announce announce.AnnounceUseCase
	presence presence.PresenceUseCase
	logger   *logger.Logger
}

func NewRoomUseCase(
	rooms repository.RoomRepository,
	users repository.UserRepository,
	announce announce.AnnounceUseCase,
	presence presence.PresenceUseCase,
	logger *logger.Logger,
) RoomUseCase {
	return &roomUseCase{
		rooms:    rooms,
		users:    users,
		announce: announce,
		presence: presence,
		logger:   logger,
	}
}

func (uc *roomUseCase) Create(ctx context.Context, owner *model.User, input CreateInput) (*model.Room, *broker.Completion, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, nil, fmt.Errorf("room name cannot be empty")
	}
	slug := normalizeSlug(input.Slug)
	if slug == "" {
		slug = normalizeSlug(name)
	}
	if taken, err := uc.slugTaken(ctx, slug); err != nil {
		return nil, nil, err
	} else if taken {
		return nil, nil, ErrSlugTaken
	}

	now := time.Now()
	room := &model.Room{
		ID:           uuid.NewString(),
		Slug:         slug,
		Name:         name,
		Description:  strings.TrimSpace(input.Description),
		Owner:        owner.ID,
		Private:      input.Private,
		Participants: []string{owner.ID},
		CreatedAt:    now,
		LastActive:   now,
	}
	if input.Password != "" {
		hash, err := hashPassword(input.Password)
		if err != nil {
			return nil, nil, err
		}
		room.Password = hash
	}

	if err := uc.rooms.Create(ctx, room); err != nil {
		uc.logger.Error("failed to create room", zap.Error(err), zap.String("ownerID", owner.ID))
		return nil, nil, fmt.Errorf("failed to create room: %w", err)
	}

	uc.logger.Info("room created", zap.String("roomID", room.ID), zap.String("slug", slug), zap.String("ownerID", owner.ID))
	return room, uc.announce.RoomCreated(ctx, room), nil
}

func (uc *roomUseCase) Update(ctx context.Context, userID, roomID string, input UpdateInput) (*model.Room, *broker.Completion, error) {
	room, err := uc.owned(ctx, userID, roomID)
	if err != nil {
		return nil, nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, nil, fmt.Errorf("room name cannot be empty")
		}
		room.Name = name
	}
	if input.Description != nil {
		room.Description = strings.TrimSpace(*input.Description)
	}
	if input.Password != nil {
		if *input.Password == "" {
			room.Password = ""
		} else {
			hash, err := hashPassword(*input.Password)
			if err != nil {
				return nil, nil, err
			}
			room.Password = hash
		}
	}
	room.LastActive = time.Now()

	if err := uc.rooms.Update(ctx, room); err != nil {
		uc.logger.Error("failed to update room", zap.Error(err), zap.String("roomID", roomID))
		return nil, nil, fmt.Errorf("failed to update room: %w", err)
	}

	return room, uc.announce.RoomUpdated(ctx, room), nil
}

func (uc *roomUseCase) Archive(ctx context.Context, userID, roomID string) (*model.Room, *broker.Completion, error) {
	room, err := uc.owned(ctx, userID, roomID)
	if err != nil {
		return nil, nil, err
	}

	room.Archived = true
	if err := uc.rooms.Update(ctx, room); err != nil {
		uc.logger.Error("failed to archive room", zap.Error(err), zap.String("roomID", roomID))
		return nil, nil, fmt.Errorf("failed to archive room: %w", err)
	}

	uc.logger.Info("room archived", zap.String("roomID", roomID), zap.String("ownerID", userID))
	return room, uc.announce.RoomArchived(ctx, room), nil
}

// Get hides invitation-only rooms from non-participants.
func (uc *roomUseCase) Get(ctx context.Context, userID, roomID string) (*model.Room, error) {
	room, err := uc.find(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.VisibleTo(userID) {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (uc *roomUseCase) List(ctx context.Context, userID string) ([]model.RoomView, error) {
	rooms, err := uc.rooms.GetAll(ctx)
	if err != nil {
		uc.logger.Error("failed to list rooms", zap.Error(err))
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	views := make([]model.RoomView, 0, len(rooms))
	for _, room := range rooms {
		if room.Archived || !room.VisibleTo(userID) {
			continue
		}
		views = append(views, room.ViewFor(userID))
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].LastActive.After(views[j].LastActive)
	})
	return views, nil
}

// Join adds userID to the room and announces it. Password rooms require the
// password unless the user is already a participant. Private rooms without a
// password can only be entered by their participants.
func (uc *roomUseCase) Join(ctx context.Context, userID, roomID, password string) (*model.Room, *broker.Completion, error) {
	room, err := uc.find(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if room.Archived {
		return nil, nil, ErrRoomArchived
	}

	if !room.IsParticipant(userID) {
		if !room.VisibleTo(userID) {
			return nil, nil, ErrRoomNotFound
		}
		if room.HasPassword() && bcrypt.CompareHashAndPassword([]byte(room.Password), []byte(password)) != nil {
			uc.logger.Warn("invalid room password", zap.String("roomID", roomID), zap.String("userID", userID))
			return nil, nil, ErrInvalidPassword
		}
	}

	if _, err := uc.rooms.AddParticipant(ctx, room.ID, userID); err != nil {
		uc.logger.Error("failed to join room", zap.Error(err), zap.String("roomID", roomID), zap.String("userID", userID))
		return nil, nil, fmt.Errorf("failed to join room: %w", err)
	}

	room, err = uc.find(ctx, room.ID)
	if err != nil {
		return nil, nil, err
	}
	return room, uc.presence.Join(ctx, userID, room), nil
}

func (uc *roomUseCase) Leave(ctx context.Context, userID, roomID string) (*broker.Completion, error) {
	room, err := uc.find(ctx, roomID)
	if err != nil {
		return nil, err
	}

	removed, err := uc.rooms.RemoveParticipant(ctx, room.ID, userID)
	if err != nil {
		uc.logger.Error("failed to leave room", zap.Error(err), zap.String("roomID", roomID), zap.String("userID", userID))
		return nil, fmt.Errorf("failed to leave room: %w", err)
	}
	if !removed {
		return nil, ErrNotParticipating
	}

	room, err = uc.find(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	return uc.presence.Leave(ctx, userID, room), nil
}

func (uc *roomUseCase) Participants(ctx context.Context, userID, roomID string) ([]*model.User, error) {
	room, err := uc.Get(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}

	users := make([]*model.User, 0, len(room.Participants))
	for _, id := range room.Participants {
		user, err := uc.users.GetByID(ctx, id)
		if err != nil {
			uc.logger.Warn("participant lookup failed", zap.Error(err), zap.String("userID", id))
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

// find resolves a room by id or slug.
func (uc *roomUseCase) find(ctx context.Context, idOrSlug string) (*model.Room, error) {
	room, err := uc.rooms.GetByID(ctx, idOrSlug)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	rooms, err := uc.rooms.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search rooms: %w", err)
	}
	slug := normalizeSlug(idOrSlug)
	for _, r := range rooms {
		if r.Slug == slug {
			return r, nil
		}
	}
	return nil, ErrRoomNotFound
}

func (uc *roomUseCase) owned(ctx context.Context, userID, roomID string) (*model.Room, error) {
	room, err := uc.find(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Owner != userID {
		uc.logger.Warn("unauthorized room change attempt", zap.String("roomID", roomID), zap.String("userID", userID))
		return nil, ErrNotOwner
	}
	return room, nil
}

func (uc *roomUseCase) slugTaken(ctx context.Context, slug string) (bool, error) {
	rooms, err := uc.rooms.GetAll(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to search rooms: %w", err)
	}
	for _, r := range rooms {
		if r.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}
