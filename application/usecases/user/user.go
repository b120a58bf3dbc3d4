package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hilthontt/letschat/application/usecases/announce"
	"github.com/hilthontt/letschat/application/usecases/presence"
	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/domain/repository"
	"github.com/hilthontt/letschat/infrastructure/broker"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"go.uber.org/zap"
)

var (
	ErrUsernameTaken   = errors.New("username is already taken")
	ErrInvalidUsername = errors.New("invalid username")
)

// ProfileUpdate holds the fields a user may change. Empty fields are left
// as they are.
type ProfileUpdate struct {
	Username    string
	DisplayName string
}

type UserUseCase interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByIdentifier resolves a user id, falling back to a username.
	GetByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	// List returns every user. With activeOnly set, only users whose last
	// heartbeat falls within the active window are kept.
	List(ctx context.Context, activeOnly bool) ([]*model.User, error)
	// UpdateProfile saves the changes and announces them. A username change
	// is announced as a leave and join in every room the user occupies.
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*model.User, *broker.Completion, error)
}

type userUseCase struct {
	users    repository.UserRepository
	rooms    repository.RoomRepository
	announce announce.AnnounceUseCase
	presence presence.PresenceUseCase
	logger   *logger.Logger

	activeWindow time.Duration
	now          func() time.Time
}

func NewUserUseCase(
	users repository.UserRepository,
	rooms repository.RoomRepository,
	announce announce.AnnounceUseCase,
	presence presence.PresenceUseCase,
	logger *logger.Logger,
	activeWindow time.Duration,
) UserUseCase {
	return &userUseCase{
		users:        users,
		rooms:        rooms,
		announce:     announce,
		presence:     presence,
		logger:       logger,
		activeWindow: activeWindow,
		now:          time.Now,
	}
}

func (uc *userUseCase) GetByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}
	return uc.users.GetByID(ctx, id)
}

func (uc *userUseCase) GetByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, repository.ErrNotFound
	}

	user, err := uc.users.GetByID(ctx, identifier)
	if err == nil || !errors.Is(err, repository.ErrNotFound) {
		return user, err
	}
	return uc.users.GetByUsername(ctx, identifier)
}

func (uc *userUseCase) List(ctx context.Context, activeOnly bool) ([]*model.User, error) {
	users, err := uc.users.GetAll(ctx)
	if err != nil {
		uc.logger.Error("failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if !activeOnly {
		return users, nil
	}

	cutoff := uc.now().Add(-uc.activeWindow)
	active := make([]*model.User, 0, len(users))
	for _, u := range users {
		if u.LastPresent != nil && u.LastPresent.After(cutoff) {
			active = append(active, u)
		}
	}
	return active, nil
}

func (uc *userUseCase) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*model.User, *broker.Completion, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		uc.logger.Error("failed to get user for profile update", zap.Error(err), zap.String("userID", userID))
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	oldUsername := user.Username
	newUsername := strings.TrimSpace(update.Username)
	renamed := newUsername != "" && newUsername != oldUsername

	if renamed {
		if err := ValidateUsername(newUsername); err != nil {
			return nil, nil, err
		}
		existing, err := uc.users.GetByUsername(ctx, newUsername)
		if err == nil && existing.ID != userID {
			return nil, nil, ErrUsernameTaken
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("failed to check username: %w", err)
		}
		user.Username = newUsername
	}
	if update.DisplayName != "" {
		user.DisplayName = strings.TrimSpace(update.DisplayName)
	}

	if err := uc.users.Update(ctx, user); err != nil {
		uc.logger.Error("failed to update user", zap.Error(err), zap.String("userID", userID))
		return nil, nil, fmt.Errorf("failed to update user: %w", err)
	}

	updated := uc.announce.UserUpdated(ctx, user)
	if !renamed {
		return user, updated, nil
	}

	if err := uc.users.SetUsernameIndex(ctx, newUsername, userID); err != nil {
		uc.logger.Error("failed to index new username", zap.Error(err), zap.String("userID", userID))
	}
	if !strings.EqualFold(oldUsername, newUsername) {
		if err := uc.users.DeleteUsernameIndex(ctx, oldUsername); err != nil {
			uc.logger.Warn("failed to remove old username index", zap.Error(err), zap.String("username", oldUsername))
		}
	}

	rooms, err := uc.rooms.RoomsForUser(ctx, userID)
	if err != nil {
		// The profile is saved; only the presence pairs are skipped.
		uc.logger.Error("failed to list rooms for rename", zap.Error(err), zap.String("userID", userID))
		return user, updated, nil
	}

	renames := uc.presence.UsernameChanged(ctx, model.UsernameChange{
		UserID:      userID,
		OldUsername: oldUsername,
		NewUsername: newUsername,
	}, rooms)

	uc.logger.Info("username changed", zap.String("userID", userID), zap.String("from", oldUsername), zap.String("to", newUsername))
	return user, broker.All(updated, renames), nil
}

func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)

	if username == "" {
		return fmt.Errorf("%w: username cannot be empty", ErrInvalidUsername)
	}

	if len(username) < 3 {
		return fmt.Errorf("%w: must be at least 3 characters long", ErrInvalidUsername)
	}

	if len(username) > 20 {
		return fmt.Errorf("%w: must be at most 20 characters long", ErrInvalidUsername)
	}

	for _, char := range username {
		if !isValidUsernameChar(char) {
			return fmt.Errorf("%w: only letters, numbers, underscores and hyphens are allowed", ErrInvalidUsername)
		}
	}

	if !isAlphanumeric(rune(username[0])) {
		return fmt.Errorf("%w: must start with a letter or number", ErrInvalidUsername)
	}

	return nil
}

func isValidUsernameChar(char rune) bool {
	return isAlphanumeric(char) || char == '_' || char == '-'
}

func isAlphanumeric(char rune) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9')
}
