package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	userusecase "github.com/hilthontt/letschat/application/usecases/user"
	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/domain/repository"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"github.com/hilthontt/letschat/infrastructure/sqsio"
	"go.uber.org/zap"
)

var (
	// ErrLoginCooldown is returned when the user's queue was deleted less
	// than a minute ago.
	ErrLoginCooldown = errors.New("login within queue deletion cooldown")
	ErrLoginFailed   = errors.New("login failed")
	ErrInvalidToken  = errors.New("invalid session")
)

const sessionLifetime = 30 * 24 * time.Hour

// Queues is the queue lifecycle the session needs from the transport.
type Queues interface {
	CreateQueue(ctx context.Context, userID string) error
	DeleteQueue(userID string)
	GetURL(ctx context.Context, userID string) (string, error)
	GetTemporaryCredentials(ctx context.Context, userID string) (model.TemporaryCredential, error)
}

// SessionUseCase binds a user's queue to their session: a queue exists
// while the user is logged in.
type SessionUseCase interface {
	Login(ctx context.Context, username string) (*model.User, string, error)
	Logout(ctx context.Context, token, userID string)
	Authenticate(ctx context.Context, token string) (*model.User, error)
	Heartbeat(ctx context.Context, userID string) error
	ClearHeartbeat(ctx context.Context, userID string) error
	QueueURL(ctx context.Context, userID string) (string, error)
	// Credentials are scoped to userID's own queue.
	Credentials(ctx context.Context, userID string) (model.TemporaryCredential, error)
}

type sessionUseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	presence repository.PresenceRepository
	queues   Queues
	logger   *logger.Logger
	now      func() time.Time
}

func NewSessionUseCase(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	presence repository.PresenceRepository,
	queues Queues,
	logger *logger.Logger,
) SessionUseCase {
	return &sessionUseCase{
		users:    users,
		sessions: sessions,
		presence: presence,
		queues:   queues,
		logger:   logger,
		now:      time.Now,
	}
}

// Login finds or registers username and creates the user's queue before
// the session is issued.
func (uc *sessionUseCase) Login(ctx context.Context, username string) (*model.User, string, error) {
	username = strings.TrimSpace(username)
	if err := userusecase.ValidateUsername(username); err != nil {
		return nil, "", err
	}

	user, err := uc.getOrCreate(ctx, username)
	if err != nil {
		return nil, "", err
	}

	if err := uc.queues.CreateQueue(ctx, user.ID); err != nil {
		if errors.Is(err, sqsio.ErrQueueDeletedRecently) {
			return nil, "", ErrLoginCooldown
		}
		return nil, "", ErrLoginFailed
	}

	token := uuid.NewString()
	if err := uc.sessions.Create(ctx, token, user.ID, sessionLifetime); err != nil {
		uc.logger.Error("failed to create session", zap.Error(err), zap.String("userID", user.ID))
		return nil, "", ErrLoginFailed
	}

	if err := uc.presence.Touch(ctx, user.ID, uc.now()); err != nil {
		uc.logger.Warn("failed to record presence at login", zap.Error(err), zap.String("userID", user.ID))
	}

	uc.logger.Info("user logged in", zap.String("userID", user.ID), zap.String("username", user.Username))
	return user, token, nil
}

func (uc *sessionUseCase) getOrCreate(ctx context.Context, username string) (*model.User, error) {
	user, err := uc.users.GetByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		uc.logger.Error("failed to look up user", zap.Error(err), zap.String("username", username))
		return nil, ErrLoginFailed
	}

	user = &model.User{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: uc.now(),
	}
	if err := uc.users.Create(ctx, user); err != nil {
		uc.logger.Error("failed to create user", zap.Error(err), zap.String("username", username))
		return nil, ErrLoginFailed
	}
	if err := uc.users.SetUsernameIndex(ctx, username, user.ID); err != nil {
		uc.logger.Error("failed to index username", zap.Error(err), zap.String("username", username))
		return nil, ErrLoginFailed
	}

	uc.logger.Info("registered user", zap.String("userID", user.ID), zap.String("username", username))
	return user, nil
}

// Logout never waits for the queue deletion.
func (uc *sessionUseCase) Logout(ctx context.Context, token, userID string) {
	uc.queues.DeleteQueue(userID)

	if err := uc.sessions.Delete(ctx, token); err != nil {
		uc.logger.Warn("failed to delete session", zap.Error(err), zap.String("userID", userID))
	}
	if err := uc.presence.Clear(ctx, userID); err != nil {
		uc.logger.Warn("failed to clear presence", zap.Error(err), zap.String("userID", userID))
	}

	uc.logger.Info("user logged out", zap.String("userID", userID))
}

func (uc *sessionUseCase) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	userID, err := uc.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Heartbeat records that the user's client is still polling. A user with
// no presence entry may have had their queue reaped, so the queue is
// created again before presence is recorded. Only presence is written; the
// user record is left alone.
func (uc *sessionUseCase) Heartbeat(ctx context.Context, userID string) error {
	_, present, err := uc.presence.LastSeen(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to read presence: %w", err)
	}

	if !present {
		if err := uc.queues.CreateQueue(ctx, userID); err != nil {
			if errors.Is(err, sqsio.ErrQueueDeletedRecently) {
				return ErrLoginCooldown
			}
			return fmt.Errorf("failed to restore queue: %w", err)
		}
		uc.logger.Info("restored queue on heartbeat", zap.String("userID", userID))
	}

	if err := uc.presence.Touch(ctx, userID, uc.now()); err != nil {
		return fmt.Errorf("failed to record presence: %w", err)
	}
	return nil
}

func (uc *sessionUseCase) ClearHeartbeat(ctx context.Context, userID string) error {
	if err := uc.presence.Clear(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear presence: %w", err)
	}
	return nil
}

func (uc *sessionUseCase) QueueURL(ctx context.Context, userID string) (string, error) {
	return uc.queues.GetURL(ctx, userID)
}

func (uc *sessionUseCase) Credentials(ctx context.Context, userID string) (model.TemporaryCredential, error) {
	return uc.queues.GetTemporaryCredentials(ctx, userID)
}
