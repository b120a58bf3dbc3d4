package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/domain/repository"
	"github.com/hilthontt/letschat/infrastructure/cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const usersIndexKey = "users"

type userRepository struct {
	cache  *cache.DistributedCache
	tracer trace.Tracer
}

func NewUserRepository(cache *cache.DistributedCache, tracer trace.Tracer) repository.UserRepository {
	return &userRepository{
		cache:  cache,
		tracer: tracer,
	}
}

func userKey(id string) string {
	return fmt.Sprintf("user:%s", id)
}

func usernameKey(username string) string {
	return fmt.Sprintf("user:username:%s", strings.ToLower(username))
}

// withoutPresence drops LastPresent, which lives in the presence set.
func withoutPresence(user *model.User) model.User {
	u := *user
	u.LastPresent = nil
	return u
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	ctx, span := r.tracer.Start(ctx, "userRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", user.ID),
		attribute.String("user.username", user.Username),
	)

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	if err := r.cache.Set(ctx, userKey(user.ID), withoutPresence(user), 0); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create user")
		return err
	}
	if err := r.cache.SAdd(ctx, usersIndexKey, user.ID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to index user")
		return err
	}

	span.SetStatus(codes.Ok, "user created successfully")
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	ctx, span := r.tracer.Start(ctx, "userRepository.Update")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", user.ID))

	if err := r.cache.Set(ctx, userKey(user.ID), withoutPresence(user), 0); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update user")
		return err
	}

	span.SetStatus(codes.Ok, "user updated successfully")
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	ctx, span := r.tracer.Start(ctx, "userRepository.GetByID")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", id))

	var user model.User
	found, err := r.cache.Get(ctx, userKey(id), &user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get user from cache")
		return nil, err
	}

	if !found {
		span.SetAttributes(attribute.Bool("user.found", false))
		return nil, repository.ErrNotFound
	}

	span.SetAttributes(attribute.Bool("user.found", true))

	at, present, err := r.cache.TouchedAt(ctx, presenceKey, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get user presence")
		return nil, err
	}
	user.LastPresent = nil
	if present {
		user.LastPresent = &at
	}
	return &user, nil
}

// GetAll returns every user ordered by username.
func (r *userRepository) GetAll(ctx context.Context) ([]*model.User, error) {
	ctx, span := r.tracer.Start(ctx, "userRepository.GetAll")
	defer span.End()

	ids, err := r.cache.SMembers(ctx, usersIndexKey)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	users := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		user, err := r.GetByID(ctx, id)
		if err == repository.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		return strings.ToLower(users[i].Username) < strings.ToLower(users[j].Username)
	})
	span.SetAttributes(attribute.Int("users.count", len(users)))
	return users, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	ctx, span := r.tracer.Start(ctx, "userRepository.GetByUsername")
	defer span.End()

	span.SetAttributes(attribute.String("user.username", username))

	var userID string
	found, err := r.cache.Get(ctx, usernameKey(username), &userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get username index from cache")
		return nil, err
	}

	if !found {
		span.SetAttributes(attribute.Bool("username.index.found", false))
		return nil, repository.ErrNotFound
	}

	// GetByID will create its own span
	return r.GetByID(ctx, userID)
}

func (r *userRepository) SetUsernameIndex(ctx context.Context, username, userID string) error {
	ctx, span := r.tracer.Start(ctx, "userRepository.SetUsernameIndex")
	defer span.End()

	if err := r.cache.Set(ctx, usernameKey(username), userID, 0); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to set username index")
		return err
	}
	return nil
}

func (r *userRepository) DeleteUsernameIndex(ctx context.Context, username string) error {
	ctx, span := r.tracer.Start(ctx, "userRepository.DeleteUsernameIndex")
	defer span.End()

	if err := r.cache.Delete(ctx, usernameKey(username)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete username index")
		return err
	}
	return nil
}
