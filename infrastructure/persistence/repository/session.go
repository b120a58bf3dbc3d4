package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hilthontt/letschat/domain/repository"
	"github.com/hilthontt/letschat/infrastructure/cache"
	"go.opentelemetry.io/otel/trace"
)

type sessionRepository struct {
	cache  *cache.DistributedCache
	tracer trace.Tracer
}

func NewSessionRepository(cache *cache.DistributedCache, tracer trace.Tracer) repository.SessionRepository {
	return &sessionRepository{
		cache:  cache,
		tracer: tracer,
	}
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

func (r *sessionRepository) Create(ctx context.Context, token, userID string, ttl time.Duration) error {
	ctx, span := r.tracer.Start(ctx, "sessionRepository.Create")
	defer span.End()
	return r.cache.Set(ctx, sessionKey(token), userID, ttl)
}

func (r *sessionRepository) Get(ctx context.Context, token string) (string, error) {
	ctx, span := r.tracer.Start(ctx, "sessionRepository.Get")
	defer span.End()

	var userID string
	found, err := r.cache.Get(ctx, sessionKey(token), &userID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", repository.ErrNotFound
	}
	return userID, nil
}

func (r *sessionRepository) Delete(ctx context.Context, token string) error {
	ctx, span := r.tracer.Start(ctx, "sessionRepository.Delete")
	defer span.End()
	return r.cache.Delete(ctx, sessionKey(token))
}
