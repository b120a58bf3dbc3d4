package repository

import (
	"context"
	"time"

	"github.com/hilthontt/letschat/domain/repository"
	"github.com/hilthontt/letschat/infrastructure/cache"
	"go.opentelemetry.io/otel/trace"
)

const presenceKey = "presence"

type presenceRepository struct {
	cache  *cache.DistributedCache
	tracer trace.Tracer
}

func NewPresenceRepository(cache *cache.DistributedCache, tracer trace.Tracer) repository.PresenceRepository {
	return &presenceRepository{
		cache:  cache,
		tracer: tracer,
	}
}

func (r *presenceRepository) Touch(ctx context.Context, userID string, at time.Time) error {
	ctx, span := r.tracer.Start(ctx, "presenceRepository.Touch")
	defer span.End()
	return r.cache.Touch(ctx, presenceKey, userID, at)
}

func (r *presenceRepository) Clear(ctx context.Context, userID string) error {
	ctx, span := r.tracer.Start(ctx, "presenceRepository.Clear")
	defer span.End()
	return r.cache.Untouch(ctx, presenceKey, userID)
}

func (r *presenceRepository) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	ctx, span := r.tracer.Start(ctx, "presenceRepository.LastSeen")
	defer span.End()
	return r.cache.TouchedAt(ctx, presenceKey, userID)
}

// StaleSince lists users whose last heartbeat is older than cutoff.
func (r *presenceRepository) StaleSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "presenceRepository.StaleSince")
	defer span.End()
	return r.cache.TouchedBefore(ctx, presenceKey, cutoff)
}
