package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hilthontt/letschat/domain/repository"
	"github.com/hilthontt/letschat/infrastructure/cache"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"github.com/hilthontt/letschat/infrastructure/metrics"
	persistence "github.com/hilthontt/letschat/infrastructure/persistence/repository"
	"github.com/hilthontt/letschat/infrastructure/sqsio"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type fakeRemover struct {
	mu      sync.Mutex
	removed []string
	errs    map[string]error
}

func (f *fakeRemover) RemoveQueue(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[userID]; err != nil {
		return err
	}
	f.removed = append(f.removed, userID)
	return nil
}

func newPresence(t *testing.T) repository.PresenceRepository {
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	dc := cache.NewDistributedCache(client, "letschat:", 0)
	t.Cleanup(func() {
		dc.Close()
		_ = client.Close()
	})
	return persistence.NewPresenceRepository(dc, noop.NewTracerProvider().Tracer("test"))
}

func TestQueueReaperRemovesStaleQueues(t *testing.T) {
	ctx := context.Background()
	presence := newPresence(t)
	now := time.Unix(1_700_000_000, 0)

	require.NoError(t, presence.Touch(ctx, "stale", now.Add(-time.Hour)))
	require.NoError(t, presence.Touch(ctx, "gone", now.Add(-time.Hour)))
	require.NoError(t, presence.Touch(ctx, "broken", now.Add(-time.Hour)))
	require.NoError(t, presence.Touch(ctx, "fresh", now.Add(-time.Minute)))

	remover := &fakeRemover{errs: map[string]error{
		"gone":   sqsio.ErrQueueNotFound,
		"broken": errors.New("throttled"),
	}}
	job := NewQueueReaperJob(presence, remover, metrics.NewNopManager(), logger.NewNop(), time.Minute, 10*time.Minute)
	job.now = func() time.Time { return now }

	assert.Equal(t, 1, job.RunOnce(ctx))
	assert.Equal(t, []string{"stale"}, remover.removed)

	// Missing queues are forgotten; failed removals are retried next run.
	left, err := presence.StaleSince(ctx, now.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"broken"}, left)
}

func TestQueueReaperStops(t *testing.T) {
	job := NewQueueReaperJob(newPresence(t), &fakeRemover{}, metrics.NewNopManager(), logger.NewNop(), time.Hour, time.Minute)

	done := make(chan struct{})
	go func() {
		job.Start(context.Background())
		close(done)
	}()

	job.Stop()
	job.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not stop")
	}
}
