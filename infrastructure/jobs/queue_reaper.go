package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hilthontt/letschat/domain/repository"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"github.com/hilthontt/letschat/infrastructure/metrics"
	"github.com/hilthontt/letschat/infrastructure/sqsio"
	"go.uber.org/zap"
)

// QueueRemover deletes a user's queue and reports the outcome.
type QueueRemover interface {
	RemoveQueue(ctx context.Context, userID string) error
}

// QueueReaperJob deletes the queues of users whose client stopped sending
// presence heartbeats, so abandoned queues stop receiving broadcasts.
type QueueReaperJob struct {
	presence   repository.PresenceRepository
	queues     QueueRemover
	metrics    metrics.Manager
	logger     *logger.Logger
	interval   time.Duration
	staleAfter time.Duration
	now        func() time.Time
	stopChan   chan struct{}
	stopOnce   sync.Once
}

func NewQueueReaperJob(
	presence repository.PresenceRepository,
	queues QueueRemover,
	metricsManager metrics.Manager,
	logger *logger.Logger,
	interval time.Duration,
	staleAfter time.Duration,
) *QueueReaperJob {
	return &QueueReaperJob{
		presence:   presence,
		queues:     queues,
		metrics:    metricsManager,
		logger:     logger,
		interval:   interval,
		staleAfter: staleAfter,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
}

func (j *QueueReaperJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("Queue reaper job started",
		zap.Duration("interval", j.interval),
		zap.Duration("staleAfter", j.staleAfter),
	)

	j.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			j.RunOnce(ctx)
		case <-j.stopChan:
			j.logger.Info("Queue reaper job stopped")
			return
		case <-ctx.Done():
			j.logger.Info("Queue reaper job context cancelled")
			return
		}
	}
}

func (j *QueueReaperJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopChan)
	})
}

// RunOnce reaps every stale queue and returns how many were removed.
func (j *QueueReaperJob) RunOnce(ctx context.Context) int {
	startTime := time.Now()

	stale, err := j.presence.StaleSince(ctx, j.now().Add(-j.staleAfter))
	if err != nil {
		j.logger.Error("Queue reaper could not list stale users", zap.Error(err))
		return 0
	}

	reaped := 0
	for _, userID := range stale {
		removeErr := j.queues.RemoveQueue(ctx, userID)
		if removeErr != nil && !errors.Is(removeErr, sqsio.ErrQueueNotFound) {
			// Keep the presence entry so the next run retries.
			j.logger.Error("Queue reaper failed to remove queue", zap.String("userID", userID), zap.Error(removeErr))
			continue
		}
		if removeErr == nil {
			reaped++
		}

		if err := j.presence.Clear(ctx, userID); err != nil {
			j.logger.Warn("Queue reaper failed to clear presence", zap.String("userID", userID), zap.Error(err))
		}
	}

	if reaped > 0 {
		j.metrics.AddCounter(ctx, metrics.QueuesReaped, int64(reaped))
	}
	j.logger.Info("Queue reaper run completed",
		zap.Int("stale", len(stale)),
		zap.Int("reaped", reaped),
		zap.Duration("duration", time.Since(startTime)),
	)
	return reaped
}
