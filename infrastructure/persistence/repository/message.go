package repository

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/domain/repository"
	"github.com/hilthontt/letschat/infrastructure/cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type messageRepository struct {
	cache  *cache.DistributedCache
	tracer trace.Tracer
}

func NewMessageRepository(cache *cache.DistributedCache, tracer trace.Tracer) repository.MessageRepository {
	return &messageRepository{
		cache:  cache,
		tracer: tracer,
	}
}

func roomMessagesKey(roomID string) string {
	return fmt.Sprintf("room:%s:messages", roomID)
}

func (r *messageRepository) Create(ctx context.Context, message *model.Message) error {
	ctx, span := r.tracer.Start(ctx, "messageRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("message.id", message.ID),
		attribute.String("room.id", message.Room),
	)

	if err := r.cache.Append(ctx, roomMessagesKey(message.Room), message); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store message")
		return err
	}
	return nil
}

func (r *messageRepository) GetByRoom(ctx context.Context, roomID string, limit int64) ([]*model.Message, error) {
	ctx, span := r.tracer.Start(ctx, "messageRepository.GetByRoom")
	defer span.End()

	span.SetAttributes(attribute.String("room.id", roomID), attribute.Int64("limit", limit))

	messages := []*model.Message{}
	err := r.cache.Tail(ctx, roomMessagesKey(roomID), limit, func(data []byte) error {
		var m model.Message
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		messages = append(messages, &m)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read messages")
		return nil, err
	}
	return messages, nil
}
