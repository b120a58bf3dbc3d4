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

type fileRepository struct {
	cache  *cache.DistributedCache
	tracer trace.Tracer
}

func NewFileRepository(cache *cache.DistributedCache, tracer trace.Tracer) repository.FileRepository {
	return &fileRepository{
		cache:  cache,
		tracer: tracer,
	}
}

func roomFilesKey(roomID string) string {
	return fmt.Sprintf("room:%s:files", roomID)
}

func (r *fileRepository) Create(ctx context.Context, file *model.File) error {
	ctx, span := r.tracer.Start(ctx, "fileRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("file.id", file.ID),
		attribute.String("room.id", file.Room),
	)

	if err := r.cache.Append(ctx, roomFilesKey(file.Room), file); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store file")
		return err
	}
	return nil
}

func (r *fileRepository) GetByRoom(ctx context.Context, roomID string) ([]*model.File, error) {
	ctx, span := r.tracer.Start(ctx, "fileRepository.GetByRoom")
	defer span.End()

	files := []*model.File{}
	err := r.cache.Tail(ctx, roomFilesKey(roomID), 0, func(data []byte) error {
		var f model.File
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		files = append(files, &f)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return files, nil
}
