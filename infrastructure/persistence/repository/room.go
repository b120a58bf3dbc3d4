package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/domain/repository"
	"github.com/hilthontt/letschat/infrastructure/cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const roomsIndexKey = "rooms"

type roomRepository struct {
	cache  *cache.DistributedCache
	tracer trace.Tracer
}

func NewRoomRepository(cache *cache.DistributedCache, tracer trace.Tracer) repository.RoomRepository {
	return &roomRepository{
		cache:  cache,
		tracer: tracer,
	}
}

// storedRoom persists the password, which the JSON shape of model.Room
// never exposes. Participants live in their own set so joins and leaves
// never rewrite the room record.
type storedRoom struct {
	model.Room
	Password string `json:"password,omitempty"`
}

func toStored(room *model.Room) storedRoom {
	stored := storedRoom{Room: *room, Password: room.Password}
	stored.Participants = nil
	return stored
}

func roomKey(id string) string {
	return fmt.Sprintf("room:%s", id)
}

func participantsKey(roomID string) string {
	return fmt.Sprintf("room:%s:participants", roomID)
}

func userRoomsKey(userID string) string {
	return fmt.Sprintf("user:%s:rooms", userID)
}

func (r *roomRepository) Create(ctx context.Context, room *model.Room) error {
	ctx, span := r.tracer.Start(ctx, "roomRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("room.id", room.ID),
		attribute.String("room.slug", room.Slug),
	)

	if err := r.cache.Set(ctx, roomKey(room.ID), toStored(room), 0); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create room")
		return err
	}
	if err := r.cache.SAdd(ctx, roomsIndexKey, room.ID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to index room")
		return err
	}
	for _, userID := range room.Participants {
		if _, err := r.cache.AddMember(ctx, participantsKey(room.ID), userID); err != nil {
			span.RecordError(err)
			return err
		}
		if err := r.cache.SAdd(ctx, userRoomsKey(userID), room.ID); err != nil {
			span.RecordError(err)
			return err
		}
	}

	span.SetStatus(codes.Ok, "room created successfully")
	return nil
}

// Update rewrites the room record. Participants are ignored: only
// AddParticipant and RemoveParticipant change them.
func (r *roomRepository) Update(ctx context.Context, room *model.Room) error {
	ctx, span := r.tracer.Start(ctx, "roomRepository.Update")
	defer span.End()

	span.SetAttributes(attribute.String("room.id", room.ID))

	if err := r.cache.Set(ctx, roomKey(room.ID), toStored(room), 0); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update room")
		return err
	}
	return nil
}

func (r *roomRepository) GetByID(ctx context.Context, id string) (*model.Room, error) {
	ctx, span := r.tracer.Start(ctx, "roomRepository.GetByID")
	defer span.End()

	span.SetAttributes(attribute.String("room.id", id))

	var stored storedRoom
	found, err := r.cache.Get(ctx, roomKey(id), &stored)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get room from cache")
		return nil, err
	}
	if !found {
		span.SetAttributes(attribute.Bool("room.found", false))
		return nil, repository.ErrNotFound
	}

	participants, err := r.cache.SMembers(ctx, participantsKey(id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get room participants")
		return nil, err
	}
	sort.Strings(participants)
	if len(participants) == 0 {
		participants = nil
	}

	room := stored.Room
	room.Password = stored.Password
	room.Participants = participants
	return &room, nil
}

func (r *roomRepository) exists(ctx context.Context, id string) error {
	var stored storedRoom
	found, err := r.cache.Get(ctx, roomKey(id), &stored)
	if err != nil {
		return err
	}
	if !found {
		return repository.ErrNotFound
	}
	return nil
}

func (r *roomRepository) GetAll(ctx context.Context) ([]*model.Room, error) {
	ctx, span := r.tracer.Start(ctx, "roomRepository.GetAll")
	defer span.End()

	ids, err := r.cache.SMembers(ctx, roomsIndexKey)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return r.load(ctx, ids)
}

func (r *roomRepository) RoomsForUser(ctx context.Context, userID string) ([]*model.Room, error) {
	ctx, span := r.tracer.Start(ctx, "roomRepository.RoomsForUser")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID))

	ids, err := r.cache.SMembers(ctx, userRoomsKey(userID))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return r.load(ctx, ids)
}

// load resolves room ids, skipping ids whose room has been removed.
func (r *roomRepository) load(ctx context.Context, ids []string) ([]*model.Room, error) {
	sort.Strings(ids)
	rooms := make([]*model.Room, 0, len(ids))
	for _, id := range ids {
		room, err := r.GetByID(ctx, id)
		if err == repository.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// AddParticipant reports whether userID was newly added. Concurrent joins
// of different users all land.
func (r *roomRepository) AddParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "roomRepository.AddParticipant")
	defer span.End()

	span.SetAttributes(attribute.String("room.id", roomID), attribute.String("user.id", userID))

	if err := r.exists(ctx, roomID); err != nil {
		return false, err
	}

	added, err := r.cache.AddMember(ctx, participantsKey(roomID), userID)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if err := r.cache.SAdd(ctx, userRoomsKey(userID), roomID); err != nil {
		span.RecordError(err)
		return false, err
	}
	span.SetAttributes(attribute.Bool("participant.added", added))
	return added, nil
}

func (r *roomRepository) RemoveParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "roomRepository.RemoveParticipant")
	defer span.End()

	span.SetAttributes(attribute.String("room.id", roomID), attribute.String("user.id", userID))

	if err := r.exists(ctx, roomID); err != nil {
		return false, err
	}

	removed, err := r.cache.RemoveMember(ctx, participantsKey(roomID), userID)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if err := r.cache.SRem(ctx, userRoomsKey(userID), roomID); err != nil {
		span.RecordError(err)
		return false, err
	}
	span.SetAttributes(attribute.Bool("participant.removed", removed))
	return removed, nil
}
