package room

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hilthontt/letschat/application/usecases/announce"
	"github.com/hilthontt/letschat/application/usecases/presence"
	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/domain/repository"
	"github.com/hilthontt/letschat/infrastructure/broker"
	"github.com/hilthontt/letschat/infrastructure/broker/brokertest"
	"github.com/hilthontt/letschat/infrastructure/cache"
	"github.com/hilthontt/letschat/infrastructure/logger"
	persistence "github.com/hilthontt/letschat/infrastructure/persistence/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type fixture struct {
	uc    RoomUseCase
	rooms repository.RoomRepository
	tr    *brokertest.Transport
	alice *model.User
	bob   *model.User
	carol *model.User
}

func newFixture(t *testing.T) fixture {
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	dc := cache.NewDistributedCache(client, "letschat:", 0)
	t.Cleanup(func() {
		dc.Close()
		_ = client.Close()
	})

	tracer := noop.NewTracerProvider().Tracer("test")
	users := persistence.NewUserRepository(dc, tracer)
	rooms := persistence.NewRoomRepository(dc, tracer)
	tr := brokertest.NewTransport("ua", "ub", "uc")
	b := brokertest.NewBroker(tr)
	log := logger.NewNop()

	f := fixture{
		uc:    NewRoomUseCase(rooms, users, announce.NewAnnounceUseCase(b, log), presence.NewPresenceUseCase(users, b, log), log),
		rooms: rooms,
		tr:    tr,
		alice: &model.User{ID: "ua", Username: "alice"},
		bob:   &model.User{ID: "ub", Username: "bob"},
		carol: &model.User{ID: "uc", Username: "carol"},
	}
	for _, u := range []*model.User{f.alice, f.bob, f.carol} {
		require.NoError(t, users.Create(context.Background(), u))
	}
	return f
}

func waitDone(t *testing.T, c *broker.Completion) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("announce did not complete")
	}
}

func TestNormalizeSlug(t *testing.T) {
	assert.Equal(t, "general-chat", normalizeSlug("  General  Chat! "))
	assert.Equal(t, "dev-ops-2", normalizeSlug("dev/ops 2"))
	assert.Equal(t, "", normalizeSlug("!!!"))
}

func TestCreatePublicRoomAnnouncesToEveryone(t *testing.T) {
	f := newFixture(t)

	room, c, err := f.uc.Create(context.Background(), f.alice, CreateInput{Name: "General Chat"})
	require.NoError(t, err)
	waitDone(t, c)

	assert.Equal(t, "general-chat", room.Slug)
	assert.Equal(t, []string{"ua"}, room.Participants)
	assert.Len(t, f.tr.Events(model.EventRoomsNew), 3)
}

func TestCreatePrivateRoomOnlyTellsParticipants(t *testing.T) {
	f := newFixture(t)

	_, c, err := f.uc.Create(context.Background(), f.alice, CreateInput{Name: "Secret", Private: true})
	require.NoError(t, err)
	waitDone(t, c)

	sent := f.tr.Events(model.EventRoomsNew)
	require.Len(t, sent, 1)
	assert.Equal(t, brokertest.URL("ua"), sent[0].QueueURL)
}

func TestCreateRejectsDuplicateSlug(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, c, err := f.uc.Create(ctx, f.alice, CreateInput{Name: "Lobby"})
	require.NoError(t, err)
	waitDone(t, c)

	_, _, err = f.uc.Create(ctx, f.bob, CreateInput{Name: "lobby"})
	assert.ErrorIs(t, err, ErrSlugTaken)
}

func TestJoinPasswordRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, c, err := f.uc.Create(ctx, f.alice, CreateInput{Name: "Vault", Password: "hunter2"})
	require.NoError(t, err)
	waitDone(t, c)
	assert.NotEqual(t, "hunter2", room.Password)

	_, _, err = f.uc.Join(ctx, "ub", room.ID, "wrong")
	assert.ErrorIs(t, err, ErrInvalidPassword)
	assert.Empty(t, f.tr.Events(model.EventUsersJoin))

	joined, c, err := f.uc.Join(ctx, "ub", "vault", "hunter2")
	require.NoError(t, err)
	waitDone(t, c)
	assert.ElementsMatch(t, []string{"ua", "ub"}, joined.Participants)

	// Confidential: only the participants hear about it.
	urls := []string{}
	for _, s := range f.tr.Events(model.EventUsersJoin) {
		urls = append(urls, s.QueueURL)
	}
	assert.ElementsMatch(t, []string{brokertest.URL("ua"), brokertest.URL("ub")}, urls)
}

func TestJoinPublicRoomBroadcastsWithRoomTag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, c, err := f.uc.Create(ctx, f.alice, CreateInput{Name: "Lobby"})
	require.NoError(t, err)
	waitDone(t, c)

	_, c, err = f.uc.Join(ctx, "ub", room.ID, "")
	require.NoError(t, err)
	waitDone(t, c)

	sent := f.tr.Events(model.EventUsersJoin)
	require.Len(t, sent, 3)
	for _, s := range sent {
		assert.Equal(t, room.ID, s.Envelope.Room)
	}
}

func TestInvitationOnlyRoomIsHidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, c, err := f.uc.Create(ctx, f.alice, CreateInput{Name: "Secret", Private: true})
	require.NoError(t, err)
	waitDone(t, c)

	_, _, err = f.uc.Join(ctx, "ub", room.ID, "")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = f.uc.Get(ctx, "ub", room.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	views, err := f.uc.List(ctx, "ub")
	require.NoError(t, err)
	assert.Empty(t, views)

	views, err = f.uc.List(ctx, "ua")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].IsOwner)
}

func TestLeaveRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, c, err := f.uc.Create(ctx, f.alice, CreateInput{Name: "Lobby"})
	require.NoError(t, err)
	waitDone(t, c)

	_, c, err = f.uc.Join(ctx, "ub", room.ID, "")
	require.NoError(t, err)
	waitDone(t, c)

	c, err = f.uc.Leave(ctx, "ub", room.ID)
	require.NoError(t, err)
	waitDone(t, c)
	assert.Len(t, f.tr.Events(model.EventUsersLeave), 3)

	_, err = f.uc.Leave(ctx, "ub", room.ID)
	assert.ErrorIs(t, err, ErrNotParticipating)
}

func TestOnlyOwnerUpdatesAndArchives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, c, err := f.uc.Create(ctx, f.alice, CreateInput{Name: "Lobby"})
	require.NoError(t, err)
	waitDone(t, c)

	name := "Main Lobby"
	_, _, err = f.uc.Update(ctx, "ub", room.ID, UpdateInput{Name: &name})
	assert.ErrorIs(t, err, ErrNotOwner)

	updated, c, err := f.uc.Update(ctx, "ua", room.ID, UpdateInput{Name: &name})
	require.NoError(t, err)
	waitDone(t, c)
	assert.Equal(t, "Main Lobby", updated.Name)
	assert.Len(t, f.tr.Events(model.EventRoomsUpdate), 3)

	archived, c, err := f.uc.Archive(ctx, "ua", room.ID)
	require.NoError(t, err)
	waitDone(t, c)
	assert.True(t, archived.Archived)
	assert.Len(t, f.tr.Events(model.EventRoomsArchive), 3)

	_, _, err = f.uc.Join(ctx, "ub", room.ID, "")
	assert.ErrorIs(t, err, ErrRoomArchived)
}

func TestParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, c, err := f.uc.Create(ctx, f.alice, CreateInput{Name: "Lobby"})
	require.NoError(t, err)
	waitDone(t, c)
	_, c, err = f.uc.Join(ctx, "uc", room.ID, "")
	require.NoError(t, err)
	waitDone(t, c)

	users, err := f.uc.Participants(ctx, "ub", room.ID)
	require.NoError(t, err)
	names := []string{}
	for _, u := range users {
		names = append(names, u.Username)
	}
	assert.ElementsMatch(t, []string{"alice", "carol"}, names)
}
