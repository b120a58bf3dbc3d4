package announce

import (
	"context"
	"testing"
	"time"

	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/infrastructure/broker"
	"github.com/hilthontt/letschat/infrastructure/broker/brokertest"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(queues ...string) (AnnounceUseCase, *brokertest.Transport) {
	tr := brokertest.NewTransport(queues...)
	return NewAnnounceUseCase(brokertest.NewBroker(tr), logger.NewNop()), tr
}

func waitDone(t *testing.T, c *broker.Completion) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("announce did not complete")
	}
}

func TestPublicRoomCreatedGoesToEveryone(t *testing.T) {
	uc, tr := setup("ua", "ub", "uc")
	room := &model.Room{ID: "r1", Name: "Lobby", Owner: "ua", Password: ""}

	waitDone(t, uc.RoomCreated(context.Background(), room))

	sent := tr.Events(model.EventRoomsNew)
	require.Len(t, sent, 3)
	for _, s := range sent {
		assert.Empty(t, s.Envelope.Room)
		view := s.Envelope.Payload.(model.RoomView)
		assert.False(t, view.IsOwner)
	}
}

func TestPasswordRoomUpdatedGoesToEveryone(t *testing.T) {
	uc, tr := setup("ua", "ub")
	room := &model.Room{ID: "r1", Password: "pw", Private: true, Participants: []string{"ua"}}

	waitDone(t, uc.RoomUpdated(context.Background(), room))
	assert.Len(t, tr.Events(model.EventRoomsUpdate), 2)
}

func TestPrivateRoomArchivedGoesToParticipantsWithOwnView(t *testing.T) {
	uc, tr := setup("ua", "ub", "uc")
	room := &model.Room{ID: "r1", Owner: "ua", Private: true, Participants: []string{"ua", "ub"}}

	waitDone(t, uc.RoomArchived(context.Background(), room))

	sent := tr.Events(model.EventRoomsArchive)
	require.Len(t, sent, 2)
	for _, s := range sent {
		view := s.Envelope.Payload.(model.RoomView)
		assert.Equal(t, s.QueueURL == brokertest.URL("ua"), view.IsOwner)
		assert.Equal(t, []string{"ua", "ub"}, view.Participants)
	}
}

func TestMessageInPublicRoomIsRoomTagged(t *testing.T) {
	uc, tr := setup("ua", "ub")
	room := &model.Room{ID: "r1"}
	msg := &model.Message{ID: "m1", Room: "r1", Text: "hello"}

	waitDone(t, uc.MessagePosted(context.Background(), room, msg))

	sent := tr.Events(model.EventMessagesNew)
	require.Len(t, sent, 2)
	for _, s := range sent {
		assert.Equal(t, "r1", s.Envelope.Room)
		assert.Same(t, msg, s.Envelope.Payload)
	}
}

func TestMessageInConfidentialRoomOnlyReachesParticipants(t *testing.T) {
	uc, tr := setup("ua", "ub", "uc")
	room := &model.Room{ID: "r1", Password: "pw", Participants: []string{"ub"}}

	waitDone(t, uc.MessagePosted(context.Background(), room, &model.Message{ID: "m1"}))

	sent := tr.Events(model.EventMessagesNew)
	require.Len(t, sent, 1)
	assert.Equal(t, brokertest.URL("ub"), sent[0].QueueURL)
}

func TestFileUploadedAnnouncesFileAndPost(t *testing.T) {
	uc, tr := setup("ua", "ub")
	room := &model.Room{ID: "r1"}

	waitDone(t, uc.FileUploaded(context.Background(), room, &model.File{ID: "f1"}, &model.Message{ID: "m1"}))

	assert.Len(t, tr.Events(model.EventFilesNew), 2)
	assert.Len(t, tr.Events(model.EventMessagesNew), 2)
}

func TestUserUpdatedIsGlobal(t *testing.T) {
	uc, tr := setup("ua", "ub")

	waitDone(t, uc.UserUpdated(context.Background(), &model.User{ID: "ua", Username: "alice"}))

	sent := tr.Events(model.EventUsersUpdate)
	require.Len(t, sent, 2)
	assert.Empty(t, sent[0].Envelope.Room)
}
