package broker

import (
	"context"
	"testing"
	"time"

	"github.com/hilthontt/letschat/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudiencePublicRoomBroadcasts(t *testing.T) {
	tr := &fakeTransport{queues: []string{"q1", "q2", "q3"}}
	b := newTestBroker(tr, time.Second)

	room := &model.Room{ID: "r1", Participants: []string{"u1"}}
	c := b.Audience(room).Emit(context.Background(), model.EventMessagesNew, "hi")
	require.True(t, b.Wait(context.Background(), c))

	assert.Len(t, tr.sent, 3)
	for _, s := range tr.sent {
		assert.Equal(t, "r1", s.env.Room)
	}
}

func TestAudienceConfidentialRoomUnicastsParticipants(t *testing.T) {
	tr := &fakeTransport{
		urls:   map[string]string{"u1": "q1", "u2": "q2", "u3": "q3"},
		queues: []string{"q1", "q2", "q3", "q4"},
	}
	b := newTestBroker(tr, time.Second)

	room := &model.Room{ID: "r1", Password: "secret", Participants: []string{"u1", "u2"}}
	c := b.Audience(room, "u2", "u3").Emit(context.Background(), model.EventUsersJoin, "x")
	require.True(t, b.Wait(context.Background(), c))

	urls := []string{}
	for _, s := range tr.sent {
		urls = append(urls, s.url)
		assert.Empty(t, s.env.Room)
	}
	assert.ElementsMatch(t, []string{"q1", "q2", "q3"}, urls)
}

func TestUsersWithNobodyIsDone(t *testing.T) {
	b := newTestBroker(&fakeTransport{}, time.Second)

	_, done := b.Users().Emit(context.Background(), model.EventRoomsNew, nil).Status()
	assert.True(t, done)
}
