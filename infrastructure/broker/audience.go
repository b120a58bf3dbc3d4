package broker

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hilthontt/letschat/domain/model"
)

// Emitter is anything an announce can be emitted through.
type Emitter interface {
	Emit(ctx context.Context, event string, payload any) *Completion
}

type multicast struct {
	broker  *Broker
	userIDs []string
}

// Users addresses the queue of each distinct user in userIDs, one unicast
// per user.
func (b *Broker) Users(userIDs ...string) Emitter {
	set := mapset.NewThreadUnsafeSet[string]()
	ids := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id != "" && set.Add(id) {
			ids = append(ids, id)
		}
	}
	return &multicast{broker: b, userIDs: ids}
}

func (m *multicast) Emit(ctx context.Context, event string, payload any) *Completion {
	cs := make([]*Completion, 0, len(m.userIDs))
	for _, id := range m.userIDs {
		cs = append(cs, m.broker.Queue(id).Emit(ctx, event, payload))
	}
	return All(cs...)
}

// Audience picks the recipients of a room-scoped event. Confidential rooms
// (private or password protected) are never broadcast: their participants,
// plus the also users, are addressed one by one. Every other room is a
// room broadcast.
func (b *Broker) Audience(room *model.Room, also ...string) Emitter {
	if room.Confidential() {
		return b.Users(append(append([]string{}, room.Participants...), also...)...)
	}
	return b.To(room.ID)
}
