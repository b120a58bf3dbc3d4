// Package state holds what a listening client knows about rooms, users,
// messages and files. Queue delivery is at-least-once, so applying the same
// event twice leaves the store unchanged.
package state

import (
	"fmt"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/goccy/go-json"
	"github.com/hilthontt/letschat/domain/model"
	"github.com/pkg/errors"
)

// ErrUnknownEvent is returned by Apply for event names it does not handle.
var ErrUnknownEvent = errors.New("unknown event")

// Store is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	rooms    map[string]model.RoomView
	users    map[string]model.User
	members  map[string]mapset.Set[string]
	messages map[string][]model.Message
	seenMsgs mapset.Set[string]
	files    map[string][]model.File
	seenFile mapset.Set[string]
}

func NewStore() *Store {
	return &Store{
		rooms:    make(map[string]model.RoomView),
		users:    make(map[string]model.User),
		members:  make(map[string]mapset.Set[string]),
		messages: make(map[string][]model.Message),
		seenMsgs: mapset.NewThreadUnsafeSet[string](),
		files:    make(map[string][]model.File),
		seenFile: mapset.NewThreadUnsafeSet[string](),
	}
}

// Apply decodes body according to event and folds it into the store. room
// is the envelope's room tag; payloads that carry their own room take
// precedence over it.
func (s *Store) Apply(event, room string, body []byte) error {
	switch event {
	case model.EventRoomsNew, model.EventRoomsUpdate:
		var v model.RoomView
		if err := decode(event, body, &v); err != nil {
			return err
		}
		s.upsertRoom(v)
	case model.EventRoomsArchive:
		var v model.RoomView
		if err := decode(event, body, &v); err != nil {
			return err
		}
		s.archiveRoom(v.ID)
	case model.EventMessagesNew:
		var m model.Message
		if err := decode(event, body, &m); err != nil {
			return err
		}
		if m.Room == "" {
			m.Room = room
		}
		s.addMessage(m)
	case model.EventUsersJoin, model.EventUsersLeave:
		var u model.PresenceUser
		if err := decode(event, body, &u); err != nil {
			return err
		}
		if u.Room == "" {
			u.Room = room
		}
		s.presence(u, event == model.EventUsersJoin)
	case model.EventUsersUpdate:
		var u model.User
		if err := decode(event, body, &u); err != nil {
			return err
		}
		s.upsertUser(u)
	case model.EventFilesNew:
		var f model.File
		if err := decode(event, body, &f); err != nil {
			return err
		}
		if f.Room == "" {
			f.Room = room
		}
		s.addFile(f)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	return nil
}

func decode(event string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrapf(err, "decode %s payload", event)
	}
	return nil
}

func (s *Store) upsertRoom(v model.RoomView) {
	if v.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[v.ID] = v
}

// archiveRoom forgets the room and everything scoped to it.
func (s *Store) archiveRoom(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
	delete(s.members, id)
	for _, m := range s.messages[id] {
		s.seenMsgs.Remove(m.ID)
	}
	delete(s.messages, id)
	for _, f := range s.files[id] {
		s.seenFile.Remove(f.ID)
	}
	delete(s.files, id)
}

func (s *Store) addMessage(m model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" || !s.seenMsgs.Add(m.ID) {
		return
	}
	s.messages[m.Room] = append(s.messages[m.Room], m)
	if r, ok := s.rooms[m.Room]; ok && m.PostedAt.After(r.LastActive) {
		r.LastActive = m.PostedAt
		s.rooms[m.Room] = r
	}
}

func (s *Store) addFile(f model.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == "" || !s.seenFile.Add(f.ID) {
		return
	}
	s.files[f.Room] = append(s.files[f.Room], f)
}

func (s *Store) presence(u model.PresenceUser, joined bool) {
	if u.ID == "" || u.Room == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.members[u.Room]
	if !ok {
		set = mapset.NewThreadUnsafeSet[string]()
		s.members[u.Room] = set
	}
	if !joined {
		set.Remove(u.ID)
		return
	}
	set.Add(u.ID)

	known := s.users[u.ID]
	known.ID = u.ID
	known.Username = u.Username
	if u.DisplayName != "" {
		known.DisplayName = u.DisplayName
	}
	s.users[u.ID] = known
}

func (s *Store) upsertUser(u model.User) {
	if u.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// Room returns the last known view of a room.
func (s *Store) Room(id string) (model.RoomView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Rooms returns every known room ordered by slug.
func (s *Store) Rooms() []model.RoomView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.RoomView, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

func (s *Store) User(id string) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// Members returns the sorted ids of the users present in a room.
func (s *Store) Members(room string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.members[room]
	if !ok {
		return nil
	}
	ids := set.ToSlice()
	sort.Strings(ids)
	return ids
}

// Messages returns a room's messages in arrival order.
func (s *Store) Messages(room string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Message(nil), s.messages[room]...)
}

func (s *Store) Files(room string) []model.File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.File(nil), s.files[room]...)
}
