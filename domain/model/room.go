package model

import (
	"slices"
	"time"
)

type Room struct {
	ID           string    `json:"id"`
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Owner        string    `json:"owner"`
	Private      bool      `json:"private"`
	Password     string    `json:"-"`
	Participants []string  `json:"participants,omitempty"`
	Archived     bool      `json:"archived,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActive   time.Time `json:"lastActive"`
}

func (r Room) HasPassword() bool {
	return r.Password != ""
}

// Confidential rooms never have their events broadcast to every queue.
func (r Room) Confidential() bool {
	return r.Private || r.HasPassword()
}

func (r Room) IsParticipant(userID string) bool {
	return slices.Contains(r.Participants, userID)
}

// VisibleTo reports whether the room shows up for userID. Private rooms
// without a password are invitation only.
func (r Room) VisibleTo(userID string) bool {
	return !r.Private || r.HasPassword() || r.IsParticipant(userID)
}

// Readable reports whether userID may see the room's messages and files.
func (r Room) Readable(userID string) bool {
	return !r.Confidential() || r.IsParticipant(userID)
}

// RoomView is the per-viewer JSON shape of a room.
type RoomView struct {
	ID           string    `json:"id"`
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Owner        string    `json:"owner"`
	Private      bool      `json:"private"`
	HasPassword  bool      `json:"hasPassword"`
	Participants []string  `json:"participants,omitempty"`
	Archived     bool      `json:"archived,omitempty"`
	IsOwner      bool      `json:"isOwner"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActive   time.Time `json:"lastActive"`
}

// ViewFor renders the room for viewerID. Participant lists of private rooms
// are only shown to participants.
func (r Room) ViewFor(viewerID string) RoomView {
	view := RoomView{
		ID:          r.ID,
		Slug:        r.Slug,
		Name:        r.Name,
		Description: r.Description,
		Owner:       r.Owner,
		Private:     r.Private,
		HasPassword: r.HasPassword(),
		Archived:    r.Archived,
		IsOwner:     viewerID != "" && r.Owner == viewerID,
		CreatedAt:   r.CreatedAt,
		LastActive:  r.LastActive,
	}
	if !r.Private || r.IsParticipant(viewerID) {
		view.Participants = slices.Clone(r.Participants)
	}
	return view
}
