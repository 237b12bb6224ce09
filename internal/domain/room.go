package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const defaultRoomNamePrefix = "Meeting Room "

type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Members   []Member  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
	IsActive  bool      `json:"isActive"`
}

type RoomRepository interface {
	// Save writes the room and restarts its retention window.
	Save(ctx context.Context, room *Room) error
	GetByID(ctx context.Context, id string) (*Room, error)
	Exists(ctx context.Context, id string) (bool, error)
	// ListIDs enumerates every stored room id. Chat history keys are skipped.
	ListIDs(ctx context.Context) ([]string, error)
}

func NewRoom(name string) *Room {
	id := uuid.NewString()
	if name == "" {
		name = DefaultRoomName(id)
	}

	return &Room{
		ID:        id,
		Name:      name,
		Members:   []Member{},
		CreatedAt: time.Now().UTC(),
		IsActive:  true,
	}
}

func DefaultRoomName(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return defaultRoomNamePrefix + id
}

func (r *Room) indexOf(connectionID string) int {
	for i := range r.Members {
		if r.Members[i].ConnectionID == connectionID {
			return i
		}
	}
	return -1
}

// UpsertMember replaces the member bound to the same connection in place,
// keeping its slot, or appends it. It reports whether a slot was replaced.
func (r *Room) UpsertMember(m Member) bool {
	if i := r.indexOf(m.ConnectionID); i >= 0 {
		r.Members[i] = m
		return true
	}
	r.Members = append(r.Members, m)
	return false
}

func (r *Room) RemoveMember(connectionID string) (Member, bool) {
	i := r.indexOf(connectionID)
	if i < 0 {
		return Member{}, false
	}

	removed := r.Members[i]
	r.Members = append(r.Members[:i], r.Members[i+1:]...)
	return removed, true
}

func (r *Room) UpdateMember(connectionID string, u MemberUpdate) (Member, bool) {
	i := r.indexOf(connectionID)
	if i < 0 {
		return Member{}, false
	}

	r.Members[i].Apply(u)
	return r.Members[i], true
}

func (r *Room) FindMemberByConnection(connectionID string) (Member, bool) {
	i := r.indexOf(connectionID)
	if i < 0 {
		return Member{}, false
	}
	return r.Members[i], true
}

// HasMember reports whether the member identity is bound to the given connection.
func (r *Room) HasMember(memberID, connectionID string) bool {
	m, ok := r.FindMemberByConnection(connectionID)
	return ok && m.ID == memberID
}
