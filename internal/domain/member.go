package domain

import (
	"time"

	"github.com/google/uuid"
)

// Reaction is the last emoji a member sent. It is part of the wire model
// but nothing writes it to the store.
type Reaction struct {
	Emoji     string    `json:"emoji"`
	Timestamp time.Time `json:"timestamp"`
}

type Member struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"displayName"`
	IsVideoOn    bool      `json:"isVideoOn"`
	IsAudioOn    bool      `json:"isAudioOn"`
	ConnectionID string    `json:"connectionId"`
	IsHandRaised bool      `json:"isHandRaised"`
	LastReaction *Reaction `json:"lastReaction,omitempty"`
}

// NewMember binds a fresh member identity to a live connection with media on
// and the hand lowered.
func NewMember(connectionID, displayName string) Member {
	return Member{
		ID:           uuid.NewString(),
		DisplayName:  displayName,
		IsVideoOn:    true,
		IsAudioOn:    true,
		ConnectionID: connectionID,
		IsHandRaised: false,
	}
}

// MemberUpdate carries the subset of member flags to change. Nil fields are
// left untouched.
type MemberUpdate struct {
	IsVideoOn    *bool
	IsAudioOn    *bool
	IsHandRaised *bool
}

func (u MemberUpdate) IsEmpty() bool {
	return u.IsVideoOn == nil && u.IsAudioOn == nil && u.IsHandRaised == nil
}

func (m *Member) Apply(u MemberUpdate) {
	if u.IsVideoOn != nil {
		m.IsVideoOn = *u.IsVideoOn
	}
	if u.IsAudioOn != nil {
		m.IsAudioOn = *u.IsAudioOn
	}
	if u.IsHandRaised != nil {
		m.IsHandRaised = *u.IsHandRaised
	}
}
