// Package signaling relays WebRTC negotiation messages between members of a
// room. Payloads are forwarded untouched; the server never parses SDP or ICE.
package signaling

import (
	"encoding/json"
	"errors"
)

type Kind string

const (
	Offer        Kind = "offer"
	Answer       Kind = "answer"
	ICECandidate Kind = "ice-candidate"
)

var (
	ErrUnknownKind = errors.New("unknown signaling kind")
	ErrMissingRoom = errors.New("signaling message without room")
)

func (k Kind) Valid() bool {
	switch k {
	case Offer, Answer, ICECandidate:
		return true
	}
	return false
}

// Body is what peers receive. TargetMemberID is advisory: every other member
// of the room gets the message and filters on it.
type Body struct {
	Payload          json.RawMessage `json:"payload"`
	FromConnectionID string          `json:"fromConnectionId"`
	TargetMemberID   string          `json:"targetMemberId"`
}

type Signal struct {
	Kind   Kind
	RoomID string
	Body   Body
}

// Relay builds the message to re-emit to roomID. A missing payload is sent
// on as JSON null.
func Relay(kind Kind, roomID, fromConnectionID, targetMemberID string, payload json.RawMessage) (Signal, error) {
	if !kind.Valid() {
		return Signal{}, ErrUnknownKind
	}
	if roomID == "" {
		return Signal{}, ErrMissingRoom
	}
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	return Signal{
		Kind:   kind,
		RoomID: roomID,
		Body: Body{
			Payload:          payload,
			FromConnectionID: fromConnectionID,
			TargetMemberID:   targetMemberID,
		},
	}, nil
}
