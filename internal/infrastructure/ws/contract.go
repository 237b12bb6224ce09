package ws

import (
	"encoding/json"

	"github.com/hilthontt/huddle/internal/domain"
)

// WSMessage is the outbound frame.
type WSMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// InboundMessage is the frame a client sends. Data is decoded by the handler
// registered for Event.
type InboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (m *WSMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Payload structs
type JoinedRoomPayload struct {
	Room   *domain.Room  `json:"room"`
	Member domain.Member `json:"member"`
}

type UserJoinedPayload struct {
	Member domain.Member `json:"member"`
	Room   *domain.Room  `json:"room"`
}

type UsersListPayload struct {
	Members []domain.Member `json:"members"`
}

type VideoToggledPayload struct {
	MemberID  string `json:"memberId"`
	IsVideoOn bool   `json:"isVideoOn"`
}

type AudioToggledPayload struct {
	MemberID  string `json:"memberId"`
	IsAudioOn bool   `json:"isAudioOn"`
}

type HandRaisedPayload struct {
	MemberID     string `json:"memberId"`
	IsHandRaised bool   `json:"isHandRaised"`
}

type ReactionPayload struct {
	MemberID    string `json:"memberId"`
	DisplayName string `json:"displayName"`
	Emoji       string `json:"emoji"`
	Timestamp   string `json:"timestamp"`
}

type UserLeftPayload struct {
	MemberID string       `json:"memberId"`
	Room     *domain.Room `json:"room"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func NewJoinedRoom(room *domain.Room, member domain.Member) *WSMessage {
	return &WSMessage{
		Event: JoinedRoom,
		Data:  JoinedRoomPayload{Room: room, Member: member},
	}
}

func NewUserJoined(room *domain.Room, member domain.Member) *WSMessage {
	return &WSMessage{
		Event: UserJoined,
		Data:  UserJoinedPayload{Member: member, Room: room},
	}
}

func NewUsersList(members []domain.Member) *WSMessage {
	if members == nil {
		members = []domain.Member{}
	}
	return &WSMessage{
		Event: UsersList,
		Data:  UsersListPayload{Members: members},
	}
}

func NewVideoToggled(memberID string, on bool) *WSMessage {
	return &WSMessage{
		Event: UserVideoToggled,
		Data:  VideoToggledPayload{MemberID: memberID, IsVideoOn: on},
	}
}

func NewAudioToggled(memberID string, on bool) *WSMessage {
	return &WSMessage{
		Event: UserAudioToggled,
		Data:  AudioToggledPayload{MemberID: memberID, IsAudioOn: on},
	}
}

func NewHandRaised(memberID string, raised bool) *WSMessage {
	return &WSMessage{
		Event: UserHandRaised,
		Data:  HandRaisedPayload{MemberID: memberID, IsHandRaised: raised},
	}
}

func NewReaction(member domain.Member, emoji, timestamp string) *WSMessage {
	return &WSMessage{
		Event: UserReaction,
		Data: ReactionPayload{
			MemberID:    member.ID,
			DisplayName: member.DisplayName,
			Emoji:       emoji,
			Timestamp:   timestamp,
		},
	}
}

func NewChatMessage(message *domain.ChatMessage) *WSMessage {
	return &WSMessage{
		Event: ChatMessage,
		Data:  message,
	}
}

// NewSignal wraps an already-built relay body under its signaling kind.
func NewSignal(kind string, body any) *WSMessage {
	return &WSMessage{
		Event: kind,
		Data:  body,
	}
}

func NewUserLeft(room *domain.Room, memberID string) *WSMessage {
	return &WSMessage{
		Event: UserLeft,
		Data:  UserLeftPayload{MemberID: memberID, Room: room},
	}
}

func NewError(message string) *WSMessage {
	return &WSMessage{
		Event: ErrorEvent,
		Data:  ErrorPayload{Message: message},
	}
}
