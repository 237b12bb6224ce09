package events

import "github.com/hilthontt/huddle/internal/domain"

// AmqpMessage is the message structure for AMQP.
type AmqpMessage struct {
	RoomID string `json:"roomId"`
	Data   []byte `json:"data"`
}

// Routing keys
const (
	EventRoomCreated  = "room.created"
	EventMemberJoined = "member.joined"
	EventMemberLeft   = "member.left"
	EventMessageSent  = "message.sent"
)

type RoomEventData struct {
	Room   domain.Room    `json:"room"`
	Member *domain.Member `json:"member,omitempty"`
}

type MessageEventData struct {
	Message domain.ChatMessage `json:"message"`
}
