package events

import (
	"context"
	"encoding/json"

	"github.com/hilthontt/huddle/internal/domain"
)

// Publisher announces room lifecycle changes to other services.
type Publisher interface {
	PublishRoomCreated(ctx context.Context, room domain.Room) error
	PublishMemberJoined(ctx context.Context, room domain.Room, member domain.Member) error
	PublishMemberLeft(ctx context.Context, room domain.Room, member domain.Member) error
	PublishMessageSent(ctx context.Context, message domain.ChatMessage) error
}

type messagePublisher interface {
	PublishMessage(ctx context.Context, routingKey string, message AmqpMessage) error
}

type RoomPublisher struct {
	broker messagePublisher
}

func NewRoomPublisher(broker messagePublisher) *RoomPublisher {
	return &RoomPublisher{broker: broker}
}

func (p *RoomPublisher) publish(ctx context.Context, routingKey, roomID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.broker.PublishMessage(ctx, routingKey, AmqpMessage{
		RoomID: roomID,
		Data:   data,
	})
}

func (p *RoomPublisher) PublishRoomCreated(ctx context.Context, room domain.Room) error {
	return p.publish(ctx, EventRoomCreated, room.ID, RoomEventData{Room: room})
}

func (p *RoomPublisher) PublishMemberJoined(ctx context.Context, room domain.Room, member domain.Member) error {
	return p.publish(ctx, EventMemberJoined, room.ID, RoomEventData{Room: room, Member: &member})
}

func (p *RoomPublisher) PublishMemberLeft(ctx context.Context, room domain.Room, member domain.Member) error {
	return p.publish(ctx, EventMemberLeft, room.ID, RoomEventData{Room: room, Member: &member})
}

func (p *RoomPublisher) PublishMessageSent(ctx context.Context, message domain.ChatMessage) error {
	return p.publish(ctx, EventMessageSent, message.RoomID, MessageEventData{Message: message})
}

// NopPublisher is used when the event bus is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishRoomCreated(context.Context, domain.Room) error { return nil }
func (NopPublisher) PublishMemberJoined(context.Context, domain.Room, domain.Member) error { return nil }
func (NopPublisher) PublishMemberLeft(context.Context, domain.Room, domain.Member) error { return nil }
func (NopPublisher) PublishMessageSent(context.Context, domain.ChatMessage) error { return nil }
