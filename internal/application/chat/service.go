package chat

import (
	"context"
	"fmt"

	"github.com/hilthontt/huddle/internal/domain"
)

type roomReader interface {
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
}

type Service struct {
	rooms     roomReader
	messages  domain.MessageRepository
	maxLength int
}

// NewService builds the chat service. A maxLength of zero or less falls back
// to domain.MaxMessageLength.
func NewService(rooms roomReader, messages domain.MessageRepository, maxLength int) *Service {
	if maxLength <= 0 {
		maxLength = domain.MaxMessageLength
	}
	return &Service{
		rooms:     rooms,
		messages:  messages,
		maxLength: maxLength,
	}
}

// SendMessage stores the message if its author is a member of the room bound
// to connectionID. The returned message carries the truncated text.
func (s *Service) SendMessage(ctx context.Context, candidate domain.ChatMessage, connectionID string) (*domain.ChatMessage, error) {
	room, err := s.rooms.GetRoom(ctx, candidate.RoomID)
	if err != nil {
		return nil, err
	}

	if !room.HasMember(candidate.UserID, connectionID) {
		return nil, domain.ErrUnauthorized
	}

	message := candidate
	message.Message = domain.Truncate(candidate.Message, s.maxLength)

	if err := s.messages.Append(ctx, &message); err != nil {
		return nil, fmt.Errorf("store chat message: %w", err)
	}

	return &message, nil
}

func (s *Service) GetHistory(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	return s.messages.GetByRoomID(ctx, roomID)
}
