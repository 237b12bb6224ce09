package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/infrastructure/kv"
)

// messageRepository keeps each room's transcript as a list, newest at the head.
type messageRepository struct {
	store     kv.Store
	capacity  int64
	retention time.Duration
}

func NewMessageRepository(store kv.Store, capacity uint, retention time.Duration) domain.MessageRepository {
	if capacity == 0 {
		capacity = domain.MaxHistoryEntries
	}
	if retention <= 0 {
		retention = DefaultRetention
	}

	return &messageRepository{
		store:     store,
		capacity:  int64(capacity),
		retention: retention,
	}
}

func (r *messageRepository) Append(ctx context.Context, message *domain.ChatMessage) error {
	if message == nil || message.RoomID == "" {
		return domain.ErrInvalidInput
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	key := messagesKey(message.RoomID)
	if err := r.store.LPush(ctx, key, data); err != nil {
		return fmt.Errorf("push message to %s: %w", key, err)
	}
	// Trim runs on every append, even below capacity.
	if err := r.store.LTrim(ctx, key, 0, r.capacity-1); err != nil {
		return fmt.Errorf("trim %s: %w", key, err)
	}
	if err := r.store.Expire(ctx, key, r.retention); err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}

	return nil
}

func (r *messageRepository) GetByRoomID(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidInput
	}

	raw, err := r.store.LRange(ctx, messagesKey(roomID), 0, r.capacity-1)
	if err != nil {
		return nil, fmt.Errorf("read history of room %s: %w", roomID, err)
	}

	messages := make([]domain.ChatMessage, 0, len(raw))
	for _, data := range raw {
		var msg domain.ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}
