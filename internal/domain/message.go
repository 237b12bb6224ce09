package domain

import (
	"context"
	"unicode/utf8"
)

const (
	MaxMessageLength  = 500
	MaxHistoryEntries = 100
)

// ChatMessage id and timestamp come from the client and are stored as given.
type ChatMessage struct {
	ID        string `json:"id"`
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type MessageRepository interface {
	// Append pushes the message to the front of the room history, trims it to
	// the configured capacity and restarts the retention window.
	Append(ctx context.Context, message *ChatMessage) error
	// GetByRoomID returns the history most recent first.
	GetByRoomID(ctx context.Context, roomID string) ([]ChatMessage, error)
}

// Truncate cuts s to at most max characters.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}

	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
