package messages

import "github.com/hilthontt/huddle/internal/domain"

type historyResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
}
