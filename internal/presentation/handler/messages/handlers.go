package messages

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/infrastructure/json"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
)

type roomChecker interface {
	RoomExists(ctx context.Context, roomID string) (bool, error)
}

type historyReader interface {
	GetHistory(ctx context.Context, roomID string) ([]domain.ChatMessage, error)
}

type Handler struct {
	rooms   roomChecker
	history historyReader
	logger  logging.Logger
}

func NewHandler(rooms roomChecker, history historyReader, logger logging.Logger) *Handler {
	return &Handler{
		rooms:   rooms,
		history: history,
		logger:  logger,
	}
}

// ListMessagesHandler returns the room's chat history, most recent first.
func (h *Handler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	ctx := r.Context()

	exists, err := h.rooms.RoomExists(ctx, roomID)
	if err != nil {
		h.internalError(w, roomID, err)
		return
	}
	if !exists {
		json.WriteNotFoundError(w, "Room not found")
		return
	}

	messages, err := h.history.GetHistory(ctx, roomID)
	if err != nil {
		h.internalError(w, roomID, err)
		return
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}

	json.Write(w, http.StatusOK, historyResponse{Messages: messages})
}

func (h *Handler) internalError(w http.ResponseWriter, roomID string, err error) {
	h.logger.Error(logging.Chat, logging.ExternalService, "load chat history", map[logging.ExtraKey]any{
		logging.RoomID:       roomID,
		logging.ErrorMessage: err,
	})
	json.WriteInternalError(w)
}
