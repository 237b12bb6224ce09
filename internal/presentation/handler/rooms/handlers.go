package rooms

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/infrastructure/events"
	"github.com/hilthontt/huddle/internal/infrastructure/json"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
)

type roomService interface {
	CreateRoom(ctx context.Context, name string) (*domain.Room, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	RoomExists(ctx context.Context, roomID string) (bool, error)
}

type Handler struct {
	rooms     roomService
	publisher events.Publisher
	logger    logging.Logger
}

func NewHandler(rooms roomService, publisher events.Publisher, logger logging.Logger) *Handler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Handler{
		rooms:     rooms,
		publisher: publisher,
		logger:    logger,
	}
}

func (h *Handler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteBadRequestError(w, "Invalid request body")
		return
	}

	ctx := r.Context()
	room, err := h.rooms.CreateRoom(ctx, strings.TrimSpace(req.Name))
	if err != nil {
		h.logger.Error(logging.Room, logging.Create, "create room", map[logging.ExtraKey]any{
			logging.ErrorMessage: err,
		})
		json.WriteError(w, http.StatusInternalServerError, "Failed to create room")
		return
	}

	h.logger.Info(logging.Room, logging.Create, "room created", map[logging.ExtraKey]any{
		logging.RoomID: room.ID,
	})
	if err := h.publisher.PublishRoomCreated(ctx, *room); err != nil {
		h.logger.Warn(logging.RabbitMQ, logging.ExternalService, "publish room created", map[logging.ExtraKey]any{
			logging.RoomID:       room.ID,
			logging.ErrorMessage: err,
		})
	}

	json.Write(w, http.StatusOK, createRoomResponse{RoomID: room.ID, Room: room})
}

func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	room, err := h.rooms.GetRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			json.WriteNotFoundError(w, "Room not found")
			return
		}
		h.logger.Error(logging.Room, logging.ExternalService, "get room", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err,
		})
		json.WriteError(w, http.StatusInternalServerError, "Failed to get room")
		return
	}

	json.Write(w, http.StatusOK, roomResponse{Room: room})
}

func (h *Handler) RoomExistsHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	exists, err := h.rooms.RoomExists(r.Context(), roomID)
	if err != nil {
		h.logger.Error(logging.Room, logging.ExternalService, "check room", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err,
		})
		json.WriteError(w, http.StatusInternalServerError, "Failed to check room")
		return
	}

	json.Write(w, http.StatusOK, existsResponse{Exists: exists})
}
