package health

import (
	"context"
	"net/http"
	"time"

	"github.com/hilthontt/huddle/internal/infrastructure/json"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	store pinger
	now   func() time.Time
}

func NewHandler(store pinger) *Handler {
	return &Handler{store: store, now: time.Now}
}

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	data := healthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC(),
	}
	json.Write(w, http.StatusOK, data)
}

// GetReady also checks that the store answers.
func (h *Handler) GetReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		json.Write(w, http.StatusServiceUnavailable, healthResponse{
			Status:    "unavailable",
			Timestamp: h.now().UTC(),
		})
		return
	}

	h.GetHealth(w, r)
}
