package realtime

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
	"github.com/hilthontt/huddle/internal/infrastructure/ws"
)

type Handler struct {
	router   *Router
	hub      *ws.Hub
	upgrader *websocket.Upgrader
	cfg      ws.ClientConfig
	logger   logging.Logger
}

func NewHandler(router *Router, hub *ws.Hub, upgrader *websocket.Upgrader, cfg ws.ClientConfig, logger logging.Logger) *Handler {
	return &Handler{
		router:   router,
		hub:      hub,
		upgrader: upgrader,
		cfg:      cfg,
		logger:   logger,
	}
}

// ServeWS upgrades the request and runs the connection until it closes. Events
// are handled one at a time on this goroutine.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(logging.Websocket, logging.Connect, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.ClientIp:     r.RemoteAddr,
			logging.ErrorMessage: err,
		})
		return
	}

	connID := uuid.NewString()
	client := ws.NewClient(conn, connID, h.cfg, h.logger)
	h.hub.Register(client)

	h.logger.Info(logging.Websocket, logging.Connect, "client connected", map[logging.ExtraKey]any{
		logging.ConnectionID: connID,
		logging.ClientIp:     r.RemoteAddr,
	})

	go client.WritePump()

	ctx := context.WithoutCancel(r.Context())
	client.ReadPump(func(raw []byte) {
		h.router.HandleMessage(ctx, connID, raw)
	})

	h.router.HandleDisconnect(ctx, connID)
	h.hub.Unregister(connID)
	client.Close()

	h.logger.Info(logging.Websocket, logging.Disconnect, "client disconnected", map[logging.ExtraKey]any{
		logging.ConnectionID: connID,
	})
}
