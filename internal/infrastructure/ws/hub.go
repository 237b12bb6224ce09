package ws

import (
	"context"
	"sync"
	"time"

	"github.com/hilthontt/huddle/internal/infrastructure/logging"
	"github.com/hilthontt/huddle/internal/infrastructure/metrics"
)

// Peer is one live connection as seen by the hub.
type Peer interface {
	ID() string
	Send(frame []byte) bool
	Close()
}

// Hub tracks live connections and the room group each one is subscribed to.
// A connection is in at most one group.
type Hub struct {
	mu     sync.RWMutex
	peers  map[string]Peer
	groups map[string]map[string]Peer // roomID → connID → peer
	roomOf map[string]string          // connID → roomID

	logger  logging.Logger
	metrics *metrics.Metrics
}

func NewHub(logger logging.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		peers:   make(map[string]Peer),
		groups:  make(map[string]map[string]Peer),
		roomOf:  make(map[string]string),
		logger:  logger,
		metrics: m,
	}
}

func (h *Hub) Register(p Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.peers[p.ID()]; ok {
		return
	}
	h.peers[p.ID()] = p
	if h.metrics != nil {
		h.metrics.ActiveConnections.Inc()
	}
}

// Unregister forgets the connection and drops it from its group.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.peers[connID]; !ok {
		return
	}
	h.leaveLocked(connID)
	delete(h.peers, connID)
	if h.metrics != nil {
		h.metrics.ActiveConnections.Dec()
	}
}

// Join subscribes a registered connection to roomID, leaving any group it was
// in before.
func (h *Hub) Join(roomID, connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.peers[connID]
	if !ok {
		return false
	}

	h.leaveLocked(connID)

	group, ok := h.groups[roomID]
	if !ok {
		group = make(map[string]Peer)
		h.groups[roomID] = group
	}
	group[connID] = p
	h.roomOf[connID] = roomID
	return true
}

func (h *Hub) Leave(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(connID)
}

func (h *Hub) leaveLocked(connID string) {
	roomID, ok := h.roomOf[connID]
	if !ok {
		return
	}
	delete(h.roomOf, connID)

	if group, ok := h.groups[roomID]; ok {
		delete(group, connID)
		if len(group) == 0 {
			delete(h.groups, roomID)
		}
	}
}

// RoomOf returns the group the connection is subscribed to.
func (h *Hub) RoomOf(connID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	roomID, ok := h.roomOf[connID]
	return roomID, ok
}

// Broadcast pushes msg to every connection subscribed to roomID except the
// one named by exceptConnID, and returns how many frames were queued.
func (h *Hub) Broadcast(roomID string, msg *WSMessage, exceptConnID string) int {
	frame, err := msg.Encode()
	if err != nil {
		h.logger.Error(logging.Websocket, logging.Delivery, "encode broadcast frame", map[logging.ExtraKey]any{
			logging.EventName:    msg.Event,
			logging.RoomID:       roomID,
			logging.ErrorMessage: err,
		})
		return 0
	}

	h.mu.RLock()
	targets := make([]Peer, 0, len(h.groups[roomID]))
	for id, p := range h.groups[roomID] {
		if id != exceptConnID {
			targets = append(targets, p)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, p := range targets {
		if h.deliver(p, frame, msg.Event) {
			sent++
		}
	}
	return sent
}

// SendTo delivers msg privately to one connection.
func (h *Hub) SendTo(connID string, msg *WSMessage) bool {
	frame, err := msg.Encode()
	if err != nil {
		h.logger.Error(logging.Websocket, logging.Delivery, "encode private frame", map[logging.ExtraKey]any{
			logging.EventName:    msg.Event,
			logging.ConnectionID: connID,
			logging.ErrorMessage: err,
		})
		return false
	}

	h.mu.RLock()
	p, ok := h.peers[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	return h.deliver(p, frame, msg.Event)
}

func (h *Hub) deliver(p Peer, frame []byte, event string) bool {
	if p.Send(frame) {
		return true
	}

	if h.metrics != nil {
		h.metrics.DroppedFrames.Inc()
	}
	h.logger.Warn(logging.Websocket, logging.Delivery, "client buffer full, dropping frame", map[logging.ExtraKey]any{
		logging.ConnectionID: p.ID(),
		logging.EventName:    event,
	})
	return false
}

// CloseAll closes every registered connection. Their read loops then run the
// normal disconnect path.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	peers := make([]Peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()

	for _, p := range peers {
		p.Close()
	}
}

// Drain waits until every connection has unregistered or ctx is done.
func (h *Hub) Drain(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for h.Len() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}
