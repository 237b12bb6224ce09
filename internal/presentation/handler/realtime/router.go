// Package realtime turns inbound websocket events into room mutations and
// fans the results out to the room's connections.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hilthontt/huddle/internal/application/sessions"
	"github.com/hilthontt/huddle/internal/application/signaling"
	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/infrastructure/events"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
	"github.com/hilthontt/huddle/internal/infrastructure/metrics"
	"github.com/hilthontt/huddle/internal/infrastructure/tracing"
	"github.com/hilthontt/huddle/internal/infrastructure/validation"
	"github.com/hilthontt/huddle/internal/infrastructure/ws"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	msgRoomNotFound = "Room not found"
	msgJoinFailed   = "Failed to join room"
)

// errNoop marks an event dropped before any store access.
var errNoop = errors.New("event dropped")

type roomDirectory interface {
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	AddOrReplaceMember(ctx context.Context, roomID string, member domain.Member) (*domain.Room, error)
	RemoveMember(ctx context.Context, roomID, connectionID string) (*domain.Room, domain.Member, error)
	UpdateMember(ctx context.Context, roomID, connectionID string, update domain.MemberUpdate) (*domain.Room, domain.Member, error)
	GetMember(ctx context.Context, roomID, connectionID string) (domain.Member, error)
	FindMemberAcrossAllRooms(ctx context.Context, connectionID string) (*domain.Room, domain.Member, error)
}

type chatSender interface {
	SendMessage(ctx context.Context, candidate domain.ChatMessage, connectionID string) (*domain.ChatMessage, error)
}

type handlerFunc func(ctx context.Context, connID string, data json.RawMessage) error

type Router struct {
	rooms     roomDirectory
	chat      chatSender
	sessions  *sessions.Registry
	hub       *ws.Hub
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    logging.Logger
	tracer    trace.Tracer
	now       func() time.Time

	handlers map[string]handlerFunc
}

type Option func(*Router)

func WithPublisher(p events.Publisher) Option {
	return func(r *Router) {
		r.publisher = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

func NewRouter(
	rooms roomDirectory,
	chat chatSender,
	registry *sessions.Registry,
	hub *ws.Hub,
	logger logging.Logger,
	opts ...Option,
) *Router {
	r := &Router{
		rooms:     rooms,
		chat:      chat,
		sessions:  registry,
		hub:       hub,
		publisher: events.NopPublisher{},
		logger:    logger,
		tracer:    tracing.GetTracer("huddle/realtime"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.handlers = map[string]handlerFunc{
		ws.JoinRoom:     r.handleJoinRoom,
		ws.ToggleVideo:  r.handleToggleVideo,
		ws.ToggleAudio:  r.handleToggleAudio,
		ws.RaiseHand:    r.handleRaiseHand,
		ws.SendReaction: r.handleSendReaction,
		ws.ChatMessage:  r.handleChatMessage,
		ws.Offer:        r.handleSignal(signaling.Offer),
		ws.Answer:       r.handleSignal(signaling.Answer),
		ws.ICECandidate: r.handleSignal(signaling.ICECandidate),
	}

	return r
}

// HandleMessage decodes one inbound frame and runs its handler. Nothing a
// handler does, panics included, escapes this call.
func (r *Router) HandleMessage(ctx context.Context, connID string, raw []byte) {
	var in ws.InboundMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		r.count("malformed", "dropped")
		r.logger.Debug(logging.Validation, logging.Event, "malformed websocket frame", map[logging.ExtraKey]any{
			logging.ConnectionID: connID,
			logging.ErrorMessage: err,
		})
		return
	}

	handler, ok := r.handlers[in.Event]
	if !ok {
		r.count("unknown", "dropped")
		r.logger.Debug(logging.Validation, logging.Event, "unknown websocket event", map[logging.ExtraKey]any{
			logging.ConnectionID: connID,
			logging.EventName:    in.Event,
		})
		return
	}

	r.dispatch(ctx, in.Event, connID, func(ctx context.Context) error {
		return handler(ctx, connID, in.Data)
	})
}

// HandleDisconnect removes the connection's member from its room and tells
// the rest of the room. Connections that never joined touch no store.
func (r *Router) HandleDisconnect(ctx context.Context, connID string) {
	r.dispatch(ctx, "disconnect", connID, func(ctx context.Context) error {
		binding, bound := r.sessions.Unbind(connID)
		r.hub.Leave(connID)

		if !bound {
			return nil
		}

		err := r.leaveRoom(ctx, binding.RoomID, connID)
		if err == nil || !isNotFound(err) {
			return err
		}

		// The bound room or member is gone; the member may live elsewhere.
		room, _, err := r.rooms.FindMemberAcrossAllRooms(ctx, connID)
		if err != nil {
			return err
		}
		return r.leaveRoom(ctx, room.ID, connID)
	})
}

func (r *Router) dispatch(ctx context.Context, event, connID string, fn func(ctx context.Context) error) {
	ctx, span := r.tracer.Start(ctx, "realtime."+event, trace.WithAttributes(
		attribute.String("ws.connection_id", connID),
	))
	defer span.End()

	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic handling %s: %v", event, rec)
			}
		}()
		return fn(ctx)
	}()

	extra := map[logging.ExtraKey]any{
		logging.ConnectionID: connID,
		logging.EventName:    event,
	}

	switch {
	case err == nil:
		r.count(event, "ok")
	case errors.Is(err, errNoop),
		errors.Is(err, domain.ErrInvalidInput),
		isNotFound(err),
		errors.Is(err, domain.ErrUnauthorized):
		r.count(event, "dropped")
		extra[logging.ErrorMessage] = err
		r.logger.Debug(logging.Websocket, logging.Event, "event dropped", extra)
	default:
		r.count(event, "error")
		tracing.Fail(span, err)
		extra[logging.ErrorMessage] = err
		r.logger.Error(logging.Websocket, logging.Event, "event failed", extra)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrRoomNotFound) || errors.Is(err, domain.ErrMemberNotFound)
}

func (r *Router) count(event, outcome string) {
	if r.metrics != nil {
		r.metrics.InboundEvents.WithLabelValues(event, outcome).Inc()
	}
}

// decode unmarshals and validates a payload. Any failure wraps errNoop.
func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errNoop
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errNoop, err)
	}
	if err := validation.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", errNoop, err)
	}
	return nil
}

// leaveRoom removes the connection's member from roomID and sends user-left
// to whoever is still subscribed.
func (r *Router) leaveRoom(ctx context.Context, roomID, connID string) error {
	room, removed, err := r.rooms.RemoveMember(ctx, roomID, connID)
	if err != nil {
		return err
	}

	r.hub.Broadcast(room.ID, ws.NewUserLeft(room, removed.ID), connID)

	r.logger.Info(logging.Room, logging.Leave, "member left room", map[logging.ExtraKey]any{
		logging.RoomID:       room.ID,
		logging.MemberID:     removed.ID,
		logging.ConnectionID: connID,
	})
	r.publish(func() error { return r.publisher.PublishMemberLeft(ctx, *room, removed) })
	return nil
}

func (r *Router) publish(fn func() error) {
	if err := fn(); err != nil {
		r.logger.Warn(logging.RabbitMQ, logging.ExternalService, "publish room event", map[logging.ExtraKey]any{
			logging.ErrorMessage: err,
		})
	}
}
