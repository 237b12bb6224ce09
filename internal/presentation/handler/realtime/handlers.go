package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hilthontt/huddle/internal/application/sessions"
	"github.com/hilthontt/huddle/internal/application/signaling"
	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
	"github.com/hilthontt/huddle/internal/infrastructure/ws"
)

func (r *Router) handleJoinRoom(ctx context.Context, connID string, data json.RawMessage) error {
	var req joinRoomRequest
	if err := decode(data, &req); err != nil {
		r.hub.SendTo(connID, ws.NewError(msgRoomNotFound))
		return errNoop
	}

	if _, err := r.rooms.GetRoom(ctx, req.RoomID); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			r.hub.SendTo(connID, ws.NewError(msgRoomNotFound))
			return err
		}
		r.hub.SendTo(connID, ws.NewError(msgJoinFailed))
		return err
	}

	// one room per connection
	prev, bound := r.sessions.Lookup(connID)
	if bound && prev.RoomID != req.RoomID {
		if err := r.leaveRoom(ctx, prev.RoomID, connID); err != nil {
			r.logger.Debug(logging.Room, logging.Leave, "previous room already left", map[logging.ExtraKey]any{
				logging.RoomID:       prev.RoomID,
				logging.ConnectionID: connID,
				logging.ErrorMessage: err,
			})
		}
		r.sessions.Unbind(connID)
		bound = false
	}

	// Subscribe before the write so every later join in this room reaches us.
	r.hub.Join(req.RoomID, connID)

	member := domain.NewMember(connID, req.DisplayName)
	room, err := r.rooms.AddOrReplaceMember(ctx, req.RoomID, member)
	if err != nil {
		// A failed rejoin keeps the existing membership, so keep its group too.
		if !bound {
			r.hub.Leave(connID)
		}
		r.hub.SendTo(connID, ws.NewError(msgJoinFailed))
		return err
	}

	r.sessions.Bind(connID, sessions.Binding{RoomID: room.ID, MemberID: member.ID})

	r.hub.SendTo(connID, ws.NewJoinedRoom(room, member))
	r.hub.Broadcast(room.ID, ws.NewUserJoined(room, member), connID)
	r.hub.SendTo(connID, ws.NewUsersList(room.Members))

	r.logger.Info(logging.Room, logging.Join, "member joined room", map[logging.ExtraKey]any{
		logging.RoomID:       room.ID,
		logging.MemberID:     member.ID,
		logging.ConnectionID: connID,
	})
	r.publish(func() error { return r.publisher.PublishMemberJoined(ctx, *room, member) })
	return nil
}

func (r *Router) handleToggleVideo(ctx context.Context, connID string, data json.RawMessage) error {
	var req toggleVideoRequest
	if err := decode(data, &req); err != nil {
		return err
	}

	_, member, err := r.rooms.UpdateMember(ctx, req.RoomID, connID, domain.MemberUpdate{IsVideoOn: req.IsVideoOn})
	if err != nil {
		return err
	}

	r.hub.Broadcast(req.RoomID, ws.NewVideoToggled(member.ID, *req.IsVideoOn), "")
	return nil
}

func (r *Router) handleToggleAudio(ctx context.Context, connID string, data json.RawMessage) error {
	var req toggleAudioRequest
	if err := decode(data, &req); err != nil {
		return err
	}

	_, member, err := r.rooms.UpdateMember(ctx, req.RoomID, connID, domain.MemberUpdate{IsAudioOn: req.IsAudioOn})
	if err != nil {
		return err
	}

	r.hub.Broadcast(req.RoomID, ws.NewAudioToggled(member.ID, *req.IsAudioOn), "")
	return nil
}

func (r *Router) handleRaiseHand(ctx context.Context, connID string, data json.RawMessage) error {
	var req raiseHandRequest
	if err := decode(data, &req); err != nil {
		return err
	}

	_, member, err := r.rooms.UpdateMember(ctx, req.RoomID, connID, domain.MemberUpdate{IsHandRaised: req.IsHandRaised})
	if err != nil {
		return err
	}

	r.hub.Broadcast(req.RoomID, ws.NewHandRaised(member.ID, *req.IsHandRaised), "")
	return nil
}

// Reactions are never stored.
func (r *Router) handleSendReaction(ctx context.Context, connID string, data json.RawMessage) error {
	var req reactionRequest
	if err := decode(data, &req); err != nil {
		return err
	}

	member, err := r.rooms.GetMember(ctx, req.RoomID, connID)
	if err != nil {
		return err
	}

	timestamp := r.now().UTC().Format(time.RFC3339Nano)
	r.hub.Broadcast(req.RoomID, ws.NewReaction(member, req.Emoji, timestamp), "")
	return nil
}

func (r *Router) handleChatMessage(ctx context.Context, connID string, data json.RawMessage) error {
	var req chatMessageRequest
	if err := decode(data, &req); err != nil {
		return err
	}

	message, err := r.chat.SendMessage(ctx, domain.ChatMessage(req), connID)
	if err != nil {
		return err
	}

	r.hub.Broadcast(message.RoomID, ws.NewChatMessage(message), connID)
	r.publish(func() error { return r.publisher.PublishMessageSent(ctx, *message) })
	return nil
}

func (r *Router) handleSignal(kind signaling.Kind) handlerFunc {
	return func(ctx context.Context, connID string, data json.RawMessage) error {
		var req signalRequest
		if err := decode(data, &req); err != nil {
			return err
		}

		sig, err := signaling.Relay(kind, req.RoomID, connID, req.TargetUserID, req.Payload)
		if err != nil {
			return errors.Join(errNoop, err)
		}

		r.hub.Broadcast(sig.RoomID, ws.NewSignal(string(sig.Kind), sig.Body), connID)

		r.logger.Debug(logging.Signaling, logging.Relay, "relayed signaling message", map[logging.ExtraKey]any{
			logging.EventName:    string(kind),
			logging.RoomID:       sig.RoomID,
			logging.ConnectionID: connID,
			logging.TargetID:     req.TargetUserID,
		})
		return nil
	}
}
