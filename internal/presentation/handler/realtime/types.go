package realtime

import "encoding/json"

type joinRoomRequest struct {
	RoomID      string `json:"roomId" validate:"required"`
	DisplayName string `json:"displayName"`
}

// Media flags are pointers so an absent field can be told apart from false.
type toggleVideoRequest struct {
	RoomID    string `json:"roomId" validate:"required"`
	IsVideoOn *bool  `json:"isVideoOn" validate:"required"`
}

type toggleAudioRequest struct {
	RoomID    string `json:"roomId" validate:"required"`
	IsAudioOn *bool  `json:"isAudioOn" validate:"required"`
}

type raiseHandRequest struct {
	RoomID       string `json:"roomId" validate:"required"`
	IsHandRaised *bool  `json:"isHandRaised" validate:"required"`
}

type reactionRequest struct {
	RoomID string `json:"roomId" validate:"required"`
	Emoji  string `json:"emoji" validate:"required"`
}

type chatMessageRequest struct {
	ID        string `json:"id"`
	RoomID    string `json:"roomId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
	UserName  string `json:"userName"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type signalRequest struct {
	RoomID       string          `json:"roomId" validate:"required"`
	TargetUserID string          `json:"targetUserId"`
	Payload      json.RawMessage `json:"payload"`
}
