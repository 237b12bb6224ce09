package ws

// Inbound events.
const (
	JoinRoom     = "join-room"
	ToggleVideo  = "toggle-video"
	ToggleAudio  = "toggle-audio"
	RaiseHand    = "raise-hand"
	SendReaction = "send-reaction"
	ChatMessage  = "chat-message"

	Offer        = "offer"
	Answer       = "answer"
	ICECandidate = "ice-candidate"
)

// Outbound events. Chat and signaling reuse their inbound names.
const (
	JoinedRoom       = "joined-room"
	UserJoined       = "user-joined"
	UsersList        = "users-list"
	UserVideoToggled = "user-video-toggled"
	UserAudioToggled = "user-audio-toggled"
	UserHandRaised   = "user-hand-raised"
	UserReaction     = "user-reaction"
	UserLeft         = "user-left"
	ErrorEvent       = "error"
)
