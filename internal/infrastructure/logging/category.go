package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	Internal        Category = "Internal"
	Redis           Category = "Redis"
	RabbitMQ        Category = "RabbitMQ"
	Websocket       Category = "Websocket"
	Room            Category = "Room"
	Chat            Category = "Chat"
	Signaling       Category = "Signaling"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Websocket
	Connect    SubCategory = "Connect"
	Disconnect SubCategory = "Disconnect"
	Event      SubCategory = "Event"
	Delivery   SubCategory = "Delivery"

	// Room
	Join   SubCategory = "Join"
	Leave  SubCategory = "Leave"
	Update SubCategory = "Update"
	Create SubCategory = "Create"

	// Chat / Signaling
	Send  SubCategory = "Send"
	Relay SubCategory = "Relay"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	ErrorMessage ExtraKey = "ErrorMessage"
	EventName    ExtraKey = "Event"
	ConnectionID ExtraKey = "ConnectionId"
	RoomID       ExtraKey = "RoomId"
	MemberID     ExtraKey = "MemberId"
	TargetID     ExtraKey = "TargetId"
)
