package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	Internal        Category = "Internal"
	MongoDB         Category = "MongoDB"
	RabbitMQ        Category = "RabbitMQ"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Registry        Category = "Registry"
	WebSocket       Category = "WebSocket"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Registry
	RoomLifecycle SubCategory = "RoomLifecycle"
	Membership    SubCategory = "Membership"
	Sweep         SubCategory = "Sweep"

	// WebSocket
	Connection SubCategory = "Connection"
	Broadcast  SubCategory = "Broadcast"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	RoomID       ExtraKey = "RoomId"
	ConnectionID ExtraKey = "ConnectionId"
	UserName     ExtraKey = "UserName"
	ClientIp     ExtraKey = "ClientIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	DeletedCount ExtraKey = "DeletedCount"
	ErrorMessage ExtraKey = "ErrorMessage"
)
