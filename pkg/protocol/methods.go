package protocol

// ProtocolVersion is the JSON-RPC method surface version negotiated by
// system.version; bump it whenever a method is added, removed, or its
// params/result shape changes incompatibly.
const ProtocolVersion = 1

// JSON-RPC method name constants for the gateway's RPC surface.
const (
	MethodAuthLogin   = "auth.login"
	MethodAuthRefresh = "auth.refresh"
	MethodAuthMe      = "auth.me"

	MethodSetupStatus = "setup.status"
	MethodSetupInit   = "setup.init"

	MethodUsersList   = "users.list"
	MethodUsersCreate = "users.create"
	MethodUsersUpdate = "users.update"
	MethodUsersDelete = "users.delete"

	MethodSessionCreate  = "session.create"
	MethodSessionMessage = "session.message"
	MethodSessionHistory = "session.history"
	MethodSessionEnd     = "session.end"
	MethodSessionList    = "session.list"
	MethodSessionEvents  = "session.events"

	MethodChannelsList  = "channels.list"
	MethodChannelsProbe = "channels.probe"

	MethodAgentList = "agent.list"
	MethodAgentGet  = "agent.get"

	MethodToolsList    = "tools.list"
	MethodToolsExecute = "tools.execute"

	MethodSystemHealth  = "system.health"
	MethodSystemVersion = "system.version"

	// Websocket-only: turns on event streaming for the connection.
	MethodEventsSubscribe = "events.subscribe"
)

// PublicMethods lists methods reachable without a bearer token.
var PublicMethods = map[string]bool{
	MethodAuthLogin:     true,
	MethodSetupStatus:   true,
	MethodSetupInit:     true,
	MethodSystemHealth:  true,
	MethodSystemVersion: true,
}

// AdminMethods lists methods additionally requiring claim role = admin.
var AdminMethods = map[string]bool{
	MethodUsersList:   true,
	MethodUsersCreate: true,
	MethodUsersUpdate: true,
	MethodUsersDelete: true,
}

// JSON-RPC 2.0 error codes.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
	ErrCodeUnauthorized   = -32001
	ErrCodeForbidden      = -32002
	ErrCodeNotFound       = -32003
)
