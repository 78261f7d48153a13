// Package gateway implements the HTTP/WebSocket front door: GET /health,
// POST /rpc for JSON-RPC 2.0 request/response, and GET /ws for a
// bidirectional JSON-RPC session plus a server-push event stream.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openclaw/gateway/internal/bootstrap"
	"github.com/openclaw/gateway/internal/broadcast"
	"github.com/openclaw/gateway/internal/eventstore"
	"github.com/openclaw/gateway/internal/logging"
	"github.com/openclaw/gateway/internal/tokens"
	"github.com/openclaw/gateway/internal/tools"
	"github.com/openclaw/gateway/internal/users"
	"github.com/openclaw/gateway/pkg/protocol"
)

// AgentRuntime is the subset of the agent runtime the gateway dispatches
// session.message through. Kept as a narrow interface so the gateway does
// not depend on the agent package's full surface.
type AgentRuntime interface {
	ProcessMessage(ctx context.Context, sessionKey, text string) (string, error)
}

// AgentInfo is the gateway-facing view of one configured agent, surfaced by
// agent.list/agent.get without exposing provider credentials.
type AgentInfo struct {
	ID          string `json:"id"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	Description string `json:"description,omitempty"`
}

// ChannelInfo is the gateway-facing view of a registered channel adapter.
type ChannelInfo struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Connected   bool   `json:"connected"`
	AccountID   string `json:"account_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ChannelRegistry is the subset of the channel adapter manager the gateway
// needs for channels.list and channels.probe.
type ChannelRegistry interface {
	List() []ChannelInfo
	Probe(ctx context.Context, id string) (ChannelInfo, error)
}

// Server binds the three gateway endpoints and dispatches RPC methods.
type Server struct {
	addr string

	users       *users.Store
	tokensMgr   *tokens.Manager
	events      *eventstore.Store
	toolsReg    *tools.Registry
	bootstrapMgr *bootstrap.Manager
	broadcaster *broadcast.Broadcaster
	agents      AgentRuntime
	agentInfos  []AgentInfo
	channels    ChannelRegistry

	authDisabled bool
	upgrader     websocket.Upgrader
	httpServer   *http.Server

	version string
}

type Config struct {
	Addr         string
	Users        *users.Store
	Tokens       *tokens.Manager
	Events       *eventstore.Store
	Tools        *tools.Registry
	Bootstrap    *bootstrap.Manager
	Broadcaster  *broadcast.Broadcaster
	Agents       AgentRuntime
	AgentInfos   []AgentInfo
	Channels     ChannelRegistry
	AuthDisabled bool
	Version      string
}

func NewServer(cfg Config) *Server {
	s := &Server{
		addr:         cfg.Addr,
		users:        cfg.Users,
		tokensMgr:    cfg.Tokens,
		events:       cfg.Events,
		toolsReg:     cfg.Tools,
		bootstrapMgr: cfg.Bootstrap,
		broadcaster:  cfg.Broadcaster,
		agents:       cfg.Agents,
		agentInfos:   cfg.AgentInfos,
		channels:     cfg.Channels,
		authDisabled: cfg.AuthDisabled,
		version:      cfg.Version,
	}
	s.upgrader = websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024, CheckOrigin: func(*http.Request) bool { return true }}
	return s
}

func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Mux()}
	log := logging.For("gateway")
	log.Info("gateway starting", "addr", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req protocol.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, &protocol.Response{JSONRPC: "2.0", Error: protocol.NewError(protocol.ErrCodeParse, "parse error")})
		return
	}

	claims, authErr := s.authenticate(req.Method, r.Header.Get("Authorization"))
	if authErr != nil {
		writeResponse(w, &protocol.Response{JSONRPC: "2.0", Error: authErr, ID: req.ID})
		return
	}

	result, rpcErr := s.dispatch(r.Context(), req.Method, req.Params, claims)
	writeResponse(w, &protocol.Response{JSONRPC: "2.0", Result: result, Error: rpcErr, ID: req.ID})
}

func writeResponse(w http.ResponseWriter, resp *protocol.Response) {
	json.NewEncoder(w).Encode(resp)
}

// authenticate enforces the public-methods allowlist and admin-role gating
// described by the auth middleware contract.
func (s *Server) authenticate(method, authHeader string) (*tokens.Claims, *protocol.Error) {
	if s.authDisabled || protocol.PublicMethods[method] {
		return nil, nil
	}

	tokenString, err := tokens.ParseBearer(authHeader)
	if err != nil {
		return nil, protocol.NewError(protocol.ErrCodeUnauthorized, "unauthorized")
	}
	claims, err := s.tokensMgr.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, protocol.NewError(protocol.ErrCodeUnauthorized, "unauthorized")
	}
	if protocol.AdminMethods[method] && claims.Role != string(users.RoleAdmin) {
		return nil, protocol.NewError(protocol.ErrCodeForbidden, "forbidden")
	}
	return claims, nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := logging.For("gateway")

	if !s.authDisabled {
		tok := r.URL.Query().Get("token")
		if _, err := s.tokensMgr.ValidateAccessToken(tok); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var sub *broadcast.Subscription
	defer func() {
		if sub != nil {
			sub.Unsubscribe()
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var req protocol.Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}

			if req.Method == protocol.MethodEventsSubscribe {
				if sub == nil {
					sub = s.broadcaster.Subscribe()
					go s.forwardEvents(ctx, conn, sub)
				}
				conn.WriteJSON(protocol.Response{JSONRPC: "2.0", Result: map[string]bool{"subscribed": true}, ID: req.ID})
				continue
			}

			claims, authErr := s.authenticate(req.Method, "Bearer "+r.URL.Query().Get("token"))
			if authErr != nil {
				conn.WriteJSON(protocol.Response{JSONRPC: "2.0", Error: authErr, ID: req.ID})
				continue
			}
			result, rpcErr := s.dispatch(ctx, req.Method, req.Params, claims)
			if err := conn.WriteJSON(protocol.Response{JSONRPC: "2.0", Result: result, Error: rpcErr, ID: req.ID}); err != nil {
				return
			}
		}
	}()

	<-done
}

// forwardEvents drains the broadcast subscription onto the socket as
// notification frames until the connection closes or the subscription ends.
func (s *Server) forwardEvents(ctx context.Context, conn *websocket.Conn, sub *broadcast.Subscription) {
	log := logging.For("gateway")
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-sub.C:
			if !ok {
				return
			}
			if item.Lagged != nil {
				log.Warn("slow websocket consumer, events dropped", "skipped", item.Lagged.Skipped)
				continue
			}
			notif := protocol.Notification{JSONRPC: "2.0", Method: protocol.NotificationMethod, Params: item.Envelope}
			if err := conn.WriteJSON(notif); err != nil {
				return
			}
		}
	}
}

func parseParams(raw interface{}, into interface{}) bool {
	b, err := json.Marshal(raw)
	if err != nil {
		return false
	}
	return json.Unmarshal(b, into) == nil
}
