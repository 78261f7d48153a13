package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/openclaw/gateway/internal/apperr"
	"github.com/openclaw/gateway/internal/broadcast"
	"github.com/openclaw/gateway/internal/eventstore"
	"github.com/openclaw/gateway/internal/ids"
	"github.com/openclaw/gateway/internal/tokens"
	"github.com/openclaw/gateway/internal/users"
	"github.com/openclaw/gateway/pkg/protocol"
)

// dispatch routes a decoded JSON-RPC method to its handler. Unknown methods
// fail with MethodNotFound; handler-level apperr failures are translated to
// the matching JSON-RPC error code.
func (s *Server) dispatch(ctx context.Context, method string, params interface{}, claims *tokens.Claims) (interface{}, *protocol.Error) {
	switch method {
	case protocol.MethodAuthLogin:
		return s.authLogin(params)
	case protocol.MethodAuthRefresh:
		return s.authRefresh(params)
	case protocol.MethodAuthMe:
		return s.authMe(claims)
	case protocol.MethodSetupStatus:
		return s.setupStatus()
	case protocol.MethodSetupInit:
		return s.setupInit(params)
	case protocol.MethodUsersList:
		return s.usersList()
	case protocol.MethodUsersCreate:
		return s.usersCreate(params)
	case protocol.MethodUsersUpdate:
		return s.usersUpdate(params)
	case protocol.MethodUsersDelete:
		return s.usersDelete(params)
	case protocol.MethodSessionCreate:
		return s.sessionCreate(params)
	case protocol.MethodSessionMessage:
		return s.sessionMessage(ctx, params)
	case protocol.MethodSessionHistory:
		return s.sessionHistory(params)
	case protocol.MethodSessionEnd:
		return s.sessionEnd(params)
	case protocol.MethodSessionEvents:
		return s.sessionEvents(params)
	case protocol.MethodSessionList:
		return s.sessionList()
	case protocol.MethodChannelsList:
		return s.channelsList()
	case protocol.MethodChannelsProbe:
		return s.channelsProbe(ctx, params)
	case protocol.MethodAgentList:
		return s.agentList()
	case protocol.MethodAgentGet:
		return s.agentGet(params)
	case protocol.MethodToolsList:
		return s.toolsList()
	case protocol.MethodToolsExecute:
		return s.toolsExecute(ctx, params)
	case protocol.MethodSystemHealth:
		return map[string]string{"status": "ok"}, nil
	case protocol.MethodSystemVersion:
		return map[string]string{"version": s.version}, nil
	default:
		return nil, protocol.NewError(protocol.ErrCodeMethodNotFound, "method not found: "+method)
	}
}

func errorToRPC(err error) *protocol.Error {
	if err == nil {
		return nil
	}
	switch apperr.KindOf(err) {
	case apperr.Unauthorized:
		return protocol.NewError(protocol.ErrCodeUnauthorized, err.Error())
	case apperr.Forbidden:
		return protocol.NewError(protocol.ErrCodeForbidden, err.Error())
	case apperr.NotFound:
		return protocol.NewError(protocol.ErrCodeNotFound, err.Error())
	case apperr.Validation:
		return protocol.NewError(protocol.ErrCodeInvalidParams, err.Error())
	default:
		return protocol.NewError(protocol.ErrCodeInternal, err.Error())
	}
}

type loginParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) authLogin(raw interface{}) (interface{}, *protocol.Error) {
	var p loginParams
	if !parseParams(raw, &p) {
		return nil, protocol.NewError(protocol.ErrCodeInvalidParams, "invalid params")
	}
	u, err := s.users.GetByUsername(p.Username)
	if err != nil {
		return nil, protocol.NewError(protocol.ErrCodeUnauthorized, "invalid credentials")
	}
	ok, err := users.VerifyPassword(u.PasswordHash, p.Password)
	if err != nil || !ok {
		return nil, protocol.NewError(protocol.ErrCodeUnauthorized, "invalid credentials")
	}

	access, err := s.tokensMgr.CreateAccessToken(u.ID, u.Username, string(u.Role))
	if err != nil {
		return nil, errorToRPC(err)
	}
	refresh, err := s.tokensMgr.CreateRefreshToken(u.ID, u.Username, string(u.Role), "")
	if err != nil {
		return nil, errorToRPC(err)
	}
	return tokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Server) authRefresh(raw interface{}) (interface{}, *protocol.Error) {
	var p struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !parseParams(raw, &p) {
		return nil, protocol.NewError(protocol.ErrCodeInvalidParams, "invalid params")
	}
	access, refresh, err := s.tokensMgr.RefreshTokens(p.RefreshToken)
	if err != nil {
		return nil, errorToRPC(err)
	}
	return tokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

type publicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Email    string `json:"email,omitempty"`
}

func toPublicUser(u users.User) publicUser {
	return publicUser{ID: u.ID, Username: u.Username, Role: string(u.Role), Email: u.Email}
}

func (s *Server) authMe(claims *tokens.Claims) (interface{}, *protocol.Error) {
	if claims == nil {
		return nil, protocol.NewError(protocol.ErrCodeUnauthorized, "unauthorized")
	}
	u, err := s.users.Get(claims.Subject)
	if err != nil {
		return nil, errorToRPC(err)
	}
	return toPublicUser(u), nil
}

func (s *Server) setupStatus() (interface{}, *protocol.Error) {
	status, err := s.bootstrapMgr.Status()
	if err != nil {
		return nil, errorToRPC(err)
	}
	return status, nil
}

func (s *Server) setupInit(raw interface{}) (interface{}, *protocol.Error) {
	var p struct {
		Token    string `json:"token"`
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if !parseParams(raw, &p) {
		return nil, protocol.NewError(protocol.ErrCodeInvalidParams, "invalid params")
	}
	u, err := s.bootstrapMgr.Init(p.Token, p.Username, p.Password, p.Email)
	if err != nil {
		return nil, errorToRPC(err)
	}
	return toPublicUser(u), nil
}

func (s *Server) usersList() (interface{}, *protocol.Error) {
	list, err := s.users.List()
	if err != nil {
		return nil, errorToRPC(err)
	}
	out := make([]publicUser, 0, len(list))
	for _, u := range list {
		out = append(out, toPublicUser(u))
	}
	return out, nil
}

func (s *Server) usersCreate(raw interface{}) (interface{}, *protocol.Error) {
	var p struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
		Email    string `json:"email"`
	}
	if !parseParams(raw, &p) {
		return nil, protocol.NewError(protocol.ErrCodeInvalidParams, "invalid params")
	}
	hash, err := users.HashPassword(p.Password)
	if err != nil {
		return nil, errorToRPC(err)
	}
	role := users.RoleUser
	if p.Role == string(users.RoleAdmin) {
		role = users.RoleAdmin
	}
	u := users.User{ID: randomID(), Username: p.Username, PasswordHash: hash, Role: role, Email: p.Email}
	if err := s.users.Create(u); err != nil {
		return nil, errorToRPC(err)
	}
	return toPublicUser(u), nil
}

func (s *Server) usersUpdate(raw interface{}) (interface{}, *protocol.Error) {
	var p struct {
		ID       string `json:"id"`
		Username string `json:"username,omitempty"`
		Password string `json:"password,omitempty"`
		Role     string `json:"role,omitempty"`
		Email    string `json:"email,omitempty"`
	}
	if !parseParams(raw, &p) || p.ID == "" {
		return nil, protocol.NewError(protocol.ErrCodeInvalidParams, "invalid params")
	}
	u, err := s.users.Get(p.ID)
	if err != nil {
		return nil, errorToRPC(err)
	}
	if p.Username != "" {
		u.Username = p.Username
	}
	if p.Email != "" {
		u.Email = p.Email
	}
	if p.Role != "" {
		if p.Role == string(users.RoleAdmin) {
			u.Role = users.RoleAdmin
		} else {
			u.Role = users.RoleUser
		}
	}
	if p.Password != "" {
		hash, err := users.HashPassword(p.Password)
		if err != nil {
			return nil, errorToRPC(err)
		}
		u.PasswordHash = hash
	}
	if err := s.users.Update(u); err != nil {
		return nil, errorToRPC(err)
	}
	return toPublicUser(u), nil
}

func (s *Server) usersDelete(raw interface{}) (interface{}, *protocol.Error) {
	var p struct {
		ID string `json:"id"`
	}
	if !parseParams(raw, &p) {
		return nil, protocol.NewError(protocol.ErrCodeInvalidParams, "invalid params")
	}
	if err := s.users.Delete(p.ID); err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]bool{"deleted": true}, nil
}

func (s *Server) sessionCreate(raw interface{}) (interface{}, *protocol.Error) {
	var p struct {
		Agent    string `json:"agent"`
		Channel  string `json:"channel"`
		Account  string `json:"account"`
		PeerType string `json:"peer_type"`
		PeerID   string `json:"peer_id"`
	}
	if !parseParams(raw, &p) || p.Agent == "" || p.Channel == "" || p.PeerID == "" {
		return nil, protocol.NewError(protocol.ErrCodeInvalidParams, "invalid params")
	}
	peerType := ids.PeerDM
	if p.PeerType == string(ids.PeerGroup) {
		peerType = ids.PeerGroup
	}

	key := ids.BuildSessionKey(ids.AgentId(p.Agent), ids.ChannelId(p.Channel), p.Account, peerType, ids.PeerId(p.PeerID))
	ev, err := eventstore.NewEvent(key, ids.AgentId(p.Agent), time.Now(), eventstore.KindSessionStarted,
		eventstore.SessionStarted{Channel: p.Channel, PeerID: p.PeerID})
	if err != nil {
		return nil, protocol.NewError(protocol.ErrCodeInternal, err.Error())
	}
	if _, err := s.events.Append(ev); err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]string{"session_key": string(key)}, nil
}

func (s *Server) sessionEnd(raw interface{}) (interface{}, *protocol.Error) {
	var p struct {
		SessionKey string `json:"session_key"`
		Reason     string `json:"reason"`
	}
	if !parseParams(raw, &p) || p.SessionKey == "" {
		return nil, protocol.NewError(protocol.ErrCodeInvalidParams, "invalid params")
	}
	key := ids.SessionKey(p.SessionKey)
	parsed, perr := ids.ParseSessionKey(key)
	agentID := ids.AgentId("")
	if perr == nil {
		agentID = parsed.Agent
	}
	ev, err := eventstore.NewEvent(key, agentID, time.Now(), eventstore.KindSessionEnded, eventstore.SessionEnded{Reason: p.Reason})
	if err != nil {
		return nil, protocol.NewError(protocol.ErrCodeInternal, err.Error())
	}
	if _, err := s.events.Append(ev); err != nil {
		return nil, errorToRPC(err)
	}

	s.broadcaster.Broadcast(broadcast.Event{Type: broadcast.EventSessionUpdated, Data: map[string]string{"session_key": p.SessionKey, "status": "ended"}})
	return map[string]bool{"ended": true}, nil
}

func (s *Server) sessionMessage(ctx context.Context, raw interface{}) (interface{}, *protocol.Error) {
	var p struct {
		SessionKey string `json:"session_key"`
		Text       string `json:"text"`
	}
	if !parseParams(raw, &p) || p.SessionKey == "" {
		return nil, protocol.NewError(protocol.ErrCodeInvalidParams, "invalid params")
	}
	if s.agents == nil {
		return nil, protocol.NewError(protocol.ErrCodeInternal, "agent runtime not configured")
	}
	reply, err := s.agents.ProcessMessage(ctx, p.SessionKey, p.Text)
	if err != nil {
		return nil, errorToRPC(err)
	}

	s.broadcaster.Broadcast(broadcast.Event{Type: broadcast.EventMessageSent, Data: map[string]string{
		"session_key": p.SessionKey,
		"content":     reply,
	}})
	return map[string]string{"reply": reply}, nil
}

func (s *Server) sessionHistory(raw interface{}) (interface{}, *protocol.Error) {
	var p struct {
		SessionKey string `json:"session_key"`
	}
	if !parseParams(raw, &p) || p.SessionKey == "" {
		return nil, protocol.NewError(protocol.ErrCodeInvalidParams, "invalid params")
	}
	proj, err := s.events.GetProjection(ids.SessionKey(p.SessionKey))
	if err != nil {
		return nil, errorToRPC(err)
	}
	return proj, nil
}

func (s *Server) sessionEvents(raw interface{}) (interface{}, *protocol.Error) {
	var p struct {
		SessionKey string `json:"session_key"`
	}
	if !parseParams(raw, &p) || p.SessionKey == "" {
		return nil, protocol.NewError(protocol.ErrCodeInvalidParams, "invalid params")
	}
	evs, err := s.events.GetEvents(ids.SessionKey(p.SessionKey))
	if err != nil {
		return nil, errorToRPC(err)
	}
	return evs, nil
}

func (s *Server) sessionList() (interface{}, *protocol.Error) {
	keys, err := s.events.ListSessions()
	if err != nil {
		return nil, errorToRPC(err)
	}
	return keys, nil
}

func (s *Server) agentList() (interface{}, *protocol.Error) {
	if s.agentInfos == nil {
		return []AgentInfo{}, nil
	}
	return s.agentInfos, nil
}

func (s *Server) agentGet(raw interface{}) (interface{}, *protocol.Error) {
	var p struct {
		ID string `json:"id"`
	}
	if !parseParams(raw, &p) || p.ID == "" {
		return nil, protocol.NewError(protocol.ErrCodeInvalidParams, "invalid params")
	}
	for _, a := range s.agentInfos {
		if a.ID == p.ID {
			return a, nil
		}
	}
	return nil, protocol.NewError(protocol.ErrCodeNotFound, "agent not found: "+p.ID)
}

func (s *Server) channelsList() (interface{}, *protocol.Error) {
	if s.channels == nil {
		return []ChannelInfo{}, nil
	}
	return s.channels.List(), nil
}

func (s *Server) channelsProbe(ctx context.Context, raw interface{}) (interface{}, *protocol.Error) {
	var p struct {
		ID string `json:"id"`
	}
	if !parseParams(raw, &p) || p.ID == "" {
		return nil, protocol.NewError(protocol.ErrCodeInvalidParams, "invalid params")
	}
	if s.channels == nil {
		return nil, protocol.NewError(protocol.ErrCodeNotFound, "no channels registered")
	}
	info, err := s.channels.Probe(ctx, p.ID)
	if err != nil {
		return nil, errorToRPC(err)
	}
	return info, nil
}

type toolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Schema      map[string]interface{} `json:"schema"`
}

func (s *Server) toolsList() (interface{}, *protocol.Error) {
	list := s.toolsReg.List()
	out := make([]toolInfo, 0, len(list))
	for _, t := range list {
		out = append(out, toolInfo{Name: t.Name(), Description: t.Description(), Schema: t.Schema()})
	}
	return out, nil
}

func (s *Server) toolsExecute(ctx context.Context, raw interface{}) (interface{}, *protocol.Error) {
	var p struct {
		Name   string                 `json:"name"`
		Params map[string]interface{} `json:"params"`
	}
	if !parseParams(raw, &p) || p.Name == "" {
		return nil, protocol.NewError(protocol.ErrCodeInvalidParams, "invalid params")
	}
	result := s.toolsReg.Execute(ctx, p.Name, p.Params)
	if result.IsError {
		return nil, errorToRPC(result.Err)
	}
	return map[string]interface{}{"success": true, "content": result.ForLLM}, nil
}

func randomID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
