package agent

import (
	"context"

	"github.com/openclaw/gateway/internal/apperr"
	"github.com/openclaw/gateway/internal/ids"
)

// Pool routes ProcessMessage calls to the Runtime configured for the
// session key's agent id, satisfying gateway.AgentRuntime for a
// multi-agent deployment.
type Pool struct {
	runtimes   map[string]*Runtime
	defaultID  string
}

// NewPool builds a Pool from a set of per-agent runtimes and the id to fall
// back to for session keys (e.g. MainSessionKey) that carry no agent id.
func NewPool(runtimes map[string]*Runtime, defaultID string) *Pool {
	return &Pool{runtimes: runtimes, defaultID: defaultID}
}

// ProcessMessage resolves the target runtime from the session key's agent
// segment, falling back to the default agent for keys ParseSessionKey
// rejects (e.g. MainSessionKey's singleton form).
func (p *Pool) ProcessMessage(ctx context.Context, sessionKey, text string) (string, error) {
	agentID := p.defaultID
	if parsed, err := ids.ParseSessionKey(ids.SessionKey(sessionKey)); err == nil {
		agentID = string(parsed.Agent)
	}

	rt, ok := p.runtimes[agentID]
	if !ok {
		return "", apperr.New(apperr.NotFound, "no agent configured: "+agentID)
	}
	return rt.ProcessMessage(ctx, sessionKey, text)
}
