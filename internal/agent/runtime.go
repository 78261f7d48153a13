// Package agent implements the model-facing conversation loop: translating
// a session's recorded projection into provider turns, invoking the
// configured provider, and resolving any tool-use blocks it returns before
// handing back the final assistant text.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openclaw/gateway/internal/apperr"
	"github.com/openclaw/gateway/internal/eventstore"
	"github.com/openclaw/gateway/internal/ids"
	"github.com/openclaw/gateway/internal/logging"
	"github.com/openclaw/gateway/internal/providers"
	"github.com/openclaw/gateway/internal/tools"
)

var tracer = otel.Tracer("openclaw-gateway/agent")

// maxToolIterations bounds the tool-use loop per call.
const maxToolIterations = 8

// Config holds the runtime's fixed, shared state.
type Config struct {
	Provider     providers.Provider
	Tools        *tools.Registry
	Events       *eventstore.Store
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// Runtime drives process_message for one agent configuration.
type Runtime struct {
	provider     providers.Provider
	tools        *tools.Registry
	events       *eventstore.Store
	model        string
	systemPrompt string
	maxTokens    int
	temperature  float64
	agentID      ids.AgentId
}

// New builds a Runtime, clamping temperature into [0, 2] and defaulting it
// to 0.7 when unset.
func New(agentID ids.AgentId, cfg Config) *Runtime {
	temp := cfg.Temperature
	if temp == 0 {
		temp = 0.7
	}
	if temp < 0 {
		temp = 0
	}
	if temp > 2 {
		temp = 2
	}
	return &Runtime{
		provider:     cfg.Provider,
		tools:        cfg.Tools,
		events:       cfg.Events,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    cfg.MaxTokens,
		temperature:  temp,
		agentID:      agentID,
	}
}

// ProcessMessage satisfies gateway.AgentRuntime: it appends text as a new
// inbound turn for sessionKey, runs the completion/tool loop, and returns
// the final assistant text.
func (r *Runtime) ProcessMessage(ctx context.Context, sessionKey, text string) (string, error) {
	ctx, span := tracer.Start(ctx, "agent.process_message", trace.WithAttributes(
		attribute.String("agent.id", string(r.agentID)),
		attribute.String("session.key", sessionKey),
	))
	defer span.End()

	key := ids.SessionKey(sessionKey)
	log := logging.For("agent")

	inboundEvent, err := eventstore.NewEvent(key, r.agentID, time.Now(), eventstore.KindMessageReceived, eventstore.MessageReceived{Content: text})
	if err != nil {
		return "", fmt.Errorf("agent: build inbound event: %w", err)
	}
	if _, err := r.events.Append(inboundEvent); err != nil {
		return "", fmt.Errorf("agent: record inbound message: %w", err)
	}

	proj, err := r.events.GetProjection(key)
	if err != nil {
		return "", fmt.Errorf("agent: load projection: %w", err)
	}

	messages := r.buildMessages(proj)

	for iteration := 0; ; iteration++ {
		if iteration >= maxToolIterations {
			log.Warn("tool loop hit iteration cap", "session_key", sessionKey, "max", maxToolIterations)
			break
		}

		req := providers.ChatRequest{
			Messages: messages,
			Tools:    r.toolDefinitions(),
			Model:    r.model,
			Options: map[string]interface{}{
				"max_tokens":  r.maxTokens,
				"temperature": r.temperature,
			},
		}

		resp, err := r.callProvider(ctx, req, iteration)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return "", apperr.Wrapf(apperr.Upstream, err, "agent: provider %q chat call", r.provider.Name())
		}

		if len(resp.ToolCalls) == 0 {
			r.recordEvent(key, log, eventstore.KindMessageSent, eventstore.MessageSent{Content: resp.Content}, "failed to record outbound message")
			return resp.Content, nil
		}

		assistantTurn := providers.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls}
		messages = append(messages, assistantTurn)

		for _, call := range resp.ToolCalls {
			result, abort := r.runTool(ctx, key, call)
			messages = append(messages, providers.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
			if abort {
				return resp.Content, nil
			}
		}
	}

	return "", apperr.New(apperr.InternalInvariant, "agent: tool loop exceeded maximum iterations")
}

// callProvider wraps the provider call in its own span, tagging the model
// and iteration so a trace backend can break down latency per round-trip.
func (r *Runtime) callProvider(ctx context.Context, req providers.ChatRequest, iteration int) (*providers.ChatResponse, error) {
	ctx, span := tracer.Start(ctx, "agent.provider_chat", trace.WithAttributes(
		attribute.String("provider.name", r.provider.Name()),
		attribute.String("model", r.model),
		attribute.Int("iteration", iteration),
	))
	defer span.End()

	resp, err := r.provider.Chat(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if resp.Usage != nil {
		span.SetAttributes(
			attribute.Int("usage.prompt_tokens", resp.Usage.PromptTokens),
			attribute.Int("usage.completion_tokens", resp.Usage.CompletionTokens),
		)
	}
	return resp, nil
}

// runTool dispatches one tool call, records ToolCalled/ToolResult events, and
// reports whether the loop must abort (a tool-not-found is catastrophic).
func (r *Runtime) runTool(ctx context.Context, key ids.SessionKey, call providers.ToolCall) (resultText string, abort bool) {
	ctx, span := tracer.Start(ctx, "agent.run_tool", trace.WithAttributes(attribute.String("tool.name", call.Name)))
	defer span.End()

	log := logging.For("agent")

	paramsRaw, err := json.Marshal(call.Arguments)
	if err != nil {
		paramsRaw = []byte("{}")
	}
	r.recordEvent(key, log, eventstore.KindToolCalled, eventstore.ToolCalled{
		ToolName: call.Name,
		Params:   paramsRaw,
	}, "failed to record tool call")

	result := r.tools.Execute(ctx, call.Name, call.Arguments)

	success := !result.IsError
	resultPayload, _ := json.Marshal(result.ForLLM)
	r.recordEvent(key, log, eventstore.KindToolResult, eventstore.ToolResult{
		ToolName: call.Name,
		Result:   resultPayload,
		Success:  success,
	}, "failed to record tool result")

	if result.IsError {
		span.SetStatus(codes.Error, result.ForLLM)
	}

	if result.IsError && apperr.Is(result.Err, apperr.NotFound) {
		return result.ForLLM, true
	}
	return result.ForLLM, false
}

// buildMessages translates a session's recorded turns into provider-shaped
// messages, prefixed with the configured system prompt when present.
func (r *Runtime) buildMessages(proj eventstore.Projection) []providers.Message {
	var out []providers.Message
	if r.systemPrompt != "" {
		out = append(out, providers.Message{Role: "system", Content: r.systemPrompt})
	}
	for _, m := range proj.Messages {
		switch {
		case m.Tool != nil:
			out = append(out, providers.Message{Role: "user", Content: fmt.Sprintf("[%s] %s", m.Tool.Name, m.Tool.Result)})
		case m.InboundText != "":
			out = append(out, providers.Message{Role: "user", Content: m.InboundText})
		case m.OutboundText != "":
			out = append(out, providers.Message{Role: "assistant", Content: m.OutboundText})
		}
	}
	return out
}

// toolDefinitions exposes the registry's tools as provider-shaped function
// definitions for the completion request.
func (r *Runtime) toolDefinitions() []providers.ToolDefinition {
	if r.tools == nil {
		return nil
	}
	list := r.tools.List()
	out := make([]providers.ToolDefinition, 0, len(list))
	for _, t := range list {
		out = append(out, providers.ToolDefinition{
			Type: "function",
			Function: providers.ToolFunctionSchema{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Schema(),
			},
		})
	}
	return out
}

// recordEvent builds and appends one event, logging (not failing the call)
// on error — a dropped audit event should not abort an otherwise-successful
// tool invocation or reply.
func (r *Runtime) recordEvent(key ids.SessionKey, log *slog.Logger, kind eventstore.Kind, payload interface{}, warnMsg string) {
	ev, err := eventstore.NewEvent(key, r.agentID, time.Now(), kind, payload)
	if err != nil {
		log.Warn(warnMsg, "error", err)
		return
	}
	if _, err := r.events.Append(ev); err != nil {
		log.Warn(warnMsg, "error", err)
	}
}
