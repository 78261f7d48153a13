package tools

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/openclaw/gateway/internal/apperr"
)

// Tool is a named, schema-validated capability the agent runtime can invoke.
type Tool interface {
	Name() string
	Description() string
	// Schema returns the tool's input JSON Schema as a decoded map, suitable
	// for both advertising to a model and compiling for parameter validation.
	Schema() map[string]interface{}
	Execute(ctx context.Context, params map[string]interface{}) *Result
}

type registeredTool struct {
	tool     Tool
	compiled *jsonschema.Schema
}

// Registry holds tools by name and validates parameters against each tool's
// schema before dispatching execution.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registeredTool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*registeredTool)}
}

// Register compiles the tool's schema and adds it under its name, replacing
// any previously registered tool with the same name.
func (r *Registry) Register(t Tool) error {
	schema := t.Schema()
	if schema == nil {
		schema = map[string]interface{}{"type": "object"}
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return apperr.Wrap(apperr.Validation, err)
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return apperr.Wrap(apperr.Validation, err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(t.Name()+".json", decoded); err != nil {
		return apperr.Wrapf(apperr.Validation, err, "compiling schema for tool %q", t.Name())
	}
	compiled, err := c.Compile(t.Name() + ".json")
	if err != nil {
		return apperr.Wrapf(apperr.Validation, err, "compiling schema for tool %q", t.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = &registeredTool{tool: t, compiled: compiled}
	return nil
}

func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.tools[name]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "tool not registered: "+name)
	}
	return rt.tool, nil
}

func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, rt := range r.tools {
		out = append(out, rt.tool)
	}
	return out
}

// Execute validates params against the named tool's schema, then runs it.
// An unregistered name fails with apperr.NotFound; a schema mismatch fails
// with apperr.Validation without running the tool.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]interface{}) *Result {
	r.mu.RLock()
	rt, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return &Result{ForLLM: "tool not found: " + name, IsError: true, Err: apperr.New(apperr.NotFound, "tool not registered: "+name)}
	}

	if params == nil {
		params = map[string]interface{}{}
	}
	if err := rt.compiled.Validate(params); err != nil {
		wrapped := apperr.Wrapf(apperr.Validation, err, "invalid params for tool %q", name)
		return &Result{ForLLM: wrapped.Error(), IsError: true, Err: wrapped}
	}

	return rt.tool.Execute(ctx, params)
}
