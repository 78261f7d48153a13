package tools

import "context"

// EchoTool returns its msg parameter unchanged. Mainly useful for exercising
// the registry's validation and dispatch path in isolation from the shell
// and sandbox.
type EchoTool struct{}

func (EchoTool) Name() string        { return "echo" }
func (EchoTool) Description() string { return "Return the given message unchanged" }

func (EchoTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"msg"},
		"properties": map[string]interface{}{
			"msg": map[string]interface{}{"type": "string"},
		},
	}
}

func (EchoTool) Execute(ctx context.Context, params map[string]interface{}) *Result {
	msg, _ := params["msg"].(string)
	return SilentResult(msg)
}
