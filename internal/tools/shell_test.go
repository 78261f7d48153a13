package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/gateway/internal/sandbox"
)

type fakeExecutor struct {
	out sandbox.Output
	err error
}

func (f fakeExecutor) Available() bool { return true }
func (f fakeExecutor) Execute(command string, args []string, cfg sandbox.Config) (sandbox.Output, error) {
	return f.out, f.err
}

func TestExecToolDeniesDangerousCommand(t *testing.T) {
	tool := NewExecTool(fakeExecutor{}, sandbox.DefaultConfig())
	result := tool.Execute(context.Background(), map[string]interface{}{"command": "rm -rf /"})
	require.True(t, result.IsError)
}

func TestExecToolReturnsStdoutOnSuccess(t *testing.T) {
	tool := NewExecTool(fakeExecutor{out: sandbox.Output{Stdout: "hi\n", ExitCode: 0}}, sandbox.DefaultConfig())
	result := tool.Execute(context.Background(), map[string]interface{}{"command": "echo hi"})
	require.False(t, result.IsError)
	require.Equal(t, "hi\n", result.ForLLM)
}

func TestExecToolReturnsStderrOnNonzeroExit(t *testing.T) {
	tool := NewExecTool(fakeExecutor{out: sandbox.Output{Stderr: "boom", ExitCode: 7}}, sandbox.DefaultConfig())
	result := tool.Execute(context.Background(), map[string]interface{}{"command": "exit 7"})
	require.True(t, result.IsError)
	require.Equal(t, "boom", result.ForLLM)
}

func TestExecToolReportsKilled(t *testing.T) {
	tool := NewExecTool(fakeExecutor{out: sandbox.Output{Killed: true, KillReason: "cpu time limit exceeded", Duration: time.Second}}, sandbox.DefaultConfig())
	result := tool.Execute(context.Background(), map[string]interface{}{"command": "sleep 100"})
	require.True(t, result.IsError)
}

func TestExecToolRequiresCommand(t *testing.T) {
	tool := NewExecTool(fakeExecutor{}, sandbox.DefaultConfig())
	result := tool.Execute(context.Background(), map[string]interface{}{})
	require.True(t, result.IsError)
}
