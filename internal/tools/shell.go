package tools

import (
	"context"
	"fmt"
	"regexp"

	"github.com/openclaw/gateway/internal/sandbox"
)

// Dangerous command patterns denied before a command ever reaches the
// sandboxed executor. Defense-in-depth alongside the isolation level itself:
// these patterns catch intent (exfiltration, privilege escalation, reverse
// shells) that a filesystem/network sandbox alone wouldn't stop.
// Sources: OWASP Agentic AI Top 10, MITRE ATT&CK, PayloadsAllTheThings.
var defaultDenyPatterns = []*regexp.Regexp{
	// ── Destructive file operations ──
	regexp.MustCompile(`\brm\s+-[rf]{1,2}\b`),
	regexp.MustCompile(`\brm\s+.*--recursive`),
	regexp.MustCompile(`\brm\s+.*--force`),
	regexp.MustCompile(`\bdel\s+/[fq]\b`),
	regexp.MustCompile(`\b(mkfs|diskpart)\b|\bformat\s`),
	regexp.MustCompile(`\bdd\s+if=`),
	regexp.MustCompile(`\b(shutdown|reboot|poweroff)\b`),
	regexp.MustCompile(`:\(\)\s*\{.*\};\s*:`), // fork bomb

	// ── Data exfiltration ──
	regexp.MustCompile(`\bcurl\b.*\|\s*(ba)?sh\b`),
	regexp.MustCompile(`\bcurl\b.*(-d\b|-F\b|--data|--upload|--form|-T\b|-X\s*P(UT|OST|ATCH))`),
	regexp.MustCompile(`\bwget\b.*-O\s*-\s*\|\s*(ba)?sh\b`),
	regexp.MustCompile(`\bwget\b.*--post-(data|file)`),
	regexp.MustCompile(`/dev/tcp/`),

	// ── Reverse shells ──
	regexp.MustCompile(`\b(nc|ncat|netcat)\b.*-[el]\b`),
	regexp.MustCompile(`\bsocat\b`),
	regexp.MustCompile(`\bopenssl\b.*s_client`),
	regexp.MustCompile(`\bmkfifo\b`),

	// ── Privilege escalation ──
	regexp.MustCompile(`\bsudo\b`),
	regexp.MustCompile(`\bsu\s+-`),
	regexp.MustCompile(`\bnsenter\b`),
	regexp.MustCompile(`\bunshare\b`),
	regexp.MustCompile(`\b(mount|umount)\b`),

	// ── Environment variable injection ──
	regexp.MustCompile(`\bLD_PRELOAD\s*=`),
	regexp.MustCompile(`\bDYLD_INSERT_LIBRARIES\s*=`),
	regexp.MustCompile(`\bBASH_ENV\s*=`),

	// ── Container/sandbox escape ──
	regexp.MustCompile(`/var/run/docker\.sock|docker\.(sock|socket)`),
	regexp.MustCompile(`/proc/sys/(kernel|fs|net)/`),
	regexp.MustCompile(`/sys/(kernel|fs|class|devices)/`),
}

// ExecTool runs a shell command through the sandboxed executor (package
// sandbox) and reports stdout on success or stderr on nonzero exit, per the
// shell tool contract.
type ExecTool struct {
	executor     sandbox.Executor
	cfg          sandbox.Config
	denyPatterns []*regexp.Regexp
}

func NewExecTool(executor sandbox.Executor, cfg sandbox.Config) *ExecTool {
	return &ExecTool{executor: executor, cfg: cfg, denyPatterns: defaultDenyPatterns}
}

func (t *ExecTool) Name() string        { return "exec" }
func (t *ExecTool) Description() string { return "Execute a shell command under the sandboxed executor and return its output" }

func (t *ExecTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"command"},
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "The shell command to execute",
			},
		},
	}
}

func (t *ExecTool) Execute(ctx context.Context, params map[string]interface{}) *Result {
	command, _ := params["command"].(string)
	if command == "" {
		return ErrorResult("command is required")
	}

	for _, pattern := range t.denyPatterns {
		if pattern.MatchString(command) {
			return ErrorResult(fmt.Sprintf("command denied by safety policy: matches pattern %s", pattern.String()))
		}
	}

	out, err := t.executor.Execute("sh", []string{"-c", command}, t.cfg)
	if err != nil {
		return ErrorResult(fmt.Sprintf("exec: %v", err)).WithError(err)
	}

	if out.Killed {
		return ErrorResult(fmt.Sprintf("command killed: %s", out.KillReason))
	}
	if out.ExitCode != 0 {
		stderr := out.Stderr
		if stderr == "" {
			stderr = fmt.Sprintf("command exited with code %d", out.ExitCode)
		}
		return ErrorResult(stderr)
	}

	stdout := out.Stdout
	if stdout == "" {
		stdout = "(command completed with no output)"
	}
	return SilentResult(stdout)
}
