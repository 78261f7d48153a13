// Package sandbox wraps child-process execution in a platform-specific
// isolation profile that bounds memory, CPU time, file-descriptor count,
// filesystem visibility, and network access.
package sandbox

import (
	"time"

	"github.com/openclaw/gateway/internal/apperr"
)

// Level is a totally ordered isolation tier: None < Minimal < Standard < Strict < Paranoid.
type Level int

const (
	LevelNone Level = iota
	LevelMinimal
	LevelStandard
	LevelStrict
	LevelParanoid
)

// String renders the level's name.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelMinimal:
		return "minimal"
	case LevelStandard:
		return "standard"
	case LevelStrict:
		return "strict"
	case LevelParanoid:
		return "paranoid"
	default:
		return "unknown"
	}
}

// Config parameterizes one sandboxed execution.
type Config struct {
	Level              Level
	MaxMemoryMB        uint64
	MaxCPUSeconds       uint64
	MaxFileDescriptors uint64
	AllowedPaths       []string // read-write bind list
	ReadonlyPaths      []string
	EnvAllowlist       []string
	NetworkAllowed     bool
	WorkDir            string // optional
}

// DefaultConfig matches the reference implementation's defaults: Standard
// isolation, 512MB/60s budget, no network, and a minimal passthrough env.
func DefaultConfig() Config {
	return Config{
		Level:              LevelStandard,
		MaxMemoryMB:        512,
		MaxCPUSeconds:      60,
		MaxFileDescriptors: 256,
		EnvAllowlist:       []string{"PATH", "HOME", "LANG", "TERM"},
		NetworkAllowed:     false,
	}
}

// Output is the result of a sandboxed execution.
type Output struct {
	Stdout     string
	Stderr     string
	ExitCode   int // -1 if signaled / no exit code available
	Duration   time.Duration
	Killed     bool
	KillReason string
}

// ErrNotAvailable is returned (wrapped as apperr.NotFound... actually Storage)
// when no sandbox helper exists for the current platform.
func errNotAvailable(reason string) error {
	return apperr.New(apperr.Storage, "sandbox not available: "+reason)
}

// Executor runs one command under a Config on the current platform.
type Executor interface {
	// Execute runs command with args under cfg, returning collected output.
	// Pre-flight: if the platform-specific helper is missing, fails with
	// NotAvailable rather than silently running unsandboxed.
	Execute(command string, args []string, cfg Config) (Output, error)
	// Available reports whether the platform sandbox helper is installed.
	Available() bool
}

// New returns the Executor appropriate for the running platform (see
// execute_unix.go / execute_windows.go / execute_other.go for the
// platform-dispatched implementations).
func New() Executor {
	return newPlatformExecutor()
}
