//go:build darwin

package sandbox

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

type darwinExecutor struct{}

func newPlatformExecutor() Executor { return darwinExecutor{} }

func (darwinExecutor) Available() bool {
	_, err := exec.LookPath("sandbox-exec")
	return err == nil
}

// Execute generates a Seatbelt profile from cfg and runs the command under
// sandbox-exec -f <profile>.
func (darwinExecutor) Execute(command string, args []string, cfg Config) (Output, error) {
	if _, err := exec.LookPath("sandbox-exec"); err != nil {
		return Output{}, errNotAvailable("sandbox-exec not installed")
	}

	profile := generateSeatbeltProfile(cfg)
	profileFile, err := os.CreateTemp("", "openclaw-sandbox-*.sb")
	if err != nil {
		return Output{}, errSpawnFailed(err)
	}
	defer os.Remove(profileFile.Name())
	if _, err := profileFile.WriteString(profile); err != nil {
		profileFile.Close()
		return Output{}, errSpawnFailed(err)
	}
	profileFile.Close()

	cmdArgs := append([]string{"-f", profileFile.Name(), command}, args...)
	cmd := exec.Command("sandbox-exec", cmdArgs...)

	cmd.Env = nil
	for _, v := range cfg.EnvAllowlist {
		if val, ok := os.LookupEnv(v); ok {
			cmd.Env = append(cmd.Env, v+"="+val)
		}
	}
	if cfg.WorkDir != "" {
		cmd.Dir = cfg.WorkDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	timeout := time.Duration(cfg.MaxCPUSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Output{}, errSpawnFailed(err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return finishOutput(start, stdout.String(), stderr.String(), cmd, err, false, "")
	case <-time.After(timeout):
		_ = cmd.Process.Kill()
		err := <-done
		return finishOutput(start, stdout.String(), stderr.String(), cmd, err, true, "cpu time limit exceeded")
	}
}

func generateSeatbeltProfile(cfg Config) string {
	var b strings.Builder
	b.WriteString("(version 1)\n")

	if cfg.Level == LevelNone {
		b.WriteString("(allow default)\n")
		return b.String()
	}
	b.WriteString("(deny default)\n")

	b.WriteString(`
(allow process-exec)
(allow process-fork)

(allow file-read*
    (subpath "/usr/lib")
    (subpath "/usr/share")
    (subpath "/System/Library/Frameworks")
    (subpath "/System/Library/PrivateFrameworks")
    (subpath "/Library/Frameworks")
    (subpath "/private/var/db/dyld")
    (literal "/dev/null")
    (literal "/dev/zero")
    (literal "/dev/urandom")
    (literal "/dev/random")
    (literal "/dev/tty"))

(allow file-read*
    (subpath "/usr/bin")
    (subpath "/usr/sbin")
    (subpath "/bin")
    (subpath "/sbin")
    (subpath "/opt/homebrew")
    (subpath "/usr/local"))

(allow mach-lookup)
(allow signal (target self))
(allow sysctl-read)
`)

	for _, p := range cfg.AllowedPaths {
		fmt.Fprintf(&b, "(allow file-read* file-write* (subpath %q))\n", p)
	}
	for _, p := range cfg.ReadonlyPaths {
		fmt.Fprintf(&b, "(allow file-read* (subpath %q))\n", p)
	}

	b.WriteString(`
(allow file-read* file-write*
    (subpath "/private/tmp")
    (subpath "/var/folders"))
`)

	if cfg.NetworkAllowed {
		b.WriteString("\n(allow network*)\n")
	} else if cfg.Level < LevelStrict {
		b.WriteString(`
(allow network-outbound (remote unix-socket (path-literal "/var/run/mDNSResponder")))
`)
	}

	if cfg.Level < LevelParanoid {
		b.WriteString(`
(allow file-read* (subpath (param "HOME")))
`)
	}

	return b.String()
}
