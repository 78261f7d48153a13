//go:build linux

package sandbox

import (
	"bytes"
	"os"
	"os/exec"
	"time"
)

type linuxExecutor struct{}

func newPlatformExecutor() Executor { return linuxExecutor{} }

func (linuxExecutor) Available() bool {
	_, err := exec.LookPath("bwrap")
	return err == nil
}

// Execute composes bubblewrap flags that unshare pid/uts, optionally
// unshare network, bind system directories read-only, bind allowlisted
// paths, clear the environment then set allowlisted variables, chdir, and
// finally append the command after a "--" separator.
func (linuxExecutor) Execute(command string, args []string, cfg Config) (Output, error) {
	if _, err := exec.LookPath("bwrap"); err != nil {
		return Output{}, errNotAvailable("bubblewrap (bwrap) not installed")
	}

	flags := []string{"--unshare-pid", "--unshare-uts", "--die-with-parent"}

	switch cfg.Level {
	case LevelNone:
		flags = append(flags, "--bind", "/", "/")
	case LevelMinimal:
		flags = append(flags, "--ro-bind", "/", "/")
	case LevelStandard, LevelStrict:
		flags = append(flags,
			"--ro-bind", "/usr", "/usr",
			"--ro-bind", "/lib", "/lib",
			"--ro-bind", "/bin", "/bin",
			"--ro-bind", "/sbin", "/sbin",
			"--symlink", "/usr/lib64", "/lib64",
			"--tmpfs", "/tmp",
			"--proc", "/proc",
			"--dev", "/dev",
		)
	case LevelParanoid:
		flags = append(flags,
			"--tmpfs", "/",
			"--ro-bind", "/usr/bin", "/usr/bin",
			"--ro-bind", "/usr/lib", "/usr/lib",
			"--proc", "/proc",
			"--dev", "/dev",
		)
	}

	if !cfg.NetworkAllowed && cfg.Level >= LevelStrict {
		flags = append(flags, "--unshare-net")
	}

	for _, p := range cfg.AllowedPaths {
		flags = append(flags, "--bind", p, p)
	}
	for _, p := range cfg.ReadonlyPaths {
		flags = append(flags, "--ro-bind", p, p)
	}

	flags = append(flags, "--clearenv")
	for _, v := range cfg.EnvAllowlist {
		if val, ok := os.LookupEnv(v); ok {
			flags = append(flags, "--setenv", v, val)
		}
	}

	if cfg.WorkDir != "" {
		flags = append(flags, "--chdir", cfg.WorkDir)
	}

	flags = append(flags, "--")
	flags = append(flags, command)
	flags = append(flags, args...)

	timeout := time.Duration(cfg.MaxCPUSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	cmd := exec.Command("bwrap", flags...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		return Output{}, errSpawnFailed(err)
	}
	go func() { done <- cmd.Wait() }()

	var killed bool
	var reason string
	select {
	case err := <-done:
		return finishOutput(start, stdout.String(), stderr.String(), cmd, err, false, "")
	case <-time.After(timeout):
		killed = true
		reason = "cpu time limit exceeded"
		_ = cmd.Process.Kill()
		err := <-done
		return finishOutput(start, stdout.String(), stderr.String(), cmd, err, killed, reason)
	}
}
