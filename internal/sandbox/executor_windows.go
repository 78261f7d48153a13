//go:build windows

package sandbox

import (
	"bytes"
	"os"
	"os/exec"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/openclaw/gateway/internal/apperr"
	"github.com/openclaw/gateway/internal/logging"
)

func errSpawnFailedWindows(err error) error {
	return apperr.Wrap(apperr.Storage, err)
}

type windowsExecutor struct{}

func newPlatformExecutor() Executor { return windowsExecutor{} }

// Available reports true: Job Objects are always present on Windows, though
// they provide resource limits only — no filesystem or network isolation.
func (windowsExecutor) Available() bool { return true }

// Execute follows one coherent sequence: create job object → spawn the
// process with piped stdout/stderr → assign it to the job → wait with a
// timeout equal to the CPU budget → terminate the job on timeout → collect
// output. This resolves the ambiguity in the reference implementation's
// duplicated create/assign dance by choosing exactly this ordering.
func (windowsExecutor) Execute(command string, args []string, cfg Config) (Output, error) {
	if cfg.Level >= LevelStrict {
		logging.For("sandbox").Warn("Windows Job Objects provide no filesystem or network isolation at this level")
	}

	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return Output{}, errNotAvailable("CreateJobObject failed: " + err.Error())
	}
	defer windows.CloseHandle(job)

	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_JOB_MEMORY |
				windows.JOB_OBJECT_LIMIT_JOB_TIME |
				windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
			PerJobUserTimeLimit: int64(cfg.MaxCPUSeconds) * 10_000_000, // 100ns units
		},
		JobMemoryLimit: uintptr(cfg.MaxMemoryMB) * 1024 * 1024,
	}
	if _, err := windows.SetInformationJobObject(
		job,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	); err != nil {
		return Output{}, errNotAvailable("SetInformationJobObject failed: " + err.Error())
	}

	cmd := exec.Command(command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = nil
	for _, v := range cfg.EnvAllowlist {
		if val, ok := os.LookupEnv(v); ok {
			cmd.Env = append(cmd.Env, v+"="+val)
		}
	}
	if cfg.WorkDir != "" {
		cmd.Dir = cfg.WorkDir
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Output{}, errSpawnFailedWindows(err)
	}

	procHandle, err := windows.OpenProcess(windows.PROCESS_ALL_ACCESS, false, uint32(cmd.Process.Pid))
	if err == nil {
		_ = windows.AssignProcessToJobObject(job, procHandle)
		windows.CloseHandle(procHandle)
	}

	timeout := time.Duration(cfg.MaxCPUSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var killed bool
	var reason string
	select {
	case waitErr := <-done:
		_ = waitErr
	case <-time.After(timeout):
		killed = true
		reason = "CPU time limit exceeded"
		windows.TerminateJobObject(job, 1)
		_ = cmd.Process.Kill()
		<-done
	}

	duration := time.Since(start)
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	if !killed && exitCode < 0 {
		killed = true
		reason = "terminated by job object (possibly memory limit)"
	}

	return Output{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		ExitCode:   exitCode,
		Duration:   duration,
		Killed:     killed,
		KillReason: reason,
	}, nil
}
