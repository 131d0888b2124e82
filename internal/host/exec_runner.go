package host

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"time"

	streamyerrors "github.com/nodeforge/flowengine/pkg/errors"
)

// ExecRunner is the default ScriptRunner, spawning an interpreter process
// per supported language via os/exec, mirroring the command plugin's
// shell-resolution and output-capture approach.
type ExecRunner struct {
	// Interpreters maps a language tag to the executable that runs a
	// script file of that language, e.g. "python" -> "python3".
	// Defaults are registered for "sh" and "bash".
	Interpreters map[string]string
}

// NewExecRunner builds an ExecRunner with sensible shell defaults.
func NewExecRunner() *ExecRunner {
	shell := "/bin/sh"
	if runtime.GOOS == "windows" {
		shell = "cmd"
	} else if path, err := exec.LookPath("bash"); err == nil {
		shell = path
	}
	return &ExecRunner{
		Interpreters: map[string]string{
			"sh":    shell,
			"bash":  shell,
			"shell": shell,
		},
	}
}

// Run writes source to a temp file, invokes the registered interpreter
// with args appended, and captures combined-but-separated stdout/stderr.
func (r *ExecRunner) Run(ctx context.Context, language, source string, args []string, env map[string]string, cwd string, timeout time.Duration) (ScriptResult, error) {
	interpreter, ok := r.Interpreters[language]
	if !ok {
		return ScriptResult{}, streamyerrors.NewValidationExecError("", "unsupported script language: "+language, nil)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tmp, err := os.CreateTemp("", "flowengine-script-*")
	if err != nil {
		return ScriptResult{}, streamyerrors.NewRuntimeError("", "create temp script", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(source); err != nil {
		tmp.Close()
		return ScriptResult{}, streamyerrors.NewRuntimeError("", "write temp script", err)
	}
	tmp.Close()

	cmdArgs := append([]string{tmp.Name()}, args...)
	cmd := exec.CommandContext(runCtx, interpreter, cmdArgs...)
	cmd.Dir = cwd
	cmd.Env = buildEnv(env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result := ScriptResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return result, streamyerrors.NewTimeoutError("", "script exceeded wall-clock timeout", runCtx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if runErr != nil {
		return result, streamyerrors.NewRuntimeError("", "script invocation failed", runErr)
	}
	return result, nil
}

func buildEnv(custom map[string]string) []string {
	env := os.Environ()
	for k, v := range custom {
		env = append(env, k+"="+v)
	}
	return env
}
