package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nodeforge/flowengine/internal/graph"
	"github.com/nodeforge/flowengine/internal/host"
	"github.com/nodeforge/flowengine/internal/state"
	streamyerrors "github.com/nodeforge/flowengine/pkg/errors"
)

// ScriptData is the expected shape of a script node's Node.Data.
type ScriptData struct {
	Language string
	Source   string
	Env      map[string]string
	Cwd      string
	Timeout  time.Duration
}

// DefaultScriptTimeout is applied when a script node omits one, per §5's
// host-executor requirement.
const DefaultScriptTimeout = 10 * time.Second

// ScriptHandler forwards a script's source and a positional argument list
// derived from the node's inputs to the host ScriptRunner collaborator,
// and captures stdout/stderr/exit code into the handler's output.
type ScriptHandler struct {
	Runner             host.ScriptRunner
	SupportedLanguages map[string]bool
}

// NewScriptHandler constructs a ScriptHandler bound to a ScriptRunner,
// accepting the given set of supported languages (unknown languages fail
// validation per §4.2).
func NewScriptHandler(runner host.ScriptRunner, languages ...string) *ScriptHandler {
	supported := make(map[string]bool, len(languages))
	for _, l := range languages {
		supported[l] = true
	}
	return &ScriptHandler{Runner: runner, SupportedLanguages: supported}
}

func (*ScriptHandler) RequiredInputs() []string { return nil }
func (*ScriptHandler) Outputs() []string        { return []string{"output", "stdout", "stderr", "exit_code"} }

func (h *ScriptHandler) Validate(node graph.Node, _ map[string]any) []*streamyerrors.ExecutionError {
	data, ok := node.Data.(ScriptData)
	if !ok {
		return []*streamyerrors.ExecutionError{
			streamyerrors.NewValidationExecError(node.ID, "script node requires ScriptData", nil),
		}
	}
	if len(h.SupportedLanguages) > 0 && !h.SupportedLanguages[data.Language] {
		return []*streamyerrors.ExecutionError{
			streamyerrors.NewValidationExecError(node.ID, "unsupported script language: "+data.Language, nil),
		}
	}
	return nil
}

func (h *ScriptHandler) Execute(ctx context.Context, node graph.Node, _ *state.ExecutionContext, inputs map[string]any) (any, error) {
	data, ok := node.Data.(ScriptData)
	if !ok {
		return nil, streamyerrors.NewValidationExecError(node.ID, "script node requires ScriptData", nil)
	}
	if h.Runner == nil {
		return nil, streamyerrors.NewFatalError(node.ID, "no script runner collaborator configured", nil)
	}

	timeout := data.Timeout
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}

	result, err := h.Runner.Run(ctx, data.Language, data.Source, positionalArgs(inputs), data.Env, data.Cwd, timeout)
	if err != nil {
		var execErr *streamyerrors.ExecutionError
		if errors.As(err, &execErr) {
			execErr.NodeID = node.ID
			return nil, execErr
		}
		return nil, streamyerrors.NewRuntimeError(node.ID, "script execution failed", err)
	}

	return map[string]any{
		"stdout":    result.Stdout,
		"stderr":    result.Stderr,
		"exit_code": result.ExitCode,
	}, nil
}

// positionalArgs derives a stable positional-argument list from the
// node's input mapping, ordered by handle name so repeated runs with the
// same inputs produce identical invocations (needed for idempotent
// replay, §8).
func positionalArgs(inputs map[string]any) []string {
	handles := make([]string, 0, len(inputs))
	for h := range inputs {
		handles = append(handles, h)
	}
	sort.Strings(handles)

	args := make([]string, 0, len(handles))
	for _, h := range handles {
		args = append(args, fmt.Sprintf("%v", inputs[h]))
	}
	return args
}
