package executor

import (
	"context"

	"github.com/nodeforge/flowengine/internal/graph"
	"github.com/nodeforge/flowengine/internal/state"
	streamyerrors "github.com/nodeforge/flowengine/pkg/errors"
)

// skippedSentinel is the value a skipped node's output is populated with,
// per the Open Question resolution recorded in DESIGN.md: downstream
// transfers see a recognizable shape rather than a missing slot.
type skippedSentinel struct {
	Skipped bool `json:"skipped"`
}

// IsSkippedSentinel reports whether a value is the sentinel a skipped
// node's output carries, letting handlers that accept a connector's
// identity input tolerate an upstream skip.
func IsSkippedSentinel(v any) bool {
	_, ok := v.(skippedSentinel)
	return ok
}

// SkippedSentinel constructs the sentinel value.
func SkippedSentinel() any { return skippedSentinel{Skipped: true} }

// ConnectorHandler is the identity handler: it propagates its single
// "input" unchanged.
type ConnectorHandler struct{}

func (ConnectorHandler) RequiredInputs() []string { return []string{"input"} }
func (ConnectorHandler) Outputs() []string        { return []string{"output"} }

func (ConnectorHandler) Validate(node graph.Node, inputs map[string]any) []*streamyerrors.ExecutionError {
	if _, ok := inputs["input"]; !ok {
		return []*streamyerrors.ExecutionError{
			streamyerrors.NewValidationExecError(node.ID, "connector node requires an \"input\" value", nil),
		}
	}
	return nil
}

func (ConnectorHandler) Execute(_ context.Context, _ graph.Node, _ *state.ExecutionContext, inputs map[string]any) (any, error) {
	return inputs["input"], nil
}
