package executor

import (
	"context"
	"time"

	"github.com/nodeforge/flowengine/internal/graph"
	"github.com/nodeforge/flowengine/internal/state"
	streamyerrors "github.com/nodeforge/flowengine/pkg/errors"
)

// MemoData is the expected shape of a memo node's Node.Data.
type MemoData struct {
	Content string
}

// MemoHandler trivially returns the node's configured content, stamped
// with the time it ran.
type MemoHandler struct{}

func (MemoHandler) RequiredInputs() []string { return nil }
func (MemoHandler) Outputs() []string        { return []string{"output", "content"} }

func (MemoHandler) Validate(node graph.Node, _ map[string]any) []*streamyerrors.ExecutionError {
	if _, ok := node.Data.(MemoData); !ok {
		if _, ok := node.Data.(string); !ok {
			return []*streamyerrors.ExecutionError{
				streamyerrors.NewValidationExecError(node.ID, "memo node requires MemoData or string data", nil),
			}
		}
	}
	return nil
}

func (MemoHandler) Execute(_ context.Context, node graph.Node, _ *state.ExecutionContext, _ map[string]any) (any, error) {
	content := ""
	switch d := node.Data.(type) {
	case MemoData:
		content = d.Content
	case string:
		content = d
	}
	return map[string]any{
		"content":   content,
		"timestamp": time.Now(),
	}, nil
}
