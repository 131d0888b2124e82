package executor

import (
	"context"
	"errors"

	"github.com/nodeforge/flowengine/internal/graph"
	"github.com/nodeforge/flowengine/internal/host"
	"github.com/nodeforge/flowengine/internal/state"
	streamyerrors "github.com/nodeforge/flowengine/pkg/errors"
)

// FileData is the expected shape of a file-read node's Node.Data.
type FileData struct {
	Path string
}

// FileHandler reads a file's contents through the host FileReader
// collaborator (§6): the handler never touches the filesystem directly.
type FileHandler struct {
	Reader host.FileReader
}

// NewFileHandler constructs a FileHandler bound to a FileReader.
func NewFileHandler(reader host.FileReader) *FileHandler {
	return &FileHandler{Reader: reader}
}

func (*FileHandler) RequiredInputs() []string { return nil }
func (*FileHandler) Outputs() []string        { return []string{"output", "content"} }

func (*FileHandler) Validate(node graph.Node, _ map[string]any) []*streamyerrors.ExecutionError {
	data, ok := node.Data.(FileData)
	if !ok || data.Path == "" {
		return []*streamyerrors.ExecutionError{
			streamyerrors.NewValidationExecError(node.ID, "file node requires FileData with a non-empty Path", nil),
		}
	}
	return nil
}

func (h *FileHandler) Execute(_ context.Context, node graph.Node, _ *state.ExecutionContext, _ map[string]any) (any, error) {
	data, ok := node.Data.(FileData)
	if !ok {
		return nil, streamyerrors.NewValidationExecError(node.ID, "file node requires FileData", nil)
	}
	if h.Reader == nil {
		return nil, streamyerrors.NewFatalError(node.ID, "no file reader collaborator configured", nil)
	}
	contents, err := h.Reader.Read(data.Path)
	if err != nil {
		var execErr *streamyerrors.ExecutionError
		if errors.As(err, &execErr) {
			execErr.NodeID = node.ID
			return nil, execErr
		}
		return nil, streamyerrors.NewRuntimeError(node.ID, "read file failed", err)
	}
	return map[string]any{"content": string(contents)}, nil
}
