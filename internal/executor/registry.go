// Package executor implements the Node Executor Registry: it looks up a
// per-node-type handler and drives validate/execute against it.
package executor

import (
	"context"
	"sync"

	"github.com/nodeforge/flowengine/internal/graph"
	"github.com/nodeforge/flowengine/internal/state"
	streamyerrors "github.com/nodeforge/flowengine/pkg/errors"
)

// Handler is the executor ABI every node type must implement.
type Handler interface {
	// RequiredInputs names the handles this handler expects populated
	// before Execute is called.
	RequiredInputs() []string
	// Outputs names the handles this handler may populate in its result.
	Outputs() []string
	// Validate checks the node and inputs without side effects, returning
	// a (possibly empty) list of validation errors. It never panics or
	// returns a Go error — validation failures are data, not exceptions.
	Validate(node graph.Node, inputs map[string]any) []*streamyerrors.ExecutionError
	// Execute runs the handler's side effect and returns its output, or
	// fails with a typed ExecutionError.
	Execute(ctx context.Context, node graph.Node, execCtx *state.ExecutionContext, inputs map[string]any) (any, error)
}

// Registry maps type tags to Handlers. A single Registry is shared across
// an engine instance and is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register associates a type tag with a handler. Re-registering a tag
// overwrites the previous handler, mirroring the teacher's plugin
// registry semantics.
func (r *Registry) Register(typeTag string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[typeTag] = h
}

// Get returns the handler registered for typeTag, if any.
func (r *Registry) Get(typeTag string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[typeTag]
	return h, ok
}

// Execute looks up the handler for node.Type and drives it. The registry
// itself only fails (validation) when no handler is registered; handler
// validation failures and execution failures propagate as returned by the
// handler.
func (r *Registry) Execute(ctx context.Context, node graph.Node, execCtx *state.ExecutionContext, inputs map[string]any) (any, error) {
	h, ok := r.Get(node.Type)
	if !ok {
		return nil, streamyerrors.NewValidationExecError(node.ID, "no handler registered for node type: "+node.Type, nil)
	}
	if errs := h.Validate(node, inputs); len(errs) > 0 {
		return nil, errs[0]
	}
	return h.Execute(ctx, node, execCtx, inputs)
}
