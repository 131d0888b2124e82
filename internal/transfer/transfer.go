// Package transfer implements Data Transfer: moving a source node's
// output along an edge into a target node's input slot, with slot
// selection, type coercion, and per-edge single-flight deduplication.
package transfer

import (
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/nodeforge/flowengine/internal/graph"
	"github.com/nodeforge/flowengine/internal/state"
	streamyerrors "github.com/nodeforge/flowengine/pkg/errors"
)

// aliasTable maps a conventional output handle name to the slot consulted
// when the raw output is a mapping that does not contain the edge's
// declared source handle directly.
var aliasTable = map[string]string{
	"output":  "result",
	"content": "content",
	"value":   "value",
	"data":    "data",
}

// Transfer performs the move-and-coerce protocol described in §4.3 for a
// single edge, deduplicating concurrent calls for the same edge via a
// singleflight group so only one coercion runs per in-flight edge.
type Transfer struct {
	group singleflight.Group

	// TargetKind, if set, looks up the expected input Kind for a given
	// target node/handle. Handlers that do not declare a kind (the
	// common case — most handlers don't implement TypedHandler) cause
	// this to return ok=false, and the value passes through unconverted.
	TargetKind func(nodeID, handle string) (Kind, bool)
}

// New constructs a Transfer.
func New() *Transfer {
	return &Transfer{}
}

// Do executes the transfer protocol for edge against ctx. Multiple
// concurrent calls for the same edge id collapse into a single execution;
// all callers observe the same result.
func (t *Transfer) Do(edge graph.Edge, ctx *state.ExecutionContext) error {
	_, err, _ := t.group.Do(edge.ID, func() (any, error) {
		return nil, t.transferOnce(edge, ctx)
	})
	return err
}

func (t *Transfer) transferOnce(edge graph.Edge, ctx *state.ExecutionContext) error {
	source, ok := ctx.State(edge.SourceNodeID)
	if !ok || source.Status != state.StatusCompleted {
		return streamyerrors.NewDependencyError(edge.TargetNodeID,
			fmt.Sprintf("source node %s is not completed", edge.SourceNodeID), nil)
	}

	sourceHandle, targetHandle := edge.Handle()
	value := selectSlot(source.Output, sourceHandle)

	converted, err := t.coerce(edge.TargetNodeID, targetHandle, value)
	if err != nil {
		return streamyerrors.NewRuntimeError(edge.TargetNodeID, "type coercion failed: "+err.Error(), err)
	}

	ctx.SetInput(edge.TargetNodeID, targetHandle, converted)
	return nil
}

// selectSlot implements step 2 of §4.3: if the output is a mapping and
// contains sourceHandle, take that; else consult the alias table; else
// pass the whole output through.
func selectSlot(output any, sourceHandle string) any {
	m, ok := output.(map[string]any)
	if !ok {
		return output
	}
	if v, ok := m[sourceHandle]; ok {
		return v
	}
	if alias, ok := aliasTable[sourceHandle]; ok {
		if v, ok := m[alias]; ok {
			return v
		}
	}
	return output
}

// coerce implements §4.3 steps 3-4: if the target handler declares an
// expected kind for this handle and it differs from the source value's
// inferred kind, run it through CoerceTo; otherwise pass through.
func (t *Transfer) coerce(targetNodeID, targetHandle string, value any) (any, error) {
	if t.TargetKind == nil {
		return value, nil
	}
	want, ok := t.TargetKind(targetNodeID, targetHandle)
	if !ok {
		return value, nil
	}
	if InferKind(value) == want {
		return value, nil
	}
	return CoerceTo(value, want)
}

// Kind is a coarse runtime type classification used by CoerceTo.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindUnknown Kind = "unknown"
)

// InferKind classifies a runtime value into one of the coercion kinds.
func InferKind(v any) Kind {
	switch v.(type) {
	case string:
		return KindString
	case int, int32, int64, float32, float64:
		return KindNumber
	case bool:
		return KindBoolean
	case map[string]any:
		return KindObject
	case []any:
		return KindArray
	default:
		return KindUnknown
	}
}

// CoerceTo converts value to the target kind following the supported
// conversions in §4.3: string<->number, string<->boolean, boolean->string,
// object->string (serialize), array->string (serialize).
func CoerceTo(value any, target Kind) (any, error) {
	source := InferKind(value)
	if source == target {
		return value, nil
	}

	switch {
	case source == KindString && target == KindNumber:
		return strconv.ParseFloat(value.(string), 64)
	case source == KindNumber && target == KindString:
		return fmt.Sprintf("%v", value), nil
	case source == KindString && target == KindBoolean:
		return strconv.ParseBool(value.(string))
	case source == KindBoolean && target == KindString:
		return strconv.FormatBool(value.(bool)), nil
	case source == KindObject && target == KindString:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case source == KindArray && target == KindString:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return nil, fmt.Errorf("unsupported conversion from %s to %s", source, target)
	}
}

// TypedHandler is an optional interface a Handler may implement to
// declare an expected input kind for a given handle, enabling the
// coercion path in CoerceTo to run during transfer. Handlers that do not
// implement it (the common case) receive values unconverted.
type TypedHandler interface {
	InputKind(handle string) (Kind, bool)
}

// ValidateEdges performs §4.3's pre-run validation: for each edge, verify
// source and target exist in the analyzed node set. Declared handles are
// always accepted since the engine does not enforce a closed handle
// vocabulary per handler; handlers that care validate handles themselves
// via Validate. All errors are collected before returning.
func ValidateEdges(edges []graph.Edge, nodes map[string]*graph.GraphNode) []*streamyerrors.ExecutionError {
	var errs []*streamyerrors.ExecutionError
	for _, e := range edges {
		if _, ok := nodes[e.SourceNodeID]; !ok {
			errs = append(errs, streamyerrors.NewValidationExecError(e.SourceNodeID, "edge source node not found", nil))
		}
		if _, ok := nodes[e.TargetNodeID]; !ok {
			errs = append(errs, streamyerrors.NewValidationExecError(e.TargetNodeID, "edge target node not found", nil))
		}
	}
	return errs
}
