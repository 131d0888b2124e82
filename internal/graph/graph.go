// Package graph implements the Graph Analyzer: it validates a node/edge
// set, detects cycles, and produces a layered execution plan.
package graph

import (
	"time"

	streamyerrors "github.com/nodeforge/flowengine/pkg/errors"
)

// DefaultSourceHandle and DefaultTargetHandle are used when an edge omits
// its handle fields.
const (
	DefaultSourceHandle = "output"
	DefaultTargetHandle = "input"
)

// Node is an immutable per-run description of a graph vertex. Data is an
// opaque, type-specific payload interpreted only by the handler registered
// for Type.
type Node struct {
	ID   string
	Type string
	Data any
}

// Edge connects a source node's output handle to a target node's input
// handle.
type Edge struct {
	ID           string
	SourceNodeID string
	SourceHandle string
	TargetNodeID string
	TargetHandle string
}

// sourceHandle returns the edge's source handle, defaulting when empty.
func (e Edge) sourceHandle() string {
	if e.SourceHandle == "" {
		return DefaultSourceHandle
	}
	return e.SourceHandle
}

// targetHandle returns the edge's target handle, defaulting when empty.
func (e Edge) targetHandle() string {
	if e.TargetHandle == "" {
		return DefaultTargetHandle
	}
	return e.TargetHandle
}

// GraphNode is the derived representation of a vertex built by Analyze;
// it is returned through AnalysisResult.Nodes for callers that need
// adjacency information after planning.
type GraphNode struct {
	ID           string
	Dependencies []string
	Dependents   []string
	Level        int
}

// ExecutionPlan is an ordered list of layers. Layer k contains exactly
// those nodes whose dependencies are all in layers < k.
type ExecutionPlan struct {
	Layers             [][]string
	TotalNodes         int
	MaxParallelism     int
	EstimatedDuration  time.Duration
}

// String renders a human-readable summary, mirroring the teacher's
// planner output used by CLI diagnostics.
func (p *ExecutionPlan) String() string {
	if p == nil {
		return "<nil plan>"
	}
	out := ""
	for i, layer := range p.Layers {
		out += "layer "
		out += itoa(i)
		out += ": "
		for j, id := range layer {
			if j > 0 {
				out += ", "
			}
			out += id
		}
		out += "\n"
	}
	return out
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

// AnalysisResult is the outcome of Analyze.
type AnalysisResult struct {
	Valid  bool
	Errors []*streamyerrors.ExecutionError
	Plan   *ExecutionPlan
	Cycles [][]string
	// Nodes indexes every declared node's GraphNode by id; ids referenced
	// only by dangling edges are not included. Callers that need adjacency
	// information (Data
	// Transfer's pre-run edge validation, handler lookups) use this rather
	// than re-deriving it.
	Nodes map[string]*GraphNode
}

// Analyze validates the node/edge set, detects cycles via depth-first
// traversal, and — absent cycles — produces a layered ExecutionPlan via
// Kahn's algorithm.
func Analyze(nodes []Node, edges []Edge) (*AnalysisResult, error) {
	result := &AnalysisResult{Nodes: make(map[string]*GraphNode, len(nodes))}

	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		if _, exists := byID[n.ID]; exists {
			result.Errors = append(result.Errors, streamyerrors.NewValidationExecError(
				n.ID, "duplicate node id", nil))
			continue
		}
		byID[n.ID] = n
		result.Nodes[n.ID] = &GraphNode{ID: n.ID}
	}

	adjacency := make(map[string][]string, len(nodes))
	for _, e := range edges {
		_, sourceOK := byID[e.SourceNodeID]
		_, targetOK := byID[e.TargetNodeID]
		if !sourceOK {
			result.Errors = append(result.Errors, streamyerrors.NewValidationExecError(
				e.SourceNodeID, "edge references unknown source node", nil))
		}
		if !targetOK {
			result.Errors = append(result.Errors, streamyerrors.NewValidationExecError(
				e.TargetNodeID, "edge references unknown target node", nil))
		}
		if !sourceOK || !targetOK {
			continue
		}
		adjacency[e.SourceNodeID] = append(adjacency[e.SourceNodeID], e.TargetNodeID)
		result.Nodes[e.SourceNodeID].Dependents = append(result.Nodes[e.SourceNodeID].Dependents, e.TargetNodeID)
		result.Nodes[e.TargetNodeID].Dependencies = append(result.Nodes[e.TargetNodeID].Dependencies, e.SourceNodeID)
	}

	if len(result.Errors) > 0 {
		// Dangling edges or duplicate ids: still attempt analysis on the
		// induced subgraph, per §4.1's edge-case rule, but never treat the
		// result as a clean, runnable plan.
	}

	if cycles := detectCycles(byID, adjacency); len(cycles) > 0 {
		result.Valid = false
		result.Cycles = cycles
		for _, c := range cycles {
			result.Errors = append(result.Errors, streamyerrors.NewValidationExecError(
				"", "cycle detected: "+joinIDs(c), nil))
		}
		return result, nil
	}

	plan, err := layer(byID, result.Nodes)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, streamyerrors.NewValidationExecError("", err.Error(), err))
		return result, nil
	}

	result.Plan = plan
	result.Valid = len(result.Errors) == 0
	return result, nil
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += " -> "
		}
		out += id
	}
	return out
}

// detectCycles runs DFS from every unvisited node, maintaining a visited
// set and an on-stack set; when a node is re-encountered on the stack, the
// cycle is the current path sliced from that node's first occurrence.
func detectCycles(byID map[string]Node, adjacency map[string][]string) [][]string {
	visited := make(map[string]bool, len(byID))
	onStack := make(map[string]bool, len(byID))
	var path []string
	var cycles [][]string

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sortStrings(ids)

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		neighbors := append([]string(nil), adjacency[id]...)
		sortStrings(neighbors)
		for _, next := range neighbors {
			if onStack[next] {
				start := indexOf(path, next)
				cycle := append([]string(nil), path[start:]...)
				cycle = append(cycle, next)
				cycles = append(cycles, cycle)
				continue
			}
			if !visited[next] {
				visit(next)
			}
		}

		path = path[:len(path)-1]
		onStack[id] = false
	}

	for _, id := range ids {
		visit(id)
	}
	return cycles
}

func indexOf(path []string, id string) int {
	for i, p := range path {
		if p == id {
			return i
		}
	}
	return 0
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// layer implements Kahn's algorithm: seed the queue with in-degree-zero
// nodes, drain in batches (each batch is a layer), decrement successors'
// in-degree, enqueue newly-zero nodes.
func layer(byID map[string]Node, derived map[string]*GraphNode) (*ExecutionPlan, error) {
	indegree := make(map[string]int, len(byID))
	for id, gn := range derived {
		indegree[id] = len(gn.Dependencies)
	}

	var queue []string
	for id, degree := range indegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	sortStrings(queue)

	processed := 0
	var layers [][]string
	maxParallelism := 0

	for len(queue) > 0 {
		current := append([]string(nil), queue...)
		sortStrings(current)
		layers = append(layers, current)
		if len(current) > maxParallelism {
			maxParallelism = len(current)
		}

		var next []string
		for _, id := range current {
			processed++
			derived[id].Level = len(layers) - 1
			for _, dependent := range derived[id].Dependents {
				indegree[dependent]--
				if indegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		sortStrings(next)
		queue = next
	}

	if processed != len(byID) {
		return nil, streamyerrors.NewFatalError("", "topological layering left unprocessed nodes after cycle detection reported none", nil)
	}

	return &ExecutionPlan{
		Layers:         layers,
		TotalNodes:     len(byID),
		MaxParallelism: maxParallelism,
	}, nil
}

// Handle returns the edge's effective source and target handles with
// defaults applied.
func (e Edge) Handle() (source, target string) {
	return e.sourceHandle(), e.targetHandle()
}
