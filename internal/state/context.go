// Package state implements the State Manager: the authoritative per-node
// state store, progress and statistics aggregation, change notification,
// and snapshot/restore/history.
package state

import (
	"sync"
	"time"

	"github.com/nodeforge/flowengine/internal/graph"
)

// Status is a node's position in its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// NodeState is the per-node record maintained by the State Manager.
type NodeState struct {
	NodeID    string
	Status    Status
	StartTime *time.Time
	EndTime   *time.Time
	Output    any
	Error     string
	Progress  int
}

func (s NodeState) clone() NodeState {
	out := s
	if s.StartTime != nil {
		t := *s.StartTime
		out.StartTime = &t
	}
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	return out
}

// ExecutionContext is the per-run state owned exclusively by the Engine.
// Only the State Manager writes NodeStates; only Data Transfer's
// input-writer mutates GlobalData. Both treat their respective write as
// atomic with respect to the other.
type ExecutionContext struct {
	mu sync.RWMutex

	ExecutionID string
	Nodes       []graph.Node
	Edges       []graph.Edge
	NodeStates  map[string]NodeState
	GlobalData  map[string]map[string]any // keyed "<node_id>_inputs" -> target_handle -> value
	IsRunning   bool
	StartTime   *time.Time
	EndTime     *time.Time
}

// NewExecutionContext builds a fresh context with a Pending state seeded
// for every node.
func NewExecutionContext(executionID string, nodes []graph.Node, edges []graph.Edge) *ExecutionContext {
	ctx := &ExecutionContext{
		ExecutionID: executionID,
		Nodes:       nodes,
		Edges:       edges,
		NodeStates:  make(map[string]NodeState, len(nodes)),
		GlobalData:  make(map[string]map[string]any),
	}
	for _, n := range nodes {
		ctx.NodeStates[n.ID] = NodeState{NodeID: n.ID, Status: StatusPending}
	}
	return ctx
}

// State returns a copy of the node's current state.
func (c *ExecutionContext) State(nodeID string) (NodeState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.NodeStates[nodeID]
	return s.clone(), ok
}

// AllStates returns a copy of every tracked node state.
func (c *ExecutionContext) AllStates() map[string]NodeState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]NodeState, len(c.NodeStates))
	for id, s := range c.NodeStates {
		out[id] = s.clone()
	}
	return out
}

// SetInput writes a value into the target node's input mapping under the
// given handle. This is Data Transfer's sole mutation path into the
// context.
func (c *ExecutionContext) SetInput(targetNodeID, targetHandle string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := targetNodeID + "_inputs"
	m, ok := c.GlobalData[key]
	if !ok {
		m = make(map[string]any)
		c.GlobalData[key] = m
	}
	m[targetHandle] = value
}

// Inputs returns the current input mapping recorded for a node.
func (c *ExecutionContext) Inputs(nodeID string) map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src, ok := c.GlobalData[nodeID+"_inputs"]
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// setState is the single internal write path for NodeStates, used only by
// the Manager below.
func (c *ExecutionContext) setState(s NodeState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.NodeStates[s.NodeID] = s
}

func (c *ExecutionContext) setRunning(running bool, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.IsRunning = running
	if running && c.StartTime == nil {
		t := at
		c.StartTime = &t
	}
	if !running && c.EndTime == nil {
		t := at
		c.EndTime = &t
	}
}

func (c *ExecutionContext) countByStatus() map[Status]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	counts := make(map[Status]int)
	for _, s := range c.NodeStates {
		counts[s.Status]++
	}
	return counts
}

// anyRunning reports whether any tracked node is currently Running.
func (c *ExecutionContext) anyRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.NodeStates {
		if s.Status == StatusRunning {
			return true
		}
	}
	return false
}
