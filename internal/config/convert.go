package config

import (
	"fmt"
	"time"

	"github.com/nodeforge/flowengine/internal/executor"
	"github.com/nodeforge/flowengine/internal/graph"
	streamyerrors "github.com/nodeforge/flowengine/pkg/errors"
)

// ToGraph converts a validated workflow definition into the node and
// edge values the Engine's Run method consumes, building each node's
// Data field from its type-specific YAML block.
func ToGraph(def *WorkflowDefinition) ([]graph.Node, []graph.Edge, error) {
	nodes := make([]graph.Node, 0, len(def.Nodes))
	for _, n := range def.Nodes {
		data, err := nodeData(n)
		if err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, graph.Node{ID: n.ID, Type: n.Type, Data: data})
	}

	edges := make([]graph.Edge, 0, len(def.Edges))
	for _, e := range def.Edges {
		edges = append(edges, graph.Edge{
			ID:           e.ID,
			SourceNodeID: e.Source,
			SourceHandle: e.SourceHandle,
			TargetNodeID: e.Target,
			TargetHandle: e.TargetHandle,
		})
	}

	return nodes, edges, nil
}

func nodeData(n NodeDefinition) (any, error) {
	switch n.Type {
	case "memo":
		content, _ := n.Data["content"].(string)
		return executor.MemoData{Content: content}, nil
	case "file":
		path, _ := n.Data["path"].(string)
		if path == "" {
			return nil, streamyerrors.NewValidationError("nodes", fmt.Sprintf("file node %q missing data.path", n.ID), nil)
		}
		return executor.FileData{Path: path}, nil
	case "script":
		var s scriptDataShape
		if lang, ok := n.Data["language"].(string); ok {
			s.Language = lang
		}
		if src, ok := n.Data["source"].(string); ok {
			s.Source = src
		}
		if cwd, ok := n.Data["cwd"].(string); ok {
			s.Cwd = cwd
		}
		if env, ok := n.Data["env"].(map[string]any); ok {
			s.Env = make(map[string]string, len(env))
			for k, v := range env {
				s.Env[k] = fmt.Sprintf("%v", v)
			}
		}
		if timeout, ok := n.Data["timeout"].(string); ok {
			d, err := time.ParseDuration(timeout)
			if err != nil {
				return nil, streamyerrors.NewValidationError("nodes",
					fmt.Sprintf("script node %q has invalid data.timeout: %s", n.ID, err), err)
			}
			s.Timeout = d
		}
		if s.Source == "" {
			return nil, streamyerrors.NewValidationError("nodes", fmt.Sprintf("script node %q missing data.source", n.ID), nil)
		}
		return executor.ScriptData{Language: s.Language, Source: s.Source, Env: s.Env, Cwd: s.Cwd, Timeout: s.Timeout}, nil
	case "connector":
		return nil, nil
	default:
		return nil, streamyerrors.NewValidationError("nodes", fmt.Sprintf("unknown node type %q", n.Type), nil)
	}
}
