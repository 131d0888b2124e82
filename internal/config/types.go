// Package config loads a workflow definition from YAML and converts it
// into the graph package's node/edge value types the Engine consumes.
package config

import "time"

// NodeDefinition is one node entry in a workflow definition file.
type NodeDefinition struct {
	ID   string         `yaml:"id" validate:"required,node_id"`
	Type string         `yaml:"type" validate:"required,oneof=memo file script connector"`
	Data map[string]any `yaml:"data"`
}

// EdgeDefinition is one edge entry in a workflow definition file.
type EdgeDefinition struct {
	ID           string `yaml:"id" validate:"required"`
	Source       string `yaml:"source" validate:"required"`
	SourceHandle string `yaml:"source_handle"`
	Target       string `yaml:"target" validate:"required"`
	TargetHandle string `yaml:"target_handle"`
}

// WorkflowDefinition is the top-level YAML document shape a `workflowctl
// run` command reads.
type WorkflowDefinition struct {
	Name           string            `yaml:"name" validate:"required"`
	Version        string            `yaml:"version" validate:"omitempty,semver"`
	MaxParallelism int               `yaml:"max_parallelism" validate:"omitempty,min=1"`
	Fallbacks      map[string]string `yaml:"fallbacks"`
	Nodes          []NodeDefinition  `yaml:"nodes" validate:"required,min=1,dive"`
	Edges          []EdgeDefinition  `yaml:"edges" validate:"dive"`
}

// scriptDataShape is the YAML shape of a script node's `data` block,
// converted into executor.ScriptData at graph-build time.
type scriptDataShape struct {
	Language string            `yaml:"language"`
	Source   string            `yaml:"source"`
	Env      map[string]string `yaml:"env"`
	Cwd      string            `yaml:"cwd"`
	Timeout  time.Duration     `yaml:"timeout"`
}
