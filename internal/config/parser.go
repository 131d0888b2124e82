package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	streamyerrors "github.com/nodeforge/flowengine/pkg/errors"
)

var yamlLineRE = regexp.MustCompile(`line (\d+)`)

// LoadWorkflowDefinition reads a workflow definition file from disk,
// parses it as YAML, and validates its structure.
func LoadWorkflowDefinition(path string) (*WorkflowDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow definition %s: %w", path, err)
	}
	return ParseWorkflowDefinition(path, raw)
}

// ParseWorkflowDefinition parses and validates raw YAML bytes, tagging
// any parse failure with the source path and line number when available.
func ParseWorkflowDefinition(path string, raw []byte) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, streamyerrors.NewParseError(path, extractLine(err), err)
	}
	if err := ValidateWorkflowDefinition(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// ValidateWorkflowDefinition runs struct validation plus the cross-field
// checks the validator tags can't express on their own: unique node IDs,
// edges referencing declared nodes, and fallback targets that exist.
func ValidateWorkflowDefinition(def *WorkflowDefinition) error {
	if err := GetValidator().Struct(def); err != nil {
		return streamyerrors.NewValidationError("workflow", "structural validation failed", err)
	}

	ids := make(map[string]bool, len(def.Nodes))
	for _, n := range def.Nodes {
		if ids[n.ID] {
			return streamyerrors.NewValidationError("nodes", fmt.Sprintf("duplicate node id %q", n.ID), nil)
		}
		ids[n.ID] = true
	}

	for _, e := range def.Edges {
		if !ids[e.Source] {
			return streamyerrors.NewValidationError("edges", fmt.Sprintf("edge %q references unknown source node %q", e.ID, e.Source), nil)
		}
		if !ids[e.Target] {
			return streamyerrors.NewValidationError("edges", fmt.Sprintf("edge %q references unknown target node %q", e.ID, e.Target), nil)
		}
	}

	for nodeID, fallbackID := range def.Fallbacks {
		if !ids[nodeID] {
			return streamyerrors.NewValidationError("fallbacks", fmt.Sprintf("fallback declared for unknown node %q", nodeID), nil)
		}
		if !ids[fallbackID] {
			return streamyerrors.NewValidationError("fallbacks", fmt.Sprintf("fallback target %q for node %q does not exist", fallbackID, nodeID), nil)
		}
	}

	return nil
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}
	m := yamlLineRE.FindStringSubmatch(err.Error())
	if len(m) != 2 {
		return 0
	}
	var line int
	fmt.Sscanf(m[1], "%d", &line)
	return line
}
