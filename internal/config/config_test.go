package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	streamyerrors "github.com/nodeforge/flowengine/pkg/errors"
)

const validYAML = `
name: sample-workflow
version: v1.0.0
max_parallelism: 2
nodes:
  - id: note
    type: memo
    data:
      content: hello
  - id: out
    type: connector
edges:
  - id: e1
    source: note
    source_handle: content
    target: out
    target_handle: input
`

func TestParseWorkflowDefinitionValidYAML(t *testing.T) {
	t.Parallel()
	def, err := ParseWorkflowDefinition("wf.yaml", []byte(validYAML))
	require.NoError(t, err)
	require.Equal(t, "sample-workflow", def.Name)
	require.Len(t, def.Nodes, 2)
	require.Len(t, def.Edges, 1)
}

func TestParseWorkflowDefinitionMalformedYAMLReportsLine(t *testing.T) {
	t.Parallel()
	_, err := ParseWorkflowDefinition("wf.yaml", []byte("name: [unterminated"))
	require.Error(t, err)
	var parseErr *streamyerrors.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Positive(t, parseErr.Line)
}

func TestParseWorkflowDefinitionMissingRequiredFields(t *testing.T) {
	t.Parallel()
	_, err := ParseWorkflowDefinition("wf.yaml", []byte(`name: ""`))
	require.Error(t, err)
}

func TestParseWorkflowDefinitionRejectsUnknownNodeType(t *testing.T) {
	t.Parallel()
	yaml := `
name: bad
nodes:
  - id: n1
    type: unsupported
`
	_, err := ParseWorkflowDefinition("wf.yaml", []byte(yaml))
	require.Error(t, err)
}

func TestValidateWorkflowDefinitionRejectsDuplicateNodeIDs(t *testing.T) {
	t.Parallel()
	def := &WorkflowDefinition{
		Name: "dup",
		Nodes: []NodeDefinition{
			{ID: "n1", Type: "memo"},
			{ID: "n1", Type: "memo"},
		},
	}
	err := ValidateWorkflowDefinition(def)
	require.Error(t, err)
}

func TestValidateWorkflowDefinitionRejectsDanglingEdge(t *testing.T) {
	t.Parallel()
	def := &WorkflowDefinition{
		Name: "dangling",
		Nodes: []NodeDefinition{
			{ID: "n1", Type: "memo"},
		},
		Edges: []EdgeDefinition{
			{ID: "e1", Source: "n1", Target: "missing"},
		},
	}
	err := ValidateWorkflowDefinition(def)
	require.Error(t, err)
}

func TestValidateWorkflowDefinitionRejectsUnknownFallbackTarget(t *testing.T) {
	t.Parallel()
	def := &WorkflowDefinition{
		Name: "fallback",
		Nodes: []NodeDefinition{
			{ID: "n1", Type: "memo"},
		},
		Fallbacks: map[string]string{"n1": "missing"},
	}
	err := ValidateWorkflowDefinition(def)
	require.Error(t, err)
}

func TestToGraphBuildsNodesAndEdges(t *testing.T) {
	t.Parallel()
	def, err := ParseWorkflowDefinition("wf.yaml", []byte(validYAML))
	require.NoError(t, err)

	nodes, edges, err := ToGraph(def)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	require.Len(t, edges, 1)
	require.Equal(t, "e1", edges[0].ID)
}

func TestToGraphRejectsFileNodeMissingPath(t *testing.T) {
	t.Parallel()
	def := &WorkflowDefinition{
		Name:  "f",
		Nodes: []NodeDefinition{{ID: "n1", Type: "file"}},
	}
	_, _, err := ToGraph(def)
	require.Error(t, err)
}
