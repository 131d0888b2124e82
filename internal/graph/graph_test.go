package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func nodes(ids ...string) []Node {
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, Node{ID: id, Type: "memo"})
	}
	return out
}

func edge(from, to string) Edge {
	return Edge{ID: from + "-" + to, SourceNodeID: from, TargetNodeID: to}
}

func TestAnalyzeEmptyGraph(t *testing.T) {
	t.Parallel()

	result, err := Analyze(nil, nil)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.NotNil(t, result.Plan)
	require.Equal(t, 0, result.Plan.TotalNodes)
	require.Empty(t, result.Plan.Layers)
}

func TestAnalyzeLinearChain(t *testing.T) {
	t.Parallel()

	result, err := Analyze(nodes("A", "B", "C"), []Edge{edge("A", "B"), edge("B", "C")})
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, [][]string{{"A"}, {"B"}, {"C"}}, result.Plan.Layers)
	require.Equal(t, 1, result.Plan.MaxParallelism)
}

func TestAnalyzeDiamond(t *testing.T) {
	t.Parallel()

	result, err := Analyze(nodes("A", "B", "C", "D"), []Edge{
		edge("A", "B"), edge("A", "C"), edge("B", "D"), edge("C", "D"),
	})
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, [][]string{{"A"}, {"B", "C"}, {"D"}}, result.Plan.Layers)
	require.Equal(t, 2, result.Plan.MaxParallelism)
}

func TestAnalyzeCycleRejected(t *testing.T) {
	t.Parallel()

	result, err := Analyze(nodes("A", "B", "C"), []Edge{
		edge("A", "B"), edge("B", "C"), edge("C", "A"),
	})
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Nil(t, result.Plan)
	require.Len(t, result.Cycles, 1)
	require.Equal(t, []string{"A", "B", "C", "A"}, result.Cycles[0])
}

func TestAnalyzeSelfLoopIsCycle(t *testing.T) {
	t.Parallel()

	result, err := Analyze(nodes("A"), []Edge{edge("A", "A")})
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.NotEmpty(t, result.Cycles)
}

func TestAnalyzeDanglingEdgeReportsErrorButContinues(t *testing.T) {
	t.Parallel()

	result, err := Analyze(nodes("A", "B"), []Edge{edge("A", "B"), edge("ghost", "B")})
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
}

func TestAnalyzeDuplicateNodeIDRejected(t *testing.T) {
	t.Parallel()

	result, err := Analyze([]Node{{ID: "A", Type: "memo"}, {ID: "A", Type: "memo"}}, nil)
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
}

func TestEdgeHandleDefaults(t *testing.T) {
	t.Parallel()

	e := Edge{SourceNodeID: "A", TargetNodeID: "B"}
	src, tgt := e.Handle()
	require.Equal(t, DefaultSourceHandle, src)
	require.Equal(t, DefaultTargetHandle, tgt)
}
