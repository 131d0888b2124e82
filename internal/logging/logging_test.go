package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestForRunTagsExecutionFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	base := New(Options{Writer: &buf, Level: zerolog.InfoLevel})

	log := ForRun(base, "sample-workflow", "run-1")
	log.Info().Msg("started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "sample-workflow", entry["workflow"])
	require.Equal(t, "run-1", entry["execution_id"])
}

func TestForNodeTagsNodeFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	base := New(Options{Writer: &buf})
	run := ForRun(base, "wf", "run-2")
	node := ForNode(run, "n1", "memo")
	node.Info().Msg("running")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "n1", entry["node_id"])
	require.Equal(t, "memo", entry["node_type"])
	require.Equal(t, "run-2", entry["execution_id"])
}
