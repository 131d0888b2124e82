package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nodeforge/flowengine/internal/archive"
	"github.com/nodeforge/flowengine/internal/engine"
)

const sampleDefinition = `
name: sample
nodes:
  - id: note
    type: memo
    data:
      content: hello
`

func TestCreateRunAcceptsDefinitionAndRuns(t *testing.T) {
	t.Parallel()
	store := archive.NewMemoryArchive()
	newEng := func(opts ...engine.Option) *engine.Engine {
		return engine.New(append(opts, engine.WithArchive(store))...)
	}
	srv := NewServer(store, newEng, testLogger())
	ts := httptest.NewServer(srv)
	defer ts.Close()

	body := `{"execution_id":"run-1","definition":` + jsonString(sampleDefinition) + `}`
	resp, err := http.Post(ts.URL+"/runs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out createRunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "run-1", out.ExecutionID)

	require.Eventually(t, func() bool {
		_, err := store.Load(context.Background(), "run-1")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCreateRunRejectsInvalidDefinition(t *testing.T) {
	t.Parallel()
	store := archive.NewMemoryArchive()
	newEng := func(opts ...engine.Option) *engine.Engine { return engine.New(opts...) }
	srv := NewServer(store, newEng, testLogger())
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/runs", "application/json", strings.NewReader(`{"definition":"not: valid: : yaml"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetRunReturnsNotFoundForUnknownID(t *testing.T) {
	t.Parallel()
	store := archive.NewMemoryArchive()
	newEng := func(opts ...engine.Option) *engine.Engine { return engine.New(opts...) }
	srv := NewServer(store, newEng, testLogger())
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/runs/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
