package archive

import (
	"context"
	"fmt"
	"sync"

	"github.com/nodeforge/flowengine/internal/state"
)

// MemoryArchive is the default Archive: an in-process map, lost on
// restart. Adequate for `workflowctl run` without a `--archive` flag and
// for tests.
type MemoryArchive struct {
	mu   sync.RWMutex
	runs map[string]state.Snapshot
}

// NewMemoryArchive constructs an empty MemoryArchive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{runs: make(map[string]state.Snapshot)}
}

func (m *MemoryArchive) Save(_ context.Context, snap state.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[snap.ExecutionID] = snap
	return nil
}

func (m *MemoryArchive) Load(_ context.Context, executionID string) (state.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.runs[executionID]
	if !ok {
		return state.Snapshot{}, fmt.Errorf("archive: no run found for execution id %q", executionID)
	}
	return snap, nil
}

func (m *MemoryArchive) List(_ context.Context) ([]RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RunSummary, 0, len(m.runs))
	for _, snap := range m.runs {
		out = append(out, summarize(snap))
	}
	return out, nil
}
