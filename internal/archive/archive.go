// Package archive implements the Run Archive: durable storage for
// finished (or checkpointed) run snapshots, so the CLI "resume" command
// can retrieve them after the process that ran them exits.
package archive

import (
	"context"

	"github.com/nodeforge/flowengine/internal/state"
)

// RunSummary is the directory-listing view of an archived run: enough to
// pick a run without loading its full snapshot.
type RunSummary struct {
	ExecutionID string
	IsRunning   bool
	NodeTotal   int
	Completed   int
	Failed      int
}

// Archive persists and retrieves run snapshots.
type Archive interface {
	Save(ctx context.Context, snap state.Snapshot) error
	Load(ctx context.Context, executionID string) (state.Snapshot, error)
	List(ctx context.Context) ([]RunSummary, error)
}

func summarize(snap state.Snapshot) RunSummary {
	s := RunSummary{ExecutionID: snap.ExecutionID, IsRunning: snap.IsRunning, NodeTotal: len(snap.NodeStates)}
	for _, ns := range snap.NodeStates {
		switch ns.Status {
		case state.StatusCompleted:
			s.Completed++
		case state.StatusFailed:
			s.Failed++
		}
	}
	return s
}
