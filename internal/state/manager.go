package state

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/rs/zerolog"
)

// Progress is the coarse aggregate view of a run.
type Progress struct {
	Percentage float64
	Completed  int
	Total      int
	Running    int
	Failed     int
}

// Stats mirrors the spec's ExecutionStats: totals, averages, and
// parallelism utilization (Σ(end-start) / wall-time).
type Stats struct {
	TotalNodes             int
	Completed              int
	Failed                 int
	Cancelled              int
	WallTime               time.Duration
	AverageNodeDuration    time.Duration
	ParallelismUtilization float64
}

// Snapshot is a structural copy of an ExecutionContext minus transient
// handles (locks), suitable for export, diffing, and restore.
type Snapshot struct {
	ExecutionID string                    `json:"execution_id"`
	NodeStates  map[string]NodeState      `json:"node_states"`
	GlobalData  map[string]map[string]any `json:"global_data"`
	IsRunning   bool                      `json:"is_running"`
	StartTime   *time.Time                `json:"start_time,omitempty"`
	EndTime     *time.Time                `json:"end_time,omitempty"`
	Timestamp   time.Time                 `json:"timestamp"`
}

// historyEntry stores a snapshot transition as a JSON merge patch against the
// previous retained snapshot, keeping the ring buffer compact. The first
// entry in a run always carries a full snapshot (base).
type historyEntry struct {
	timestamp time.Time
	base      []byte // full snapshot JSON, only set for the ring's first entry
	patch     []byte // JSON patch from the previous entry's reconstructed state
}

// Manager is the State Manager: the sole writer of NodeState entries and
// the authority on progress, statistics, and history.
type Manager struct {
	mu sync.Mutex

	ctx *ExecutionContext
	log zerolog.Logger

	listeners []func(NodeState)

	historyMu       sync.Mutex
	history         []historyEntry
	historyCap      int
	lastSnapshotRaw []byte

	autoSnapshotInterval time.Duration
	stopAuto             context.CancelFunc
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithHistoryCapacity overrides the default 100-entry ring buffer size.
func WithHistoryCapacity(n int) Option {
	return func(m *Manager) { m.historyCap = n }
}

// WithAutoSnapshotInterval overrides the default 5s periodic snapshot
// cadence taken while the run is active.
func WithAutoSnapshotInterval(d time.Duration) Option {
	return func(m *Manager) { m.autoSnapshotInterval = d }
}

// NewManager constructs a Manager bound to the given context.
func NewManager(ctx *ExecutionContext, log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		ctx:                  ctx,
		log:                  log,
		historyCap:           100,
		autoSnapshotInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers a listener invoked synchronously on every Update.
// Listener panics/errors are caught and logged; they never abort the
// update they observed.
func (m *Manager) Subscribe(fn func(NodeState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Update applies a partial patch over the node's current state (default
// Pending if unseen) and fans the change out to listeners.
func (m *Manager) Update(nodeID string, patch func(*NodeState)) NodeState {
	m.mu.Lock()
	current, ok := m.ctx.State(nodeID)
	if !ok {
		current = NodeState{NodeID: nodeID, Status: StatusPending}
	}
	patch(&current)
	current.NodeID = nodeID
	m.ctx.setState(current)

	now := time.Now()
	if current.Status == StatusRunning {
		m.ctx.setRunning(true, now)
	}
	if m.lastRunningExited() {
		m.ctx.setRunning(false, now)
	}
	listeners := append([]func(NodeState){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		m.notify(fn, current)
	}
	return current
}

func (m *Manager) notify(fn func(NodeState), s NodeState) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Str("node_id", s.NodeID).Msg("state listener panicked")
		}
	}()
	fn(s)
}

func (m *Manager) lastRunningExited() bool {
	return !m.ctx.anyRunning()
}

// Progress reports the current aggregate view.
func (m *Manager) Progress() Progress {
	counts := m.ctx.countByStatus()
	total := len(m.ctx.NodeStates)
	completed := counts[StatusCompleted]
	pct := 0.0
	if total > 0 {
		pct = float64(completed) / float64(total) * 100
	}
	return Progress{
		Percentage: pct,
		Completed:  completed,
		Total:      total,
		Running:    counts[StatusRunning],
		Failed:     counts[StatusFailed],
	}
}

// Statistics computes totals, averages, and parallelism utilization.
func (m *Manager) Statistics() Stats {
	states := m.ctx.AllStates()
	stats := Stats{TotalNodes: len(states)}

	var busy time.Duration
	var durationSum time.Duration
	var durationCount int

	for _, s := range states {
		switch s.Status {
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		case StatusCancelled:
			stats.Cancelled++
		}
		if s.StartTime != nil {
			end := time.Now()
			if s.EndTime != nil {
				end = *s.EndTime
			}
			d := end.Sub(*s.StartTime)
			busy += d
			if s.EndTime != nil {
				durationSum += d
				durationCount++
			}
		}
	}

	m.ctx.mu.RLock()
	start := m.ctx.StartTime
	end := m.ctx.EndTime
	m.ctx.mu.RUnlock()

	wall := time.Duration(0)
	if start != nil {
		finish := time.Now()
		if end != nil {
			finish = *end
		}
		wall = finish.Sub(*start)
	}
	stats.WallTime = wall
	if durationCount > 0 {
		stats.AverageNodeDuration = durationSum / time.Duration(durationCount)
	}
	if wall > 0 {
		stats.ParallelismUtilization = busy.Seconds() / wall.Seconds()
	}
	return stats
}

// Snapshot takes a structural copy of the current context.
func (m *Manager) Snapshot() Snapshot {
	m.ctx.mu.RLock()
	defer m.ctx.mu.RUnlock()

	states := make(map[string]NodeState, len(m.ctx.NodeStates))
	for id, s := range m.ctx.NodeStates {
		states[id] = s.clone()
	}
	global := make(map[string]map[string]any, len(m.ctx.GlobalData))
	for k, v := range m.ctx.GlobalData {
		inner := make(map[string]any, len(v))
		for ik, iv := range v {
			inner[ik] = iv
		}
		global[k] = inner
	}
	return Snapshot{
		ExecutionID: m.ctx.ExecutionID,
		NodeStates:  states,
		GlobalData:  global,
		IsRunning:   m.ctx.IsRunning,
		StartTime:   m.ctx.StartTime,
		EndTime:     m.ctx.EndTime,
		Timestamp:   time.Now(),
	}
}

// Restore replaces the context's mutable fields with the snapshot's,
// atomically with respect to other readers.
func (m *Manager) Restore(snap Snapshot) {
	m.ctx.mu.Lock()
	defer m.ctx.mu.Unlock()
	m.ctx.NodeStates = snap.NodeStates
	m.ctx.GlobalData = snap.GlobalData
	m.ctx.IsRunning = snap.IsRunning
	m.ctx.StartTime = snap.StartTime
	m.ctx.EndTime = snap.EndTime
}

// RecordSnapshot appends the current snapshot to the bounded history ring,
// storing it as a JSON merge patch against the previously retained snapshot to
// keep memory bounded even for long-running, high-frequency workflows.
func (m *Manager) RecordSnapshot() error {
	snap := m.Snapshot()
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	m.historyMu.Lock()
	defer m.historyMu.Unlock()

	entry := historyEntry{timestamp: snap.Timestamp}
	if m.lastSnapshotRaw == nil {
		entry.base = raw
	} else {
		patch, err := jsonpatch.CreateMergePatch(m.lastSnapshotRaw, raw)
		if err != nil {
			return err
		}
		entry.patch = patch
	}
	m.lastSnapshotRaw = raw

	m.history = append(m.history, entry)
	if len(m.history) > m.historyCap {
		// Re-base the new head so older patches remain replayable from it.
		dropped := len(m.history) - m.historyCap
		rebase, err := m.reconstruct(dropped)
		if err == nil {
			m.history = m.history[dropped:]
			m.history[0] = historyEntry{timestamp: m.history[0].timestamp, base: rebase}
		}
	}
	return nil
}

// History replays stored patches forward and returns every retained
// snapshot, oldest first.
func (m *Manager) History() ([]Snapshot, error) {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()

	if len(m.history) == 0 {
		return nil, nil
	}

	out := make([]Snapshot, 0, len(m.history))
	current := m.history[0].base
	var snap Snapshot
	if err := json.Unmarshal(current, &snap); err != nil {
		return nil, err
	}
	out = append(out, snap)

	for _, entry := range m.history[1:] {
		merged, err := jsonpatch.MergePatch(current, entry.patch)
		if err != nil {
			return nil, err
		}
		current = merged
		var s Snapshot
		if err := json.Unmarshal(current, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// reconstruct replays n patches forward from history[0] and returns the
// resulting raw snapshot, used to re-base the ring on eviction.
func (m *Manager) reconstruct(n int) ([]byte, error) {
	current := m.history[0].base
	for i := 1; i <= n; i++ {
		merged, err := jsonpatch.MergePatch(current, m.history[i].patch)
		if err != nil {
			return nil, err
		}
		current = merged
	}
	return current, nil
}

// StartAutoSnapshot begins the periodic snapshot loop (default every 5s)
// for as long as ctx stays IsRunning; it stops itself once the run ends
// or the supplied context is cancelled.
func (m *Manager) StartAutoSnapshot(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.stopAuto = cancel
	ticker := time.NewTicker(m.autoSnapshotInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.ctx.mu.RLock()
				running := m.ctx.IsRunning
				m.ctx.mu.RUnlock()
				if !running {
					cancel()
					return
				}
				if err := m.RecordSnapshot(); err != nil {
					m.log.Warn().Err(err).Msg("auto snapshot failed")
				}
			}
		}
	}()
}

// StopAutoSnapshot stops the periodic snapshot loop if running.
func (m *Manager) StopAutoSnapshot() {
	if m.stopAuto != nil {
		m.stopAuto()
	}
}
