package status

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Tracker records the lifecycle of sync cycles and keeps the persisted status current.
// Persistence failures are logged and never fail a cycle.
type Tracker struct {
	mu          sync.RWMutex
	current     *SyncStatus
	persistence StatusPersistence
	now         func() time.Time
}

// NewTracker loads the last known status and returns a tracker writing through to persistence.
// A status left in the Syncing phase by a crashed process is reported as Failed.
func NewTracker(ctx context.Context, persistence StatusPersistence) *Tracker {
	if persistence == nil {
		persistence = NewMemoryStatusPersistence()
	}

	current, err := persistence.LoadStatus(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load sync status, starting fresh", "error", err)
		current = &SyncStatus{Phase: SyncPhaseIdle}
	}
	if current.Phase == "" {
		current.Phase = SyncPhaseIdle
	}
	if current.Phase == SyncPhaseSyncing {
		current.Phase = SyncPhaseFailed
		current.Message = "Sync interrupted by shutdown"
	}

	return &Tracker{
		current:     current,
		persistence: persistence,
		now:         time.Now,
	}
}

// Start marks a cycle as in progress
func (t *Tracker) Start(ctx context.Context, trigger Trigger, cycleID string) {
	t.update(ctx, func(s *SyncStatus) {
		now := t.now()
		s.Phase = SyncPhaseSyncing
		s.Trigger = trigger
		s.CycleID = cycleID
		s.LastAttempt = &now
		s.AttemptCount++
		s.Message = "Sync in progress"
	})
}

// Complete marks the running cycle as successful
func (t *Tracker) Complete(ctx context.Context, tagCount int) {
	t.update(ctx, func(s *SyncStatus) {
		now := t.now()
		s.Phase = SyncPhaseComplete
		s.LastSyncTime = &now
		s.AttemptCount = 0
		s.TagCount = tagCount
		s.Message = "Sync completed successfully"
	})
}

// Fail marks the running cycle as failed
func (t *Tracker) Fail(ctx context.Context, message string) {
	t.update(ctx, func(s *SyncStatus) {
		s.Phase = SyncPhaseFailed
		s.Message = message
	})
}

// Status returns a copy of the current status
func (t *Tracker) Status() *SyncStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current.Clone()
}

func (t *Tracker) update(ctx context.Context, fn func(*SyncStatus)) {
	t.mu.Lock()
	fn(t.current)
	snapshot := t.current.Clone()
	t.mu.Unlock()

	if err := t.persistence.SaveStatus(ctx, snapshot); err != nil {
		slog.WarnContext(ctx, "Failed to persist sync status", "phase", snapshot.Phase, "error", err)
	}
}
