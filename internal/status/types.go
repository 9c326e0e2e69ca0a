package status

import "time"

// SyncPhase represents the current phase of a synchronization operation
type SyncPhase string

const (
	// SyncPhaseIdle means no sync has been attempted yet
	SyncPhaseIdle SyncPhase = "Idle"

	// SyncPhaseSyncing means sync is currently in progress
	SyncPhaseSyncing SyncPhase = "Syncing"

	// SyncPhaseComplete means sync completed successfully
	SyncPhaseComplete SyncPhase = "Complete"

	// SyncPhaseFailed means sync failed
	SyncPhaseFailed SyncPhase = "Failed"
)

// Trigger names what started a sync cycle
type Trigger string

const (
	// TriggerListing means a listing request found the cache inadequate
	TriggerListing Trigger = "listing"

	// TriggerRefresh means the refresh endpoint or command was invoked
	TriggerRefresh Trigger = "refresh"

	// TriggerStartup means the server warmed the cache while starting
	TriggerStartup Trigger = "startup"

	// TriggerScheduled means the background scheduler ran a refresh
	TriggerScheduled Trigger = "scheduled"
)

// SyncStatus represents the current state of tag synchronization
type SyncStatus struct {
	// Phase represents the current synchronization phase
	Phase SyncPhase `json:"phase" yaml:"phase"`

	// Message provides additional information about the sync status
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// Trigger is what started the most recent cycle
	Trigger Trigger `json:"trigger,omitempty" yaml:"trigger,omitempty"`

	// CycleID identifies the most recent cycle in logs
	CycleID string `json:"cycleId,omitempty" yaml:"cycleId,omitempty"`

	// LastAttempt is the timestamp of the last sync attempt
	LastAttempt *time.Time `json:"lastAttempt,omitempty" yaml:"lastAttempt,omitempty"`

	// AttemptCount is the number of sync attempts since last success
	AttemptCount int `json:"attemptCount" yaml:"attemptCount"`

	// LastSyncTime is the timestamp of the last successful sync
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty" yaml:"lastSyncTime,omitempty"`

	// TagCount is the number of tags persisted by the last successful sync
	TagCount int `json:"tagCount" yaml:"tagCount"`
}

// Clone returns a deep copy
func (s *SyncStatus) Clone() *SyncStatus {
	if s == nil {
		return nil
	}
	c := *s
	if s.LastAttempt != nil {
		t := *s.LastAttempt
		c.LastAttempt = &t
	}
	if s.LastSyncTime != nil {
		t := *s.LastSyncTime
		c.LastSyncTime = &t
	}
	return &c
}
