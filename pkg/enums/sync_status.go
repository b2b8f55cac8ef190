package enums

import "fmt"

// SyncStatus tracks the progress of an order's ERP synchronization.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusPartial SyncStatus = "partial"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

var validSyncStatuses = []SyncStatus{
	SyncStatusPending,
	SyncStatusPartial,
	SyncStatusSynced,
	SyncStatusFailed,
}

// String implements fmt.Stringer.
func (s SyncStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SyncStatus.
func (s SyncStatus) IsValid() bool {
	for _, candidate := range validSyncStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// NeedsRetry reports whether the sync sweep should pick this record up again.
// Pending counts: a map created without a completed first attempt still needs
// the sweep.
func (s SyncStatus) NeedsRetry() bool {
	return s == SyncStatusPending || s == SyncStatusFailed || s == SyncStatusPartial
}

// ParseSyncStatus converts raw input into a SyncStatus.
func ParseSyncStatus(value string) (SyncStatus, error) {
	for _, candidate := range validSyncStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync status %q", value)
}
