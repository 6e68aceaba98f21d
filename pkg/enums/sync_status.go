package enums

// SyncStatus is the projected per-target state of a media item. It is derived
// from the persisted mapping merged with the pending-change ledger and is
// never stored.
type SyncStatus string

const (
	SyncStatusSynced        SyncStatus = "synced"
	SyncStatusUnsynced      SyncStatus = "unsynced"
	SyncStatusPendingSync   SyncStatus = "pending_sync"
	SyncStatusPendingUnsync SyncStatus = "pending_unsync"
	SyncStatusError         SyncStatus = "error"
)

// String returns the literal string for the status.
func (s SyncStatus) String() string {
	return string(s)
}
