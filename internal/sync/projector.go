package sync

import (
	"sort"

	"github.com/google/uuid"

	"github.com/pawelnowak/pimhub-backend/internal/ledger"
	"github.com/pawelnowak/pimhub-backend/internal/targets"
	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
	"github.com/pawelnowak/pimhub-backend/pkg/enums"
)

// MediaTargetStatus is the effective sync state of one media item on one
// target, with staged but unapplied changes layered over the persisted
// mappings.
type MediaTargetStatus struct {
	MediaItemID uuid.UUID        `json:"media_item_id"`
	TargetType  enums.TargetType `json:"target_type"`
	TargetID    uuid.UUID        `json:"target_id"`
	Status      enums.SyncStatus `json:"status"`
	ExternalID  *string          `json:"external_id,omitempty"`
	LastError   *string          `json:"last_error,omitempty"`
}

// Project merges persisted mappings with staged ledger entries into a status
// per (media item, target) pair. It reads nothing and writes nothing, so the
// same inputs always produce the same projection.
//
// A staged entry always wins over the persisted mapping. Without one, a
// mapping that last failed reports its error, a synced mapping reports
// synced, and everything else is unsynced.
func Project(media []models.MediaItem, mappings []models.MediaMapping, entries []ledger.Entry, activeTargets []targets.Target) []MediaTargetStatus {
	type pairKey struct {
		mediaItemID uuid.UUID
		targetType  enums.TargetType
		targetID    uuid.UUID
	}

	mappingByPair := make(map[pairKey]*models.MediaMapping, len(mappings))
	for i := range mappings {
		m := &mappings[i]
		mappingByPair[pairKey{m.MediaItemID, m.TargetType, m.TargetID}] = m
	}
	entryByPair := make(map[pairKey]*ledger.Entry, len(entries))
	for i := range entries {
		e := &entries[i]
		entryByPair[pairKey{e.MediaItemID, e.TargetType, e.TargetID}] = e
	}

	ordered := make([]models.MediaItem, len(media))
	copy(ordered, media)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	out := make([]MediaTargetStatus, 0, len(ordered)*len(activeTargets))
	for _, item := range ordered {
		for _, target := range activeTargets {
			key := pairKey{item.ID, target.Type, target.ID}
			status := MediaTargetStatus{
				MediaItemID: item.ID,
				TargetType:  target.Type,
				TargetID:    target.ID,
				Status:      enums.SyncStatusUnsynced,
			}
			if mapping, ok := mappingByPair[key]; ok {
				status.ExternalID = mapping.ExternalID
				status.LastError = mapping.LastError
				switch {
				case mapping.LastError != nil:
					status.Status = enums.SyncStatusError
				case mapping.Synced:
					status.Status = enums.SyncStatusSynced
				}
			}
			if entry, ok := entryByPair[key]; ok {
				if entry.Action == enums.PendingActionUnsync {
					status.Status = enums.SyncStatusPendingUnsync
				} else {
					status.Status = enums.SyncStatusPendingSync
				}
			}
			out = append(out, status)
		}
	}
	return out
}
