package sync

import (
	"testing"

	"github.com/google/uuid"

	"github.com/pawelnowak/pimhub-backend/internal/ledger"
	"github.com/pawelnowak/pimhub-backend/internal/targets"
	"github.com/pawelnowak/pimhub-backend/pkg/db/models"
	"github.com/pawelnowak/pimhub-backend/pkg/enums"
)

func strPtr(s string) *string { return &s }

func TestProjectStatusPrecedence(t *testing.T) {
	t.Parallel()

	mediaID := uuid.New()
	shopID := uuid.New()
	erpID := uuid.New()

	media := []models.MediaItem{{ID: mediaID, Position: 0}}
	activeTargets := []targets.Target{
		{Type: enums.TargetTypePrestaShop, ID: shopID, IsActive: true},
		{Type: enums.TargetTypeERP, ID: erpID, IsActive: true},
	}

	cases := []struct {
		name     string
		mappings []models.MediaMapping
		entries  []ledger.Entry
		want     map[enums.TargetType]enums.SyncStatus
	}{
		{
			name: "no state is unsynced",
			want: map[enums.TargetType]enums.SyncStatus{
				enums.TargetTypePrestaShop: enums.SyncStatusUnsynced,
				enums.TargetTypeERP:        enums.SyncStatusUnsynced,
			},
		},
		{
			name: "synced mapping reports synced",
			mappings: []models.MediaMapping{
				{MediaItemID: mediaID, TargetType: enums.TargetTypePrestaShop, TargetID: shopID, Synced: true, ExternalID: strPtr("42")},
			},
			want: map[enums.TargetType]enums.SyncStatus{
				enums.TargetTypePrestaShop: enums.SyncStatusSynced,
				enums.TargetTypeERP:        enums.SyncStatusUnsynced,
			},
		},
		{
			name: "mapping error reports error",
			mappings: []models.MediaMapping{
				{MediaItemID: mediaID, TargetType: enums.TargetTypePrestaShop, TargetID: shopID, Synced: true, LastError: strPtr("boom")},
			},
			want: map[enums.TargetType]enums.SyncStatus{
				enums.TargetTypePrestaShop: enums.SyncStatusError,
				enums.TargetTypeERP:        enums.SyncStatusUnsynced,
			},
		},
		{
			name: "staged entry overrides mapping",
			mappings: []models.MediaMapping{
				{MediaItemID: mediaID, TargetType: enums.TargetTypePrestaShop, TargetID: shopID, Synced: true, ExternalID: strPtr("42")},
			},
			entries: []ledger.Entry{
				{MediaItemID: mediaID, TargetType: enums.TargetTypePrestaShop, TargetID: shopID, Action: enums.PendingActionUnsync},
				{MediaItemID: mediaID, TargetType: enums.TargetTypeERP, TargetID: erpID, Action: enums.PendingActionSync},
			},
			want: map[enums.TargetType]enums.SyncStatus{
				enums.TargetTypePrestaShop: enums.SyncStatusPendingUnsync,
				enums.TargetTypeERP:        enums.SyncStatusPendingSync,
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := Project(media, tc.mappings, tc.entries, activeTargets)
			if len(got) != len(activeTargets) {
				t.Fatalf("expected %d statuses, got %d", len(activeTargets), len(got))
			}
			for _, status := range got {
				if want := tc.want[status.TargetType]; status.Status != want {
					t.Fatalf("%s: status = %s, want %s", status.TargetType, status.Status, want)
				}
			}
		})
	}
}

func TestProjectOrdersByPosition(t *testing.T) {
	t.Parallel()

	first := uuid.New()
	second := uuid.New()
	media := []models.MediaItem{
		{ID: second, Position: 2},
		{ID: first, Position: 1},
	}
	target := []targets.Target{{Type: enums.TargetTypePrestaShop, ID: uuid.New(), IsActive: true}}

	got := Project(media, nil, nil, target)
	if len(got) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(got))
	}
	if got[0].MediaItemID != first || got[1].MediaItemID != second {
		t.Fatalf("statuses not in gallery order: %+v", got)
	}
	// Input slice order must be untouched.
	if media[0].ID != second {
		t.Fatal("projection mutated its input")
	}
}

func TestProjectCarriesMappingDetails(t *testing.T) {
	t.Parallel()

	mediaID := uuid.New()
	shopID := uuid.New()
	got := Project(
		[]models.MediaItem{{ID: mediaID}},
		[]models.MediaMapping{{
			MediaItemID: mediaID,
			TargetType:  enums.TargetTypePrestaShop,
			TargetID:    shopID,
			Synced:      true,
			ExternalID:  strPtr("ext-9"),
		}},
		nil,
		[]targets.Target{{Type: enums.TargetTypePrestaShop, ID: shopID, IsActive: true}},
	)
	if len(got) != 1 {
		t.Fatalf("expected 1 status, got %d", len(got))
	}
	if got[0].ExternalID == nil || *got[0].ExternalID != "ext-9" {
		t.Fatalf("expected external id carried over, got %+v", got[0])
	}
}

func TestProjectEmptyInputs(t *testing.T) {
	t.Parallel()

	if got := Project(nil, nil, nil, nil); len(got) != 0 {
		t.Fatalf("expected empty projection, got %d", len(got))
	}
}
