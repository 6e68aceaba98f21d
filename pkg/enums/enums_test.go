package enums

import "testing"

func TestParseTargetType(t *testing.T) {
	t.Parallel()

	if got, err := ParseTargetType("prestashop"); err != nil || got != TargetTypePrestaShop {
		t.Fatalf("ParseTargetType(prestashop) = %v, %v", got, err)
	}
	if _, err := ParseTargetType("magento"); err == nil {
		t.Fatal("expected error for unknown target type")
	}
}

func TestChangeTypeAllowsNegativeAmount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		ct   ChangeType
		want bool
	}{
		{ChangeTypeSet, false},
		{ChangeTypeIncrease, false},
		{ChangeTypePercentage, false},
		{ChangeTypeDecrease, true},
		{ChangeTypeAdjust, true},
	}
	for _, tc := range cases {
		if got := tc.ct.AllowsNegativeAmount(); got != tc.want {
			t.Fatalf("%s.AllowsNegativeAmount() = %v, want %v", tc.ct, got, tc.want)
		}
	}
}

func TestDeleteScopeCoverage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		scope  DeleteScope
		local  bool
		remote bool
	}{
		{DeleteScopeLocal, true, false},
		{DeleteScopeRemote, false, true},
		{DeleteScopeBoth, true, true},
	}
	for _, tc := range cases {
		if tc.scope.IncludesLocal() != tc.local || tc.scope.IncludesRemote() != tc.remote {
			t.Fatalf("%s: IncludesLocal=%v IncludesRemote=%v, want %v/%v",
				tc.scope, tc.scope.IncludesLocal(), tc.scope.IncludesRemote(), tc.local, tc.remote)
		}
	}
}

func TestUserRoleCanWrite(t *testing.T) {
	t.Parallel()

	if !UserRoleAdmin.CanWrite() || !UserRoleEditor.CanWrite() {
		t.Fatal("admin and editor must be able to write")
	}
	if UserRoleViewer.CanWrite() {
		t.Fatal("viewer must not be able to write")
	}
}

func TestParseRejectsUnknownValues(t *testing.T) {
	t.Parallel()

	if _, err := ParsePendingAction("delete"); err == nil {
		t.Fatal("expected error for unknown pending action")
	}
	if _, err := ParseDeleteScope("everywhere"); err == nil {
		t.Fatal("expected error for unknown delete scope")
	}
	if _, err := ParseMediaStatus("archived"); err == nil {
		t.Fatal("expected error for unknown media status")
	}
	if _, err := ParseUserRole("owner"); err == nil {
		t.Fatal("expected error for unknown user role")
	}
	if _, err := ParseNotificationSeverity("info"); err == nil {
		t.Fatal("expected error for unknown notification severity")
	}
}
