package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	t.Parallel()

	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("zero limit = %d, want default %d", got, DefaultLimit)
	}
	if got := NormalizeLimit(-5); got != DefaultLimit {
		t.Fatalf("negative limit = %d, want default %d", got, DefaultLimit)
	}
	if got := NormalizeLimit(1000); got != MaxLimit {
		t.Fatalf("oversized limit = %d, want max %d", got, MaxLimit)
	}
	if got := NormalizeLimit(10); got != 10 {
		t.Fatalf("in-range limit = %d, want 10", got)
	}
}

func TestHasMore(t *testing.T) {
	t.Parallel()

	if !HasMore(11, 10) {
		t.Fatal("expected more pages when fetched exceeds limit")
	}
	if HasMore(10, 10) {
		t.Fatal("expected no more pages on exact fit")
	}
}

func TestCursorRoundTrip(t *testing.T) {
	t.Parallel()

	want := Cursor{CreatedAt: time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC), ID: uuid.New()}
	encoded := EncodeCursor(want)

	got, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("round trip mismatch: %+v != %+v", got, want)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	t.Parallel()

	if c, err := ParseCursor(""); err != nil || c != nil {
		t.Fatalf("empty cursor should be nil/nil, got %v, %v", c, err)
	}
	if _, err := ParseCursor("not-base64!!!"); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := ParseCursor("aGVsbG8="); err == nil {
		t.Fatal("expected format error for payload without separator")
	}
}
