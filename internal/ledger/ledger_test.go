package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pawelnowak/pimhub-backend/pkg/enums"
	pkgerrors "github.com/pawelnowak/pimhub-backend/pkg/errors"
)

type memStore struct {
	hashes   map[string]map[string]string
	counters map[string]int64
	expires  map[string]time.Duration
}

func newMemStore() *memStore {
	return &memStore{
		hashes:   map[string]map[string]string{},
		counters: map[string]int64{},
		expires:  map[string]time.Duration{},
	}
}

func (m *memStore) HSet(_ context.Context, key string, values ...any) error {
	hash, ok := m.hashes[key]
	if !ok {
		hash = map[string]string{}
		m.hashes[key] = hash
	}
	for i := 0; i+1 < len(values); i += 2 {
		hash[values[i].(string)] = values[i+1].(string)
	}
	return nil
}

func (m *memStore) HGet(_ context.Context, key, field string) (string, error) {
	if value, ok := m.hashes[key][field]; ok {
		return value, nil
	}
	return "", redis.Nil
}

func (m *memStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	out := map[string]string{}
	for field, value := range m.hashes[key] {
		out[field] = value
	}
	return out, nil
}

func (m *memStore) HDel(_ context.Context, key string, fields ...string) error {
	for _, field := range fields {
		delete(m.hashes[key], field)
	}
	return nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.hashes, key)
	}
	return nil
}

func (m *memStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.expires[key] = ttl
	return nil
}

func (m *memStore) Incr(_ context.Context, key string) (int64, error) {
	m.counters[key]++
	return m.counters[key], nil
}

func (m *memStore) LedgerKey(sessionID, productID string) string {
	return "pim:ledger:" + sessionID + ":" + productID
}

func (m *memStore) CounterKey(name string) string {
	return "pim:counter:" + name
}

func newTestLedger(t *testing.T) (*Ledger, *memStore) {
	t.Helper()
	store := newMemStore()
	l, err := New(store, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l, store
}

func testEntry() Entry {
	return Entry{
		MediaItemID: uuid.New(),
		TargetType:  enums.TargetTypePrestaShop,
		TargetID:    uuid.New(),
		Action:      enums.PendingActionSync,
	}
}

func TestStageAndList(t *testing.T) {
	t.Parallel()

	l, store := newTestLedger(t)
	ctx := context.Background()

	first := testEntry()
	second := testEntry()
	second.Action = enums.PendingActionUnsync

	if removed, err := l.Stage(ctx, "sess", "prod", first); err != nil || removed != nil {
		t.Fatalf("Stage first: removed=%v err=%v", removed, err)
	}
	if removed, err := l.Stage(ctx, "sess", "prod", second); err != nil || removed != nil {
		t.Fatalf("Stage second: removed=%v err=%v", removed, err)
	}

	entries, err := l.List(ctx, "sess", "prod")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].MediaItemID != first.MediaItemID || entries[1].MediaItemID != second.MediaItemID {
		t.Fatalf("entries out of staging order: %+v", entries)
	}
	if entries[0].Seq >= entries[1].Seq {
		t.Fatalf("sequence not monotonic: %d %d", entries[0].Seq, entries[1].Seq)
	}
	if entries[0].StagedAt.IsZero() {
		t.Fatal("expected staged timestamp to be set")
	}
	if ttl := store.expires[store.LedgerKey("sess", "prod")]; ttl != time.Hour {
		t.Fatalf("expected ledger ttl refresh, got %v", ttl)
	}
}

func TestStageToggleRemovesExisting(t *testing.T) {
	t.Parallel()

	l, _ := newTestLedger(t)
	ctx := context.Background()

	entry := testEntry()
	if _, err := l.Stage(ctx, "sess", "prod", entry); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	again := entry
	again.Action = enums.PendingActionUnsync
	removed, err := l.Stage(ctx, "sess", "prod", again)
	if err != nil {
		t.Fatalf("Stage toggle: %v", err)
	}
	if removed == nil || removed.Action != enums.PendingActionSync {
		t.Fatalf("expected original entry back, got %+v", removed)
	}

	entries, err := l.List(ctx, "sess", "prod")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty ledger after toggle, got %d entries", len(entries))
	}
}

func TestStageValidation(t *testing.T) {
	t.Parallel()

	l, _ := newTestLedger(t)
	ctx := context.Background()

	cases := []struct {
		name      string
		sessionID string
		productID string
		mutate    func(*Entry)
	}{
		{name: "missing session", productID: "prod", mutate: func(*Entry) {}},
		{name: "missing product", sessionID: "sess", mutate: func(*Entry) {}},
		{name: "nil media item", sessionID: "sess", productID: "prod", mutate: func(e *Entry) { e.MediaItemID = uuid.Nil }},
		{name: "bad target type", sessionID: "sess", productID: "prod", mutate: func(e *Entry) { e.TargetType = "ftp" }},
		{name: "nil target", sessionID: "sess", productID: "prod", mutate: func(e *Entry) { e.TargetID = uuid.Nil }},
		{name: "bad action", sessionID: "sess", productID: "prod", mutate: func(e *Entry) { e.Action = "replay" }},
	}
	for _, tc := range cases {
		entry := testEntry()
		tc.mutate(&entry)
		_, err := l.Stage(ctx, tc.sessionID, tc.productID, entry)
		if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestGetRemoveClear(t *testing.T) {
	t.Parallel()

	l, _ := newTestLedger(t)
	ctx := context.Background()

	entry := testEntry()
	if _, err := l.Stage(ctx, "sess", "prod", entry); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	got, err := l.Get(ctx, "sess", "prod", entry.MediaItemID, entry.TargetType, entry.TargetID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.MediaItemID != entry.MediaItemID {
		t.Fatalf("expected staged entry, got %+v", got)
	}

	if err := l.Remove(ctx, "sess", "prod", entry); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	got, err = l.Get(ctx, "sess", "prod", entry.MediaItemID, entry.TargetType, entry.TargetID)
	if err != nil {
		t.Fatalf("Get after remove: %v", err)
	}
	if got != nil {
		t.Fatalf("expected entry gone, got %+v", got)
	}

	if _, err := l.Stage(ctx, "sess", "prod", testEntry()); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if err := l.Clear(ctx, "sess", "prod"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	entries, err := l.List(ctx, "sess", "prod")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected cleared ledger, got %d entries", len(entries))
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	t.Parallel()

	l, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Stage(ctx, "sess-a", "prod", testEntry()); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	entries, err := l.List(ctx, "sess-b", "prod")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected other session empty, got %d entries", len(entries))
	}
}
