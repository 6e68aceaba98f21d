package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pawelnowak/pimhub-backend/pkg/enums"
	pkgerrors "github.com/pawelnowak/pimhub-backend/pkg/errors"
)

// Entry is one staged media sync change. Entries live only inside an editing
// session and never touch the database until they are applied.
type Entry struct {
	MediaItemID uuid.UUID           `json:"media_item_id"`
	TargetType  enums.TargetType    `json:"target_type"`
	TargetID    uuid.UUID           `json:"target_id"`
	Action      enums.PendingAction `json:"action"`
	Seq         int64               `json:"seq"`
	StagedAt    time.Time           `json:"staged_at"`
}

// Field returns the hash field addressing this entry inside its session key.
func (e Entry) Field() string {
	return EntryField(e.MediaItemID, e.TargetType, e.TargetID)
}

// EntryField builds the hash field for a (media, target) pair.
func EntryField(mediaItemID uuid.UUID, targetType enums.TargetType, targetID uuid.UUID) string {
	return fmt.Sprintf("%s|%s|%s", mediaItemID, targetType, targetID)
}

type store interface {
	HSet(ctx context.Context, key string, values ...any) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Del(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	LedgerKey(sessionID, productID string) string
	CounterKey(name string) string
}

// Ledger stages media sync changes in Redis, scoped per editing session and
// product. Staging the same (media, target) pair twice cancels the first
// stage, so an even number of toggles leaves the ledger untouched.
type Ledger struct {
	store store
	ttl   time.Duration
}

const seqCounter = "ledger_seq"

// New constructs a session ledger with the provided entry TTL.
func New(store store, ttl time.Duration) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger store required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ledger ttl must be positive")
	}
	return &Ledger{store: store, ttl: ttl}, nil
}

// Stage records a pending action for a (media, target) pair. If the pair
// already has a staged entry the existing entry is removed instead, whatever
// its action, and the removed entry is returned.
func (l *Ledger) Stage(ctx context.Context, sessionID, productID string, entry Entry) (*Entry, error) {
	if err := validateScope(sessionID, productID); err != nil {
		return nil, err
	}
	if entry.MediaItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "media item id required")
	}
	if !entry.TargetType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target type")
	}
	if entry.TargetID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target id required")
	}
	if !entry.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid pending action")
	}

	key := l.store.LedgerKey(sessionID, productID)
	field := entry.Field()

	if existing, err := l.getEntry(ctx, key, field); err != nil {
		return nil, err
	} else if existing != nil {
		if err := l.store.HDel(ctx, key, field); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "removing staged entry")
		}
		return existing, nil
	}

	seq, err := l.store.Incr(ctx, l.store.CounterKey(seqCounter))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocating entry sequence")
	}
	entry.Seq = seq
	if entry.StagedAt.IsZero() {
		entry.StagedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding ledger entry")
	}
	if err := l.store.HSet(ctx, key, field, string(payload)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "staging entry")
	}
	if err := l.store.Expire(ctx, key, l.ttl); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refreshing ledger ttl")
	}
	return nil, nil
}

// Get returns the staged entry for a (media, target) pair, or nil.
func (l *Ledger) Get(ctx context.Context, sessionID, productID string, mediaItemID uuid.UUID, targetType enums.TargetType, targetID uuid.UUID) (*Entry, error) {
	if err := validateScope(sessionID, productID); err != nil {
		return nil, err
	}
	key := l.store.LedgerKey(sessionID, productID)
	return l.getEntry(ctx, key, EntryField(mediaItemID, targetType, targetID))
}

// List returns every staged entry for the session and product in staging
// order (ascending sequence).
func (l *Ledger) List(ctx context.Context, sessionID, productID string) ([]Entry, error) {
	if err := validateScope(sessionID, productID); err != nil {
		return nil, err
	}

	raw, err := l.store.HGetAll(ctx, l.store.LedgerKey(sessionID, productID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading ledger")
	}

	entries := make([]Entry, 0, len(raw))
	for field, value := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(value), &entry); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding ledger entry "+field)
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	return entries, nil
}

// Remove drops a single staged entry, typically after it was applied.
func (l *Ledger) Remove(ctx context.Context, sessionID, productID string, entry Entry) error {
	if err := validateScope(sessionID, productID); err != nil {
		return err
	}
	key := l.store.LedgerKey(sessionID, productID)
	if err := l.store.HDel(ctx, key, entry.Field()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "removing ledger entry")
	}
	return nil
}

// Clear discards every staged entry for the session and product.
func (l *Ledger) Clear(ctx context.Context, sessionID, productID string) error {
	if err := validateScope(sessionID, productID); err != nil {
		return err
	}
	if err := l.store.Del(ctx, l.store.LedgerKey(sessionID, productID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clearing ledger")
	}
	return nil
}

func (l *Ledger) getEntry(ctx context.Context, key, field string) (*Entry, error) {
	value, err := l.store.HGet(ctx, key, field)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading ledger entry")
	}
	var entry Entry
	if err := json.Unmarshal([]byte(value), &entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding ledger entry "+field)
	}
	return &entry, nil
}

func validateScope(sessionID, productID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	if strings.TrimSpace(productID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	return nil
}
