package state

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"scent-cart/internal/bus"
	"scent-cart/internal/domain"
	"scent-cart/internal/storage"
)

// ErrAlreadyAdded is returned when a product is added to a list it is
// already in. The UI surfaces it as "already added" instead of silently
// deduplicating.
var ErrAlreadyAdded = errors.New("product already added")

// List is the favorites or comparison collection of one session: product
// snapshots keyed by product id, no quantities, no sizes.
type List struct {
	kv         storage.KV
	bus        *bus.Bus
	notifier   bus.Notifier
	logger     *zap.Logger
	storageKey string
	event      string

	mu      sync.Mutex
	loaded  bool
	entries []domain.ListEntry
}

func newList(kv storage.KV, b *bus.Bus, n bus.Notifier, logger *zap.Logger, storageKey, event string) *List {
	return &List{
		kv:         kv,
		bus:        b,
		notifier:   n,
		logger:     logger,
		storageKey: storageKey,
		event:      event,
	}
}

// load populates the in-memory copy. Callers must hold l.mu.
func (l *List) load(ctx context.Context) {
	if l.loaded {
		return
	}
	l.loaded = true
	l.entries = nil

	raw, ok, err := l.kv.Get(ctx, l.storageKey)
	if err != nil {
		l.logger.Warn("Failed to read list, starting empty",
			zap.String("key", l.storageKey),
			zap.Error(err),
		)
		return
	}
	if !ok || raw == "" {
		return
	}

	var entries []domain.ListEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		// Corrupt data degrades to an empty collection, never an error.
		l.logger.Warn("Failed to parse list, starting empty",
			zap.String("key", l.storageKey),
			zap.Error(err),
		)
		return
	}
	l.entries = entries
}

// persist writes the entries back. Callers must hold l.mu.
func (l *List) persist(ctx context.Context) {
	if len(l.entries) == 0 {
		if err := l.kv.Remove(ctx, l.storageKey); err != nil {
			l.logger.Warn("Failed to clear list key", zap.String("key", l.storageKey), zap.Error(err))
		}
		return
	}

	raw, err := json.Marshal(l.entries)
	if err != nil {
		l.logger.Warn("Failed to encode list", zap.String("key", l.storageKey), zap.Error(err))
		return
	}
	if err := l.kv.Set(ctx, l.storageKey, string(raw)); err != nil {
		l.logger.Warn("Failed to write list, keeping in-memory state",
			zap.String("key", l.storageKey),
			zap.Error(err),
		)
	}
}

func (l *List) notify(ctx context.Context) {
	l.bus.Publish(l.event)
	l.notifier.Announce(ctx, l.storageKey)
}

func (l *List) invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded = false
	l.entries = nil
}

// Entries returns a copy of the list.
func (l *List) Entries(ctx context.Context) []domain.ListEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.load(ctx)

	out := make([]domain.ListEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Count returns the number of entries.
func (l *List) Count(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.load(ctx)
	return len(l.entries)
}

// Contains reports whether a product is in the list.
func (l *List) Contains(ctx context.Context, productID int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.load(ctx)
	return l.indexOf(productID) >= 0
}

// Add appends a product snapshot. Re-adding a present product id is
// rejected with ErrAlreadyAdded and the list stays unchanged.
func (l *List) Add(ctx context.Context, entry domain.ListEntry) error {
	l.mu.Lock()
	l.load(ctx)

	if l.indexOf(entry.ProductID) >= 0 {
		l.mu.Unlock()
		return ErrAlreadyAdded
	}
	l.entries = append(l.entries, entry)

	l.persist(ctx)
	l.mu.Unlock()
	l.notify(ctx)
	return nil
}

// Remove deletes a product from the list. Removing an absent product is a
// no-op.
func (l *List) Remove(ctx context.Context, productID int) {
	l.mu.Lock()
	l.load(ctx)

	idx := l.indexOf(productID)
	if idx < 0 {
		l.mu.Unlock()
		return
	}
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)

	l.persist(ctx)
	l.mu.Unlock()
	l.notify(ctx)
}

// indexOf returns the entry position for a product id. Callers must hold
// l.mu.
func (l *List) indexOf(productID int) int {
	for i := range l.entries {
		if l.entries[i].ProductID == productID {
			return i
		}
	}
	return -1
}
