package state

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"scent-cart/internal/bus"
	"scent-cart/internal/domain"
	"scent-cart/internal/storage"
)

// Storage keys inside a session namespace.
const (
	KeyCart         = "cart"
	KeyFavorites    = "favorites"
	KeyComparison   = "comparison"
	KeyOrderForm    = "order.form"
	KeyOrderPayload = "order.payload"
)

// Store is the commerce state of one session: cart, favorites, comparison
// and the persisted checkout form. Views depend on this facade, never on
// the raw substrate, so tests can swap in an in-memory KV.
//
// All keys are namespaced with the session id, so a single substrate serves
// every session.
type Store struct {
	sessionID string
	ns        string
	kv        storage.KV
	bus       *bus.Bus
	notifier  bus.Notifier
	logger    *zap.Logger

	cart       *Cart
	favorites  *List
	comparison *List

	cancels []func()
}

// New builds the state store for a session. Remote change signals from
// other instances are normalized onto the same in-process events local
// writes publish, so subscribers never see where a change came from.
func New(kv storage.KV, notifier bus.Notifier, logger *zap.Logger, sessionID string) *Store {
	ns := "sess:" + sessionID + ":"
	b := bus.New()

	s := &Store{
		sessionID:  sessionID,
		ns:         ns,
		kv:         kv,
		bus:        b,
		notifier:   notifier,
		logger:     logger,
		cart:       newCart(kv, b, notifier, logger, ns+KeyCart),
		favorites:  newList(kv, b, notifier, logger, ns+KeyFavorites, EventFavoritesChanged),
		comparison: newList(kv, b, notifier, logger, ns+KeyComparison, EventComparisonChanged),
	}

	s.cancels = append(s.cancels,
		notifier.Watch(ns+KeyCart, func() {
			s.cart.invalidate()
			b.Publish(EventCartUpdated)
			b.Publish(EventCartChanged)
		}),
		notifier.Watch(ns+KeyFavorites, func() {
			s.favorites.invalidate()
			b.Publish(EventFavoritesChanged)
		}),
		notifier.Watch(ns+KeyComparison, func() {
			s.comparison.invalidate()
			b.Publish(EventComparisonChanged)
		}),
	)

	return s
}

func (s *Store) SessionID() string { return s.sessionID }

func (s *Store) Cart() *Cart { return s.cart }

func (s *Store) Favorites() *List { return s.favorites }

func (s *Store) Comparison() *List { return s.comparison }

// Subscribe registers fn to run whenever the named collection changes, no
// matter whether this instance or another one wrote it. The returned cancel
// function removes the subscription.
func (s *Store) Subscribe(collection string, fn func()) (cancel func()) {
	switch collection {
	case CollectionCart:
		return s.bus.Subscribe(EventCartUpdated, fn)
	case CollectionFavorites:
		return s.bus.Subscribe(EventFavoritesChanged, fn)
	case CollectionComparison:
		return s.bus.Subscribe(EventComparisonChanged, fn)
	default:
		return func() {}
	}
}

// SaveOrderForm persists the checkout form draft. Write failures are
// swallowed like every other substrate write.
func (s *Store) SaveOrderForm(ctx context.Context, form domain.OrderForm) {
	raw, err := json.Marshal(form)
	if err != nil {
		return
	}
	if err := s.kv.Set(ctx, s.ns+KeyOrderForm, string(raw)); err != nil {
		s.logger.Warn("Failed to save order form draft", zap.Error(err))
	}
}

// OrderForm returns the persisted checkout form draft, if any.
func (s *Store) OrderForm(ctx context.Context) (domain.OrderForm, bool) {
	raw, ok, err := s.kv.Get(ctx, s.ns+KeyOrderForm)
	if err != nil || !ok {
		return domain.OrderForm{}, false
	}
	var form domain.OrderForm
	if err := json.Unmarshal([]byte(raw), &form); err != nil {
		return domain.OrderForm{}, false
	}
	return form, true
}

// ClearOrderForm drops the persisted form draft.
func (s *Store) ClearOrderForm(ctx context.Context) {
	if err := s.kv.Remove(ctx, s.ns+KeyOrderForm); err != nil {
		s.logger.Warn("Failed to clear order form draft", zap.Error(err))
	}
}

// RecordOrderPayload keeps the last submitted order payload for diagnostics
// and retry flows.
func (s *Store) RecordOrderPayload(ctx context.Context, payload domain.OrderPayload) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.kv.Set(ctx, s.ns+KeyOrderPayload, string(raw)); err != nil {
		s.logger.Warn("Failed to record order payload", zap.Error(err))
	}
}

// Close cancels the remote watches. The store must not be used afterwards.
func (s *Store) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
}
