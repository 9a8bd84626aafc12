package state

import (
	"context"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"scent-cart/internal/bus"
	"scent-cart/internal/domain"
	"scent-cart/internal/storage"
)

// Cart is the cart collection of one session. Reads are served from an
// in-memory copy loaded lazily from the substrate; every mutation rewrites
// the whole stored value in the format it was loaded in, then notifies all
// views.
//
// Storage failures never surface to callers: unreadable data loads as an
// empty cart and failed writes leave the in-memory copy authoritative for
// the rest of the session.
type Cart struct {
	kv         storage.KV
	bus        *bus.Bus
	notifier   bus.Notifier
	logger     *zap.Logger
	storageKey string

	mu        sync.Mutex
	loaded    bool
	format    Format
	lines     []domain.CartLine
	originals map[string]map[string]any

	// version counts mutations of the selected-line set; the applied promo
	// is only valid for the version it was computed against.
	version uint64
	promo   *AppliedPromo
}

// AppliedPromo is the transient, non-persisted result of a promo code
// application. It is dropped automatically when the selected-line set
// changes.
type AppliedPromo struct {
	Code       string
	TotalPrice decimal.Decimal
	Percentage float64
	version    uint64
}

func newCart(kv storage.KV, b *bus.Bus, n bus.Notifier, logger *zap.Logger, storageKey string) *Cart {
	return &Cart{
		kv:         kv,
		bus:        b,
		notifier:   n,
		logger:     logger,
		storageKey: storageKey,
	}
}

// load populates the in-memory copy. Callers must hold c.mu.
func (c *Cart) load(ctx context.Context) {
	if c.loaded {
		return
	}
	c.loaded = true
	c.format = FormatFlat
	c.lines = nil
	c.originals = nil

	raw, ok, err := c.kv.Get(ctx, c.storageKey)
	if err != nil {
		c.logger.Warn("Failed to read cart, starting empty",
			zap.String("key", c.storageKey),
			zap.Error(err),
		)
		return
	}
	if !ok || raw == "" {
		return
	}

	c.format, c.lines, c.originals = decodeCart([]byte(raw))
	c.logger.Debug("Cart loaded",
		zap.String("key", c.storageKey),
		zap.Stringer("format", c.format),
		zap.Int("lines", len(c.lines)),
	)
}

// persist writes the current lines back in the sticky format. Callers must
// hold c.mu. The selection version always advances, which also drops any
// applied promo.
func (c *Cart) persist(ctx context.Context) {
	c.version++

	if len(c.lines) == 0 {
		if err := c.kv.Remove(ctx, c.storageKey); err != nil {
			c.logger.Warn("Failed to clear cart key", zap.String("key", c.storageKey), zap.Error(err))
		}
		return
	}

	raw, err := encodeCart(c.format, c.lines, c.originals)
	if err != nil {
		c.logger.Warn("Failed to encode cart, keeping in-memory state",
			zap.String("key", c.storageKey),
			zap.Error(err),
		)
		return
	}
	if err := c.kv.Set(ctx, c.storageKey, string(raw)); err != nil {
		c.logger.Warn("Failed to write cart, keeping in-memory state",
			zap.String("key", c.storageKey),
			zap.Error(err),
		)
	}
}

// notify runs after the write, outside the lock: same-instance views first,
// then other instances through the notifier.
func (c *Cart) notify(ctx context.Context) {
	c.bus.Publish(EventCartUpdated)
	c.bus.Publish(EventCartChanged)
	c.notifier.Announce(ctx, c.storageKey)
}

// invalidate drops the in-memory copy so the next read reloads from the
// substrate. Called when another instance rewrites the stored cart;
// last-write-wins, unseen local reads are clobbered.
func (c *Cart) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.lines = nil
	c.originals = nil
	c.version++
}

// Lines returns a copy of all cart lines.
func (c *Cart) Lines(ctx context.Context) []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load(ctx)

	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Count returns the total quantity across all lines.
func (c *Cart) Count(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load(ctx)

	total := 0
	for _, l := range c.lines {
		total += l.Quantity
	}
	return total
}

// Subtotal sums the line totals of selected lines only.
func (c *Cart) Subtotal(ctx context.Context) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load(ctx)
	return subtotal(c.lines)
}

func subtotal(lines []domain.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		if l.Selected {
			total = total.Add(l.LineTotal())
		}
	}
	return total
}

// Selection returns the selected lines together with the selection version
// they were read at, for promo application.
func (c *Cart) Selection(ctx context.Context) ([]domain.CartLine, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load(ctx)

	out := make([]domain.CartLine, 0, len(c.lines))
	for _, l := range c.lines {
		if l.Selected {
			out = append(out, l)
		}
	}
	return out, c.version
}

// AddOrIncrement adds a product to the cart or bumps the quantity of the
// line with the same (productID, size) identity. price is the unit price:
// for sized pricing the line price becomes price times volume, recomputed
// on every increment.
//
// A legacy-format cart has no size field to store, so the incoming size is
// dropped and identity degrades to the product id alone; two sizes of the
// same product cannot coexist as separate lines there.
func (c *Cart) AddOrIncrement(ctx context.Context, productID int, size *int, price decimal.Decimal, mode domain.PricingMode, snap domain.ProductSnapshot) {
	c.mu.Lock()
	c.load(ctx)

	linePrice := price
	if mode == domain.PricingSized && size != nil {
		linePrice = price.Mul(decimal.NewFromInt(int64(*size)))
	}

	key := lineKey(productID, size)
	if c.format == FormatLegacy {
		size = nil
		key = strconv.Itoa(productID)
	}

	found := false
	for i := range c.lines {
		if c.lines[i].SameIdentity(productID, size) {
			c.lines[i].Quantity++
			if mode == domain.PricingSized && size != nil {
				c.lines[i].Price = linePrice
			}
			found = true
			break
		}
	}
	if !found {
		c.lines = append(c.lines, domain.CartLine{
			Key:         key,
			ProductID:   productID,
			Size:        size,
			Title:       snap.Name,
			Brand:       snap.Brand,
			Price:       linePrice,
			Quantity:    1,
			Image:       snap.Image,
			Selected:    true,
			PricingMode: mode,
		})
	}

	c.persist(ctx)
	c.mu.Unlock()
	c.notify(ctx)
}

// SetQuantity changes a line's quantity by delta. A change that would drop
// the quantity below one is a no-op.
func (c *Cart) SetQuantity(ctx context.Context, key string, delta int) {
	c.mu.Lock()
	c.load(ctx)

	changed := false
	for i := range c.lines {
		if c.lines[i].Key == key {
			if q := c.lines[i].Quantity + delta; q >= 1 {
				c.lines[i].Quantity = q
				changed = true
			}
			break
		}
	}
	if !changed {
		c.mu.Unlock()
		return
	}

	c.persist(ctx)
	c.mu.Unlock()
	c.notify(ctx)
}

// RemoveLine deletes a line. Removing the last line removes the storage key
// entirely.
func (c *Cart) RemoveLine(ctx context.Context, key string) {
	c.mu.Lock()
	c.load(ctx)

	idx := -1
	for i := range c.lines {
		if c.lines[i].Key == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}

	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	delete(c.originals, key)

	c.persist(ctx)
	c.mu.Unlock()
	c.notify(ctx)
}

// ToggleSelected includes or excludes a line from the checkout subtotal.
func (c *Cart) ToggleSelected(ctx context.Context, key string, checked bool) {
	c.mu.Lock()
	c.load(ctx)

	changed := false
	for i := range c.lines {
		if c.lines[i].Key == key {
			if c.lines[i].Selected != checked {
				c.lines[i].Selected = checked
				changed = true
			}
			break
		}
	}
	if !changed {
		c.mu.Unlock()
		return
	}

	c.persist(ctx)
	c.mu.Unlock()
	c.notify(ctx)
}

// ToggleSelectAll applies a selection state to every line.
func (c *Cart) ToggleSelectAll(ctx context.Context, checked bool) {
	c.mu.Lock()
	c.load(ctx)

	for i := range c.lines {
		c.lines[i].Selected = checked
	}

	c.persist(ctx)
	c.mu.Unlock()
	c.notify(ctx)
}

// Clear empties the cart and deletes the storage key. Used after a
// successful order submission.
func (c *Cart) Clear(ctx context.Context) {
	c.mu.Lock()
	c.load(ctx)

	c.lines = nil
	c.originals = nil

	c.persist(ctx)
	c.mu.Unlock()
	c.notify(ctx)
}

// SetPromo records a promo application computed against the given selection
// version. The promo is already stale if the cart changed while the pricing
// backend was being called.
func (c *Cart) SetPromo(code string, result domain.PromoResult, version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.promo = &AppliedPromo{
		Code:       code,
		TotalPrice: result.TotalPrice,
		Percentage: result.Percentage,
		version:    version,
	}
}

// Promo returns the applied promo if the selected-line set has not changed
// since it was computed.
func (c *Cart) Promo(ctx context.Context) (AppliedPromo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load(ctx)

	if c.promo == nil || c.promo.version != c.version {
		return AppliedPromo{}, false
	}
	return *c.promo, true
}

// ClearPromo drops any applied promo, e.g. after a failed application.
func (c *Cart) ClearPromo() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.promo = nil
}
