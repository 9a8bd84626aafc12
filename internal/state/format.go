// Package state implements the commerce session state store: the cart with
// its three historical storage formats, the favorites and comparison lists,
// and change propagation to every view of a session.
package state

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"strconv"

	"github.com/shopspring/decimal"

	"scent-cart/internal/domain"
)

// Format identifies the storage shape a cart was written in. Detection is
// structural; none of the formats carries a version field.
type Format int

const (
	// FormatFlat matches the in-memory CartLine shape. It is also the
	// fallback when neither of the older shapes matches.
	FormatFlat Format = iota
	// FormatV2 elements carry both a numeric quantity and a numeric
	// subtotal, plus a distinguish cache of the id-size composite key.
	FormatV2
	// FormatLegacy elements nest the product snapshot under "product" and
	// carry a top-level id/qty. They have no size field, so line identity
	// degrades to the product id alone.
	FormatLegacy
)

func (f Format) String() string {
	switch f {
	case FormatV2:
		return "v2"
	case FormatLegacy:
		return "legacy"
	default:
		return "flat"
	}
}

// DetectFormat classifies a stored cart value. ok is false when the value is
// not a JSON array of objects at all; callers treat that as an empty cart.
func DetectFormat(raw []byte) (_ Format, ok bool) {
	var elems []map[string]any
	if err := json.Unmarshal(raw, &elems); err != nil {
		return FormatFlat, false
	}
	return classify(elems), true
}

func classify(elems []map[string]any) Format {
	if len(elems) == 0 {
		return FormatFlat
	}

	v2 := true
	for _, m := range elems {
		if _, ok := m["quantity"].(float64); !ok {
			v2 = false
			break
		}
		if _, ok := m["subtotal"].(float64); !ok {
			v2 = false
			break
		}
	}
	if v2 {
		return FormatV2
	}

	legacy := true
	for _, m := range elems {
		if _, ok := m["product"].(map[string]any); !ok {
			legacy = false
			break
		}
		if _, idOK := m["id"]; !idOK {
			legacy = false
			break
		}
		if _, qtyOK := m["qty"]; !qtyOK {
			legacy = false
			break
		}
	}
	if legacy {
		return FormatLegacy
	}

	return FormatFlat
}

// decodeCart parses a stored cart value into lines plus, for V2, the raw
// elements keyed by line identity so later writes can pass unknown fields
// through untouched. A value that parses as nothing sensible yields an
// empty cart.
func decodeCart(raw []byte) (Format, []domain.CartLine, map[string]map[string]any) {
	var elems []map[string]any
	if err := json.Unmarshal(raw, &elems); err != nil {
		return FormatFlat, nil, nil
	}

	switch classify(elems) {
	case FormatV2:
		lines, originals := decodeV2(elems)
		return FormatV2, lines, originals
	case FormatLegacy:
		return FormatLegacy, decodeLegacy(elems), nil
	default:
		return FormatFlat, decodeFlat(raw), nil
	}
}

func decodeV2(elems []map[string]any) ([]domain.CartLine, map[string]map[string]any) {
	lines := make([]domain.CartLine, 0, len(elems))
	originals := make(map[string]map[string]any, len(elems))

	for _, m := range elems {
		id := int(numField(m, "id"))

		var size *int
		switch sv := m["size"].(type) {
		case float64:
			v := ParseSize(sv)
			size = &v
		case string:
			// An empty or digit-free stored string means no size dimension
			// at all, not volume zero.
			if v := ParseSize(sv); v > 0 {
				size = &v
			}
		}

		key, _ := m["distinguish"].(string)
		if key == "" {
			key = lineKey(id, size)
		}

		qty := int(numField(m, "quantity"))
		if qty < 1 {
			qty = 1
		}

		var brand string
		if p, ok := m["product"].(map[string]any); ok {
			brand, _ = p["brand_name"].(string)
		}

		mode, _ := m["pricingMode"].(string)

		lines = append(lines, domain.CartLine{
			Key:         key,
			ProductID:   id,
			Size:        size,
			Title:       strField(m, "name"),
			Brand:       brand,
			Price:       parseStoredPrice(m["price"]),
			Quantity:    qty,
			Image:       strField(m, "image"),
			Selected:    true,
			PricingMode: domain.PricingMode(mode),
		})
		originals[key] = m
	}

	return lines, originals
}

func decodeLegacy(elems []map[string]any) []domain.CartLine {
	lines := make([]domain.CartLine, 0, len(elems))
	for _, m := range elems {
		id := int(numField(m, "id"))
		qty := int(numField(m, "qty"))
		if qty < 1 {
			qty = 1
		}

		p, _ := m["product"].(map[string]any)
		lines = append(lines, domain.CartLine{
			Key:       strconv.Itoa(id),
			ProductID: id,
			Title:     strField(p, "name"),
			Brand:     strField(p, "brand"),
			Price:     parseStoredPrice(p["price"]),
			Quantity:  qty,
			Image:     strField(p, "image"),
			Selected:  true,
		})
	}
	return lines
}

// flatLine overrides Selected so that its absence defaults to true instead
// of false.
type flatLine struct {
	domain.CartLine
	Selected *bool `json:"selected"`
}

func decodeFlat(raw []byte) []domain.CartLine {
	var elems []flatLine
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil
	}

	lines := make([]domain.CartLine, 0, len(elems))
	for i, e := range elems {
		line := e.CartLine
		line.Selected = e.Selected == nil || *e.Selected
		if line.Quantity < 1 {
			line.Quantity = 1
		}
		// Regenerate every key with the array index so stale or collided
		// stored keys cannot make two lines indistinguishable.
		line.Key = fmt.Sprintf("%d-%s-%d", line.ProductID, sizeToken(line.Size), i)
		lines = append(lines, line)
	}
	return lines
}

// encodeCart serializes lines back into the format they were loaded in.
func encodeCart(f Format, lines []domain.CartLine, originals map[string]map[string]any) ([]byte, error) {
	switch f {
	case FormatV2:
		return encodeV2(lines, originals)
	case FormatLegacy:
		return encodeLegacy(lines)
	default:
		return json.Marshal(lines)
	}
}

func encodeV2(lines []domain.CartLine, originals map[string]map[string]any) ([]byte, error) {
	out := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		var elem map[string]any
		if orig, ok := originals[l.Key]; ok {
			// Unknown fields ride along; only what the UI changes is
			// overwritten below.
			elem = maps.Clone(orig)
		} else {
			// Fresh line this session: no original element to preserve.
			elem = map[string]any{
				"id":          l.ProductID,
				"distinguish": lineKey(l.ProductID, l.Size),
			}
			if l.PricingMode != domain.PricingUnspecified {
				elem["pricingMode"] = string(l.PricingMode)
			}
		}

		price, _ := l.Price.Float64()
		elem["name"] = l.Title
		elem["image"] = l.Image
		elem["price"] = price
		elem["quantity"] = l.Quantity
		elem["subtotal"] = price * float64(l.Quantity)
		if l.Size != nil {
			elem["size"] = *l.Size
		} else {
			elem["size"] = nil
		}

		out = append(out, elem)
	}
	return json.Marshal(out)
}

type legacyProduct struct {
	Name  string  `json:"name"`
	Brand string  `json:"brand"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

type legacyLine struct {
	ID      int           `json:"id"`
	Qty     int           `json:"qty"`
	Product legacyProduct `json:"product"`
}

func encodeLegacy(lines []domain.CartLine) ([]byte, error) {
	out := make([]legacyLine, 0, len(lines))
	for _, l := range lines {
		price, _ := l.Price.Float64()
		out = append(out, legacyLine{
			ID:  l.ProductID,
			Qty: l.Quantity,
			Product: legacyProduct{
				Name:  l.Title,
				Brand: l.Brand,
				Price: price,
				Image: l.Image,
			},
		})
	}
	return json.Marshal(out)
}

var nonPriceChars = regexp.MustCompile(`[^0-9.\-]`)

// parseStoredPrice tolerates both plain numbers and currency-formatted
// strings ("1,250.00 AMD" style); everything unparsable is zero.
func parseStoredPrice(v any) decimal.Decimal {
	switch p := v.(type) {
	case float64:
		return decimal.NewFromFloat(p)
	case string:
		cleaned := nonPriceChars.ReplaceAllString(p, "")
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func numField(m map[string]any, key string) float64 {
	f, _ := m[key].(float64)
	return f
}

func strField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func sizeToken(size *int) string {
	if size == nil {
		return "null"
	}
	return strconv.Itoa(*size)
}

// lineKey is the id-size composite identity key, matching the distinguish
// cache the V2 writer maintains.
func lineKey(productID int, size *int) string {
	return fmt.Sprintf("%d-%s", productID, sizeToken(size))
}
