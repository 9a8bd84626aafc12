package domain

import "github.com/shopspring/decimal"

// PricingMode distinguishes products priced per-ml from flat-priced products.
type PricingMode string

const (
	// PricingUnified is a flat price regardless of chosen volume.
	PricingUnified PricingMode = "unified"
	// PricingSized scales the price with the chosen volume in ml.
	PricingSized PricingMode = "sized"
	// PricingUnspecified covers legacy entries written before pricing modes existed.
	PricingUnspecified PricingMode = ""
)

// ProductSnapshot is a denormalized copy of catalog fields captured when a
// product is added to a collection. It is never re-fetched afterwards.
// JSON tags are camelCase because the snapshot is also the stored shape the
// legacy storefront client wrote.
type ProductSnapshot struct {
	Name    string          `json:"name"`
	Brand   string          `json:"brand"`
	Price   decimal.Decimal `json:"price"`
	Image   string          `json:"image"`
	Rating  float64         `json:"rating"`
	InStock bool            `json:"inStock"`
}

// CartLine is one purchasable line in the cart. The logical identity of a
// line is the (ProductID, Size) pair; Key caches a unique identifier derived
// from it. For sized pricing, Price is the line price for quantity one
// (price-per-ml times volume); for unified pricing it is the flat price.
type CartLine struct {
	Key         string          `json:"key"`
	ProductID   int             `json:"productId"`
	Size        *int            `json:"variantSize"`
	Title       string          `json:"title"`
	Brand       string          `json:"brandLabel"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Image       string          `json:"imageUrl"`
	Selected    bool            `json:"selected"`
	PricingMode PricingMode     `json:"pricingMode,omitempty"`
}

// LineTotal is the amount this line contributes to the cart subtotal.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SameIdentity reports whether another (productID, size) pair refers to this
// line. Lines loaded from the legacy storage format carry no size, so their
// identity degrades to the product id alone.
func (l CartLine) SameIdentity(productID int, size *int) bool {
	if l.ProductID != productID {
		return false
	}
	if l.Size == nil || size == nil {
		return l.Size == nil && size == nil
	}
	return *l.Size == *size
}

// ListEntry is one entry in the favorites or comparison list.
type ListEntry struct {
	ProductID int             `json:"productId"`
	Product   ProductSnapshot `json:"product"`
}

// PromoItem describes one cart line in a promo code application request.
// Unified-priced lines send a quantity; sized lines send the volume instead.
type PromoItem struct {
	ProductID int    `json:"product_id"`
	Quantity  int    `json:"quantity,omitempty"`
	Size      string `json:"size,omitempty"`
}

// PromoRequest is the payload sent to the pricing backend.
type PromoRequest struct {
	Products  []PromoItem `json:"products"`
	Promocode string      `json:"promocode"`
}

// PromoResult is the discount returned by the pricing backend.
type PromoResult struct {
	TotalPrice decimal.Decimal `json:"total_price"`
	Percentage float64         `json:"percentage"`
}

// Payment types accepted by the order backend.
const (
	PaymentCashOnDelivery = "1"
	PaymentCard           = "2"
)

// OrderForm holds the checkout form fields a customer fills in. The draft is
// persisted between visits under its own storage key.
type OrderForm struct {
	Name        string `json:"name" validate:"required"`
	City        string `json:"city" validate:"required"`
	Address     string `json:"address" validate:"required"`
	Phone       string `json:"phone" validate:"required"`
	Note        string `json:"note"`
	PaymentType string `json:"payment_type" validate:"omitempty,oneof=1 2"`
}

// OrderItem is one product position in an order submission.
type OrderItem struct {
	ProductID int    `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
}

// OrderPayload is the full order submission sent to the backend.
type OrderPayload struct {
	Name        string      `json:"name"`
	City        string      `json:"city"`
	Address     string      `json:"address"`
	Phone       string      `json:"phone"`
	Note        string      `json:"note"`
	PaymentType string      `json:"payment_type"`
	Products    []OrderItem `json:"products"`
	Promocode   string      `json:"promocode,omitempty"`
	UserID      string      `json:"user_id,omitempty"`
}

// OrderResult is the backend's answer to an order submission: either a
// payment redirect or a plain status.
type OrderResult struct {
	RedirectURL string `json:"redirectUrl,omitempty"`
	Status      string `json:"status,omitempty"`
}
