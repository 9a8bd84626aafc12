package transport

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"scent-cart/internal/checkout"
	"scent-cart/internal/domain"
	"scent-cart/internal/middleware"
	"scent-cart/internal/state"
)

// AddCartItemRequest adds a product to the cart. size accepts whatever the
// catalog hands over: a number of milliliters, a volume label like
// "100 ml", or null for products without a size dimension.
type AddCartItemRequest struct {
	ProductID   int             `json:"product_id" validate:"required,gt=0"`
	Size        any             `json:"size"`
	Price       decimal.Decimal `json:"price" validate:"required"`
	PricingMode string          `json:"pricing_mode" validate:"omitempty,oneof=unified sized"`
	Name        string          `json:"name" validate:"required"`
	Brand       string          `json:"brand"`
	Image       string          `json:"image"`
	Rating      float64         `json:"rating"`
	InStock     bool            `json:"in_stock"`
}

// ChangeQuantityRequest adjusts a line's quantity by a signed delta.
type ChangeQuantityRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// SelectRequest toggles checkout participation.
type SelectRequest struct {
	Selected bool `json:"selected"`
}

// ApplyPromoRequest applies a promo code to the selected lines.
type ApplyPromoRequest struct {
	Code string `json:"code" validate:"required"`
}

// CartLineView is the API shape of one cart line.
type CartLineView struct {
	Key         string          `json:"key"`
	ProductID   int             `json:"product_id"`
	Size        *int            `json:"size"`
	Title       string          `json:"title"`
	Brand       string          `json:"brand"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Image       string          `json:"image"`
	Selected    bool            `json:"selected"`
	PricingMode string          `json:"pricing_mode,omitempty"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// PromoView is the applied promo as shown to the client.
type PromoView struct {
	Code       string          `json:"code"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Percentage float64         `json:"percentage"`
}

// CartResponse is the full cart view with derived totals.
type CartResponse struct {
	Items    []CartLineView  `json:"items"`
	Count    int             `json:"count"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Promo    *PromoView      `json:"promo,omitempty"`
}

// CartHandler serves the cart endpoints.
type CartHandler struct {
	sessions *Sessions
	checkout *checkout.Service
	logger   *zap.Logger
}

// NewCartHandler creates a CartHandler.
func NewCartHandler(sessions *Sessions, checkoutSvc *checkout.Service, logger *zap.Logger) *CartHandler {
	return &CartHandler{sessions: sessions, checkout: checkoutSvc, logger: logger}
}

// RegisterRoutes registers the cart routes.
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{key}/quantity", h.ChangeQuantity)
		r.Delete("/items/{key}", h.RemoveItem)
		r.Put("/items/{key}/selected", h.SelectItem)
		r.Put("/selected", h.SelectAll)
		r.Post("/promo", h.ApplyPromo)
	})
}

// GetCart returns the cart with derived totals.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.storeFor(r)
	middleware.RespondWithJSON(w, http.StatusOK, h.cartResponse(r.Context(), st))
}

// AddItem adds a product or increments the matching line.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var size *int
	if req.Size != nil {
		if v := state.ParseSize(req.Size); v > 0 {
			size = &v
		}
	}

	st := h.sessions.storeFor(r)
	st.Cart().AddOrIncrement(
		r.Context(),
		req.ProductID,
		size,
		req.Price,
		domain.PricingMode(req.PricingMode),
		domain.ProductSnapshot{
			Name:    req.Name,
			Brand:   req.Brand,
			Price:   req.Price,
			Image:   req.Image,
			Rating:  req.Rating,
			InStock: req.InStock,
		},
	)

	middleware.RespondWithJSON(w, http.StatusCreated, h.cartResponse(r.Context(), st))
}

// ChangeQuantity adjusts a line quantity; drops below one are ignored.
func (h *CartHandler) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	var req ChangeQuantityRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st := h.sessions.storeFor(r)
	st.Cart().SetQuantity(r.Context(), chi.URLParam(r, "key"), req.Delta)
	middleware.RespondWithJSON(w, http.StatusOK, h.cartResponse(r.Context(), st))
}

// RemoveItem deletes a line.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.storeFor(r)
	st.Cart().RemoveLine(r.Context(), chi.URLParam(r, "key"))
	middleware.RespondWithJSON(w, http.StatusOK, h.cartResponse(r.Context(), st))
}

// SelectItem toggles one line's checkout participation.
func (h *CartHandler) SelectItem(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st := h.sessions.storeFor(r)
	st.Cart().ToggleSelected(r.Context(), chi.URLParam(r, "key"), req.Selected)
	middleware.RespondWithJSON(w, http.StatusOK, h.cartResponse(r.Context(), st))
}

// SelectAll applies a selection state to every line.
func (h *CartHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st := h.sessions.storeFor(r)
	st.Cart().ToggleSelectAll(r.Context(), req.Selected)
	middleware.RespondWithJSON(w, http.StatusOK, h.cartResponse(r.Context(), st))
}

// ClearCart empties the cart.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.storeFor(r)
	st.Cart().Clear(r.Context())
	middleware.RespondWithJSON(w, http.StatusOK, h.cartResponse(r.Context(), st))
}

// ApplyPromo prices the selected lines with a promo code.
func (h *CartHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	var req ApplyPromoRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st := h.sessions.storeFor(r)
	result, err := h.checkout.ApplyPromo(r.Context(), st, req.Code)
	if err != nil {
		if errors.Is(err, checkout.ErrEmptyCart) {
			middleware.RespondWithError(w, http.StatusBadRequest, "cart is empty")
			return
		}
		h.logger.Warn("Promo application failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadGateway, "failed to apply promo code")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, result)
}

func (h *CartHandler) cartResponse(ctx context.Context, st *state.Store) CartResponse {
	lines := st.Cart().Lines(ctx)

	items := make([]CartLineView, 0, len(lines))
	for _, l := range lines {
		items = append(items, CartLineView{
			Key:         l.Key,
			ProductID:   l.ProductID,
			Size:        l.Size,
			Title:       l.Title,
			Brand:       l.Brand,
			Price:       l.Price,
			Quantity:    l.Quantity,
			Image:       l.Image,
			Selected:    l.Selected,
			PricingMode: string(l.PricingMode),
			LineTotal:   l.LineTotal(),
		})
	}

	resp := CartResponse{
		Items:    items,
		Count:    st.Cart().Count(ctx),
		Subtotal: st.Cart().Subtotal(ctx),
	}
	if promo, ok := st.Cart().Promo(ctx); ok {
		resp.Promo = &PromoView{
			Code:       promo.Code,
			TotalPrice: promo.TotalPrice,
			Percentage: promo.Percentage,
		}
	}
	return resp
}
