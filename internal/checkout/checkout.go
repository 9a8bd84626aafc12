// Package checkout implements promo code application and order submission
// on top of the session state store. All guards run client-side, before any
// network call reaches the backend.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"scent-cart/internal/domain"
	"scent-cart/internal/state"
)

var (
	// ErrEmptyCart fires first: no selected lines means nothing to price
	// or order.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrBelowMinimum rejects orders under the configured minimum amount.
	ErrBelowMinimum = errors.New("order total is below the minimum amount")
)

// Backend is the remote pricing/order collaborator.
type Backend interface {
	ApplyPromo(ctx context.Context, req domain.PromoRequest) (domain.PromoResult, error)
	SubmitOrder(ctx context.Context, payload domain.OrderPayload, token string) (domain.OrderResult, error)
}

// Service runs the checkout flows for any session store handed to it.
type Service struct {
	backend  Backend
	validate *validator.Validate
	minOrder decimal.Decimal
	logger   *zap.Logger
}

// NewService creates a checkout service.
func NewService(backend Backend, minOrder decimal.Decimal, logger *zap.Logger) *Service {
	return &Service{
		backend:  backend,
		validate: validator.New(),
		minOrder: minOrder,
		logger:   logger,
	}
}

// ApplyPromo prices the currently selected cart lines with a promo code.
// The result is held as transient state on the cart and becomes stale as
// soon as the selected-line set changes. A failed application clears any
// previously applied discount.
func (s *Service) ApplyPromo(ctx context.Context, st *state.Store, code string) (domain.PromoResult, error) {
	lines, version := st.Cart().Selection(ctx)
	if len(lines) == 0 {
		return domain.PromoResult{}, ErrEmptyCart
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	req := domain.PromoRequest{
		Products:  PromoItems(lines),
		Promocode: code,
	}

	result, err := s.backend.ApplyPromo(ctx, req)
	if err != nil {
		st.Cart().ClearPromo()
		return domain.PromoResult{}, fmt.Errorf("failed to apply promo code: %w", err)
	}

	st.Cart().SetPromo(code, result, version)
	s.logger.Info("Promo code applied",
		zap.String("session_id", st.SessionID()),
		zap.String("code", code),
		zap.Float64("percentage", result.Percentage),
	)
	return result, nil
}

// PromoItems maps selected cart lines to the backend's promo payload:
// sized lines send their volume, everything else sends a quantity.
func PromoItems(lines []domain.CartLine) []domain.PromoItem {
	items := make([]domain.PromoItem, 0, len(lines))
	for _, l := range lines {
		if l.PricingMode == domain.PricingSized && l.Size != nil {
			items = append(items, domain.PromoItem{
				ProductID: l.ProductID,
				Size:      strconv.Itoa(*l.Size),
			})
			continue
		}
		items = append(items, domain.PromoItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
		})
	}
	return items
}

// SubmitOrder validates and submits an order built from the selected cart
// lines. Guard order: empty cart, form validation, minimum amount. On
// success the cart and form draft are cleared; on failure the cart stays
// intact so the user can retry.
func (s *Service) SubmitOrder(ctx context.Context, st *state.Store, form domain.OrderForm, userID, token string) (domain.OrderResult, error) {
	lines, _ := st.Cart().Selection(ctx)
	if len(lines) == 0 {
		return domain.OrderResult{}, ErrEmptyCart
	}

	if err := s.validate.Struct(form); err != nil {
		return domain.OrderResult{}, err
	}

	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	promo, promoApplied := st.Cart().Promo(ctx)
	if promoApplied {
		total = promo.TotalPrice
	}
	if total.LessThan(s.minOrder) {
		return domain.OrderResult{}, ErrBelowMinimum
	}

	payment := form.PaymentType
	if payment == "" || userID == "" {
		// Anonymous customers always pay on delivery.
		payment = domain.PaymentCashOnDelivery
	}

	payload := domain.OrderPayload{
		Name:        form.Name,
		City:        form.City,
		Address:     form.Address,
		Phone:       form.Phone,
		Note:        form.Note,
		PaymentType: payment,
		Products:    orderItems(lines),
		UserID:      userID,
	}
	if promoApplied {
		payload.Promocode = promo.Code
	}

	st.RecordOrderPayload(ctx, payload)

	result, err := s.backend.SubmitOrder(ctx, payload, token)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("failed to submit order: %w", err)
	}

	st.Cart().Clear(ctx)
	st.ClearOrderForm(ctx)

	s.logger.Info("Order submitted",
		zap.String("session_id", st.SessionID()),
		zap.Int("lines", len(lines)),
		zap.String("payment_type", payment),
	)
	return result, nil
}

func orderItems(lines []domain.CartLine) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		item := domain.OrderItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
		}
		if l.PricingMode == domain.PricingSized && l.Size != nil {
			item.Size = strconv.Itoa(*l.Size)
		}
		items = append(items, item)
	}
	return items
}
