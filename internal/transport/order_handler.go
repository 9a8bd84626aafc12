package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"scent-cart/internal/checkout"
	"scent-cart/internal/domain"
	"scent-cart/internal/middleware"
)

// OrderHandler serves the checkout form draft and order submission.
type OrderHandler struct {
	sessions *Sessions
	checkout *checkout.Service
	logger   *zap.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(sessions *Sessions, checkoutSvc *checkout.Service, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{sessions: sessions, checkout: checkoutSvc, logger: logger}
}

// RegisterRoutes registers the order routes.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/order", func(r chi.Router) {
		r.Get("/form", h.GetForm)
		r.Put("/form", h.SaveForm)
	})
	r.Post("/api/orders", h.SubmitOrder)
}

// GetForm returns the persisted checkout form draft.
func (h *OrderHandler) GetForm(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.storeFor(r)
	form, ok := st.OrderForm(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusNotFound, "no saved form")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, form)
}

// SaveForm persists the checkout form draft. Drafts may be partial, so no
// validation happens here; it runs on submission.
func (h *OrderHandler) SaveForm(w http.ResponseWriter, r *http.Request) {
	var form domain.OrderForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st := h.sessions.storeFor(r)
	st.SaveOrderForm(r.Context(), form)
	w.WriteHeader(http.StatusNoContent)
}

// SubmitOrder runs the checkout guards and forwards the order to the
// backend. The cart survives a failed submission so the user can retry.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var form domain.OrderForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st := h.sessions.storeFor(r)
	userID, _ := middleware.GetUserID(r.Context())
	token := middleware.BearerToken(r)

	result, err := h.checkout.SubmitOrder(r.Context(), st, form, userID, token)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			middleware.RespondWithError(w, http.StatusBadRequest, "cart is empty")
		case errors.Is(err, checkout.ErrBelowMinimum):
			middleware.RespondWithError(w, http.StatusBadRequest, "order total is below the minimum amount")
		default:
			if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
				middleware.RespondWithValidationErrors(w, validationErrors)
				return
			}
			h.logger.Error("Order submission failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusBadGateway, "failed to submit order")
		}
		return
	}

	h.logger.Info("Order accepted", zap.String("session_id", SessionID(r.Context())))
	middleware.RespondWithJSON(w, http.StatusOK, result)
}
