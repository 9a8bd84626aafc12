package transport

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"scent-cart/internal/domain"
	"scent-cart/internal/middleware"
	"scent-cart/internal/state"
)

// AddListEntryRequest adds a product snapshot to favorites or comparison.
type AddListEntryRequest struct {
	ProductID int             `json:"product_id" validate:"required,gt=0"`
	Name      string          `json:"name" validate:"required"`
	Brand     string          `json:"brand"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Rating    float64         `json:"rating"`
	InStock   bool            `json:"in_stock"`
}

// ListResponse is the API shape of the favorites or comparison list.
type ListResponse struct {
	Items []domain.ListEntry `json:"items"`
	Count int                `json:"count"`
}

// ListHandler serves one product list collection; it is mounted once for
// favorites and once for comparison.
type ListHandler struct {
	sessions *Sessions
	logger   *zap.Logger
	route    string
	pick     func(*state.Store) *state.List
}

// NewFavoritesHandler serves /api/favorites.
func NewFavoritesHandler(sessions *Sessions, logger *zap.Logger) *ListHandler {
	return &ListHandler{
		sessions: sessions,
		logger:   logger,
		route:    "/api/favorites",
		pick:     func(st *state.Store) *state.List { return st.Favorites() },
	}
}

// NewComparisonHandler serves /api/comparison.
func NewComparisonHandler(sessions *Sessions, logger *zap.Logger) *ListHandler {
	return &ListHandler{
		sessions: sessions,
		logger:   logger,
		route:    "/api/comparison",
		pick:     func(st *state.Store) *state.List { return st.Comparison() },
	}
}

// RegisterRoutes registers the list routes.
func (h *ListHandler) RegisterRoutes(r chi.Router) {
	r.Route(h.route, func(r chi.Router) {
		r.Get("/", h.GetList)
		r.Post("/", h.AddEntry)
		r.Delete("/{productID}", h.RemoveEntry)
	})
}

// GetList returns the list entries.
func (h *ListHandler) GetList(w http.ResponseWriter, r *http.Request) {
	list := h.pick(h.sessions.storeFor(r))
	entries := list.Entries(r.Context())
	middleware.RespondWithJSON(w, http.StatusOK, ListResponse{Items: entries, Count: len(entries)})
}

// AddEntry appends a product snapshot. A product that is already present is
// rejected with 409 so the UI can tell the user.
func (h *ListHandler) AddEntry(w http.ResponseWriter, r *http.Request) {
	var req AddListEntryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	list := h.pick(h.sessions.storeFor(r))
	err := list.Add(r.Context(), domain.ListEntry{
		ProductID: req.ProductID,
		Product: domain.ProductSnapshot{
			Name:    req.Name,
			Brand:   req.Brand,
			Price:   req.Price,
			Image:   req.Image,
			Rating:  req.Rating,
			InStock: req.InStock,
		},
	})
	if err != nil {
		if errors.Is(err, state.ErrAlreadyAdded) {
			middleware.RespondWithError(w, http.StatusConflict, "product already added")
			return
		}
		h.logger.Error("Failed to add list entry", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to add product")
		return
	}

	entries := list.Entries(r.Context())
	middleware.RespondWithJSON(w, http.StatusCreated, ListResponse{Items: entries, Count: len(entries)})
}

// RemoveEntry deletes a product from the list; absent products are a no-op.
func (h *ListHandler) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.Atoi(chi.URLParam(r, "productID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	list := h.pick(h.sessions.storeFor(r))
	list.Remove(r.Context(), productID)

	entries := list.Entries(r.Context())
	middleware.RespondWithJSON(w, http.StatusOK, ListResponse{Items: entries, Count: len(entries)})
}
