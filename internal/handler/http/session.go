package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/validator"
)

// SessionHandler handles HTTP requests for the shopper session endpoints.
type SessionHandler struct {
	registry *service.Registry
	logger   *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(registry *service.Registry, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		registry: registry,
		logger:   logger,
	}
}

// --- Request / response DTOs ---

// UpdateQuantityRequest is the JSON body for PATCH /cart/items/{productId}.
type UpdateQuantityRequest struct {
	Delta int `json:"delta" validate:"ne=0"`
}

// WishlistResponse lists the wishlisted product ids.
type WishlistResponse struct {
	Items []domain.ProductID `json:"items"`
	Count int                `json:"count"`
}

// WishlistItemResponse reports one product's membership.
type WishlistItemResponse struct {
	ProductID  domain.ProductID `json:"productId"`
	Wishlisted bool             `json:"wishlisted"`
}

// ProductsResponse wraps an ordered product list.
type ProductsResponse struct {
	Items []domain.Product `json:"items"`
}

// --- Session ---

// GetSession handles GET /api/v1/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, s.Snapshot())
}

// SignIn handles POST /api/v1/session/sign-in
func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := s.SignIn(r.Context(), middleware.AccountIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, s.Snapshot())
}

// SignOut handles POST /api/v1/session/sign-out. A bearer token is not
// required, but one naming another account is rejected.
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	caller := middleware.AccountIDFromContext(r.Context())
	if account := s.AccountID(); caller != "" && account != "" && caller != account {
		httputil.WriteError(w, r, apperrors.Forbidden("session is signed in to another account"), h.logger)
		return
	}
	s.SignOut(r.Context())
	httputil.WriteData(w, http.StatusOK, s.Snapshot())
}

// Notices handles GET /api/v1/session/notices
func (h *SessionHandler) Notices(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, s.Notices())
}

// --- Cart ---

// GetCart handles GET /api/v1/session/cart
func (h *SessionHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, s.Cart())
}

// AddItem handles POST /api/v1/session/cart/items
func (h *SessionHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	p, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}
	if err := s.AddItem(r.Context(), p); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, s.Cart())
}

// UpdateQuantity handles PATCH /api/v1/session/cart/items/{productId}
func (h *SessionHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if !h.decode(w, r, &req) {
		return
	}

	s.UpdateQuantity(r.Context(), id, req.Delta)
	httputil.WriteData(w, http.StatusOK, s.Cart())
}

// RemoveItem handles DELETE /api/v1/session/cart/items/{productId}
func (h *SessionHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	s.RemoveItem(r.Context(), id)
	httputil.WriteData(w, http.StatusOK, s.Cart())
}

// ClearCart handles DELETE /api/v1/session/cart
func (h *SessionHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ClearCart(r.Context())
	httputil.WriteData(w, http.StatusOK, s.Cart())
}

// --- Wishlist ---

// GetWishlist handles GET /api/v1/session/wishlist
func (h *SessionHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	items := s.WishlistMembership()
	httputil.WriteData(w, http.StatusOK, WishlistResponse{Items: items, Count: len(items)})
}

// ToggleWishlist handles POST /api/v1/session/wishlist/{productId}/toggle
func (h *SessionHandler) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	wishlisted, err := s.ToggleWishlist(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, WishlistItemResponse{ProductID: id, Wishlisted: wishlisted})
}

// IsWishlisted handles GET /api/v1/session/wishlist/{productId}
func (h *SessionHandler) IsWishlisted(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, WishlistItemResponse{ProductID: id, Wishlisted: s.IsWishlisted(id)})
}

// --- Compare ---

// GetCompare handles GET /api/v1/session/compare
func (h *SessionHandler) GetCompare(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, ProductsResponse{Items: s.CompareSet()})
}

// AddToCompare handles POST /api/v1/session/compare
func (h *SessionHandler) AddToCompare(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	p, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}
	if err := s.AddToCompare(p); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, ProductsResponse{Items: s.CompareSet()})
}

// RemoveFromCompare handles DELETE /api/v1/session/compare/{productId}
func (h *SessionHandler) RemoveFromCompare(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	s.RemoveFromCompare(id)
	httputil.WriteData(w, http.StatusOK, ProductsResponse{Items: s.CompareSet()})
}

// ClearCompare handles DELETE /api/v1/session/compare
func (h *SessionHandler) ClearCompare(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ClearCompare()
	httputil.WriteData(w, http.StatusOK, ProductsResponse{Items: s.CompareSet()})
}

// SubmitCompare handles POST /api/v1/session/compare/submit
func (h *SessionHandler) SubmitCompare(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, ProductsResponse{Items: s.SubmitCompare()})
}

// --- Recently viewed ---

// GetRecent handles GET /api/v1/session/recent
func (h *SessionHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, ProductsResponse{Items: s.RecentlyViewed()})
}

// RecordView handles POST /api/v1/session/recent
func (h *SessionHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	p, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}
	if err := s.RecordView(p); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, ProductsResponse{Items: s.RecentlyViewed()})
}

// --- Helpers ---

// session returns the caller's session. A signed-in session only serves
// requests carrying a bearer token for its own account.
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	s, ok := h.lookup(w, r)
	if !ok {
		return nil, false
	}
	account := s.AccountID()
	if account == "" {
		return s, true
	}
	switch caller := middleware.AccountIDFromContext(r.Context()); {
	case caller == "":
		httputil.WriteError(w, r, apperrors.Unauthorized("session is signed in; a bearer token is required"), h.logger)
		return nil, false
	case caller != account:
		httputil.WriteError(w, r, apperrors.Forbidden("session is signed in to another account"), h.logger)
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	s, err := h.registry.Get(r.Context(), middleware.SessionIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) productID(w http.ResponseWriter, r *http.Request) (domain.ProductID, bool) {
	id, err := domain.ParseProductID(chi.URLParam(r, "productId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return "", false
	}
	return id, true
}

func (h *SessionHandler) decodeProduct(w http.ResponseWriter, r *http.Request) (domain.Product, bool) {
	var p domain.Product
	if !h.decode(w, r, &p) {
		return domain.Product{}, false
	}
	return p, true
}

func (h *SessionHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := validator.DecodeAndValidate(r, dst); err != nil {
		var valErr *validator.ValidationError
		if !errors.As(err, &valErr) {
			err = apperrors.InvalidInput("invalid request body: " + err.Error())
		}
		httputil.WriteError(w, r, err, h.logger)
		return false
	}
	return true
}
