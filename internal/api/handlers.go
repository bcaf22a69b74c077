package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/catalog"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/domain/discount"
	"github.com/example/storefront/internal/domain/offer"
	"github.com/example/storefront/internal/domain/order"
)

// OrderHistory serves order reads for the shopper-facing endpoints.
type OrderHistory interface {
	ListByOwner(ctx context.Context, owner string) ([]order.Order, error)
	GetByOrderNumber(ctx context.Context, number string) (*order.Order, error)
}

type Handlers struct {
	carts      *cart.Store
	reconciler *cart.Reconciler
	merger     *cart.Merger
	discounts  *discount.Evaluator
	checkout   *checkout.Orchestrator
	orders     OrderHistory
	products   catalog.Repository
	offers     *offer.Service
	log        *logrus.Entry
}

func NewHandlers(
	carts *cart.Store,
	reconciler *cart.Reconciler,
	merger *cart.Merger,
	discounts *discount.Evaluator,
	orchestrator *checkout.Orchestrator,
	orders OrderHistory,
	products catalog.Repository,
	offers *offer.Service,
	log *logrus.Logger,
) *Handlers {
	return &Handlers{
		carts:      carts,
		reconciler: reconciler,
		merger:     merger,
		discounts:  discounts,
		checkout:   orchestrator,
		orders:     orders,
		products:   products,
		offers:     offers,
		log:        log.WithField("component", "api"),
	}
}

// ownerFromRequest resolves the cart owner: the authenticated user when a
// valid token was presented, otherwise the anonymous session header.
func ownerFromRequest(r *http.Request) cart.Owner {
	if userID := middleware.GetUserID(r.Context()); userID != "" {
		return cart.Owner{UserID: userID}
	}
	if sessionID := r.Header.Get("X-Session-ID"); sessionID != "" {
		return cart.Owner{SessionID: sessionID}
	}
	return cart.Owner{}
}

func (h *Handlers) requireOwner(w http.ResponseWriter, r *http.Request) (cart.Owner, bool) {
	owner := ownerFromRequest(r)
	if owner.IsZero() {
		respondJSON(w, http.StatusBadRequest, errorBody{
			Error: "authentication or an X-Session-ID header is required",
			Code:  "owner_required",
		})
		return cart.Owner{}, false
	}
	return owner, true
}

// Cart handlers

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	c, err := h.carts.Get(r.Context(), owner)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	reconciled, err := h.reconciler.Reconcile(r.Context(), c)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reconciled)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	if err := h.carts.Clear(r.Context(), owner); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	var req struct {
		ProductID string `json:"product_id"`
		VariantID string `json:"variant_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "invalid_request"})
		return
	}

	item, err := h.carts.AddItem(r.Context(), owner, req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	itemID := strings.TrimPrefix(r.URL.Path, "/cart/items/")

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "invalid_request"})
		return
	}

	if err := h.carts.SetQuantity(r.Context(), owner, itemID, req.Quantity); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	itemID := strings.TrimPrefix(r.URL.Path, "/cart/items/")

	if err := h.carts.RemoveItem(r.Context(), owner, itemID); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Discount handlers

func (h *Handlers) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "invalid_request"})
		return
	}

	// Reject unknown codes before storing anything on the cart.
	if _, err := h.discounts.Lookup(r.Context(), req.Code); err != nil {
		respondDomainError(w, err)
		return
	}
	if err := h.carts.SetDiscount(r.Context(), owner, req.Code); err != nil {
		respondDomainError(w, err)
		return
	}

	h.GetCart(w, r)
}

func (h *Handlers) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	if err := h.carts.RemoveDiscount(r.Context(), owner); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Merge handler

func (h *Handlers) MergeCart(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		respondDomainError(w, cart.ErrMergeRequiresUser)
		return
	}

	var req struct {
		Items []cart.AnonymousItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "invalid_request"})
		return
	}

	report, err := h.merger.Merge(r.Context(), cart.Owner{UserID: userID}, req.Items)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Checkout and order handlers

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	var req checkout.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "invalid_request"})
		return
	}

	ord, err := h.checkout.PlaceOrder(r.Context(), owner, req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, ord)
}

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListByOwner(r.Context(), owner.Key())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	number := strings.TrimPrefix(r.URL.Path, "/orders/")

	ord, err := h.orders.GetByOrderNumber(r.Context(), number)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if ord.Owner != owner.Key() {
		respondJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Code: "forbidden"})
		return
	}
	respondJSON(w, http.StatusOK, ord)
}

// Catalog handlers

type productView struct {
	catalog.Product
	BestOffer    *offer.Offer `json:"best_offer,omitempty"`
	Available    int          `json:"available"`
	LowStock     bool         `json:"low_stock"`
	MinOrderQty  int          `json:"min_order_quantity,omitempty"`
	LeadTimeDays int          `json:"lead_time_days,omitempty"`
}

func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, h.productView(r, p))
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/products/")

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if p == nil {
		respondJSON(w, http.StatusNotFound, errorBody{Error: "product not found", Code: "product_not_found"})
		return
	}
	respondJSON(w, http.StatusOK, h.productView(r, *p))
}

// productView joins catalog metadata with the live best offer and stock. A
// product without an active offer still lists, marked unavailable.
func (h *Handlers) productView(r *http.Request, p catalog.Product) productView {
	view := productView{Product: p}

	best, err := h.offers.BestOffer(r.Context(), p.ID, "")
	if err == nil {
		view.BestOffer = best
		view.MinOrderQty = best.MinOrderQuantity
		view.LeadTimeDays = best.LeadTimeDays
	}

	if avail, err := h.offers.Available(r.Context(), p.ID, ""); err == nil {
		view.Available = avail.Quantity
		view.LowStock = avail.Quantity > 0 && avail.Quantity <= avail.LowStockThreshold
	}
	return view
}
