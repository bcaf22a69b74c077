package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/domain/discount"
	"github.com/example/storefront/internal/domain/offer"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/domain/user"
)

// errorBody is the uniform error payload. Code is a stable machine-readable
// identifier; Details carries condition-specific figures such as the actual
// available quantity, so clients can offer a correction instead of a retry.
type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondDomainError maps domain errors onto HTTP status codes and stable
// error codes. Unrecognized errors become an opaque 500.
func respondDomainError(w http.ResponseWriter, err error) {
	var stockErr *cart.InsufficientStockError
	if errors.As(err, &stockErr) {
		respondJSON(w, http.StatusConflict, errorBody{
			Error: stockErr.Error(),
			Code:  "insufficient_stock",
			Details: map[string]any{
				"product_id": stockErr.ProductID,
				"variant_id": stockErr.VariantID,
				"requested":  stockErr.Requested,
				"available":  stockErr.Available,
			},
		})
		return
	}

	var minErr *cart.MinOrderQuantityError
	if errors.As(err, &minErr) {
		respondJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error: minErr.Error(),
			Code:  "below_min_order_quantity",
			Details: map[string]any{
				"product_id": minErr.ProductID,
				"minimum":    minErr.Minimum,
			},
		})
		return
	}

	var priceErr *checkout.PriceChangedError
	if errors.As(err, &priceErr) {
		respondJSON(w, http.StatusConflict, errorBody{
			Error: priceErr.Error(),
			Code:  "price_changed",
			Details: map[string]any{
				"product_id":     priceErr.ProductID,
				"variant_id":     priceErr.VariantID,
				"snapshot_price": priceErr.Snapshot,
				"current_price":  priceErr.Current,
			},
		})
		return
	}

	status, code := classify(err)
	if status == http.StatusInternalServerError {
		respondJSON(w, status, errorBody{Error: "internal server error", Code: code})
		return
	}
	respondJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, cart.ErrInvalidProduct), errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, cart.ErrLineItemNotFound):
		return http.StatusNotFound, "item_not_found"
	case errors.Is(err, cart.ErrMergeRequiresUser):
		return http.StatusUnauthorized, "authentication_required"
	case errors.Is(err, offer.ErrOfferUnavailable):
		return http.StatusNotFound, "offer_unavailable"
	case errors.Is(err, discount.ErrInvalidDiscountCode):
		return http.StatusUnprocessableEntity, "invalid_discount_code"
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(err, checkout.ErrInvalidAddress):
		return http.StatusUnprocessableEntity, "invalid_address"
	case errors.Is(err, checkout.ErrTotalMismatch):
		return http.StatusConflict, "total_mismatch"
	case errors.Is(err, order.ErrInvalidPaymentMethod):
		return http.StatusUnprocessableEntity, "invalid_payment_method"
	case errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found"
	case errors.Is(err, user.ErrEmailAlreadyExists):
		return http.StatusConflict, "email_already_registered"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, auth.ErrPasswordTooShort):
		return http.StatusUnprocessableEntity, "password_too_short"
	}
	return http.StatusInternalServerError, "internal_error"
}
