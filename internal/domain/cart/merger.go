package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/domain/offer"
)

var ErrMergeRequiresUser = errors.New("cart merge requires an authenticated owner")

// AnonymousItem is a line item from a device-local cart, submitted at
// sign-in. Its price is treated as a snapshot when it becomes a new line
// item in the authenticated cart.
type AnonymousItem struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type MergeOutcome string

const (
	OutcomeMerged  MergeOutcome = "merged"
	OutcomeClamped MergeOutcome = "clamped"
	OutcomeSkipped MergeOutcome = "skipped"
)

// MergeResult reports what happened to one anonymous item. The client drops
// an item from local storage only when its outcome is merged or clamped;
// skipped items stay on the device instead of being silently discarded.
type MergeResult struct {
	ProductID string       `json:"product_id"`
	VariantID string       `json:"variant_id,omitempty"`
	Outcome   MergeOutcome `json:"outcome"`
	// Quantity is the resulting line-item quantity for merged/clamped items.
	Quantity  int    `json:"quantity,omitempty"`
	Available int    `json:"available,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type MergeReport struct {
	Results []MergeResult `json:"results"`
}

// Merger folds an anonymous cart into an authenticated one, once per
// sign-in transition. Matching (product, variant) keys combine quantities;
// combined quantities are re-validated against live availability and clamped
// with the clamp reported, never silently exceeding stock.
type Merger struct {
	carts  Repository
	offers *offer.Service
	log    *logrus.Entry
}

func NewMerger(carts Repository, offers *offer.Service, log *logrus.Logger) *Merger {
	return &Merger{
		carts:  carts,
		offers: offers,
		log:    log.WithField("component", "merge"),
	}
}

// Merge folds items into the owner's cart and reports the per-item outcome.
// Infrastructure errors abort the whole merge so the client keeps its local
// copy; domain conditions (out of stock, invalid quantity) only skip the
// affected item.
func (m *Merger) Merge(ctx context.Context, owner Owner, items []AnonymousItem) (*MergeReport, error) {
	if !owner.IsAuthenticated() {
		return nil, ErrMergeRequiresUser
	}

	c, err := m.carts.GetByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c, err = m.carts.Create(ctx, owner)
		if err != nil {
			return nil, err
		}
	}

	report := &MergeReport{Results: make([]MergeResult, 0, len(items))}
	for _, anon := range items {
		result, err := m.mergeItem(ctx, c.ID, anon)
		if err != nil {
			return nil, err
		}
		report.Results = append(report.Results, result)
	}

	m.log.WithFields(logrus.Fields{
		"user_id": owner.UserID,
		"items":   len(items),
	}).Info("anonymous cart merged")

	return report, nil
}

func (m *Merger) mergeItem(ctx context.Context, cartID string, anon AnonymousItem) (MergeResult, error) {
	result := MergeResult{ProductID: anon.ProductID, VariantID: anon.VariantID}

	if anon.ProductID == "" || anon.Quantity <= 0 {
		result.Outcome = OutcomeSkipped
		result.Reason = "invalid item"
		return result, nil
	}

	avail, err := m.offers.Available(ctx, anon.ProductID, anon.VariantID)
	if err != nil {
		return MergeResult{}, err
	}
	result.Available = avail.Quantity

	existing, err := m.carts.FindItem(ctx, cartID, anon.ProductID, anon.VariantID)
	if err != nil {
		return MergeResult{}, err
	}

	target := anon.Quantity
	if existing != nil {
		target += existing.Quantity
	}

	if avail.Quantity <= 0 || (existing != nil && avail.Quantity <= existing.Quantity) {
		result.Outcome = OutcomeSkipped
		result.Reason = "out of stock"
		return result, nil
	}

	quantity := target
	if quantity > avail.Quantity {
		quantity = avail.Quantity
		result.Outcome = OutcomeClamped
	} else {
		result.Outcome = OutcomeMerged
	}
	result.Quantity = quantity

	if existing != nil {
		// Keep the authenticated cart's snapshot; the shopper already agreed
		// to that price for this line.
		if err := m.carts.UpdateItemQuantity(ctx, existing.ID, quantity, existing.PriceSnapshot); err != nil {
			return MergeResult{}, err
		}
		return result, nil
	}

	now := time.Now()
	item := &LineItem{
		ID:            uuid.New().String(),
		CartID:        cartID,
		ProductID:     anon.ProductID,
		VariantID:     anon.VariantID,
		Quantity:      quantity,
		PriceSnapshot: anon.Price,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.carts.InsertItem(ctx, item); err != nil {
		return MergeResult{}, err
	}
	return result, nil
}
