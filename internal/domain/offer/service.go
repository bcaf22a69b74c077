package offer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/domain/inventory"
)

// Repository reads offers from storage.
type Repository interface {
	// BestOffer returns the active offer with the lowest price for the
	// product/variant, or nil when none is active.
	BestOffer(ctx context.Context, productID, variantID string) (*Offer, error)
}

// Cache is a read-through cache for best-offer lookups. Implementations may
// drop entries at any time; a miss always falls back to the repository.
type Cache interface {
	GetBestOffer(ctx context.Context, productID, variantID string) (*Offer, bool)
	SetBestOffer(ctx context.Context, o *Offer)
}

// Service resolves live price and stock for cart reconciliation and checkout.
type Service struct {
	offers    Repository
	inventory inventory.Repository
	cache     Cache

	defaultLowStockThreshold int
	log                      *logrus.Entry
}

func NewService(offers Repository, inv inventory.Repository, cache Cache, lowStockThreshold int, log *logrus.Logger) *Service {
	return &Service{
		offers:                   offers,
		inventory:                inv,
		cache:                    cache,
		defaultLowStockThreshold: lowStockThreshold,
		log:                      log.WithField("component", "offer"),
	}
}

// BestOffer returns the current best offer, served from cache when possible.
func (s *Service) BestOffer(ctx context.Context, productID, variantID string) (*Offer, error) {
	if s.cache != nil {
		if o, ok := s.cache.GetBestOffer(ctx, productID, variantID); ok {
			return o, nil
		}
	}

	o, err := s.LiveBestOffer(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetBestOffer(ctx, o)
	}
	return o, nil
}

// LiveBestOffer bypasses the cache. Checkout re-pricing uses this so the
// quoted price is never stale.
func (s *Service) LiveBestOffer(ctx context.Context, productID, variantID string) (*Offer, error) {
	o, err := s.offers.BestOffer(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOfferUnavailable
	}
	return o, nil
}

// Available resolves stock for a product variant: the inventory record when
// one exists, otherwise the best offer's stock quantity.
func (s *Service) Available(ctx context.Context, productID, variantID string) (Availability, error) {
	rec, err := s.inventory.Get(ctx, productID, variantID)
	if err != nil {
		return Availability{}, err
	}
	if rec != nil {
		threshold := rec.LowStockThreshold
		if threshold <= 0 {
			threshold = s.defaultLowStockThreshold
		}
		return Availability{
			Quantity:          rec.Available(),
			LowStockThreshold: threshold,
			FromInventory:     true,
		}, nil
	}

	o, err := s.offers.BestOffer(ctx, productID, variantID)
	if err != nil {
		return Availability{}, err
	}
	if o == nil {
		return Availability{Quantity: 0, LowStockThreshold: s.defaultLowStockThreshold}, nil
	}
	return Availability{
		Quantity:          o.StockQuantity,
		LowStockThreshold: s.defaultLowStockThreshold,
	}, nil
}
