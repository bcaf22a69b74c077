package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/domain/offer"
)

// OfferCache caches best-offer lookups in redis. Misses and redis failures
// both fall through to the database; the cache is never authoritative.
type OfferCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Entry
}

func NewOfferCache(client *redis.Client, ttl time.Duration, log *logrus.Logger) *OfferCache {
	return &OfferCache{
		client: client,
		ttl:    ttl,
		log:    log.WithField("component", "offer-cache"),
	}
}

func (c *OfferCache) GetBestOffer(ctx context.Context, productID, variantID string) (*offer.Offer, bool) {
	data, err := c.client.Get(ctx, offerKey(productID, variantID)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.WithError(err).Warn("redis get failed")
		return nil, false
	}

	var o offer.Offer
	if err := json.Unmarshal(data, &o); err != nil {
		c.log.WithError(err).Warn("corrupt cache entry")
		return nil, false
	}
	return &o, true
}

func (c *OfferCache) SetBestOffer(ctx context.Context, o *offer.Offer) {
	data, err := json.Marshal(o)
	if err != nil {
		c.log.WithError(err).Warn("marshal offer failed")
		return
	}
	if err := c.client.Set(ctx, offerKey(o.ProductID, o.VariantID), data, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("redis set failed")
	}
}

// Invalidate drops a cached entry, used when supplier sync updates an offer.
func (c *OfferCache) Invalidate(ctx context.Context, productID, variantID string) {
	if err := c.client.Del(ctx, offerKey(productID, variantID)).Err(); err != nil {
		c.log.WithError(err).Warn("redis del failed")
	}
}

func offerKey(productID, variantID string) string {
	return fmt.Sprintf("offer:best:%s:%s", productID, variantID)
}
