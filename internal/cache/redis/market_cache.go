package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/yieldvault/internal/domain"
)

// Market records never change after registration, so the TTL only bounds
// memory held for markets nobody touches anymore.
const marketTTL = time.Hour

// MarketCache implements domain.MarketCache with JSON-serialized market
// records keyed by the market contract address.
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

func marketKey(id common.Address) string { return "yv:market:" + id.Hex() }

// Set stores a market record with a one-hour TTL.
func (mc *MarketCache) Set(ctx context.Context, market domain.MarketInfo) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.ID.Hex(), err)
	}

	if err := mc.rdb.Set(ctx, marketKey(market.ID), data, marketTTL).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.ID.Hex(), err)
	}
	return nil
}

// Get retrieves a market record by its contract address.
// It returns domain.ErrNotFound when the key does not exist.
func (mc *MarketCache) Get(ctx context.Context, id common.Address) (domain.MarketInfo, error) {
	data, err := mc.rdb.Get(ctx, marketKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketInfo{}, domain.ErrNotFound
		}
		return domain.MarketInfo{}, fmt.Errorf("redis: get market %s: %w", id.Hex(), err)
	}

	var market domain.MarketInfo
	if err := json.Unmarshal(data, &market); err != nil {
		return domain.MarketInfo{}, fmt.Errorf("redis: unmarshal market %s: %w", id.Hex(), err)
	}
	return market, nil
}

// Invalidate removes a market record from the cache.
func (mc *MarketCache) Invalidate(ctx context.Context, id common.Address) error {
	if err := mc.rdb.Del(ctx, marketKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", id.Hex(), err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
