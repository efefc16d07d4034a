package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

// defaultOddsTTL expires mirrors of markets that stopped being polled.
const defaultOddsTTL = 15 * time.Minute

// OddsCache mirrors the newest midpoint per token in a hash at
// "odds:{token}" with fields mid, ts (unix nanos), symbol and condition.
type OddsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewOddsCache creates an OddsCache. A non-positive ttl selects 15 minutes.
func NewOddsCache(c *Client, ttl time.Duration) *OddsCache {
	if ttl <= 0 {
		ttl = defaultOddsTTL
	}
	return &OddsCache{rdb: c.Underlying(), ttl: ttl}
}

// OddsKey returns the hash key for tokenID.
func OddsKey(tokenID string) string { return "odds:" + tokenID }

func oddsFields(obs domain.OddsObservation) map[string]any {
	return map[string]any{
		"mid":       strconv.FormatFloat(obs.Midpoint, 'f', -1, 64),
		"ts":        strconv.FormatInt(obs.Timestamp.UnixNano(), 10),
		"symbol":    obs.Market.Symbol,
		"condition": obs.Market.ConditionID,
	}
}

// SetOdds writes obs and refreshes the key's TTL.
func (c *OddsCache) SetOdds(ctx context.Context, obs domain.OddsObservation) error {
	key := OddsKey(obs.Market.TokenID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, oddsFields(obs))
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set odds %s: %w", obs.Market.TokenID, err)
	}
	return nil
}

// GetOdds returns the cached midpoint or domain.ErrNotFound.
func (c *OddsCache) GetOdds(ctx context.Context, tokenID string) (float64, time.Time, error) {
	vals, err := c.rdb.HGetAll(ctx, OddsKey(tokenID)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get odds %s: %w", tokenID, err)
	}
	mid, ts, ok := parseOdds(vals)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("redis: get odds %s: %w", tokenID, domain.ErrNotFound)
	}
	return mid, ts, nil
}

// GetMany fetches several tokens in one pipeline. Missing tokens are omitted.
func (c *OddsCache) GetMany(ctx context.Context, tokenIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(tokenIDs))
	if len(tokenIDs) == 0 {
		return out, nil
	}

	pipe := c.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(tokenIDs))
	for _, id := range tokenIDs {
		cmds[id] = pipe.HGetAll(ctx, OddsKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get odds pipeline: %w", err)
	}

	for id, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			continue
		}
		if mid, _, ok := parseOdds(vals); ok {
			out[id] = mid
		}
	}
	return out, nil
}

func parseOdds(vals map[string]string) (float64, time.Time, bool) {
	mid, err := strconv.ParseFloat(vals["mid"], 64)
	if err != nil {
		return 0, time.Time{}, false
	}
	nanos, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return 0, time.Time{}, false
	}
	return mid, time.Unix(0, nanos), true
}

var _ domain.OddsCache = (*OddsCache)(nil)
