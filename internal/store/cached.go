package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"time"

	"github.com/voyagen/streamscout/internal/cache"
	"github.com/voyagen/streamscout/internal/models"
)

// Cache TTLs for different entity types.
const (
	ttlSources  = 2 * time.Minute
	ttlSource   = 5 * time.Minute
	ttlChannels = 1 * time.Minute
	ttlGroups   = 5 * time.Minute
)

var (
	keySources        = cache.Key("sources", "all")
	patternChannels   = cache.Key("channels", "*")
	patternGroups     = cache.Key("groups", "*")
	patternSourceKeys = cache.Key("sources", "*")
)

// CachedStore wraps a Store with a Redis read cache. Writes invalidate the
// keys they can affect; a failing cache never fails the call.
type CachedStore struct {
	Store
	cache *cache.Redis
}

// NewCachedStore wraps inner with Redis caching.
func NewCachedStore(inner Store, c *cache.Redis) *CachedStore {
	return &CachedStore{Store: inner, cache: c}
}

// --- cached reads ---

func (c *CachedStore) ListSources(ctx context.Context) ([]models.Source, error) {
	return cached(ctx, c, keySources, ttlSources, func() ([]models.Source, error) {
		return c.Store.ListSources(ctx)
	})
}

func (c *CachedStore) GetSourceByID(ctx context.Context, sourceID int64) (*models.Source, error) {
	return cached(ctx, c, cache.SourceKey(sourceID), ttlSource, func() (*models.Source, error) {
		return c.Store.GetSourceByID(ctx, sourceID)
	})
}

// channelPage caches the ListChannels tuple.
type channelPage struct {
	Channels []models.Channel `json:"channels"`
	Total    int              `json:"total"`
}

func (c *CachedStore) ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, int, error) {
	key := cache.Key("channels", filterHash(filter))
	page, err := cached(ctx, c, key, ttlChannels, func() (channelPage, error) {
		channels, total, err := c.Store.ListChannels(ctx, filter)
		return channelPage{Channels: channels, Total: total}, err
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Channels, page.Total, nil
}

func (c *CachedStore) ListGroups(ctx context.Context, sourceID *int64) ([]models.Group, error) {
	sid := "all"
	if sourceID != nil {
		sid = fmt.Sprintf("%d", *sourceID)
	}
	return cached(ctx, c, cache.Key("groups", sid), ttlGroups, func() ([]models.Group, error) {
		return c.Store.ListGroups(ctx, sourceID)
	})
}

// --- writes with invalidation ---

func (c *CachedStore) CreateOrGetSource(ctx context.Context, name, url string, sourceType int16, userAgent string) (int64, error) {
	id, err := c.Store.CreateOrGetSource(ctx, name, url, sourceType, userAgent)
	if err != nil {
		return 0, err
	}
	c.invalidate(ctx, keySources, cache.SourceKey(id))
	return id, nil
}

func (c *CachedStore) DeleteSource(ctx context.Context, sourceID int64) error {
	if err := c.Store.DeleteSource(ctx, sourceID); err != nil {
		return err
	}
	c.invalidate(ctx, keySources, cache.SourceKey(sourceID))
	c.invalidatePattern(ctx, patternChannels, patternGroups)
	return nil
}

func (c *CachedStore) UpdateSourceLastUpdated(ctx context.Context, sourceID int64) error {
	if err := c.Store.UpdateSourceLastUpdated(ctx, sourceID); err != nil {
		return err
	}
	c.invalidate(ctx, keySources, cache.SourceKey(sourceID))
	return nil
}

func (c *CachedStore) UpdateSourceLastChecked(ctx context.Context, sourceID int64) error {
	if err := c.Store.UpdateSourceLastChecked(ctx, sourceID); err != nil {
		return err
	}
	c.invalidate(ctx, keySources, cache.SourceKey(sourceID))
	return nil
}

func (c *CachedStore) UpsertChannel(ctx context.Context, ch *models.Channel) (int64, error) {
	id, err := c.Store.UpsertChannel(ctx, ch)
	if err != nil {
		return 0, err
	}
	c.invalidatePattern(ctx, patternChannels, patternGroups)
	return id, nil
}

func (c *CachedStore) RemoveStaleChannels(ctx context.Context, sourceID int64, keepIDs []int64) (int64, error) {
	n, err := c.Store.RemoveStaleChannels(ctx, sourceID, keepIDs)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.invalidatePattern(ctx, patternChannels, patternGroups)
	}
	return n, nil
}

func (c *CachedStore) UpsertChannelHeaders(ctx context.Context, channelID int64, h *models.ChannelHttpHeaders) error {
	if err := c.Store.UpsertChannelHeaders(ctx, channelID, h); err != nil {
		return err
	}
	c.invalidatePattern(ctx, patternChannels)
	return nil
}

func (c *CachedStore) RemoveStaleChannelHeaders(ctx context.Context, sourceID int64, keepIDs []int64) (int64, error) {
	n, err := c.Store.RemoveStaleChannelHeaders(ctx, sourceID, keepIDs)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.invalidatePattern(ctx, patternChannels)
	}
	return n, nil
}

func (c *CachedStore) RemoveOrphanedGroups(ctx context.Context, sourceID int64) (int64, error) {
	n, err := c.Store.RemoveOrphanedGroups(ctx, sourceID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.invalidatePattern(ctx, patternGroups)
	}
	return n, nil
}

func (c *CachedStore) UpdateChannelStatuses(ctx context.Context, updates []StatusUpdate) error {
	if err := c.Store.UpdateChannelStatuses(ctx, updates); err != nil {
		return err
	}
	c.invalidatePattern(ctx, patternChannels)
	return nil
}

// Flush drops every cached source, channel and group entry.
func (c *CachedStore) Flush(ctx context.Context) {
	c.invalidatePattern(ctx, patternSourceKeys, patternChannels, patternGroups)
}

// --- helpers ---

// cached serves key from Redis or fills it from load.
func cached[T any](ctx context.Context, c *CachedStore, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	if v, err := cache.Get[T](ctx, c.cache, key); err == nil {
		return v, nil
	} else if !cache.IsMiss(err) {
		log.Printf("cache: get %s: %v", key, err)
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if err := cache.Set(ctx, c.cache, key, v, ttl); err != nil {
		log.Printf("cache: set %s: %v", key, err)
	}
	return v, nil
}

func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := cache.Del(ctx, c.cache, keys...); err != nil && !cache.IsMiss(err) {
		log.Printf("cache: del %v: %v", keys, err)
	}
}

func (c *CachedStore) invalidatePattern(ctx context.Context, patterns ...string) {
	for _, p := range patterns {
		if err := cache.DelPattern(ctx, c.cache, p); err != nil {
			log.Printf("cache: del pattern %s: %v", p, err)
		}
	}
}

// filterHash produces a short deterministic key for a ChannelFilter.
func filterHash(f ChannelFilter) string {
	f.Normalize()
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		ptrString(f.SourceID), ptrString(f.GroupID), f.Status, f.Search, f.Limit, f.Offset)
	h := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", h[:8])
}

func ptrString(p *int64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *p)
}
