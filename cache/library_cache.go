package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"Melodex/logger"
	"Melodex/model"
)

const (
	statsKeyPrefix = "library:stats:folder:"
	lastSyncKey    = "library:lastsync"
)

// LibraryStatsCache 缓存文件夹曲目数等冗余统计和最近一次同步的结果摘要。
// 它不是全局状态：由同步控制器持有，并在每次同步开始时显式失效。
// Redis 不可用时全部操作静默降级，统计会直接走数据库。
type LibraryStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLibraryStatsCache creates the cache. client may be nil, which disables it.
func NewLibraryStatsCache(client *redis.Client, ttl time.Duration) *LibraryStatsCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &LibraryStatsCache{client: client, ttl: ttl}
}

// TrackCount returns the cached track count for one folder.
func (c *LibraryStatsCache) TrackCount(ctx context.Context, folderID int64) (int, bool) {
	if c.client == nil {
		return 0, false
	}
	val, err := c.client.Get(ctx, statsKey(folderID)).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SetTrackCount stores one folder's track count.
func (c *LibraryStatsCache) SetTrackCount(ctx context.Context, folderID int64, count int) {
	if c.client == nil {
		return
	}
	if err := c.client.Set(ctx, statsKey(folderID), count, c.ttl).Err(); err != nil {
		logger.Debug("stats cache set failed", logger.ErrorField(err))
	}
}

// InvalidateStats drops every cached folder stat. Called at the start of each
// sync session so a running scan never serves counts from the previous pass.
func (c *LibraryStatsCache) InvalidateStats(ctx context.Context) {
	if c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, statsKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Debug("stats cache scan failed", logger.ErrorField(err))
		return
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			logger.Debug("stats cache invalidation failed", logger.ErrorField(err))
		}
	}
}

// StoreSummary keeps the most recent session summary for the UI.
func (c *LibraryStatsCache) StoreSummary(ctx context.Context, summary *model.SyncSessionSummary) {
	if c.client == nil || summary == nil {
		return
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, lastSyncKey, data, 0).Err(); err != nil {
		logger.Debug("last sync summary cache failed", logger.ErrorField(err))
	}
}

// LastSummary returns the most recent session summary, if cached.
func (c *LibraryStatsCache) LastSummary(ctx context.Context) (*model.SyncSessionSummary, error) {
	if c.client == nil {
		return nil, nil
	}
	data, err := c.client.Get(ctx, lastSyncKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading last sync summary: %w", err)
	}
	var summary model.SyncSessionSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("decoding last sync summary: %w", err)
	}
	return &summary, nil
}

func statsKey(folderID int64) string {
	return statsKeyPrefix + strconv.FormatInt(folderID, 10)
}
