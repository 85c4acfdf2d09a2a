package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"Cutline/logger"
	"Cutline/model"

	"github.com/go-redis/redis/v8"
)

const previewKey = "preview:%s" // String: PreviewData JSON，按内容键寻址

// PreviewCache 预览结果的 Redis 缓存，实现 preview.Store。
// 未命中时返回 ok=false 且不报错，调用方继续查找下一级存储。
type PreviewCache struct {
	client  *redis.Client
	ttl     time.Duration
	maxSize int
}

// NewPreviewCache 创建预览缓存。超过 maxSize 字节的结果不写入 Redis，只交给对象存储。
func NewPreviewCache(client *redis.Client, ttl time.Duration, maxSize int) *PreviewCache {
	if client == nil {
		client = RedisClient
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &PreviewCache{client: client, ttl: ttl, maxSize: maxSize}
}

func (c *PreviewCache) Load(ctx context.Context, key string) (*model.PreviewData, bool, error) {
	if c.client == nil {
		return nil, false, fmt.Errorf("Redis client not initialized")
	}
	raw, err := c.client.Get(ctx, fmt.Sprintf(previewKey, key)).Bytes()
	if err == redis.Nil {
		logger.Debug("预览缓存不存在", logger.String("key", key))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get preview cache: %w", err)
	}
	var data model.PreviewData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal preview cache: %w", err)
	}
	return &data, true, nil
}

func (c *PreviewCache) Save(ctx context.Context, key string, data *model.PreviewData) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal preview: %w", err)
	}
	if c.maxSize > 0 && len(raw) > c.maxSize {
		logger.Debug("预览数据过大，跳过缓存",
			logger.String("key", key),
			logger.Int("dataSize", len(raw)))
		return nil
	}
	if err := c.client.Set(ctx, fmt.Sprintf(previewKey, key), raw, c.ttl).Err(); err != nil {
		logger.Error("设置预览缓存失败",
			logger.String("key", key),
			logger.Int("dataSize", len(raw)),
			logger.ErrorField(err))
		return err
	}
	return nil
}
