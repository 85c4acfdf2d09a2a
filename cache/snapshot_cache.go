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

const (
	projectSnapshotKey = "project:%s:snapshot" // String: Project JSON
	projectRevisionKey = "project:%s:revision" // String: 递增的保存次数
	recentProjectsKey  = "projects:recent"     // Sorted Set: projectID -> 最近保存时间
	defaultSnapshotTTL = 24 * time.Hour
	recentProjectsMax  = 50
)

// SnapshotCache 工程快照的热缓存。数据库是权威存储，这里只保存最近编辑的工程，
// 让服务重启或多实例切换时可以快速恢复编辑状态。
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache 创建快照缓存，client 为空时使用全局客户端
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	if client == nil {
		client = RedisClient
	}
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

// Save 写入工程快照，返回新的修订号
func (c *SnapshotCache) Save(ctx context.Context, p model.Project) (int64, error) {
	if c.client == nil {
		return 0, fmt.Errorf("Redis client not initialized")
	}
	if p.ID == "" {
		return 0, fmt.Errorf("project id is empty")
	}

	data, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal project: %w", err)
	}

	revKey := fmt.Sprintf(projectRevisionKey, p.ID)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(projectSnapshotKey, p.ID), data, c.ttl)
	rev := pipe.Incr(ctx, revKey)
	pipe.Expire(ctx, revKey, c.ttl)
	pipe.ZAdd(ctx, recentProjectsKey, &redis.Z{Score: float64(time.Now().Unix()), Member: p.ID})
	pipe.ZRemRangeByRank(ctx, recentProjectsKey, 0, -recentProjectsMax-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to save project snapshot: %w", err)
	}

	logger.Debug("project snapshot cached",
		logger.String("projectId", p.ID),
		logger.Int("size", len(data)),
		logger.Int64("revision", rev.Val()))
	return rev.Val(), nil
}

// Load 读取工程快照，未命中时返回 (nil, nil)
func (c *SnapshotCache) Load(ctx context.Context, projectID string) (*model.Project, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	data, err := c.client.Get(ctx, fmt.Sprintf(projectSnapshotKey, projectID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project snapshot: %w", err)
	}

	var p model.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project snapshot: %w", err)
	}
	return &p, nil
}

// Revision 返回工程在缓存中的修订号，没有记录时为 0
func (c *SnapshotCache) Revision(ctx context.Context, projectID string) (int64, error) {
	if c.client == nil {
		return 0, fmt.Errorf("Redis client not initialized")
	}
	n, err := c.client.Get(ctx, fmt.Sprintf(projectRevisionKey, projectID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// Delete 删除工程快照
func (c *SnapshotCache) Delete(ctx context.Context, projectID string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, fmt.Sprintf(projectSnapshotKey, projectID), fmt.Sprintf(projectRevisionKey, projectID))
	pipe.ZRem(ctx, recentProjectsKey, projectID)
	_, err := pipe.Exec(ctx)
	return err
}

// Recent 按最近保存时间倒序返回工程 ID
func (c *SnapshotCache) Recent(ctx context.Context, limit int64) ([]string, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}
	if limit <= 0 {
		limit = recentProjectsMax
	}
	return c.client.ZRevRange(ctx, recentProjectsKey, 0, limit-1).Result()
}
