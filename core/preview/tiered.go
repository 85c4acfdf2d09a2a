package preview

import (
	"context"

	"Cutline/logger"
	"Cutline/model"
)

// Tiered 多级存储：按顺序查找，命中后回填前面的层级；保存时写入所有层级。
// 典型用法是 Redis 在前、对象存储在后。
type Tiered []Store

func (t Tiered) Load(ctx context.Context, key string) (*model.PreviewData, bool, error) {
	var firstErr error
	for i, s := range t {
		data, ok, err := s.Load(ctx, key)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !ok {
			continue
		}
		for _, upper := range t[:i] {
			if err := upper.Save(ctx, key, data); err != nil {
				logger.Warn("preview backfill failed", logger.String("key", key), logger.ErrorField(err))
			}
		}
		return data, true, nil
	}
	return nil, false, firstErr
}

func (t Tiered) Save(ctx context.Context, key string, data *model.PreviewData) error {
	var firstErr error
	for _, s := range t {
		if err := s.Save(ctx, key, data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
