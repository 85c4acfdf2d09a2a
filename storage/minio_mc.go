package storage

import (
	"context"
	"fmt"
	"time"

	"Cutline/logger"

	"github.com/minio/minio-go/v7"
)

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// Stats 统计前缀下的对象数量和大小
func Stats(ctx context.Context, client *minio.Client, bucket, prefix string) (*BucketStats, error) {
	stats := &BucketStats{}
	objectCh := client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		stats.TotalObjects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}
	}
	return stats, nil
}

// DeletePrefix 递归删除前缀下的全部对象，返回删除数量
func DeletePrefix(ctx context.Context, client *minio.Client, bucket, prefix string) (int, error) {
	if prefix == "" {
		return 0, fmt.Errorf("删除操作需要指定目录前缀")
	}

	var objects []minio.ObjectInfo
	for object := range client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return 0, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		objects = append(objects, object)
	}
	if len(objects) == 0 {
		return 0, nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(objects))
	for _, obj := range objects {
		objectsCh <- obj
	}
	close(objectsCh)

	for rerr := range client.RemoveObjects(ctx, bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil {
			return 0, fmt.Errorf("删除对象 %s 失败: %w", rerr.ObjectName, rerr.Err)
		}
	}
	logger.Info("已删除目录", logger.String("prefix", prefix), logger.Int("objects", len(objects)))
	return len(objects), nil
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
