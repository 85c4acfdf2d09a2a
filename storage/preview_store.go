package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"Cutline/model"

	"github.com/minio/minio-go/v7"
)

// PreviewPrefix 预览归档在存储桶中的目录
const PreviewPrefix = "previews/"

// PreviewStore 把预览结果按内容键归档到 MinIO，实现 preview.Store
type PreviewStore struct {
	client *minio.Client
	bucket string
}

func NewPreviewStore(client *minio.Client, bucket string) *PreviewStore {
	return &PreviewStore{client: client, bucket: bucket}
}

// objectName 按内容键前两位分目录，避免单个前缀下对象过多
func objectName(key string) string {
	if len(key) < 2 {
		return path.Join(PreviewPrefix, key+".json")
	}
	return path.Join(PreviewPrefix, key[:2], key+".json")
}

func (s *PreviewStore) Load(ctx context.Context, key string) (*model.PreviewData, bool, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("获取预览对象失败: %w", err)
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("读取预览对象失败: %w", err)
	}
	var data model.PreviewData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false, fmt.Errorf("解析预览对象失败: %w", err)
	}
	return &data, true, nil
}

func (s *PreviewStore) Save(ctx context.Context, key string, data *model.PreviewData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化预览失败: %w", err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, objectName(key), bytes.NewReader(raw), int64(len(raw)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("上传预览对象失败: %w", err)
	}
	return nil
}
