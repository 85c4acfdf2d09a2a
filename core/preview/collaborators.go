package preview

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"Cutline/model"
)

// Span 片段引用的源媒体区间（秒）
type Span struct {
	Offset   float64
	Duration float64
}

// Thumbnailer 缩略图生成器
type Thumbnailer interface {
	GenerateThumbnails(ctx context.Context, sourceRef string, span Span, count int) ([]model.Thumbnail, error)
}

// WaveformSampler 波形采样器，返回 0..1 的峰值数组
type WaveformSampler interface {
	GenerateWaveform(ctx context.Context, sourceRef string, span Span) ([]float64, error)
}

// Prober 媒体信息探测
type Prober interface {
	Probe(ctx context.Context, sourceRef string) (model.MediaInfo, error)
}

// Store 预览结果的持久化存储，按内容键寻址，与片段 ID 无关
type Store interface {
	Load(ctx context.Context, key string) (*model.PreviewData, bool, error)
	Save(ctx context.Context, key string, data *model.PreviewData) error
}

// Request 一次预览生成请求
type Request struct {
	ClipID    string
	Kind      model.PreviewKind
	SourceRef string
	Span      Span
	Count     int // 缩略图数量，波形忽略
}

// ContentKey 由源媒体和区间计算的内容键，相同内容的片段共享存储结果
func ContentKey(r Request) string {
	count := r.Count
	if r.Kind == model.PreviewWaveform {
		count = 0
	}
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%.6f|%.6f|%d", r.Kind, r.SourceRef, r.Span.Offset, r.Span.Duration, count)))
	return hex.EncodeToString(sum[:])
}
