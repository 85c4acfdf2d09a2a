package model

// PreviewKind 预览资源类型
type PreviewKind string

const (
	PreviewThumbnails PreviewKind = "thumbnailSequence"
	PreviewWaveform   PreviewKind = "waveform"
)

// Valid 判断预览类型是否合法
func (k PreviewKind) Valid() bool {
	return k == PreviewThumbnails || k == PreviewWaveform
}

// PreviewStatus 预览生成状态
type PreviewStatus string

const (
	PreviewPending PreviewStatus = "pending"
	PreviewReady   PreviewStatus = "ready"
	PreviewFailed  PreviewStatus = "failed"
)

// Thumbnail 缩略图序列中的一帧
type Thumbnail struct {
	Time  float64 `json:"time"`
	Image []byte  `json:"image"` // JPEG
}

// PreviewData 预览生成结果，按 Kind 只填充其中一项
type PreviewData struct {
	Thumbnails []Thumbnail `json:"thumbnails,omitempty"`
	Peaks      []float64   `json:"peaks,omitempty"`
}

// PreviewAsset 片段的派生预览资源，不参与工程持久化
type PreviewAsset struct {
	ClipID     string        `json:"clipId"`
	Kind       PreviewKind   `json:"kind"`
	Status     PreviewStatus `json:"status"`
	Data       *PreviewData  `json:"data,omitempty"`
	Error      string        `json:"error,omitempty"`
	Generation uint64        `json:"generation"`
}

// MediaInfo 媒体探测结果
type MediaInfo struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	FileSize int64   `json:"fileSize,omitempty"`
	Format   string  `json:"format,omitempty"`
}
