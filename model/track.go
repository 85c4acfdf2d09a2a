package model

// TrackKind 轨道类型
type TrackKind string

const (
	TrackKindVideo   TrackKind = "video"
	TrackKindAudio   TrackKind = "audio"
	TrackKindText    TrackKind = "text"
	TrackKindImage   TrackKind = "image"
	TrackKindEffects TrackKind = "effects"
)

// Valid 判断轨道类型是否合法
func (k TrackKind) Valid() bool {
	switch k {
	case TrackKindVideo, TrackKindAudio, TrackKindText, TrackKindImage, TrackKindEffects:
		return true
	}
	return false
}

// IsAudible reports whether VolumeOrOpacity is a gain rather than an opacity.
func (k TrackKind) IsAudible() bool {
	return k == TrackKindAudio
}

// Track 时间线上的一条轨道，按 StartTime 有序地持有互不重叠的片段
type Track struct {
	ID              string    `json:"id" yaml:"id"`
	Kind            TrackKind `json:"kind" yaml:"kind"`
	Name            string    `json:"name" yaml:"name"`
	Order           int       `json:"order" yaml:"order"` // 垂直堆叠顺序，同时决定叠加类轨道的 z-order
	Muted           bool      `json:"muted" yaml:"muted"`
	Locked          bool      `json:"locked" yaml:"locked"`
	Visible         bool      `json:"visible" yaml:"visible"`
	VolumeOrOpacity float64   `json:"volumeOrOpacity" yaml:"volumeOrOpacity"` // 0..100
	Clips           []*Clip   `json:"clips" yaml:"clips"`
}

// Clone 深拷贝轨道及其片段
func (t *Track) Clone() *Track {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Clips = make([]*Clip, len(t.Clips))
	for i, c := range t.Clips {
		cp.Clips[i] = c.Clone()
	}
	return &cp
}

// End 返回轨道上最后一个片段的结束时间
func (t *Track) End() float64 {
	end := 0.0
	for _, c := range t.Clips {
		if e := c.End(); e > end {
			end = e
		}
	}
	return end
}

// Clip 放置在轨道上的一段外部媒体引用
type Clip struct {
	ID           string         `json:"id" yaml:"id"`
	TrackID      string         `json:"trackId" yaml:"trackId"`
	SourceRef    string         `json:"sourceRef" yaml:"sourceRef"`       // 外部媒体句柄，引擎不解析
	SourceOffset float64        `json:"sourceOffset" yaml:"sourceOffset"` // 源媒体中的入点（秒）
	StartTime    float64        `json:"startTime" yaml:"startTime"`
	Duration     float64        `json:"duration" yaml:"duration"`
	Name         string         `json:"name" yaml:"name"`
	Metadata     map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// End 片段结束时间（不包含）
func (c *Clip) End() float64 {
	return c.StartTime + c.Duration
}

// Contains reports whether t lies strictly inside the clip interval.
func (c *Clip) Contains(t float64) bool {
	return t > c.StartTime && t < c.End()
}

// Clone 拷贝片段，Metadata 做浅拷贝
func (c *Clip) Clone() *Clip {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Metadata != nil {
		cp.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// SyncType 轨道联动类型
type SyncType string

const (
	SyncPosition SyncType = "position"
	SyncVolume   SyncType = "volume"
	SyncEffects  SyncType = "effects"
)

// Valid 判断联动类型是否合法
func (s SyncType) Valid() bool {
	return s == SyncPosition || s == SyncVolume || s == SyncEffects
}

// TrackLink 两条轨道之间的对称联动关系，每个无序对和类型只记录一次
type TrackLink struct {
	TrackA   string   `json:"trackA" yaml:"trackA"`
	TrackB   string   `json:"trackB" yaml:"trackB"`
	SyncType SyncType `json:"syncType" yaml:"syncType"`
}

// Involves reports whether the link touches trackID.
func (l TrackLink) Involves(trackID string) bool {
	return l.TrackA == trackID || l.TrackB == trackID
}

// Other 返回联动关系中另一端的轨道 ID
func (l TrackLink) Other(trackID string) string {
	if l.TrackA == trackID {
		return l.TrackB
	}
	return l.TrackA
}

// Marker 时间线标记，参与吸附
type Marker struct {
	ID    string  `json:"id" yaml:"id"`
	Time  float64 `json:"time" yaml:"time"`
	Label string  `json:"label,omitempty" yaml:"label,omitempty"`
}
