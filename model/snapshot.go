package model

// PlaybackState 播放状态
type PlaybackState string

const (
	PlaybackStopped PlaybackState = "stopped"
	PlaybackPlaying PlaybackState = "playing"
	PlaybackPaused  PlaybackState = "paused"
)

// Snapshot 每次成功修改后对外发布的不可变状态快照。
// 发布后不再被引擎修改，订阅方可以直接渲染或持久化。
type Snapshot struct {
	Version     uint64        `json:"version"`
	Tracks      []*Track      `json:"tracks"`
	Links       []TrackLink   `json:"links"`
	Markers     []Marker      `json:"markers"`
	Selection   []string      `json:"selection"`
	CurrentTime float64       `json:"currentTime"`
	Zoom        float64       `json:"zoom"`
	Duration    float64       `json:"duration"`
	Playback    PlaybackState `json:"playback"`
	Mixer       []MixerEntry  `json:"mixer"`
	Master      MasterBus     `json:"master"`
	Keyframes   []Keyframe    `json:"keyframes"`
}
