package timeline

import (
	"math"
	"sort"
	"strings"

	"Cutline/model"

	"github.com/google/uuid"
)

// epsilon 浮点比较容差
const epsilon = 1e-9

// Config 轨道存储的约束参数
type Config struct {
	MinClipDuration     float64
	MinTimelineDuration float64
}

// Timeline 轨道存储：有序的轨道集合、轨道联动关系和标记。
// 不是并发安全的，调用方（engine）负责串行化；修改前先 Clone 可获得原子性。
type Timeline struct {
	cfg                Config
	tracks             []*model.Track // 按 Order 排序，Order 恒为 0..n-1
	links              []model.TrackLink
	markers            []model.Marker
	configuredDuration float64
	newID              func() string
}

// New 创建空时间线
func New(cfg Config, configuredDuration float64) *Timeline {
	return &Timeline{
		cfg:                cfg,
		configuredDuration: math.Max(0, configuredDuration),
		newID:              uuid.NewString,
	}
}

// SetIDGenerator 替换 ID 生成函数
func (tl *Timeline) SetIDGenerator(fn func() string) {
	if fn != nil {
		tl.newID = fn
	}
}

// Clone 深拷贝整个时间线
func (tl *Timeline) Clone() *Timeline {
	cp := &Timeline{
		cfg:                tl.cfg,
		tracks:             make([]*model.Track, len(tl.tracks)),
		links:              append([]model.TrackLink(nil), tl.links...),
		markers:            append([]model.Marker(nil), tl.markers...),
		configuredDuration: tl.configuredDuration,
		newID:              tl.newID,
	}
	for i, t := range tl.tracks {
		cp.tracks[i] = t.Clone()
	}
	return cp
}

func (tl *Timeline) Config() Config {
	return tl.cfg
}

// ConfiguredDuration 用户配置的时长
func (tl *Timeline) ConfiguredDuration() float64 {
	return tl.configuredDuration
}

// SetConfiguredDuration 修改配置时长，派生时长仍不会小于片段末尾
func (tl *Timeline) SetConfiguredDuration(d float64) error {
	if !finite(d) || d < 0 {
		return model.NewEditError("setDuration", model.ErrInvalidRange, "", "duration %v", d)
	}
	tl.configuredDuration = d
	return nil
}

// Duration 派生时长 = max(配置时长, 最后一个片段结束, 最短时长)
func (tl *Timeline) Duration() float64 {
	d := math.Max(tl.configuredDuration, tl.cfg.MinTimelineDuration)
	for _, t := range tl.tracks {
		d = math.Max(d, t.End())
	}
	return d
}

// Tracks 返回轨道的深拷贝
func (tl *Timeline) Tracks() []*model.Track {
	out := make([]*model.Track, len(tl.tracks))
	for i, t := range tl.tracks {
		out[i] = t.Clone()
	}
	return out
}

// TrackIDs 按堆叠顺序返回轨道 ID
func (tl *Timeline) TrackIDs() []string {
	out := make([]string, len(tl.tracks))
	for i, t := range tl.tracks {
		out[i] = t.ID
	}
	return out
}

func (tl *Timeline) track(id string) *model.Track {
	for _, t := range tl.tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Track 返回轨道拷贝
func (tl *Timeline) Track(id string) (*model.Track, error) {
	t := tl.track(id)
	if t == nil {
		return nil, model.NewEditError("getTrack", model.ErrNotFound, id, "")
	}
	return t.Clone(), nil
}

// locate 找到片段所在轨道和下标
func (tl *Timeline) locate(clipID string) (*model.Track, int) {
	for _, t := range tl.tracks {
		for i, c := range t.Clips {
			if c.ID == clipID {
				return t, i
			}
		}
	}
	return nil, -1
}

// Clip 返回片段拷贝
func (tl *Timeline) Clip(id string) (*model.Clip, error) {
	t, i := tl.locate(id)
	if t == nil {
		return nil, model.NewEditError("getClip", model.ErrNotFound, id, "")
	}
	return t.Clips[i].Clone(), nil
}

// HasClip reports whether a clip with id exists on any track.
func (tl *Timeline) HasClip(id string) bool {
	t, _ := tl.locate(id)
	return t != nil
}

// ClipsBySource 返回引用同一媒体句柄的所有片段
func (tl *Timeline) ClipsBySource(sourceRef string) []*model.Clip {
	var out []*model.Clip
	for _, t := range tl.tracks {
		for _, c := range t.Clips {
			if c.SourceRef == sourceRef {
				out = append(out, c.Clone())
			}
		}
	}
	return out
}

// AddTrack 追加轨道到最底部
func (tl *Timeline) AddTrack(track *model.Track) error {
	const op = "addTrack"
	if track == nil || !track.Kind.Valid() {
		return model.NewEditError(op, model.ErrInvalidRange, "", "invalid track kind")
	}
	if track.ID == "" {
		track.ID = tl.newID()
	}
	if tl.track(track.ID) != nil {
		return model.NewEditError(op, model.ErrInvalidRange, track.ID, "duplicate track id")
	}
	t := track.Clone()
	t.Clips = nil
	t.Order = len(tl.tracks)
	t.VolumeOrOpacity = clampPercent(t.VolumeOrOpacity)
	tl.tracks = append(tl.tracks, t)
	return nil
}

// RemoveTrack 删除轨道及其联动关系，返回被删除的轨道
func (tl *Timeline) RemoveTrack(id string) (*model.Track, error) {
	idx := -1
	for i, t := range tl.tracks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, model.NewEditError("removeTrack", model.ErrNotFound, id, "")
	}
	removed := tl.tracks[idx]
	tl.tracks = append(tl.tracks[:idx], tl.tracks[idx+1:]...)
	tl.renumber()

	links := tl.links[:0]
	for _, l := range tl.links {
		if !l.Involves(id) {
			links = append(links, l)
		}
	}
	tl.links = links
	return removed, nil
}

// ReorderTrack 把轨道移动到 newIndex（越界时夹到两端）
func (tl *Timeline) ReorderTrack(id string, newIndex int) error {
	t := tl.track(id)
	if t == nil {
		return model.NewEditError("reorderTrack", model.ErrNotFound, id, "")
	}
	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex >= len(tl.tracks) {
		newIndex = len(tl.tracks) - 1
	}
	rest := make([]*model.Track, 0, len(tl.tracks))
	for _, other := range tl.tracks {
		if other.ID != id {
			rest = append(rest, other)
		}
	}
	out := make([]*model.Track, 0, len(tl.tracks))
	out = append(out, rest[:newIndex]...)
	out = append(out, t)
	out = append(out, rest[newIndex:]...)
	tl.tracks = out
	tl.renumber()
	return nil
}

func (tl *Timeline) renumber() {
	for i, t := range tl.tracks {
		t.Order = i
	}
}

// RenameTrack 重命名轨道
func (tl *Timeline) RenameTrack(id, name string) error {
	t := tl.track(id)
	if t == nil {
		return model.NewEditError("renameTrack", model.ErrNotFound, id, "")
	}
	t.Name = strings.TrimSpace(name)
	return nil
}

// SetLocked 锁定/解锁轨道，锁定状态本身总是可以修改
func (tl *Timeline) SetLocked(id string, locked bool) error {
	t := tl.track(id)
	if t == nil {
		return model.NewEditError("setTrackLocked", model.ErrNotFound, id, "")
	}
	t.Locked = locked
	return nil
}

// SetVisible 显示/隐藏轨道
func (tl *Timeline) SetVisible(id string, visible bool) error {
	t := tl.track(id)
	if t == nil {
		return model.NewEditError("setTrackVisible", model.ErrNotFound, id, "")
	}
	t.Visible = visible
	return nil
}

// SetMuted 静音轨道
func (tl *Timeline) SetMuted(id string, muted bool) error {
	t := tl.track(id)
	if t == nil {
		return model.NewEditError("setTrackMuted", model.ErrNotFound, id, "")
	}
	t.Muted = muted
	return nil
}

// SetVolume 设置音量/不透明度，超出 0..100 时夹紧
func (tl *Timeline) SetVolume(id string, v float64) error {
	t := tl.track(id)
	if t == nil {
		return model.NewEditError("setTrackVolume", model.ErrNotFound, id, "")
	}
	if !finite(v) {
		return model.NewEditError("setTrackVolume", model.ErrInvalidRange, id, "volume %v", v)
	}
	t.VolumeOrOpacity = clampPercent(v)
	return nil
}

// AddMarker 添加标记
func (tl *Timeline) AddMarker(m model.Marker) (model.Marker, error) {
	if !finite(m.Time) || m.Time < 0 {
		return model.Marker{}, model.NewEditError("addMarker", model.ErrInvalidRange, "", "time %v", m.Time)
	}
	if m.ID == "" {
		m.ID = tl.newID()
	}
	tl.markers = append(tl.markers, m)
	sort.SliceStable(tl.markers, func(i, j int) bool { return tl.markers[i].Time < tl.markers[j].Time })
	return m, nil
}

// RemoveMarker 删除标记
func (tl *Timeline) RemoveMarker(id string) error {
	for i, m := range tl.markers {
		if m.ID == id {
			tl.markers = append(tl.markers[:i], tl.markers[i+1:]...)
			return nil
		}
	}
	return model.NewEditError("removeMarker", model.ErrNotFound, id, "")
}

// Markers 返回标记拷贝
func (tl *Timeline) Markers() []model.Marker {
	return append([]model.Marker(nil), tl.markers...)
}

func clampPercent(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
