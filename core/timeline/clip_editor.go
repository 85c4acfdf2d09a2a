package timeline

import (
	"math"
	"sort"

	"Cutline/model"
)

// Edge 修剪的边
type Edge string

const (
	EdgeStart Edge = "start"
	EdgeEnd   Edge = "end"
)

// MetaSourceDuration 片段元数据中记录源媒体固有时长的键，存在时修剪不能越过源媒体范围
const MetaSourceDuration = "sourceDuration"

// MoveResult 移动结果
type MoveResult struct {
	ClipID      string
	FromTrackID string
	ToTrackID   string
	OldStart    float64
	NewStart    float64
}

// Delta 移动的时间差
func (r MoveResult) Delta() float64 {
	return r.NewStart - r.OldStart
}

// TrimResult 修剪结果。StartShift 为起点移动量，用于关键帧重定时。
type TrimResult struct {
	ClipID      string
	TrackID     string
	Edge        Edge
	StartShift  float64
	OldDuration float64
	NewStart    float64
	NewDuration float64
}

// SplitResult 分割结果。Offset 是分割点相对原片段起点的时间。
type SplitResult struct {
	HeadID      string
	TailID      string
	TrackID     string
	Offset      float64
	OldDuration float64
}

func sortClips(t *model.Track) {
	sort.SliceStable(t.Clips, func(i, j int) bool { return t.Clips[i].StartTime < t.Clips[j].StartTime })
}

// overlapping 返回与 [start, end) 相交的第一个片段（忽略 excludeID）
func overlapping(t *model.Track, start, end float64, excludeID string) *model.Clip {
	for _, c := range t.Clips {
		if c.ID == excludeID {
			continue
		}
		if start < c.End()-epsilon && c.StartTime < end-epsilon {
			return c
		}
	}
	return nil
}

func editable(op string, t *model.Track) error {
	if t.Locked {
		return model.NewEditError(op, model.ErrTrackLocked, t.ID, "")
	}
	return nil
}

func sourceDuration(c *model.Clip) (float64, bool) {
	if c.Metadata == nil {
		return 0, false
	}
	switch v := c.Metadata[MetaSourceDuration].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func (tl *Timeline) checkInterval(op, id string, start, duration float64) error {
	if !finite(start) || !finite(duration) {
		return model.NewEditError(op, model.ErrInvalidRange, id, "non-finite time")
	}
	if start < 0 {
		return model.NewEditError(op, model.ErrInvalidRange, id, "negative start %.3f", start)
	}
	if duration < tl.cfg.MinClipDuration-epsilon {
		return model.NewEditError(op, model.ErrInvalidRange, id, "duration %.3f below minimum %.3f", duration, tl.cfg.MinClipDuration)
	}
	return nil
}

func applySnap(snap SnapFunc, t float64, clipID string) float64 {
	if snap != nil {
		t, _ = snap(t, clipID)
	}
	return math.Max(0, t)
}

// snapSpan 拖动整个片段时起点和终点都参与吸附，取位移更小的一侧；
// 位移相等时取更早的起点。
func snapSpan(snap SnapFunc, start, duration float64, clipID string) float64 {
	start = math.Max(0, start)
	if snap == nil {
		return start
	}
	head, headOK := snap(start, clipID)
	end, tailOK := snap(start+duration, clipID)
	tail := end - duration
	switch {
	case headOK && tailOK:
		dh, dt := math.Abs(head-start), math.Abs(tail-start)
		if dt < dh-epsilon || (math.Abs(dt-dh) <= epsilon && tail < head) {
			head = tail
		}
	case tailOK:
		head = tail
	}
	return math.Max(0, head)
}

// AddClip 把片段放到 clip.TrackID 指定的轨道上
func (tl *Timeline) AddClip(clip *model.Clip) error {
	const op = "addClip"
	if clip == nil {
		return model.NewEditError(op, model.ErrInvalidRange, "", "nil clip")
	}
	t := tl.track(clip.TrackID)
	if t == nil {
		return model.NewEditError(op, model.ErrNotFound, clip.TrackID, "track")
	}
	if err := editable(op, t); err != nil {
		return err
	}
	if err := tl.checkInterval(op, clip.ID, clip.StartTime, clip.Duration); err != nil {
		return err
	}
	if clip.ID == "" {
		clip.ID = tl.newID()
	} else if tl.HasClip(clip.ID) {
		return model.NewEditError(op, model.ErrInvalidRange, clip.ID, "duplicate clip id")
	}
	if other := overlapping(t, clip.StartTime, clip.End(), ""); other != nil {
		return model.NewEditError(op, model.ErrOverlap, clip.ID, "intersects %s", other.ID)
	}
	t.Clips = append(t.Clips, clip.Clone())
	sortClips(t)
	return nil
}

// MoveClip 在同一轨道内移动片段。起点先夹到 ≥0，再对两端做吸附，最后检查重叠。
func (tl *Timeline) MoveClip(clipID string, newStart float64, snap SnapFunc) (MoveResult, error) {
	const op = "moveClip"
	t, i := tl.locate(clipID)
	if t == nil {
		return MoveResult{}, model.NewEditError(op, model.ErrNotFound, clipID, "")
	}
	if err := editable(op, t); err != nil {
		return MoveResult{}, err
	}
	if !finite(newStart) {
		return MoveResult{}, model.NewEditError(op, model.ErrInvalidRange, clipID, "non-finite time")
	}
	c := t.Clips[i]
	start := snapSpan(snap, newStart, c.Duration, clipID)
	if other := overlapping(t, start, start+c.Duration, clipID); other != nil {
		return MoveResult{}, model.NewEditError(op, model.ErrOverlap, clipID, "intersects %s", other.ID)
	}
	res := MoveResult{ClipID: clipID, FromTrackID: t.ID, ToTrackID: t.ID, OldStart: c.StartTime, NewStart: start}
	c.StartTime = start
	sortClips(t)
	return res, nil
}

// MoveClipToTrack 把片段移动到同类型的另一条轨道
func (tl *Timeline) MoveClipToTrack(clipID, trackID string, newStart float64, snap SnapFunc) (MoveResult, error) {
	const op = "moveClipToTrack"
	from, i := tl.locate(clipID)
	if from == nil {
		return MoveResult{}, model.NewEditError(op, model.ErrNotFound, clipID, "")
	}
	if from.ID == trackID {
		return tl.MoveClip(clipID, newStart, snap)
	}
	to := tl.track(trackID)
	if to == nil {
		return MoveResult{}, model.NewEditError(op, model.ErrNotFound, trackID, "track")
	}
	if err := editable(op, from); err != nil {
		return MoveResult{}, err
	}
	if err := editable(op, to); err != nil {
		return MoveResult{}, err
	}
	if from.Kind != to.Kind {
		return MoveResult{}, model.NewEditError(op, model.ErrInvalidRange, trackID, "track kind %s cannot hold %s clips", to.Kind, from.Kind)
	}
	if !finite(newStart) {
		return MoveResult{}, model.NewEditError(op, model.ErrInvalidRange, clipID, "non-finite time")
	}
	c := from.Clips[i]
	start := snapSpan(snap, newStart, c.Duration, clipID)
	if other := overlapping(to, start, start+c.Duration, clipID); other != nil {
		return MoveResult{}, model.NewEditError(op, model.ErrOverlap, clipID, "intersects %s", other.ID)
	}
	res := MoveResult{ClipID: clipID, FromTrackID: from.ID, ToTrackID: to.ID, OldStart: c.StartTime, NewStart: start}
	from.Clips = append(from.Clips[:i], from.Clips[i+1:]...)
	c.StartTime = start
	c.TrackID = to.ID
	to.Clips = append(to.Clips, c)
	sortClips(to)
	return res, nil
}

// TrimClip 修剪片段的起点或终点，保证最短时长且不与相邻片段重叠
func (tl *Timeline) TrimClip(clipID string, edge Edge, newTime float64, snap SnapFunc) (TrimResult, error) {
	const op = "trimClip"
	t, i := tl.locate(clipID)
	if t == nil {
		return TrimResult{}, model.NewEditError(op, model.ErrNotFound, clipID, "")
	}
	if err := editable(op, t); err != nil {
		return TrimResult{}, err
	}
	if !finite(newTime) {
		return TrimResult{}, model.NewEditError(op, model.ErrInvalidRange, clipID, "non-finite time")
	}
	c := t.Clips[i]
	srcDur, bounded := sourceDuration(c)
	res := TrimResult{ClipID: clipID, TrackID: t.ID, Edge: edge, OldDuration: c.Duration}

	var start, duration, offset float64
	switch edge {
	case EdgeStart:
		start = applySnap(snap, math.Max(0, newTime), clipID)
		duration = c.End() - start
		offset = c.SourceOffset + (start - c.StartTime)
		if offset < -epsilon {
			if bounded {
				return TrimResult{}, model.NewEditError(op, model.ErrInvalidRange, clipID, "start before source media")
			}
			offset = 0
		}
	case EdgeEnd:
		end := applySnap(snap, newTime, clipID)
		start = c.StartTime
		duration = end - start
		offset = c.SourceOffset
		if bounded && offset+duration > srcDur+epsilon {
			return TrimResult{}, model.NewEditError(op, model.ErrInvalidRange, clipID, "end beyond source media (%.3fs)", srcDur)
		}
	default:
		return TrimResult{}, model.NewEditError(op, model.ErrInvalidRange, clipID, "unknown edge %q", edge)
	}
	if err := tl.checkInterval(op, clipID, start, duration); err != nil {
		return TrimResult{}, err
	}
	if other := overlapping(t, start, start+duration, clipID); other != nil {
		return TrimResult{}, model.NewEditError(op, model.ErrOverlap, clipID, "intersects %s", other.ID)
	}

	res.StartShift = start - c.StartTime
	res.NewStart = start
	res.NewDuration = duration
	c.StartTime = start
	c.Duration = duration
	c.SourceOffset = math.Max(0, offset)
	sortClips(t)
	return res, nil
}

// SplitClip 在 at 处把片段一分为二，尾段获得新 ID 并引用同一媒体
func (tl *Timeline) SplitClip(clipID string, at float64) (SplitResult, error) {
	const op = "splitClip"
	t, i := tl.locate(clipID)
	if t == nil {
		return SplitResult{}, model.NewEditError(op, model.ErrNotFound, clipID, "")
	}
	if err := editable(op, t); err != nil {
		return SplitResult{}, err
	}
	c := t.Clips[i]
	if !finite(at) || !c.Contains(at) {
		return SplitResult{}, model.NewEditError(op, model.ErrInvalidRange, clipID, "split point %.3f outside (%.3f, %.3f)", at, c.StartTime, c.End())
	}
	headDur := at - c.StartTime
	tailDur := c.End() - at
	if headDur < tl.cfg.MinClipDuration-epsilon || tailDur < tl.cfg.MinClipDuration-epsilon {
		return SplitResult{}, model.NewEditError(op, model.ErrInvalidRange, clipID, "split leaves a part shorter than %.3fs", tl.cfg.MinClipDuration)
	}

	tail := c.Clone()
	tail.ID = tl.newID()
	tail.StartTime = at
	tail.Duration = tailDur
	tail.SourceOffset = c.SourceOffset + headDur

	res := SplitResult{HeadID: c.ID, TailID: tail.ID, TrackID: t.ID, Offset: headDur, OldDuration: c.Duration}
	c.Duration = headDur
	t.Clips = append(t.Clips, tail)
	sortClips(t)
	return res, nil
}

// DeleteClip 删除片段并返回它
func (tl *Timeline) DeleteClip(clipID string) (*model.Clip, error) {
	const op = "deleteClip"
	t, i := tl.locate(clipID)
	if t == nil {
		return nil, model.NewEditError(op, model.ErrNotFound, clipID, "")
	}
	if err := editable(op, t); err != nil {
		return nil, err
	}
	c := t.Clips[i]
	t.Clips = append(t.Clips[:i], t.Clips[i+1:]...)
	return c, nil
}

// DuplicateClip 复制片段；at 为空时放在源片段之后，仍受重叠规则约束
func (tl *Timeline) DuplicateClip(clipID string, at *float64) (*model.Clip, error) {
	const op = "duplicateClip"
	t, i := tl.locate(clipID)
	if t == nil {
		return nil, model.NewEditError(op, model.ErrNotFound, clipID, "")
	}
	if err := editable(op, t); err != nil {
		return nil, err
	}
	src := t.Clips[i]
	start := src.End()
	if at != nil {
		if !finite(*at) {
			return nil, model.NewEditError(op, model.ErrInvalidRange, clipID, "non-finite time")
		}
		start = math.Max(0, *at)
	}
	if other := overlapping(t, start, start+src.Duration, ""); other != nil {
		return nil, model.NewEditError(op, model.ErrOverlap, clipID, "intersects %s", other.ID)
	}
	dup := src.Clone()
	dup.ID = tl.newID()
	dup.StartTime = start
	t.Clips = append(t.Clips, dup)
	sortClips(t)
	return dup.Clone(), nil
}
