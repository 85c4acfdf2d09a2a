package engine

import (
	"context"
	"math"
	"path"
	"strings"

	"Cutline/core/timeline"
	"Cutline/logger"
	"Cutline/model"
)

const timeEpsilon = 1e-9

// snapFunc 吸附开启时返回基于当前状态的吸附函数
func (e *Engine) snapFunc(s *state) timeline.SnapFunc {
	if !e.snapping {
		return nil
	}
	return s.tl.NewSnapFunc(e.snapper, s.mapper(e.cfg.BasePPS), s.play.Now())
}

// AddClip 把片段放到轨道上，返回带 ID 的片段
func (e *Engine) AddClip(trackID string, clip model.Clip) (*model.Clip, error) {
	var created *model.Clip
	_, err := e.apply("addClip", func(s *state, fx *effects) error {
		c := clip.Clone()
		c.TrackID = trackID
		if err := s.tl.AddClip(c); err != nil {
			return err
		}
		fx.request(c.ID)
		var err error
		created, err = s.tl.Clip(c.ID)
		return err
	})
	return created, err
}

// AddClipFromSource 探测媒体时长和尺寸后创建片段。探测在锁外进行。
func (e *Engine) AddClipFromSource(ctx context.Context, trackID, sourceRef string, start float64) (*model.Clip, error) {
	if e.prober == nil {
		return nil, model.NewEditError("addClipFromSource", model.ErrNotFound, sourceRef, "no media prober configured")
	}
	info, err := e.prober.Probe(ctx, sourceRef)
	if err != nil {
		return nil, model.NewEditError("addClipFromSource", model.ErrNotFound, sourceRef, "probe: %v", err)
	}
	meta := map[string]any{timeline.MetaSourceDuration: info.Duration}
	if info.Width > 0 {
		meta["width"] = info.Width
		meta["height"] = info.Height
	}
	if info.FileSize > 0 {
		meta["fileSize"] = info.FileSize
	}
	if info.Format != "" {
		meta["format"] = info.Format
	}
	name := path.Base(strings.TrimPrefix(sourceRef, "file://"))
	clip, err := e.AddClip(trackID, model.Clip{
		SourceRef: sourceRef,
		StartTime: start,
		Duration:  info.Duration,
		Name:      name,
		Metadata:  meta,
	})
	if err == nil {
		logger.Info("clip added from source",
			logger.String("clipId", clip.ID),
			logger.String("sourceRef", sourceRef),
			logger.Float64("duration", info.Duration))
	}
	return clip, err
}

// MoveClip 在轨道内移动片段。起点夹到 ≥0，吸附开启时先吸附再检查重叠。
// 位置联动轨道上起点相同的片段按同样的位移一起移动，任一失败则整体不生效。
func (e *Engine) MoveClip(clipID string, newStart float64) (model.Snapshot, error) {
	return e.apply("moveClip", func(s *state, fx *effects) error {
		res, err := s.tl.MoveClip(clipID, newStart, e.snapFunc(s))
		if err != nil {
			return err
		}
		return s.mirrorMove(res, clipID)
	})
}

func (s *state) mirrorMove(res timeline.MoveResult, movedID string) error {
	delta := res.Delta()
	if math.Abs(delta) <= timeEpsilon {
		return nil
	}
	for _, trackID := range s.linked(res.FromTrackID, model.SyncPosition) {
		track, err := s.tl.Track(trackID)
		if err != nil {
			return err
		}
		for _, c := range track.Clips {
			if c.ID == movedID || math.Abs(c.StartTime-res.OldStart) > timeEpsilon {
				continue
			}
			if _, err := s.tl.MoveClip(c.ID, c.StartTime+delta, nil); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

// MoveClipToTrack 把片段移到同类型的另一条轨道
func (e *Engine) MoveClipToTrack(clipID, trackID string, newStart float64) (model.Snapshot, error) {
	return e.apply("moveClipToTrack", func(s *state, fx *effects) error {
		res, err := s.tl.MoveClipToTrack(clipID, trackID, newStart, e.snapFunc(s))
		if err != nil {
			return err
		}
		s.kf.OnMove(clipID, res.ToTrackID)
		return nil
	})
}

// TrimClip 修剪片段一端，关键帧按新区间裁剪，预览重新生成
func (e *Engine) TrimClip(clipID string, edge timeline.Edge, newTime float64) (model.Snapshot, error) {
	return e.apply("trimClip", func(s *state, fx *effects) error {
		res, err := s.tl.TrimClip(clipID, edge, newTime, e.snapFunc(s))
		if err != nil {
			return err
		}
		s.kf.OnTrim(clipID, res.StartShift, res.NewDuration)
		fx.refresh(clipID)
		return nil
	})
}

// SplitClip 在 at 处分割片段，返回尾段 ID
func (e *Engine) SplitClip(clipID string, at float64) (string, error) {
	var tailID string
	_, err := e.apply("splitClip", func(s *state, fx *effects) error {
		res, err := s.tl.SplitClip(clipID, at)
		if err != nil {
			return err
		}
		s.kf.OnSplit(res.HeadID, res.TailID, res.TrackID, res.Offset, res.OldDuration)
		fx.refresh(res.HeadID)
		fx.request(res.TailID)
		tailID = res.TailID
		return nil
	})
	return tailID, err
}

// DeleteClip 删除片段，级联删除关键帧、预览并从选区移除
func (e *Engine) DeleteClip(clipID string) (model.Snapshot, error) {
	return e.apply("deleteClip", func(s *state, fx *effects) error {
		_, err := s.deleteClip(clipID, fx)
		return err
	})
}

// DuplicateClip 复制片段；at 为空时放在源片段之后
func (e *Engine) DuplicateClip(clipID string, at *float64) (*model.Clip, error) {
	var created *model.Clip
	_, err := e.apply("duplicateClip", func(s *state, fx *effects) error {
		dup, err := s.tl.DuplicateClip(clipID, at)
		if err != nil {
			return err
		}
		s.kf.OnDuplicate(clipID, dup.ID, dup.TrackID)
		fx.request(dup.ID)
		created = dup
		return nil
	})
	return created, err
}

// Select 设置选区；引用不存在的片段时失败
func (e *Engine) Select(ids []string, additive bool) (model.Snapshot, error) {
	return e.apply("select", func(s *state, fx *effects) error {
		for _, id := range ids {
			if !s.tl.HasClip(id) {
				return model.NewEditError("select", model.ErrNotFound, id, "")
			}
		}
		s.sel.Set(ids, additive)
		return nil
	})
}

func (e *Engine) Deselect(ids ...string) (model.Snapshot, error) {
	return e.apply("deselect", func(s *state, fx *effects) error {
		s.sel.Remove(ids...)
		return nil
	})
}

func (e *Engine) ClearSelection() (model.Snapshot, error) {
	return e.apply("clearSelection", func(s *state, fx *effects) error {
		s.sel.Clear()
		return nil
	})
}

// DeleteSelection 删除选中的全部片段；任一片段所在轨道被锁定时整体失败
func (e *Engine) DeleteSelection() (model.Snapshot, error) {
	return e.apply("deleteSelection", func(s *state, fx *effects) error {
		for _, id := range s.sel.IDs() {
			if _, err := s.deleteClip(id, fx); err != nil {
				return err
			}
		}
		return nil
	})
}
