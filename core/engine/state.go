package engine

import (
	"sort"

	"Cutline/core/keyframe"
	"Cutline/core/mixer"
	"Cutline/core/playback"
	"Cutline/core/preview"
	"Cutline/core/timeline"
	"Cutline/logger"
	"Cutline/model"
)

// state 引擎的全部可编辑状态，修改前整体克隆
type state struct {
	tl   *timeline.Timeline
	kf   *keyframe.Store
	mix  *mixer.Mixer
	sel  *timeline.Selection
	play *playback.Coordinator
	zoom float64
}

func (s *state) clone() *state {
	return &state{
		tl:   s.tl.Clone(),
		kf:   s.kf.Clone(),
		mix:  s.mix.Clone(),
		sel:  s.sel.Clone(),
		play: s.play.Clone(),
		zoom: s.zoom,
	}
}

func (s *state) mapper(basePPS float64) timeline.Mapper {
	return timeline.NewMapper(basePPS, s.zoom)
}

// linked 返回与 trackID 通过 sync 类型联动（含间接联动）的其他轨道
func (s *state) linked(trackID string, sync model.SyncType) []string {
	seen := map[string]bool{trackID: true}
	queue := []string{trackID}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, other := range s.tl.Linked(cur, sync) {
			if seen[other] {
				continue
			}
			seen[other] = true
			out = append(out, other)
			queue = append(queue, other)
		}
	}
	sort.Strings(out)
	return out
}

// deleteClip 删除片段并级联清理关键帧、选区和预览
func (s *state) deleteClip(clipID string, fx *effects) (*model.Clip, error) {
	clip, err := s.tl.DeleteClip(clipID)
	if err != nil {
		return nil, err
	}
	s.kf.OnDelete(clipID)
	s.sel.Remove(clipID)
	fx.invalidate(clipID)
	return clip, nil
}

// effects 提交成功后要对预览缓存执行的操作
type effects struct {
	invalidated []string
	requested   []string
}

func (fx *effects) invalidate(ids ...string) {
	fx.invalidated = append(fx.invalidated, ids...)
}

func (fx *effects) request(ids ...string) {
	fx.requested = append(fx.requested, ids...)
}

// refresh 片段的源区间变化：丢弃旧预览并重新生成
func (fx *effects) refresh(ids ...string) {
	fx.invalidate(ids...)
	fx.request(ids...)
}

// previewKinds 每种轨道需要的预览
func previewKinds(kind model.TrackKind) []model.PreviewKind {
	switch kind {
	case model.TrackKindVideo, model.TrackKindImage:
		return []model.PreviewKind{model.PreviewThumbnails}
	case model.TrackKindAudio:
		return []model.PreviewKind{model.PreviewWaveform}
	}
	return nil
}

// runEffectsLocked 在提交后的状态上执行预览操作。持有 e.mu，保证与编辑顺序一致。
func (e *Engine) runEffectsLocked(fx *effects) {
	for _, id := range fx.invalidated {
		e.previews.Invalidate(id)
	}
	if !e.autoPreview {
		return
	}
	seen := make(map[string]bool, len(fx.requested))
	for _, id := range fx.requested {
		if seen[id] {
			continue
		}
		seen[id] = true
		e.requestPreviewsLocked(id)
	}
}

func (e *Engine) requestPreviewsLocked(clipID string) {
	clip, err := e.st.tl.Clip(clipID)
	if err != nil {
		return
	}
	track, err := e.st.tl.Track(clip.TrackID)
	if err != nil {
		return
	}
	for _, kind := range previewKinds(track.Kind) {
		if _, err := e.previews.Request(e.previewRequest(clip, kind)); err != nil {
			logger.Warn("preview request failed", logger.String("clipId", clipID), logger.ErrorField(err))
		}
	}
}

func (e *Engine) previewRequest(clip *model.Clip, kind model.PreviewKind) preview.Request {
	return preview.Request{
		ClipID:    clip.ID,
		Kind:      kind,
		SourceRef: clip.SourceRef,
		Span:      preview.Span{Offset: clip.SourceOffset, Duration: clip.Duration},
		Count:     e.cfg.ThumbnailCount,
	}
}
