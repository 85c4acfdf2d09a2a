package engine

import (
	"math"

	"Cutline/core/playback"
	"Cutline/core/timeline"
	"Cutline/model"
)

// SetZoom 设置缩放，夹到 [0.1, 5]
func (e *Engine) SetZoom(zoom float64) (model.Snapshot, error) {
	return e.apply("setZoom", func(s *state, fx *effects) error {
		if math.IsNaN(zoom) {
			return model.NewEditError("setZoom", model.ErrInvalidRange, "", "zoom %v", zoom)
		}
		s.zoom = timeline.ClampZoom(zoom)
		return nil
	})
}

// ZoomBy 以 delta 个 ZoomStep 为单位调整缩放，正数放大
func (e *Engine) ZoomBy(delta int) (model.Snapshot, error) {
	return e.apply("zoomBy", func(s *state, fx *effects) error {
		s.zoom = timeline.ClampZoom(s.zoom + float64(delta)*e.cfg.ZoomStep)
		return nil
	})
}

func (e *Engine) Play() (model.Snapshot, error) {
	return e.apply("play", func(s *state, fx *effects) error {
		s.play.Play(s.tl.Duration())
		return nil
	})
}

func (e *Engine) Pause() (model.Snapshot, error) {
	return e.apply("pause", func(s *state, fx *effects) error {
		s.play.Pause()
		return nil
	})
}

func (e *Engine) Stop() (model.Snapshot, error) {
	return e.apply("stop", func(s *state, fx *effects) error {
		s.play.Stop()
		return nil
	})
}

// Seek 移动播放头，时间夹到 [0, duration]
func (e *Engine) Seek(t float64) (model.Snapshot, error) {
	return e.apply("seek", func(s *state, fx *effects) error {
		s.play.Seek(t, s.tl.Duration())
		return nil
	})
}

// Tick 由宿主的帧循环调用，推进播放头；返回是否仍在播放。
// 不在播放时直接返回，不产生新版本也不推送快照。
func (e *Engine) Tick(t float64) (bool, error) {
	e.mu.Lock()
	idle := e.st.play.State() != model.PlaybackPlaying
	e.mu.Unlock()
	if idle {
		return false, nil
	}

	var playing bool
	_, err := e.apply("tick", func(s *state, fx *effects) error {
		playing = s.play.Tick(t, s.tl.Duration())
		return nil
	})
	return playing, err
}

// AutoScroll 根据播放头位置给出可见窗口的建议滚动位置
func (e *Engine) AutoScroll(v playback.Viewport) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.play.AutoScroll(v, e.st.mapper(e.cfg.BasePPS), e.cfg.AutoScrollMarginPx)
}

// FormatTime 按 mm:ss:ff 格式化时间
func (e *Engine) FormatTime(t float64) string {
	return timeline.FormatTime(t, e.cfg.DisplayFPS)
}
