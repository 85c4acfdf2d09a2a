package engine

import (
	"Cutline/model"
)

// SetKeyframe 在片段的 time（相对片段起点）处设置关键帧，time 必须落在 [0, duration]
func (e *Engine) SetKeyframe(clipID string, prop model.Property, time, value float64, easing model.Easing) (model.Keyframe, error) {
	var set model.Keyframe
	_, err := e.apply("setKeyframe", func(s *state, fx *effects) error {
		clip, err := s.tl.Clip(clipID)
		if err != nil {
			return model.NewEditError("setKeyframe", model.ErrNotFound, clipID, "")
		}
		if err := lockedClip("setKeyframe", s, clip); err != nil {
			return err
		}
		if time < 0 || time > clip.Duration+timeEpsilon {
			return model.NewEditError("setKeyframe", model.ErrInvalidRange, clipID,
				"time %v outside clip duration %v", time, clip.Duration)
		}
		set, err = s.kf.Set(model.Keyframe{
			TrackID:  clip.TrackID,
			ClipID:   clipID,
			Property: prop,
			Time:     time,
			Value:    value,
			Easing:   easing,
		})
		return err
	})
	return set, err
}

func (e *Engine) RemoveKeyframe(id string) (model.Snapshot, error) {
	return e.apply("removeKeyframe", func(s *state, fx *effects) error {
		kf, ok := s.kf.Get(id)
		if !ok {
			return model.NewEditError("removeKeyframe", model.ErrNotFound, id, "")
		}
		if clip, err := s.tl.Clip(kf.ClipID); err == nil {
			if err := lockedClip("removeKeyframe", s, clip); err != nil {
				return err
			}
		}
		_, err := s.kf.Remove(id)
		return err
	})
}

// lockedClip 片段所在轨道锁定时拒绝修改它的关键帧
func lockedClip(op string, s *state, clip *model.Clip) error {
	t, err := s.tl.Track(clip.TrackID)
	if err != nil {
		return nil
	}
	if t.Locked {
		return model.NewEditError(op, model.ErrTrackLocked, t.ID, "")
	}
	return nil
}

// Keyframes 返回片段某属性的关键帧，prop 为空时返回片段的全部关键帧
func (e *Engine) Keyframes(clipID string, prop model.Property) []model.Keyframe {
	e.mu.Lock()
	defer e.mu.Unlock()
	if prop == "" {
		return e.st.kf.ForClip(clipID)
	}
	return e.st.kf.List(clipID, prop)
}

// SampleAt 在时间线绝对时间 t 处采样片段属性。t 不在片段内或属性没有关键帧时返回 false。
func (e *Engine) SampleAt(clipID string, prop model.Property, t float64) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	clip, err := e.st.tl.Clip(clipID)
	if err != nil || t < clip.StartTime || t > clip.End() {
		return 0, false
	}
	return e.st.kf.Sample(clipID, prop, t-clip.StartTime)
}
