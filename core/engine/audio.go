package engine

import (
	"Cutline/model"
)

// volumeGroup 返回轨道自身加上所有音量联动的轨道
func (s *state) volumeGroup(trackID string) []string {
	return append([]string{trackID}, s.linked(trackID, model.SyncVolume)...)
}

// setGain 同时写混音条目和轨道的音量字段，两者保持一致
func (s *state) setGain(trackID string, gain float64) error {
	if err := s.mix.SetGain(trackID, gain); err != nil {
		return err
	}
	entry, err := s.mix.Entry(trackID)
	if err != nil {
		return err
	}
	return s.tl.SetVolume(trackID, entry.Gain)
}

func (s *state) setMuted(trackID string, muted bool) error {
	if err := s.mix.SetMuted(trackID, muted); err != nil {
		return err
	}
	return s.tl.SetMuted(trackID, muted)
}

// SetGain 设置轨道增益（0..100，超出时夹紧），音量联动的轨道取同样的值
func (e *Engine) SetGain(trackID string, gain float64) (model.Snapshot, error) {
	return e.apply("setGain", func(s *state, fx *effects) error {
		if _, err := s.tl.Track(trackID); err != nil {
			return err
		}
		for _, id := range s.volumeGroup(trackID) {
			if err := s.setGain(id, gain); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetTrackVolume 与 SetGain 相同，非音频轨道上表示不透明度
func (e *Engine) SetTrackVolume(trackID string, v float64) (model.Snapshot, error) {
	return e.SetGain(trackID, v)
}

// ToggleMuted 切换轨道静音，联动轨道统一设为切换后的值
func (e *Engine) ToggleMuted(trackID string) (model.Snapshot, error) {
	return e.apply("toggleMuted", func(s *state, fx *effects) error {
		muted, err := s.mix.ToggleMuted(trackID)
		if err != nil {
			return err
		}
		for _, id := range s.volumeGroup(trackID) {
			if err := s.setMuted(id, muted); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) SetTrackMuted(trackID string, muted bool) (model.Snapshot, error) {
	return e.apply("setTrackMuted", func(s *state, fx *effects) error {
		if _, err := s.tl.Track(trackID); err != nil {
			return err
		}
		for _, id := range s.volumeGroup(trackID) {
			if err := s.setMuted(id, muted); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddEffect 在效果链末尾追加效果；效果联动的轨道追加同类型同参数的效果
func (e *Engine) AddEffect(trackID string, t model.EffectType, params map[string]float64) (model.Effect, error) {
	var added model.Effect
	_, err := e.apply("addEffect", func(s *state, fx *effects) error {
		var err error
		added, err = s.mix.AddEffect(trackID, t, params)
		if err != nil {
			return err
		}
		for _, id := range s.linked(trackID, model.SyncEffects) {
			if _, err := s.mix.AddEffect(id, t, params); err != nil {
				return err
			}
		}
		return nil
	})
	return added, err
}

// UpdateEffect 合并效果参数；联动轨道上同位置且同类型的效果一并更新
func (e *Engine) UpdateEffect(trackID, effectID string, params map[string]float64) (model.Snapshot, error) {
	return e.apply("updateEffect", func(s *state, fx *effects) error {
		i, err := s.mix.EffectIndex(trackID, effectID)
		if err != nil {
			return err
		}
		entry, _ := s.mix.Entry(trackID)
		typ := entry.EffectChain[i].Type
		if err := s.mix.UpdateEffectAt(trackID, i, params); err != nil {
			return err
		}
		for _, id := range s.linked(trackID, model.SyncEffects) {
			other, err := s.mix.Entry(id)
			if err != nil || i >= len(other.EffectChain) || other.EffectChain[i].Type != typ {
				continue
			}
			if err := s.mix.UpdateEffectAt(id, i, params); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveEffect 删除效果；联动轨道删除同位置的效果
func (e *Engine) RemoveEffect(trackID, effectID string) (model.Snapshot, error) {
	return e.apply("removeEffect", func(s *state, fx *effects) error {
		i, err := s.mix.RemoveEffect(trackID, effectID)
		if err != nil {
			return err
		}
		for _, id := range s.linked(trackID, model.SyncEffects) {
			other, err := s.mix.Entry(id)
			if err != nil || i >= len(other.EffectChain) {
				continue
			}
			if err := s.mix.RemoveEffectAt(id, i); err != nil {
				return err
			}
		}
		return nil
	})
}

// MoveEffect 调整效果顺序；联动轨道做同样的位置调整
func (e *Engine) MoveEffect(trackID, effectID string, newIndex int) (model.Snapshot, error) {
	return e.apply("moveEffect", func(s *state, fx *effects) error {
		from, to, err := s.mix.MoveEffect(trackID, effectID, newIndex)
		if err != nil {
			return err
		}
		for _, id := range s.linked(trackID, model.SyncEffects) {
			other, err := s.mix.Entry(id)
			if err != nil || from >= len(other.EffectChain) {
				continue
			}
			if _, err := s.mix.MoveEffectAt(id, from, to); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetMasterGain 设置主总线增益，不影响各轨道
func (e *Engine) SetMasterGain(gain float64) (model.Snapshot, error) {
	return e.apply("setMasterGain", func(s *state, fx *effects) error {
		return s.mix.SetMasterGain(gain)
	})
}

func (e *Engine) ToggleMasterMute() (model.Snapshot, error) {
	return e.apply("toggleMasterMute", func(s *state, fx *effects) error {
		s.mix.ToggleMasterMute()
		return nil
	})
}

// EffectiveGain 轨道最终输出增益
func (e *Engine) EffectiveGain(trackID string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.mix.EffectiveGain(trackID)
}
