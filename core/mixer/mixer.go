package mixer

import (
	"math"
	"sort"

	"Cutline/model"

	"github.com/google/uuid"
)

// paramKeys 每种效果允许的参数名，只校验键名不校验取值
var paramKeys = map[model.EffectType][]string{
	model.EffectReverb:         {"roomSize", "damping", "wetLevel", "dryLevel"},
	model.EffectEcho:           {"delay", "feedback", "wetLevel"},
	model.EffectCompressor:     {"threshold", "ratio", "attack", "release", "makeupGain"},
	model.EffectEqualizer:      {"low", "mid", "high"},
	model.EffectNoiseReduction: {"strength", "sensitivity"},
	model.EffectNormalize:      {"targetLevel"},
}

// ParamKeys 返回效果类型允许的参数名
func ParamKeys(t model.EffectType) ([]string, bool) {
	keys, ok := paramKeys[t]
	return append([]string(nil), keys...), ok
}

func validateParams(op, trackID string, t model.EffectType, params map[string]float64) error {
	keys, ok := paramKeys[t]
	if !ok {
		return model.NewEditError(op, model.ErrInvalidRange, trackID, "unknown effect %q", t)
	}
	for name, v := range params {
		if !contains(keys, name) {
			return model.NewEditError(op, model.ErrInvalidRange, trackID, "%s has no parameter %q", t, name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.NewEditError(op, model.ErrInvalidRange, trackID, "%s.%s = %v", t, name, v)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Mixer 混音参数台账：每条轨道的增益、静音和效果链，加一条主总线。
// 只记录参数，不做信号处理。
type Mixer struct {
	entries map[string]*model.MixerEntry
	master  model.MasterBus
	newID   func() string
}

func New() *Mixer {
	return &Mixer{
		entries: make(map[string]*model.MixerEntry),
		master:  model.MasterBus{Gain: 100},
		newID:   uuid.NewString,
	}
}

// SetIDGenerator 替换效果 ID 生成函数
func (m *Mixer) SetIDGenerator(fn func() string) {
	if fn != nil {
		m.newID = fn
	}
}

func (m *Mixer) Clone() *Mixer {
	cp := &Mixer{entries: make(map[string]*model.MixerEntry, len(m.entries)), master: m.master, newID: m.newID}
	for id, e := range m.entries {
		c := e.Clone()
		cp.entries[id] = &c
	}
	return cp
}

// Ensure 为轨道创建混音条目（已存在时不变）
func (m *Mixer) Ensure(trackID string, gain float64, muted bool) {
	if _, ok := m.entries[trackID]; ok {
		return
	}
	m.entries[trackID] = &model.MixerEntry{TrackID: trackID, Gain: clampGain(gain), Muted: muted, EffectChain: []model.Effect{}}
}

// Remove 删除轨道的混音条目
func (m *Mixer) Remove(trackID string) {
	delete(m.entries, trackID)
}

func (m *Mixer) entry(op, trackID string) (*model.MixerEntry, error) {
	e, ok := m.entries[trackID]
	if !ok {
		return nil, model.NewEditError(op, model.ErrNotFound, trackID, "mixer entry")
	}
	return e, nil
}

// Entry 返回轨道混音条目的拷贝
func (m *Mixer) Entry(trackID string) (model.MixerEntry, error) {
	e, err := m.entry("getMixerEntry", trackID)
	if err != nil {
		return model.MixerEntry{}, err
	}
	return e.Clone(), nil
}

// Entries 返回全部条目，按轨道 ID 排序
func (m *Mixer) Entries() []model.MixerEntry {
	out := make([]model.MixerEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrackID < out[j].TrackID })
	return out
}

// SetGain 设置增益，超出 0..100 时夹紧
func (m *Mixer) SetGain(trackID string, gain float64) error {
	e, err := m.entry("setGain", trackID)
	if err != nil {
		return err
	}
	if math.IsNaN(gain) || math.IsInf(gain, 0) {
		return model.NewEditError("setGain", model.ErrInvalidRange, trackID, "gain %v", gain)
	}
	e.Gain = clampGain(gain)
	return nil
}

func (m *Mixer) SetMuted(trackID string, muted bool) error {
	e, err := m.entry("setMuted", trackID)
	if err != nil {
		return err
	}
	e.Muted = muted
	return nil
}

// ToggleMuted 切换静音，返回新状态
func (m *Mixer) ToggleMuted(trackID string) (bool, error) {
	e, err := m.entry("toggleMuted", trackID)
	if err != nil {
		return false, err
	}
	e.Muted = !e.Muted
	return e.Muted, nil
}

// AddEffect 在效果链末尾追加效果
func (m *Mixer) AddEffect(trackID string, t model.EffectType, params map[string]float64) (model.Effect, error) {
	const op = "addEffect"
	e, err := m.entry(op, trackID)
	if err != nil {
		return model.Effect{}, err
	}
	if err := validateParams(op, trackID, t, params); err != nil {
		return model.Effect{}, err
	}
	fx := model.Effect{ID: m.newID(), Type: t, Params: params}.Clone()
	e.EffectChain = append(e.EffectChain, fx)
	return fx.Clone(), nil
}

// EffectIndex 返回效果在链中的位置
func (m *Mixer) EffectIndex(trackID, effectID string) (int, error) {
	e, err := m.entry("findEffect", trackID)
	if err != nil {
		return -1, err
	}
	for i, fx := range e.EffectChain {
		if fx.ID == effectID {
			return i, nil
		}
	}
	return -1, model.NewEditError("findEffect", model.ErrNotFound, effectID, "effect")
}

// UpdateEffect 合并参数到已有效果
func (m *Mixer) UpdateEffect(trackID, effectID string, params map[string]float64) error {
	i, err := m.EffectIndex(trackID, effectID)
	if err != nil {
		return err
	}
	return m.UpdateEffectAt(trackID, i, params)
}

// UpdateEffectAt 按链中位置合并参数
func (m *Mixer) UpdateEffectAt(trackID string, index int, params map[string]float64) error {
	const op = "updateEffect"
	e, err := m.entry(op, trackID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(e.EffectChain) {
		return model.NewEditError(op, model.ErrNotFound, trackID, "no effect at %d", index)
	}
	fx := &e.EffectChain[index]
	if err := validateParams(op, trackID, fx.Type, params); err != nil {
		return err
	}
	for k, v := range params {
		fx.Params[k] = v
	}
	return nil
}

// RemoveEffect 删除效果，返回其原位置
func (m *Mixer) RemoveEffect(trackID, effectID string) (int, error) {
	i, err := m.EffectIndex(trackID, effectID)
	if err != nil {
		return -1, err
	}
	return i, m.RemoveEffectAt(trackID, i)
}

func (m *Mixer) RemoveEffectAt(trackID string, index int) error {
	e, err := m.entry("removeEffect", trackID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(e.EffectChain) {
		return model.NewEditError("removeEffect", model.ErrNotFound, trackID, "no effect at %d", index)
	}
	e.EffectChain = append(e.EffectChain[:index:index], e.EffectChain[index+1:]...)
	return nil
}

// MoveEffect 调整效果在链中的位置，越界时夹到两端；返回原位置和新位置
func (m *Mixer) MoveEffect(trackID, effectID string, newIndex int) (int, int, error) {
	from, err := m.EffectIndex(trackID, effectID)
	if err != nil {
		return -1, -1, err
	}
	to, err := m.MoveEffectAt(trackID, from, newIndex)
	return from, to, err
}

func (m *Mixer) MoveEffectAt(trackID string, from, to int) (int, error) {
	e, err := m.entry("moveEffect", trackID)
	if err != nil {
		return -1, err
	}
	n := len(e.EffectChain)
	if from < 0 || from >= n {
		return -1, model.NewEditError("moveEffect", model.ErrNotFound, trackID, "no effect at %d", from)
	}
	if to < 0 {
		to = 0
	}
	if to >= n {
		to = n - 1
	}
	fx := e.EffectChain[from]
	chain := append(e.EffectChain[:from:from], e.EffectChain[from+1:]...)
	chain = append(chain[:to], append([]model.Effect{fx}, chain[to:]...)...)
	e.EffectChain = chain
	return to, nil
}

func (m *Mixer) Master() model.MasterBus {
	return m.master
}

// SetMasterGain 设置主总线增益，不影响任何轨道
func (m *Mixer) SetMasterGain(gain float64) error {
	if math.IsNaN(gain) || math.IsInf(gain, 0) {
		return model.NewEditError("setMasterGain", model.ErrInvalidRange, "", "gain %v", gain)
	}
	m.master.Gain = clampGain(gain)
	return nil
}

// ToggleMasterMute 切换主总线静音，返回新状态
func (m *Mixer) ToggleMasterMute() bool {
	m.master.Muted = !m.master.Muted
	return m.master.Muted
}

// EffectiveGain 轨道最终输出增益（0..100），合并轨道和主总线的增益与静音
func (m *Mixer) EffectiveGain(trackID string) (float64, error) {
	e, err := m.entry("effectiveGain", trackID)
	if err != nil {
		return 0, err
	}
	if e.Muted || m.master.Muted {
		return 0, nil
	}
	return e.Gain * m.master.Gain / 100, nil
}

// Load 用持久化数据替换全部条目
func (m *Mixer) Load(entries []model.MixerEntry, master model.MasterBus) error {
	loaded := make(map[string]*model.MixerEntry, len(entries))
	for _, src := range entries {
		if src.TrackID == "" {
			return model.NewEditError("loadMixer", model.ErrInvalidRange, "", "entry without track id")
		}
		if _, dup := loaded[src.TrackID]; dup {
			return model.NewEditError("loadMixer", model.ErrInvalidRange, src.TrackID, "duplicate mixer entry")
		}
		e := src.Clone()
		e.Gain = clampGain(e.Gain)
		for i := range e.EffectChain {
			fx := &e.EffectChain[i]
			if err := validateParams("loadMixer", src.TrackID, fx.Type, fx.Params); err != nil {
				return err
			}
			if fx.ID == "" {
				fx.ID = m.newID()
			}
		}
		loaded[src.TrackID] = &e
	}
	master.Gain = clampGain(master.Gain)
	m.entries = loaded
	m.master = master
	return nil
}

func clampGain(g float64) float64 {
	if math.IsNaN(g) {
		return 0
	}
	return math.Min(100, math.Max(0, g))
}
