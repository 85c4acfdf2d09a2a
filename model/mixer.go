package model

// EffectType 音频效果类型
type EffectType string

const (
	EffectReverb         EffectType = "reverb"
	EffectEcho           EffectType = "echo"
	EffectCompressor     EffectType = "compressor"
	EffectEqualizer      EffectType = "equalizer"
	EffectNoiseReduction EffectType = "noise-reduction"
	EffectNormalize      EffectType = "normalize"
)

// Effect 效果链中的一个节点，参数只校验键名，不校验语义
type Effect struct {
	ID     string             `json:"id" yaml:"id"`
	Type   EffectType         `json:"type" yaml:"type"`
	Params map[string]float64 `json:"params" yaml:"params"`
}

// Clone 拷贝效果节点
func (e Effect) Clone() Effect {
	cp := e
	cp.Params = make(map[string]float64, len(e.Params))
	for k, v := range e.Params {
		cp.Params[k] = v
	}
	return cp
}

// MixerEntry 单条轨道的混音参数
type MixerEntry struct {
	TrackID     string   `json:"trackId" yaml:"trackId"`
	Gain        float64  `json:"gain" yaml:"gain"` // 0..100，非音频轨道表示不透明度
	Muted       bool     `json:"muted" yaml:"muted"`
	EffectChain []Effect `json:"effectChain" yaml:"effectChain"`
}

// Clone 拷贝混音参数
func (m MixerEntry) Clone() MixerEntry {
	cp := m
	cp.EffectChain = make([]Effect, len(m.EffectChain))
	for i, e := range m.EffectChain {
		cp.EffectChain[i] = e.Clone()
	}
	return cp
}

// MasterBus 主输出总线
type MasterBus struct {
	Gain  float64 `json:"gain" yaml:"gain"`
	Muted bool    `json:"muted" yaml:"muted"`
}
