package model

// Property 可做关键帧动画的属性
type Property string

const (
	PropertyPosition Property = "position"
	PropertyScale    Property = "scale"
	PropertyRotation Property = "rotation"
	PropertyOpacity  Property = "opacity"
	PropertyVolume   Property = "volume"
	PropertyFilter   Property = "filter"
)

// Valid 判断属性是否合法
func (p Property) Valid() bool {
	switch p {
	case PropertyPosition, PropertyScale, PropertyRotation, PropertyOpacity, PropertyVolume, PropertyFilter:
		return true
	}
	return false
}

// Easing 插值曲线
type Easing string

const (
	EasingLinear    Easing = "linear"
	EasingEaseIn    Easing = "ease-in"
	EasingEaseOut   Easing = "ease-out"
	EasingEaseInOut Easing = "ease-in-out"
	EasingBounce    Easing = "bounce"
)

// Valid 判断插值曲线是否合法
func (e Easing) Valid() bool {
	switch e {
	case EasingLinear, EasingEaseIn, EasingEaseOut, EasingEaseInOut, EasingBounce:
		return true
	}
	return false
}

// Keyframe 某个片段某个属性在某一时刻的取值。
// Time 相对于所属片段的起点（秒），片段移动时无需改写。
type Keyframe struct {
	ID       string   `json:"id" yaml:"id"`
	TrackID  string   `json:"trackId" yaml:"trackId"`
	ClipID   string   `json:"clipId" yaml:"clipId"`
	Property Property `json:"property" yaml:"property"`
	Time     float64  `json:"time" yaml:"time"`
	Value    float64  `json:"value" yaml:"value"`
	Easing   Easing   `json:"easing" yaml:"easing"`
}
