package keyframe

import "Cutline/model"

// Ease 把 [0,1] 内的插值进度映射到曲线上的进度
func Ease(e model.Easing, t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	switch e {
	case model.EasingEaseIn:
		return t * t
	case model.EasingEaseOut:
		return 1 - (1-t)*(1-t)
	case model.EasingEaseInOut:
		return easeInOutCubic(t)
	case model.EasingBounce:
		return easeOutBounce(t)
	default:
		return t
	}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}

func easeOutBounce(t float64) float64 {
	const (
		n1 = 7.5625
		d1 = 2.75
	)
	switch {
	case t < 1/d1:
		return n1 * t * t
	case t < 2/d1:
		t -= 1.5 / d1
		return n1*t*t + 0.75
	case t < 2.5/d1:
		t -= 2.25 / d1
		return n1*t*t + 0.9375
	default:
		t -= 2.625 / d1
		return n1*t*t + 0.984375
	}
}
