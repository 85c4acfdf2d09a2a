package timeline

import (
	"math"
	"sort"
)

// Snapper 在像素空间中寻找离拖拽时间最近的吸附点
type Snapper struct {
	ThresholdPx float64
}

// Snap 返回吸附后的时间以及是否发生了吸附。
// 距离相等时选择更早的目标，保证结果确定。
func (s Snapper) Snap(t float64, targets []float64, m Mapper) (float64, bool) {
	if len(targets) == 0 {
		return t, false
	}
	px := m.TimeToPixels(t)
	best := math.Inf(1)
	bestDist := math.Inf(1)
	for _, target := range targets {
		d := math.Abs(m.TimeToPixels(target) - px)
		switch {
		case d < bestDist-epsilon:
			best, bestDist = target, d
		case math.Abs(d-bestDist) <= epsilon && target < best:
			best = target
		}
	}
	if bestDist > s.ThresholdPx+epsilon {
		return t, false
	}
	return best, true
}

// SnapTargets 收集吸附候选：除 excludeClipID 外所有片段的起止点、播放头和标记
func (tl *Timeline) SnapTargets(excludeClipID string, playhead float64) []float64 {
	seen := make(map[float64]struct{})
	var out []float64
	add := func(v float64) {
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, track := range tl.tracks {
		for _, c := range track.Clips {
			if c.ID == excludeClipID {
				continue
			}
			add(c.StartTime)
			add(c.End())
		}
	}
	add(playhead)
	for _, mk := range tl.markers {
		add(mk.Time)
	}
	sort.Float64s(out)
	return out
}

// SnapFunc 把候选时间替换成吸附后的时间，并报告是否发生了吸附
type SnapFunc func(t float64, excludeClipID string) (float64, bool)

// NewSnapFunc 组合 Snapper、换算器和当前播放头
func (tl *Timeline) NewSnapFunc(s Snapper, m Mapper, playhead float64) SnapFunc {
	return func(t float64, excludeClipID string) (float64, bool) {
		return s.Snap(t, tl.SnapTargets(excludeClipID, playhead), m)
	}
}
