package timeline

import (
	"fmt"
	"math"
)

const (
	MinZoom = 0.1
	MaxZoom = 5.0
)

// ClampZoom 将缩放限制在 [MinZoom, MaxZoom]
func ClampZoom(z float64) float64 {
	if math.IsNaN(z) {
		return 1
	}
	return math.Min(MaxZoom, math.Max(MinZoom, z))
}

// Mapper 秒与水平像素之间的换算。值类型，相同 zoom 下结果稳定，调用方可按 zoom 缓存。
type Mapper struct {
	basePPS float64
	zoom    float64
}

// NewMapper 创建换算器，zoom 会被限制到合法区间
func NewMapper(basePPS, zoom float64) Mapper {
	if basePPS <= 0 {
		basePPS = 50
	}
	return Mapper{basePPS: basePPS, zoom: ClampZoom(zoom)}
}

// WithZoom 返回新缩放下的换算器
func (m Mapper) WithZoom(zoom float64) Mapper {
	return Mapper{basePPS: m.basePPS, zoom: ClampZoom(zoom)}
}

func (m Mapper) Zoom() float64 {
	return m.zoom
}

func (m Mapper) BasePPS() float64 {
	return m.basePPS
}

// PixelsPerSecond 当前缩放下每秒对应的像素
func (m Mapper) PixelsPerSecond() float64 {
	return m.basePPS * m.zoom
}

func (m Mapper) TimeToPixels(t float64) float64 {
	return t * m.PixelsPerSecond()
}

func (m Mapper) PixelsToTime(p float64) float64 {
	return p / m.PixelsPerSecond()
}

// FormatTime 以 mm:ss:ff 显示时间，仅用于展示
func FormatTime(t float64, fps int) string {
	if fps <= 0 {
		fps = 30
	}
	if t < 0 || math.IsNaN(t) {
		t = 0
	}
	totalFrames := int64(math.Floor(t*float64(fps) + 1e-6))
	frames := totalFrames % int64(fps)
	totalSeconds := totalFrames / int64(fps)
	return fmt.Sprintf("%02d:%02d:%02d", totalSeconds/60, totalSeconds%60, frames)
}
