package playback

import (
	"math"

	"Cutline/core/timeline"
	"Cutline/model"
)

// Coordinator 播放状态和当前时间的唯一来源。
// 自身不持有定时器，播放中由宿主每帧调用 Tick 推进。
type Coordinator struct {
	state model.PlaybackState
	now   float64
}

func New() *Coordinator {
	return &Coordinator{state: model.PlaybackStopped}
}

func (c *Coordinator) Clone() *Coordinator {
	cp := *c
	return &cp
}

func (c *Coordinator) State() model.PlaybackState {
	return c.state
}

func (c *Coordinator) Now() float64 {
	return c.now
}

// Play 开始播放；已经到达末尾时从头开始
func (c *Coordinator) Play(duration float64) {
	if c.now >= duration {
		c.now = 0
	}
	c.state = model.PlaybackPlaying
}

// Pause 暂停，只有播放中才生效
func (c *Coordinator) Pause() {
	if c.state == model.PlaybackPlaying {
		c.state = model.PlaybackPaused
	}
}

// Stop 回到 0 并进入 stopped
func (c *Coordinator) Stop() {
	c.now = 0
	c.state = model.PlaybackStopped
}

// Seek 把时间夹到 [0, duration]，不改变播放状态
func (c *Coordinator) Seek(t, duration float64) float64 {
	if math.IsNaN(t) {
		t = 0
	}
	c.now = math.Min(math.Max(0, t), math.Max(0, duration))
	return c.now
}

// Tick 播放中推进到宿主给出的时间；到达末尾时停在末尾并暂停。返回是否仍在播放。
func (c *Coordinator) Tick(t, duration float64) bool {
	if c.state != model.PlaybackPlaying {
		return false
	}
	c.Seek(t, duration)
	if c.now >= duration {
		c.state = model.PlaybackPaused
		return false
	}
	return true
}

// Clamp 时间线缩短到播放头之前时把播放头拉回
func (c *Coordinator) Clamp(duration float64) bool {
	if c.now > duration {
		c.now = math.Max(0, duration)
		return true
	}
	return false
}

// Viewport 可见窗口，单位为像素
type Viewport struct {
	ScrollLeft float64
	Width      float64
}

// AutoScroll 播放头离开可见窗口两侧的 margin 时返回让播放头居中的新滚动位置。
// 只是建议，不影响数据模型。
func (c *Coordinator) AutoScroll(v Viewport, m timeline.Mapper, marginPx float64) (float64, bool) {
	if v.Width <= 0 {
		return v.ScrollLeft, false
	}
	margin := math.Min(marginPx, v.Width/2)
	x := m.TimeToPixels(c.now)
	if x >= v.ScrollLeft+margin && x <= v.ScrollLeft+v.Width-margin {
		return v.ScrollLeft, false
	}
	return math.Max(0, x-v.Width/2), true
}
