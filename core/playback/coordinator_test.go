package playback

import (
	"testing"

	"Cutline/core/timeline"
	"Cutline/model"

	"github.com/stretchr/testify/assert"
)

func TestStateTransitions(t *testing.T) {
	c := New()
	assert.Equal(t, model.PlaybackStopped, c.State())

	c.Pause()
	assert.Equal(t, model.PlaybackStopped, c.State())

	c.Play(60)
	assert.Equal(t, model.PlaybackPlaying, c.State())
	c.Seek(12, 60)
	assert.Equal(t, model.PlaybackPlaying, c.State())

	c.Pause()
	assert.Equal(t, model.PlaybackPaused, c.State())
	assert.Equal(t, 12.0, c.Now())

	c.Stop()
	assert.Equal(t, model.PlaybackStopped, c.State())
	assert.Equal(t, 0.0, c.Now())
}

func TestSeekClamps(t *testing.T) {
	c := New()
	assert.Equal(t, 0.0, c.Seek(-4, 30))
	assert.Equal(t, 30.0, c.Seek(99, 30))
	assert.Equal(t, 7.5, c.Seek(7.5, 30))
}

func TestTickStopsAtEnd(t *testing.T) {
	c := New()
	c.Play(10)
	assert.True(t, c.Tick(9.9, 10))
	assert.False(t, c.Tick(10.2, 10))
	assert.Equal(t, model.PlaybackPaused, c.State())
	assert.Equal(t, 10.0, c.Now())

	// ticks are ignored unless playing
	assert.False(t, c.Tick(3, 10))
	assert.Equal(t, 10.0, c.Now())

	c.Play(10)
	assert.Equal(t, 0.0, c.Now())
}

func TestClamp(t *testing.T) {
	c := New()
	c.Seek(40, 60)
	assert.False(t, c.Clamp(50))
	assert.True(t, c.Clamp(30))
	assert.Equal(t, 30.0, c.Now())
}

func TestAutoScroll(t *testing.T) {
	c := New()
	m := timeline.NewMapper(50, 1)
	v := Viewport{ScrollLeft: 0, Width: 1000}

	c.Seek(10, 60) // 500px
	_, ok := c.AutoScroll(v, m, 80)
	assert.False(t, ok)

	c.Seek(19, 60) // 950px, inside the right margin
	left, ok := c.AutoScroll(v, m, 80)
	assert.True(t, ok)
	assert.Equal(t, 450.0, left)

	c.Seek(0, 60)
	left, ok = c.AutoScroll(Viewport{ScrollLeft: 400, Width: 1000}, m, 80)
	assert.True(t, ok)
	assert.Equal(t, 0.0, left)
}
