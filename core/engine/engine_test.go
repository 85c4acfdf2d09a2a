package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"Cutline/config"
	"Cutline/core/preview"
	"Cutline/core/timeline"
	"Cutline/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	info model.MediaInfo
	err  error
}

func (p fakeProber) Probe(ctx context.Context, sourceRef string) (model.MediaInfo, error) {
	return p.info, p.err
}

type fakeWaveform struct{}

func (fakeWaveform) GenerateWaveform(ctx context.Context, sourceRef string, span preview.Span) ([]float64, error) {
	return []float64{0.2, 0.8, 0.4}, nil
}

type fakeThumbs struct{}

func (fakeThumbs) GenerateThumbnails(ctx context.Context, sourceRef string, span preview.Span, count int) ([]model.Thumbnail, error) {
	out := make([]model.Thumbnail, count)
	for i := range out {
		out[i] = model.Thumbnail{Time: span.Duration * (float64(i) + 0.5) / float64(count), Image: []byte{0xff, 0xd8}}
	}
	return out, nil
}

func seqIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func testConfig() config.EngineConfig {
	cfg := config.DefaultEngine()
	cfg.PreviewWorkers = 2
	cfg.PreviewTimeout = 5 * time.Second
	cfg.ThumbnailCount = 4
	return cfg
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(testConfig(), Deps{
		Prober:      fakeProber{info: model.MediaInfo{Duration: 12, Width: 1920, Height: 1080, Format: "mov,mp4"}},
		Thumbnailer: fakeThumbs{},
		Waveform:    fakeWaveform{},
		NewID:       seqIDs(),
	})
	t.Cleanup(func() { e.Close() })
	return e
}

func addTrack(t *testing.T, e *Engine, kind model.TrackKind) string {
	t.Helper()
	tr, err := e.AddTrack(kind, "")
	require.NoError(t, err)
	return tr.ID
}

func addClip(t *testing.T, e *Engine, trackID string, start, dur float64) string {
	t.Helper()
	c, err := e.AddClip(trackID, model.Clip{SourceRef: "media/" + trackID + ".mp4", StartTime: start, Duration: dur})
	require.NoError(t, err)
	return c.ID
}

func clipIn(t *testing.T, snap model.Snapshot, id string) *model.Clip {
	t.Helper()
	for _, tr := range snap.Tracks {
		for _, c := range tr.Clips {
			if c.ID == id {
				return c
			}
		}
	}
	return nil
}

func waitCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSplitScenario(t *testing.T) {
	e := newTestEngine(t)
	video := addTrack(t, e, model.TrackKindVideo)
	clip := addClip(t, e, video, 0, 5)

	tail, err := e.SplitClip(clip, 2)
	require.NoError(t, err)
	assert.NotEqual(t, clip, tail)

	snap := e.Snapshot()
	require.Len(t, snap.Tracks, 1)
	require.Len(t, snap.Tracks[0].Clips, 2)
	head, second := snap.Tracks[0].Clips[0], snap.Tracks[0].Clips[1]
	assert.Equal(t, clip, head.ID)
	assert.Equal(t, 0.0, head.StartTime)
	assert.Equal(t, 2.0, head.Duration)
	assert.Equal(t, tail, second.ID)
	assert.Equal(t, 2.0, second.StartTime)
	assert.Equal(t, 3.0, second.Duration)
	assert.Equal(t, video, second.TrackID)
}

func TestRejectedMoveLeavesSnapshotUnchanged(t *testing.T) {
	e := newTestEngine(t)
	e.SetSnapping(false)
	video := addTrack(t, e, model.TrackKindVideo)
	a := addClip(t, e, video, 0, 5)
	addClip(t, e, video, 10, 5)

	before, err := json.Marshal(e.Snapshot())
	require.NoError(t, err)

	snap, err := e.MoveClip(a, 8)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrOverlap))

	got, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(got))

	after, err := json.Marshal(e.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestKeyframeSampleIsClipRelative(t *testing.T) {
	e := newTestEngine(t)
	video := addTrack(t, e, model.TrackKindVideo)
	clip := addClip(t, e, video, 10, 5)

	_, err := e.SetKeyframe(clip, model.PropertyOpacity, 1, 0.5, model.EasingLinear)
	require.NoError(t, err)
	_, err = e.SetKeyframe(clip, model.PropertyOpacity, 3, 1.0, model.EasingLinear)
	require.NoError(t, err)

	v, ok := e.SampleAt(clip, model.PropertyOpacity, 12)
	require.True(t, ok)
	assert.InDelta(t, 0.75, v, 1e-12)

	// 移动片段不改写关键帧
	e.SetSnapping(false)
	_, err = e.MoveClip(clip, 20)
	require.NoError(t, err)
	v, ok = e.SampleAt(clip, model.PropertyOpacity, 22)
	require.True(t, ok)
	assert.InDelta(t, 0.75, v, 1e-12)

	_, ok = e.SampleAt(clip, model.PropertyOpacity, 5)
	assert.False(t, ok)
}

func TestSetKeyframeValidation(t *testing.T) {
	e := newTestEngine(t)
	video := addTrack(t, e, model.TrackKindVideo)
	clip := addClip(t, e, video, 0, 5)

	_, err := e.SetKeyframe(clip, model.PropertyScale, 6, 1, model.EasingLinear)
	assert.True(t, errors.Is(err, model.ErrInvalidRange))
	_, err = e.SetKeyframe("missing", model.PropertyScale, 1, 1, model.EasingLinear)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	_, err = e.SetKeyframe(clip, model.Property("skew"), 1, 1, model.EasingLinear)
	assert.True(t, errors.Is(err, model.ErrInvalidRange))

	kf, err := e.SetKeyframe(clip, model.PropertyScale, 5, 2, "")
	require.NoError(t, err)
	assert.Equal(t, model.EasingLinear, kf.Easing)
	assert.Equal(t, video, kf.TrackID)

	_, err = e.RemoveKeyframe(kf.ID)
	require.NoError(t, err)
	assert.Empty(t, e.Keyframes(clip, ""))
}

func TestKeyframeEditsRespectTrackLock(t *testing.T) {
	e := newTestEngine(t)
	video := addTrack(t, e, model.TrackKindVideo)
	clip := addClip(t, e, video, 0, 5)

	kf, err := e.SetKeyframe(clip, model.PropertyOpacity, 1, 0.5, model.EasingLinear)
	require.NoError(t, err)

	_, err = e.SetTrackLocked(video, true)
	require.NoError(t, err)
	version := e.Snapshot().Version

	_, err = e.SetKeyframe(clip, model.PropertyOpacity, 2, 1, model.EasingLinear)
	assert.True(t, errors.Is(err, model.ErrTrackLocked))
	_, err = e.RemoveKeyframe(kf.ID)
	assert.True(t, errors.Is(err, model.ErrTrackLocked))
	assert.Equal(t, version, e.Snapshot().Version)
	assert.Len(t, e.Keyframes(clip, model.PropertyOpacity), 1)

	_, err = e.SetTrackLocked(video, false)
	require.NoError(t, err)
	_, err = e.RemoveKeyframe(kf.ID)
	require.NoError(t, err)
	_, err = e.RemoveKeyframe(kf.ID)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestSplitPartitionsKeyframes(t *testing.T) {
	e := newTestEngine(t)
	video := addTrack(t, e, model.TrackKindVideo)
	clip := addClip(t, e, video, 0, 5)
	for _, at := range []float64{0.5, 1.5, 3, 4.5} {
		_, err := e.SetKeyframe(clip, model.PropertyRotation, at, at*10, model.EasingLinear)
		require.NoError(t, err)
	}

	tail, err := e.SplitClip(clip, 2)
	require.NoError(t, err)

	head := e.Keyframes(clip, model.PropertyRotation)
	tailKfs := e.Keyframes(tail, model.PropertyRotation)
	require.NotEmpty(t, head)
	require.NotEmpty(t, tailKfs)
	for _, kf := range head {
		assert.LessOrEqual(t, kf.Time, 2.0+1e-9)
	}
	for _, kf := range tailKfs {
		assert.Equal(t, tail, kf.ClipID)
		assert.LessOrEqual(t, kf.Time, 3.0+1e-9)
	}
	// 分割前后在同一绝对时间采样得到相同的值
	v, ok := e.SampleAt(tail, model.PropertyRotation, 3)
	require.True(t, ok)
	assert.InDelta(t, 30, v, 1e-9)
	v, ok = e.SampleAt(clip, model.PropertyRotation, 1)
	require.True(t, ok)
	assert.InDelta(t, 10, v, 1e-9)
}

func TestDeleteClipCascades(t *testing.T) {
	e := newTestEngine(t)
	audio := addTrack(t, e, model.TrackKindAudio)
	clip := addClip(t, e, audio, 0, 4)
	_, err := e.SetKeyframe(clip, model.PropertyVolume, 1, 80, model.EasingEaseIn)
	require.NoError(t, err)
	_, err = e.Select([]string{clip}, false)
	require.NoError(t, err)

	asset, err := e.WaitPreview(waitCtx(t), clip, model.PreviewWaveform)
	require.NoError(t, err)
	assert.Equal(t, model.PreviewReady, asset.Status)
	assert.Equal(t, []float64{0.2, 0.8, 0.4}, asset.Data.Peaks)

	snap, err := e.DeleteClip(clip)
	require.NoError(t, err)
	assert.Nil(t, clipIn(t, snap, clip))
	assert.Empty(t, snap.Selection)
	assert.Empty(t, snap.Keyframes)
	_, ok := e.Preview(clip, model.PreviewWaveform)
	assert.False(t, ok)
	assert.Empty(t, e.Previews(clip))

	_, err = e.DeleteClip(clip)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestRemoveTrackCascades(t *testing.T) {
	e := newTestEngine(t)
	video := addTrack(t, e, model.TrackKindVideo)
	audio := addTrack(t, e, model.TrackKindAudio)
	clip := addClip(t, e, video, 0, 3)
	_, err := e.SetKeyframe(clip, model.PropertyOpacity, 0, 1, model.EasingLinear)
	require.NoError(t, err)
	_, err = e.LinkTracks(video, audio, model.SyncPosition)
	require.NoError(t, err)

	_, err = e.SetTrackLocked(video, true)
	require.NoError(t, err)
	_, err = e.RemoveTrack(video)
	assert.True(t, errors.Is(err, model.ErrTrackLocked))

	_, err = e.SetTrackLocked(video, false)
	require.NoError(t, err)
	snap, err := e.RemoveTrack(video)
	require.NoError(t, err)
	require.Len(t, snap.Tracks, 1)
	assert.Equal(t, audio, snap.Tracks[0].ID)
	assert.Equal(t, 0, snap.Tracks[0].Order)
	assert.Empty(t, snap.Links)
	assert.Empty(t, snap.Keyframes)
	require.Len(t, snap.Mixer, 1)
	assert.Equal(t, audio, snap.Mixer[0].TrackID)
}

func TestVolumeLinkMirrorsGainAndMute(t *testing.T) {
	e := newTestEngine(t)
	a := addTrack(t, e, model.TrackKindAudio)
	b := addTrack(t, e, model.TrackKindAudio)
	c := addTrack(t, e, model.TrackKindAudio)
	other := addTrack(t, e, model.TrackKindAudio)
	_, err := e.LinkTracks(a, b, model.SyncVolume)
	require.NoError(t, err)
	_, err = e.LinkTracks(b, c, model.SyncVolume)
	require.NoError(t, err)

	snap, err := e.SetGain(a, 40)
	require.NoError(t, err)
	for _, entry := range snap.Mixer {
		want := 40.0
		if entry.TrackID == other {
			want = 100
		}
		assert.Equal(t, want, entry.Gain, entry.TrackID)
	}
	for _, tr := range snap.Tracks {
		if tr.ID != other {
			assert.Equal(t, 40.0, tr.VolumeOrOpacity)
		}
	}

	snap, err = e.SetGain(c, 150)
	require.NoError(t, err)
	assert.Equal(t, 100.0, snap.Mixer[0].Gain)

	snap, err = e.ToggleMuted(b)
	require.NoError(t, err)
	for _, entry := range snap.Mixer {
		assert.Equal(t, entry.TrackID != other, entry.Muted, entry.TrackID)
	}
	for _, tr := range snap.Tracks {
		assert.Equal(t, tr.ID != other, tr.Muted, tr.ID)
	}

	g, err := e.EffectiveGain(a)
	require.NoError(t, err)
	assert.Equal(t, 0.0, g)
	g, err = e.EffectiveGain(other)
	require.NoError(t, err)
	assert.Equal(t, 100.0, g)

	_, err = e.SetMasterGain(50)
	require.NoError(t, err)
	g, err = e.EffectiveGain(other)
	require.NoError(t, err)
	assert.Equal(t, 50.0, g)
}

func TestPositionLinkMovesPairedClip(t *testing.T) {
	e := newTestEngine(t)
	e.SetSnapping(false)
	video := addTrack(t, e, model.TrackKindVideo)
	audio := addTrack(t, e, model.TrackKindAudio)
	v := addClip(t, e, video, 0, 5)
	a := addClip(t, e, audio, 0, 5)
	_, err := e.LinkTracks(video, audio, model.SyncPosition)
	require.NoError(t, err)

	snap, err := e.MoveClip(v, 6)
	require.NoError(t, err)
	assert.Equal(t, 6.0, clipIn(t, snap, v).StartTime)
	assert.Equal(t, 6.0, clipIn(t, snap, a).StartTime)

	// 联动片段无法移动时整体回滚
	addClip(t, e, audio, 14, 2)
	snap, err = e.MoveClip(v, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrOverlap))
	assert.Equal(t, 6.0, clipIn(t, snap, v).StartTime)
	assert.Equal(t, 6.0, clipIn(t, snap, a).StartTime)
}

func TestEffectsLinkMirrorsChain(t *testing.T) {
	e := newTestEngine(t)
	a := addTrack(t, e, model.TrackKindAudio)
	b := addTrack(t, e, model.TrackKindAudio)
	_, err := e.LinkTracks(a, b, model.SyncEffects)
	require.NoError(t, err)

	rev, err := e.AddEffect(a, model.EffectReverb, map[string]float64{"roomSize": 0.5})
	require.NoError(t, err)
	_, err = e.AddEffect(a, model.EffectEcho, map[string]float64{"delay": 0.3})
	require.NoError(t, err)

	_, err = e.UpdateEffect(a, rev.ID, map[string]float64{"wetLevel": 0.2})
	require.NoError(t, err)
	snap, err := e.MoveEffect(a, rev.ID, 1)
	require.NoError(t, err)

	require.Len(t, snap.Mixer, 2)
	for _, entry := range snap.Mixer {
		require.Len(t, entry.EffectChain, 2, entry.TrackID)
		assert.Equal(t, model.EffectEcho, entry.EffectChain[0].Type)
		assert.Equal(t, model.EffectReverb, entry.EffectChain[1].Type)
		assert.Equal(t, map[string]float64{"roomSize": 0.5, "wetLevel": 0.2}, entry.EffectChain[1].Params)
	}
	assert.NotEqual(t, snap.Mixer[0].EffectChain[1].ID, snap.Mixer[1].EffectChain[1].ID)

	snap, err = e.RemoveEffect(a, rev.ID)
	require.NoError(t, err)
	for _, entry := range snap.Mixer {
		require.Len(t, entry.EffectChain, 1)
		assert.Equal(t, model.EffectEcho, entry.EffectChain[0].Type)
	}

	_, err = e.AddEffect(a, model.EffectReverb, map[string]float64{"pitch": 1})
	assert.True(t, errors.Is(err, model.ErrInvalidRange))
}

func TestSubscribeDeliversLatestSnapshot(t *testing.T) {
	e := newTestEngine(t)
	ch, cancel := e.Subscribe()
	defer cancel()

	first := <-ch
	assert.Equal(t, uint64(0), first.Version)

	video := addTrack(t, e, model.TrackKindVideo)
	addClip(t, e, video, 0, 2)
	_, err := e.Seek(1)
	require.NoError(t, err)

	got := <-ch
	assert.Equal(t, e.Snapshot().Version, got.Version)
	assert.Equal(t, 1.0, got.CurrentTime)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected snapshot version %d", extra.Version)
	default:
	}

	// 失败的修改不发布
	_, err = e.MoveClip("missing", 1)
	require.Error(t, err)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected snapshot version %d", extra.Version)
	default:
	}

	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestPlayheadClampsWhenTimelineShrinks(t *testing.T) {
	e := newTestEngine(t)
	video := addTrack(t, e, model.TrackKindVideo)
	clip := addClip(t, e, video, 40, 10)

	snap, err := e.Seek(45)
	require.NoError(t, err)
	assert.Equal(t, 60.0, snap.Duration)
	assert.Equal(t, 45.0, snap.CurrentTime)

	snap, err = e.SetConfiguredDuration(10)
	require.NoError(t, err)
	assert.Equal(t, 50.0, snap.Duration)

	snap, err = e.DeleteClip(clip)
	require.NoError(t, err)
	assert.Equal(t, 30.0, snap.Duration)
	assert.Equal(t, 30.0, snap.CurrentTime)

	snap, err = e.Seek(-3)
	require.NoError(t, err)
	assert.Equal(t, 0.0, snap.CurrentTime)
}

func TestTransport(t *testing.T) {
	e := newTestEngine(t)

	snap, err := e.Play()
	require.NoError(t, err)
	assert.Equal(t, model.PlaybackPlaying, snap.Playback)

	playing, err := e.Tick(10)
	require.NoError(t, err)
	assert.True(t, playing)
	playing, err = e.Tick(100)
	require.NoError(t, err)
	assert.False(t, playing)
	snap = e.Snapshot()
	assert.Equal(t, model.PlaybackPaused, snap.Playback)
	assert.Equal(t, snap.Duration, snap.CurrentTime)

	snap, err = e.Stop()
	require.NoError(t, err)
	assert.Equal(t, model.PlaybackStopped, snap.Playback)
	assert.Equal(t, 0.0, snap.CurrentTime)

	snap, err = e.SetZoom(9)
	require.NoError(t, err)
	assert.Equal(t, timeline.MaxZoom, snap.Zoom)
	snap, err = e.ZoomBy(-100)
	require.NoError(t, err)
	assert.Equal(t, timeline.MinZoom, snap.Zoom)

	assert.Equal(t, "01:05:15", e.FormatTime(65.5))
}

func TestTickWhileIdlePublishesNothing(t *testing.T) {
	e := newTestEngine(t)
	addClip(t, e, addTrack(t, e, model.TrackKindVideo), 0, 5)

	ch, cancel := e.Subscribe()
	defer cancel()
	<-ch
	version := e.Snapshot().Version

	for i := 0; i < 3; i++ {
		playing, err := e.Tick(float64(i))
		require.NoError(t, err)
		assert.False(t, playing)
	}
	assert.Equal(t, version, e.Snapshot().Version)
	assert.Equal(t, 0.0, e.Snapshot().CurrentTime)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected snapshot version %d", extra.Version)
	default:
	}
}

func TestSnappingToPlayhead(t *testing.T) {
	e := newTestEngine(t)
	video := addTrack(t, e, model.TrackKindVideo)
	clip := addClip(t, e, video, 0, 2)
	_, err := e.Seek(5)
	require.NoError(t, err)

	snap, err := e.MoveClip(clip, 5.05)
	require.NoError(t, err)
	assert.Equal(t, 5.0, clipIn(t, snap, clip).StartTime)

	e.SetSnapping(false)
	snap, err = e.MoveClip(clip, 7.05)
	require.NoError(t, err)
	assert.Equal(t, 7.05, clipIn(t, snap, clip).StartTime)
}

func TestSelection(t *testing.T) {
	e := newTestEngine(t)
	video := addTrack(t, e, model.TrackKindVideo)
	a := addClip(t, e, video, 0, 1)
	b := addClip(t, e, video, 2, 1)
	c := addClip(t, e, video, 4, 1)

	_, err := e.Select([]string{a, "missing"}, false)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	_, err = e.Select([]string{a}, false)
	require.NoError(t, err)
	snap, err := e.Select([]string{b}, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b}, snap.Selection)

	snap, err = e.DeleteSelection()
	require.NoError(t, err)
	assert.Empty(t, snap.Selection)
	require.Len(t, snap.Tracks[0].Clips, 1)
	assert.Equal(t, c, snap.Tracks[0].Clips[0].ID)

	snap, err = e.Select([]string{c}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{c}, snap.Selection)
	snap, err = e.ClearSelection()
	require.NoError(t, err)
	assert.Empty(t, snap.Selection)
}

func TestAddClipFromSource(t *testing.T) {
	e := newTestEngine(t)
	video := addTrack(t, e, model.TrackKindVideo)

	clip, err := e.AddClipFromSource(context.Background(), video, "file:///media/intro.mp4", 3)
	require.NoError(t, err)
	assert.Equal(t, "intro.mp4", clip.Name)
	assert.Equal(t, 12.0, clip.Duration)
	assert.Equal(t, 12.0, clip.Metadata[timeline.MetaSourceDuration])
	assert.Equal(t, 1920, clip.Metadata["width"])

	asset, err := e.WaitPreview(waitCtx(t), clip.ID, model.PreviewThumbnails)
	require.NoError(t, err)
	assert.Len(t, asset.Data.Thumbnails, 4)

	// 源时长已知时不能向右拉长超过源媒体
	_, err = e.TrimClip(clip.ID, timeline.EdgeEnd, 20)
	assert.True(t, errors.Is(err, model.ErrInvalidRange))

	failing := New(testConfig(), Deps{Prober: fakeProber{err: errors.New("no such file")}, NewID: seqIDs()})
	defer failing.Close()
	tr, err := failing.AddTrack(model.TrackKindVideo, "")
	require.NoError(t, err)
	_, err = failing.AddClipFromSource(context.Background(), tr.ID, "missing.mp4", 0)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestTrimRefreshesPreview(t *testing.T) {
	e := newTestEngine(t)
	audio := addTrack(t, e, model.TrackKindAudio)
	clip := addClip(t, e, audio, 0, 4)
	_, err := e.WaitPreview(waitCtx(t), clip, model.PreviewWaveform)
	require.NoError(t, err)
	before := e.previews.Generation(clip, model.PreviewWaveform)

	_, err = e.TrimClip(clip, timeline.EdgeEnd, 3)
	require.NoError(t, err)
	assert.Greater(t, e.previews.Generation(clip, model.PreviewWaveform), before)

	asset, err := e.WaitPreview(waitCtx(t), clip, model.PreviewWaveform)
	require.NoError(t, err)
	assert.Equal(t, model.PreviewReady, asset.Status)

	assert.Equal(t, 1, e.InvalidateSource("media/"+audio+".mp4"))
	assert.Equal(t, 0, e.InvalidateSource("media/other.mp4"))
}

func TestDuplicateAndMoveToTrack(t *testing.T) {
	e := newTestEngine(t)
	e.SetSnapping(false)
	v1 := addTrack(t, e, model.TrackKindVideo)
	v2 := addTrack(t, e, model.TrackKindVideo)
	audio := addTrack(t, e, model.TrackKindAudio)
	clip := addClip(t, e, v1, 0, 2)
	_, err := e.SetKeyframe(clip, model.PropertyScale, 1, 2, model.EasingBounce)
	require.NoError(t, err)

	dup, err := e.DuplicateClip(clip, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, dup.StartTime)
	require.Len(t, e.Keyframes(dup.ID, model.PropertyScale), 1)

	snap, err := e.MoveClipToTrack(dup.ID, v2, 0)
	require.NoError(t, err)
	assert.Equal(t, v2, clipIn(t, snap, dup.ID).TrackID)
	assert.Equal(t, v2, e.Keyframes(dup.ID, model.PropertyScale)[0].TrackID)

	_, err = e.MoveClipToTrack(dup.ID, audio, 0)
	assert.True(t, errors.Is(err, model.ErrInvalidRange))
}

func TestExportRestoreRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	video := addTrack(t, e, model.TrackKindVideo)
	audio := addTrack(t, e, model.TrackKindAudio)
	v := addClip(t, e, video, 1, 4)
	addClip(t, e, audio, 0, 6)
	_, err := e.SetKeyframe(v, model.PropertyOpacity, 2, 0.3, model.EasingEaseOut)
	require.NoError(t, err)
	_, err = e.AddEffect(audio, model.EffectCompressor, map[string]float64{"ratio": 4})
	require.NoError(t, err)
	_, err = e.SetGain(audio, 70)
	require.NoError(t, err)
	_, err = e.LinkTracks(video, audio, model.SyncPosition)
	require.NoError(t, err)
	_, err = e.AddMarker(3, "cue")
	require.NoError(t, err)
	_, err = e.SetTrackLocked(video, true)
	require.NoError(t, err)
	_, err = e.Seek(2.5)
	require.NoError(t, err)
	_, err = e.SetZoom(2)
	require.NoError(t, err)

	exported := e.Export()
	data, err := json.Marshal(exported)
	require.NoError(t, err)

	other := newTestEngine(t)
	snap, err := other.Restore(exported)
	require.NoError(t, err)
	assert.Equal(t, 2.5, snap.CurrentTime)
	assert.Equal(t, 2.0, snap.Zoom)

	again, err := json.Marshal(other.Export())
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))

	// 锁定状态在恢复后仍然生效
	_, err = other.MoveClip(v, 10)
	assert.True(t, errors.Is(err, model.ErrTrackLocked))
}

func TestRestoreRejectsInvalidProject(t *testing.T) {
	e := newTestEngine(t)
	video := addTrack(t, e, model.TrackKindVideo)
	addClip(t, e, video, 0, 1)
	before := e.Export()

	bad := model.Project{
		Tracks: []*model.Track{{
			ID: "t1", Kind: model.TrackKindVideo, Visible: true, VolumeOrOpacity: 100,
			Clips: []*model.Clip{
				{ID: "c1", StartTime: 0, Duration: 3},
				{ID: "c2", StartTime: 2, Duration: 3},
			},
		}},
	}
	_, err := e.Restore(bad)
	assert.True(t, errors.Is(err, model.ErrOverlap))

	orphan := model.Project{
		Tracks:    []*model.Track{{ID: "t1", Kind: model.TrackKindVideo, Clips: []*model.Clip{{ID: "c1", Duration: 3}}}},
		Keyframes: []model.Keyframe{{ID: "k1", ClipID: "gone", Property: model.PropertyScale, Time: 0, Value: 1}},
	}
	_, err = e.Restore(orphan)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	assert.Equal(t, before, e.Export())
}

func TestCloseRejectsPreviewRequests(t *testing.T) {
	e := newTestEngine(t)
	video := addTrack(t, e, model.TrackKindVideo)
	clip := addClip(t, e, video, 0, 1)
	require.NoError(t, e.Close())

	_, err := e.RequestPreview(clip, model.PreviewThumbnails)
	assert.ErrorIs(t, err, preview.ErrClosed)
}
