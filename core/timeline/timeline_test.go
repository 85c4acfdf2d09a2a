package timeline

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"Cutline/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func newTestTimeline(t *testing.T, trackIDs ...string) *Timeline {
	t.Helper()
	tl := New(Config{MinClipDuration: 0.1, MinTimelineDuration: 30}, 60)
	tl.SetIDGenerator(seqIDs("gen"))
	for _, id := range trackIDs {
		require.NoError(t, tl.AddTrack(&model.Track{ID: id, Kind: model.TrackKindVideo, Name: id, Visible: true, VolumeOrOpacity: 100}))
	}
	return tl
}

func addClip(t *testing.T, tl *Timeline, trackID, id string, start, dur float64) {
	t.Helper()
	require.NoError(t, tl.AddClip(&model.Clip{ID: id, TrackID: trackID, SourceRef: "media://" + id, StartTime: start, Duration: dur}))
}

func TestMapperRoundTrip(t *testing.T) {
	for _, zoom := range []float64{0.1, 0.25, 1, 2.5, 5} {
		m := NewMapper(50, zoom)
		for _, v := range []float64{0, 0.001, 1, 3.3333, 59.97, 3600} {
			assert.InDelta(t, v, m.PixelsToTime(m.TimeToPixels(v)), 1e-9, "zoom=%v t=%v", zoom, v)
		}
	}
}

func TestClampZoom(t *testing.T) {
	assert.Equal(t, MinZoom, NewMapper(50, 0.01).Zoom())
	assert.Equal(t, MaxZoom, NewMapper(50, 12).Zoom())
	assert.Equal(t, 1.0, ClampZoom(math.NaN()))
	assert.Equal(t, 100.0, NewMapper(50, 2).PixelsPerSecond())
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatTime(0, 30))
	assert.Equal(t, "01:05:15", FormatTime(65.5, 30))
	assert.Equal(t, "00:01:00", FormatTime(1, 30))
	assert.Equal(t, "00:00:00", FormatTime(-3, 30))
}

func TestSnap(t *testing.T) {
	tl := newTestTimeline(t, "video-1")
	addClip(t, tl, "video-1", "a", 5, 1)
	addClip(t, tl, "video-1", "b", 10, 1)

	// 5px at zoom 0.5 covers 0.2s
	m := NewMapper(50, 0.5)
	s := Snapper{ThresholdPx: 5}
	targets := []float64{5, 10}

	got, snapped := s.Snap(5.1, targets, m)
	assert.True(t, snapped)
	assert.Equal(t, 5.0, got)

	got, snapped = s.Snap(7.5, targets, m)
	assert.False(t, snapped)
	assert.Equal(t, 7.5, got)

	// equidistant inside the threshold picks the earlier target
	got, _ = Snapper{ThresholdPx: 500}.Snap(7.5, targets, m)
	assert.Equal(t, 5.0, got)
}

func TestSnapTargetsExcludeDraggedClip(t *testing.T) {
	tl := newTestTimeline(t, "v1", "v2")
	addClip(t, tl, "v1", "a", 0, 2)
	addClip(t, tl, "v2", "b", 4, 2)
	_, err := tl.AddMarker(model.Marker{Time: 9})
	require.NoError(t, err)

	assert.Equal(t, []float64{1.5, 4, 6, 9}, tl.SnapTargets("a", 1.5))
}

func TestMoveClipSnapsToNeighbour(t *testing.T) {
	tl := newTestTimeline(t, "v1", "v2")
	addClip(t, tl, "v1", "a", 0, 5)
	addClip(t, tl, "v2", "b", 0, 2)

	snap := tl.NewSnapFunc(Snapper{ThresholdPx: 5}, NewMapper(50, 1), 0)
	res, err := tl.MoveClip("b", 5.05, snap)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.NewStart)
	assert.Equal(t, 5.0, res.Delta())
}

func TestMoveClipSnapsTrailingEdge(t *testing.T) {
	tl := newTestTimeline(t, "v1", "v2")
	addClip(t, tl, "v1", "a", 0, 5)
	addClip(t, tl, "v1", "c", 10, 2)
	addClip(t, tl, "v2", "b", 20, 2)

	snap := tl.NewSnapFunc(Snapper{ThresholdPx: 10}, NewMapper(50, 1), 0)
	res, err := tl.MoveClip("b", 2.95, snap)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, res.NewStart, 1e-9)

	// 两端距离相同，取更早的起点
	addClip(t, tl, "v2", "d", 30, 4.8)
	res, err = tl.MoveClip("d", 5.1, snap)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.NewStart)

	res, err = tl.MoveClip("d", 5.25, snap)
	require.NoError(t, err)
	assert.InDelta(t, 5.2, res.NewStart, 1e-9)
}

func TestSplitScenario(t *testing.T) {
	tl := newTestTimeline(t, "video-1")
	addClip(t, tl, "video-1", "clip", 0, 5)

	res, err := tl.SplitClip("clip", 2)
	require.NoError(t, err)
	assert.Equal(t, "clip", res.HeadID)
	assert.Equal(t, "gen-1", res.TailID)

	track, err := tl.Track("video-1")
	require.NoError(t, err)
	require.Len(t, track.Clips, 2)
	head, tail := track.Clips[0], track.Clips[1]
	assert.Equal(t, [2]float64{0, 2}, [2]float64{head.StartTime, head.End()})
	assert.Equal(t, [2]float64{2, 5}, [2]float64{tail.StartTime, tail.End()})
	assert.Equal(t, "video-1", tail.TrackID)
	assert.Equal(t, head.SourceRef, tail.SourceRef)
	assert.Equal(t, 2.0, tail.SourceOffset)
	assert.NotEqual(t, head.ID, tail.ID)
}

func TestSplitReconstructsRange(t *testing.T) {
	tl := newTestTimeline(t, "v1")
	addClip(t, tl, "v1", "c", 1.25, 3.7)
	_, err := tl.SplitClip("c", 2.9)
	require.NoError(t, err)

	track, _ := tl.Track("v1")
	assert.Equal(t, 1.25, track.Clips[0].StartTime)
	assert.Equal(t, 2.9, track.Clips[1].StartTime)
	assert.InDelta(t, track.Clips[0].End(), track.Clips[1].StartTime, 1e-12)
	assert.InDelta(t, 1.25+3.7, track.Clips[1].End(), 1e-12)
}

func TestSplitRejectsBoundaryAndTinyParts(t *testing.T) {
	tl := newTestTimeline(t, "v1")
	addClip(t, tl, "v1", "c", 0, 5)

	for _, at := range []float64{0, 5, -1, 7, 0.05, 4.95} {
		_, err := tl.SplitClip("c", at)
		assert.ErrorIs(t, err, model.ErrInvalidRange, "at=%v", at)
	}
	_, err := tl.SplitClip("missing", 1)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMoveOverlapLeavesTrackUnchanged(t *testing.T) {
	tl := newTestTimeline(t, "v1")
	addClip(t, tl, "v1", "a", 0, 5)
	addClip(t, tl, "v1", "b", 6, 3)

	before, err := json.Marshal(tl.Tracks())
	require.NoError(t, err)

	_, err = tl.MoveClip("b", 3, nil)
	require.ErrorIs(t, err, model.ErrOverlap)

	after, err := json.Marshal(tl.Tracks())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestMoveClampsNegativeStart(t *testing.T) {
	tl := newTestTimeline(t, "v1")
	addClip(t, tl, "v1", "a", 4, 1)
	res, err := tl.MoveClip("a", -3, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.NewStart)
}

func TestAdjacentClipsDoNotOverlap(t *testing.T) {
	tl := newTestTimeline(t, "v1")
	addClip(t, tl, "v1", "a", 0, 5)
	addClip(t, tl, "v1", "b", 5, 5)

	err := tl.AddClip(&model.Clip{ID: "c", TrackID: "v1", StartTime: 4.9, Duration: 1})
	assert.ErrorIs(t, err, model.ErrOverlap)
}

func TestLockedTrackRejectsEdits(t *testing.T) {
	tl := newTestTimeline(t, "v1")
	addClip(t, tl, "v1", "a", 0, 5)
	require.NoError(t, tl.SetLocked("v1", true))

	_, err := tl.MoveClip("a", 10, nil)
	assert.ErrorIs(t, err, model.ErrTrackLocked)
	_, err = tl.TrimClip("a", EdgeEnd, 3, nil)
	assert.ErrorIs(t, err, model.ErrTrackLocked)
	_, err = tl.DeleteClip("a")
	assert.ErrorIs(t, err, model.ErrTrackLocked)
	err = tl.AddClip(&model.Clip{TrackID: "v1", StartTime: 20, Duration: 1})
	assert.ErrorIs(t, err, model.ErrTrackLocked)
}

func TestAddClipValidation(t *testing.T) {
	tl := newTestTimeline(t, "v1")
	assert.ErrorIs(t, tl.AddClip(&model.Clip{TrackID: "v1", StartTime: -1, Duration: 1}), model.ErrInvalidRange)
	assert.ErrorIs(t, tl.AddClip(&model.Clip{TrackID: "v1", StartTime: 0, Duration: 0.05}), model.ErrInvalidRange)
	assert.ErrorIs(t, tl.AddClip(&model.Clip{TrackID: "nope", StartTime: 0, Duration: 1}), model.ErrNotFound)
	assert.NoError(t, tl.AddClip(&model.Clip{TrackID: "v1", StartTime: 0, Duration: 0.1}))
}

func TestTrimClip(t *testing.T) {
	tl := newTestTimeline(t, "v1")
	addClip(t, tl, "v1", "a", 0, 5)
	addClip(t, tl, "v1", "b", 10, 5)

	res, err := tl.TrimClip("b", EdgeStart, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, -2.0, res.StartShift)
	assert.Equal(t, 7.0, res.NewDuration)

	clip, _ := tl.Clip("b")
	assert.Equal(t, 0.0, clip.SourceOffset)

	_, err = tl.TrimClip("b", EdgeStart, 4, nil)
	assert.ErrorIs(t, err, model.ErrOverlap)

	_, err = tl.TrimClip("a", EdgeEnd, 0.05, nil)
	assert.ErrorIs(t, err, model.ErrInvalidRange)

	res, err = tl.TrimClip("a", EdgeEnd, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.NewDuration)
	assert.Equal(t, 0.0, res.StartShift)
}

func TestTrimRespectsSourceBounds(t *testing.T) {
	tl := newTestTimeline(t, "v1")
	require.NoError(t, tl.AddClip(&model.Clip{
		ID: "a", TrackID: "v1", StartTime: 10, Duration: 4, SourceOffset: 1,
		Metadata: map[string]any{MetaSourceDuration: 6.0},
	}))

	_, err := tl.TrimClip("a", EdgeEnd, 16, nil)
	assert.ErrorIs(t, err, model.ErrInvalidRange)
	_, err = tl.TrimClip("a", EdgeStart, 8, nil)
	assert.ErrorIs(t, err, model.ErrInvalidRange)

	res, err := tl.TrimClip("a", EdgeStart, 9, nil)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.NewDuration)
	clip, _ := tl.Clip("a")
	assert.Equal(t, 0.0, clip.SourceOffset)
}

func TestDuplicateClip(t *testing.T) {
	tl := newTestTimeline(t, "v1")
	addClip(t, tl, "v1", "a", 0, 2)

	dup, err := tl.DuplicateClip("a", nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, dup.StartTime)
	assert.Equal(t, "media://a", dup.SourceRef)

	at := 3.0
	_, err = tl.DuplicateClip("a", &at)
	assert.ErrorIs(t, err, model.ErrOverlap)
}

func TestMoveClipToTrack(t *testing.T) {
	tl := newTestTimeline(t, "v1", "v2")
	require.NoError(t, tl.AddTrack(&model.Track{ID: "a1", Kind: model.TrackKindAudio}))
	addClip(t, tl, "v1", "a", 0, 2)

	_, err := tl.MoveClipToTrack("a", "a1", 0, nil)
	assert.ErrorIs(t, err, model.ErrInvalidRange)

	res, err := tl.MoveClipToTrack("a", "v2", 4, nil)
	require.NoError(t, err)
	assert.Equal(t, "v2", res.ToTrackID)
	clip, _ := tl.Clip("a")
	assert.Equal(t, "v2", clip.TrackID)
	v1, _ := tl.Track("v1")
	assert.Empty(t, v1.Clips)
}

func TestDurationIsDerived(t *testing.T) {
	tl := newTestTimeline(t, "v1")
	assert.Equal(t, 60.0, tl.Duration())
	addClip(t, tl, "v1", "a", 70, 5)
	assert.Equal(t, 75.0, tl.Duration())
	require.NoError(t, tl.SetConfiguredDuration(0))
	assert.Equal(t, 75.0, tl.Duration())
	_, err := tl.DeleteClip("a")
	require.NoError(t, err)
	assert.Equal(t, 30.0, tl.Duration())
}

func TestTrackOrderAndLinks(t *testing.T) {
	tl := newTestTimeline(t, "a", "b", "c")
	require.NoError(t, tl.ReorderTrack("c", 0))
	assert.Equal(t, []string{"c", "a", "b"}, tl.TrackIDs())

	require.NoError(t, tl.Link("b", "a", model.SyncVolume))
	require.NoError(t, tl.Link("a", "b", model.SyncVolume))
	assert.Len(t, tl.Links(), 1)
	assert.Equal(t, "a", tl.Links()[0].TrackA)
	assert.Equal(t, []string{"b"}, tl.Linked("a", model.SyncVolume))
	assert.ErrorIs(t, tl.Link("a", "a", model.SyncVolume), model.ErrInvalidRange)

	_, err := tl.RemoveTrack("b")
	require.NoError(t, err)
	assert.Empty(t, tl.Links())
	assert.Equal(t, []string{"c", "a"}, tl.TrackIDs())
	tracks := tl.Tracks()
	assert.Equal(t, 0, tracks[0].Order)
	assert.Equal(t, 1, tracks[1].Order)
}

func TestRestoreValidates(t *testing.T) {
	tracks := []*model.Track{{
		ID: "v1", Kind: model.TrackKindVideo, Locked: true,
		Clips: []*model.Clip{{ID: "a", StartTime: 0, Duration: 5}, {ID: "b", StartTime: 4, Duration: 2}},
	}}
	_, err := Restore(Config{MinClipDuration: 0.1}, 60, tracks, nil, nil)
	assert.ErrorIs(t, err, model.ErrOverlap)

	tracks[0].Clips[1].StartTime = 5
	tl, err := Restore(Config{MinClipDuration: 0.1}, 60, tracks, nil, []model.Marker{{ID: "m", Time: 3}})
	require.NoError(t, err)
	track, _ := tl.Track("v1")
	assert.True(t, track.Locked)
	assert.Len(t, track.Clips, 2)
	assert.Len(t, tl.Markers(), 1)
}

func TestSelectionPrune(t *testing.T) {
	s := NewSelection()
	s.Set([]string{"b", "a"}, false)
	s.Set([]string{"c"}, true)
	assert.Equal(t, []string{"a", "b", "c"}, s.IDs())
	s.Prune(func(id string) bool { return id != "b" })
	assert.Equal(t, []string{"a", "c"}, s.IDs())
	s.Set([]string{"z"}, false)
	assert.Equal(t, []string{"z"}, s.IDs())
}

// Random edit sequences must never leave overlapping clips behind.
func TestRandomEditsKeepClipsDisjoint(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tl := newTestTimeline(t, "v1", "v2")
	tracks := []string{"v1", "v2"}

	for i := 0; i < 2000; i++ {
		var ids []string
		for _, tr := range tl.Tracks() {
			for _, c := range tr.Clips {
				ids = append(ids, c.ID)
			}
		}
		pick := func() string {
			if len(ids) == 0 {
				return "none"
			}
			return ids[rng.Intn(len(ids))]
		}
		switch rng.Intn(5) {
		case 0:
			_ = tl.AddClip(&model.Clip{TrackID: tracks[rng.Intn(2)], StartTime: rng.Float64() * 50, Duration: 0.1 + rng.Float64()*6})
		case 1:
			_, _ = tl.MoveClip(pick(), rng.Float64()*50-5, nil)
		case 2:
			edge := EdgeStart
			if rng.Intn(2) == 0 {
				edge = EdgeEnd
			}
			_, _ = tl.TrimClip(pick(), edge, rng.Float64()*55, nil)
		case 3:
			_, _ = tl.SplitClip(pick(), rng.Float64()*55)
		case 4:
			_, _ = tl.MoveClipToTrack(pick(), tracks[rng.Intn(2)], rng.Float64()*50, nil)
		}

		for _, tr := range tl.Tracks() {
			for j := 1; j < len(tr.Clips); j++ {
				prev, cur := tr.Clips[j-1], tr.Clips[j]
				require.LessOrEqual(t, prev.End(), cur.StartTime+epsilon, "step %d track %s", i, tr.ID)
			}
			for _, c := range tr.Clips {
				require.GreaterOrEqual(t, c.StartTime, 0.0)
				require.GreaterOrEqual(t, c.Duration, 0.1-epsilon)
			}
		}
	}
}
