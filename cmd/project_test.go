package cmd

import (
	"errors"
	"path/filepath"
	"testing"

	"Cutline/config"
	"Cutline/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProject() model.Project {
	return model.Project{
		ID:                 "p1",
		Name:               "demo",
		ConfiguredDuration: 60,
		Zoom:               1,
		Tracks: []*model.Track{{
			ID: "t1", Kind: model.TrackKindAudio, Name: "A1", Visible: true, VolumeOrOpacity: 80,
			Clips: []*model.Clip{
				{ID: "c1", TrackID: "t1", SourceRef: "a.wav", StartTime: 0, Duration: 4},
				{ID: "c2", TrackID: "t1", SourceRef: "b.wav", StartTime: 5, Duration: 2},
			},
		}},
		Keyframes: []model.Keyframe{
			{ID: "k1", TrackID: "t1", ClipID: "c1", Property: model.PropertyVolume, Time: 1, Value: 50, Easing: model.EasingLinear},
		},
		Mixer:  []model.MixerEntry{{TrackID: "t1", Gain: 80, EffectChain: []model.Effect{}}},
		Master: model.MasterBus{Gain: 100},
	}
}

func TestProjectFileRoundTrip(t *testing.T) {
	cfg = &config.Config{Engine: config.DefaultEngine()}
	dir := t.TempDir()
	p := sampleProject()

	for _, name := range []string{"demo.json", "demo.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, writeProject(path, p))
		got, err := readProject(path)
		require.NoError(t, err)
		assert.Equal(t, p.Tracks, got.Tracks, name)
		assert.Equal(t, p.Keyframes, got.Keyframes, name)
	}
}

func TestValidateProject(t *testing.T) {
	cfg = &config.Config{Engine: config.DefaultEngine()}
	cfg.Engine.AutoPreview = false

	p := sampleProject()
	snap, err := validateProject(p)
	require.NoError(t, err)
	assert.Contains(t, summarize(p, snap), "1 tracks, 2 clips, 1 keyframes")

	p.Tracks[0].Clips[1].StartTime = 3
	_, err = validateProject(p)
	assert.True(t, errors.Is(err, model.ErrOverlap))
}

func TestDecodeProjectByExtension(t *testing.T) {
	_, err := decodeProject("x.yml", []byte("id: [unterminated"))
	assert.Error(t, err)

	p, err := decodeProject("x.json", []byte(`{"id":"p9","name":"n"}`))
	require.NoError(t, err)
	assert.Equal(t, "p9", p.ID)
}
