package preview

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, path string, rate int, samples []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &audio.IntBuffer{Format: &audio.Format{NumChannels: 1, SampleRate: rate}, Data: samples, SourceBitDepth: 16}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

func TestWAVSamplerPeaks(t *testing.T) {
	dir := t.TempDir()
	// 1s of silence followed by 1s at full scale, 100 Hz sample rate
	samples := make([]int, 200)
	for i := 100; i < 200; i++ {
		if i%2 == 0 {
			samples[i] = 32767
		} else {
			samples[i] = -32767
		}
	}
	writeWAV(t, filepath.Join(dir, "tone.wav"), 100, samples)

	s := &WAVSampler{Resolve: DirResolver(dir), PeaksPerSecond: 10}
	peaks, err := s.GenerateWaveform(context.Background(), "tone.wav", Span{})
	require.NoError(t, err)
	require.Len(t, peaks, 20)
	assert.Equal(t, 0.0, peaks[0])
	assert.InDelta(t, 1.0, peaks[19], 1e-9)

	// only the loud second, trimmed to half a second
	peaks, err = s.GenerateWaveform(context.Background(), "tone.wav", Span{Offset: 1, Duration: 0.5})
	require.NoError(t, err)
	require.Len(t, peaks, 5)
	for _, p := range peaks {
		assert.InDelta(t, 1.0, p, 1e-9)
	}
}

func TestWAVSamplerRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.wav"), []byte("not a wav file at all"), 0o644))
	s := &WAVSampler{Resolve: DirResolver(dir)}
	_, err := s.GenerateWaveform(context.Background(), "bad.wav", Span{})
	assert.Error(t, err)
}

func TestByExtension(t *testing.T) {
	wavCalls, otherCalls := 0, 0
	b := ByExtension{
		Samplers: map[string]WaveformSampler{".wav": samplerFunc(func(context.Context) ([]float64, error) { wavCalls++; return nil, nil })},
		Fallback: samplerFunc(func(context.Context) ([]float64, error) { otherCalls++; return nil, nil }),
	}
	_, _ = b.GenerateWaveform(context.Background(), "x.WAV", Span{})
	_, _ = b.GenerateWaveform(context.Background(), "x.mp3", Span{})
	assert.Equal(t, 1, wavCalls)
	assert.Equal(t, 1, otherCalls)
}

func TestPeakReducer(t *testing.T) {
	r := newPeakReducer(2, 100)
	r.add(100)
	r.add(-10)
	r.add(1)
	peaks := r.result()
	require.Len(t, peaks, 2)
	assert.Equal(t, 1.0, peaks[0])
	// 0.01 linear = -40dB
	assert.InDelta(t, 20.0/60.0, peaks[1], 1e-9)
	assert.Equal(t, []float64{}, newPeakReducer(10, 1).result())
}

func TestDirResolver(t *testing.T) {
	resolve := DirResolver("/media")
	p, err := resolve("clips/a.mp4")
	require.NoError(t, err)
	assert.Equal(t, "/media/clips/a.mp4", p)

	p, err = resolve("file:///tmp/b.wav")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/b.wav", p)

	_, err = resolve("../etc/passwd")
	assert.Error(t, err)
	_, err = resolve("")
	assert.Error(t, err)

	ref, ok := SourceRefFor("/media", "/media/clips/a.mp4")
	assert.True(t, ok)
	assert.Equal(t, "clips/a.mp4", ref)
	_, ok = SourceRefFor("/media", "/other/a.mp4")
	assert.False(t, ok)
}

func TestParseProbe(t *testing.T) {
	raw := []byte(`{"streams":[{"codec_type":"audio"},{"codec_type":"video","width":1920,"height":1080}],
		"format":{"duration":"12.480000","size":"1048576","format_name":"mov,mp4,m4a"}}`)
	info, err := parseProbe(raw)
	require.NoError(t, err)
	assert.Equal(t, 12.48, info.Duration)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.Equal(t, int64(1048576), info.FileSize)

	_, err = parseProbe([]byte(`{"format":{}}`))
	assert.Error(t, err)
}

func TestEncodeThumbnail(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 640, 360))
	for y := 0; y < 360; y++ {
		for x := 0; x < 640; x++ {
			src.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	data, err := encodeThumbnail(src, 160)
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 160, img.Bounds().Dx())
	assert.Equal(t, 90, img.Bounds().Dy())
}

func TestFFmpegThumbnails(t *testing.T) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "bars.mp4")
	out, err := exec.Command(ffmpeg, "-v", "error", "-f", "lavfi", "-i", "testsrc=duration=2:size=320x240:rate=10", src).CombinedOutput()
	require.NoError(t, err, string(out))

	f := NewFFmpeg(ffmpeg, "", DirResolver(dir))
	thumbs, err := f.GenerateThumbnails(context.Background(), "bars.mp4", Span{Duration: 2}, 4)
	require.NoError(t, err)
	require.Len(t, thumbs, 4)
	assert.Equal(t, 0.25, thumbs[0].Time)
	assert.NotEmpty(t, thumbs[3].Image)
}

func TestSourceWatcher(t *testing.T) {
	dir := t.TempDir()
	changed := make(chan string, 4)
	w, err := NewSourceWatcher(dir, 20*time.Millisecond, func(ref string) { changed <- ref })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.wav"), []byte("x"), 0o644))
	select {
	case ref := <-changed:
		assert.Equal(t, "a.wav", ref)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event")
	}
}
