package preview

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSampler 直接解码 PCM WAV 文件生成波形，不依赖 ffmpeg
type WAVSampler struct {
	Resolve        Resolver
	PeaksPerSecond int
}

// GenerateWaveform 实现 WaveformSampler
func (s *WAVSampler) GenerateWaveform(ctx context.Context, sourceRef string, span Span) ([]float64, error) {
	path, err := s.Resolve(sourceRef)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	if decoder.WavAudioFormat != 1 {
		return nil, fmt.Errorf("unsupported WAV encoding %d in %s: only PCM is supported", decoder.WavAudioFormat, path)
	}
	format := decoder.Format()
	if format == nil || format.NumChannels == 0 || format.SampleRate == 0 {
		return nil, fmt.Errorf("could not read audio format of %s", path)
	}
	if decoder.BitDepth == 0 || decoder.BitDepth > 32 {
		return nil, fmt.Errorf("unsupported bit depth %d in %s", decoder.BitDepth, path)
	}

	channels := format.NumChannels
	rate := format.SampleRate
	peaksPerSecond := s.PeaksPerSecond
	if peaksPerSecond <= 0 {
		peaksPerSecond = 20
	}
	fullScale := float64(int64(1)<<(decoder.BitDepth-1) - 1)
	reducer := newPeakReducer(rate/peaksPerSecond, fullScale)

	startFrame := int(math.Floor(math.Max(0, span.Offset) * float64(rate)))
	endFrame := math.MaxInt
	if span.Duration > 0 {
		endFrame = startFrame + int(math.Ceil(span.Duration*float64(rate)))
	}

	chunk := 8192
	if chunk%channels != 0 {
		chunk = (chunk/channels + 1) * channels
	}
	buf := &audio.IntBuffer{Format: format, Data: make([]int, chunk)}
	frame := 0
	for frame < endFrame {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := decoder.PCMBuffer(buf)
		if err == io.EOF || n == 0 {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading PCM from %s: %w", path, err)
		}
		samples := buf.Data[:n]
		for i := 0; i+channels <= len(samples) && frame < endFrame; i += channels {
			if frame >= startFrame {
				reducer.add(samples[i : i+channels]...)
			}
			frame++
		}
	}
	return reducer.result(), nil
}

// ByExtension 按文件扩展名选择波形采样器，未登记的扩展名交给 Fallback
type ByExtension struct {
	Samplers map[string]WaveformSampler // 键为小写扩展名，例如 ".wav"
	Fallback WaveformSampler
}

func (b ByExtension) GenerateWaveform(ctx context.Context, sourceRef string, span Span) ([]float64, error) {
	ext := strings.ToLower(filepath.Ext(sourceRef))
	if s, ok := b.Samplers[ext]; ok && s != nil {
		return s.GenerateWaveform(ctx, sourceRef, span)
	}
	if b.Fallback == nil {
		return nil, fmt.Errorf("no waveform sampler for %q", ext)
	}
	return b.Fallback.GenerateWaveform(ctx, sourceRef, span)
}
