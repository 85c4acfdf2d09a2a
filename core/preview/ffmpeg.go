package preview

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"Cutline/model"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// FFmpeg 基于 ffmpeg/ffprobe 命令行的媒体协作者，同时实现 Prober、Thumbnailer 和 WaveformSampler
type FFmpeg struct {
	FFmpegPath     string
	FFprobePath    string
	Resolve        Resolver
	ThumbWidth     int // 缩略图宽度，高度按比例
	Workers        int // 单个片段并行抽帧数
	PeaksPerSecond int
	SampleRate     int // 波形解码采样率
}

// NewFFmpeg 创建 ffmpeg 协作者，ffprobe 为空时由 ffmpeg 路径推导
func NewFFmpeg(ffmpegPath, ffprobePath string, resolve Resolver) *FFmpeg {
	if ffprobePath == "" {
		ffprobePath = strings.Replace(ffmpegPath, "ffmpeg", "ffprobe", 1)
	}
	return &FFmpeg{
		FFmpegPath:     ffmpegPath,
		FFprobePath:    ffprobePath,
		Resolve:        resolve,
		ThumbWidth:     160,
		Workers:        4,
		PeaksPerSecond: 20,
		SampleRate:     8000,
	}
}

// ffprobeOutput ffprobe JSON 输出中用到的字段
type ffprobeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		FormatName string `json:"format_name"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Probe 读取媒体时长、尺寸和文件大小
func (f *FFmpeg) Probe(ctx context.Context, sourceRef string) (model.MediaInfo, error) {
	path, err := f.Resolve(sourceRef)
	if err != nil {
		return model.MediaInfo{}, err
	}
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration,size,format_name:stream=codec_type,width,height",
		"-of", "json",
		path,
	}
	cmd := exec.CommandContext(ctx, f.FFprobePath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return model.MediaInfo{}, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", path, err, stderr.String())
	}
	return parseProbe(out.Bytes())
}

func parseProbe(raw []byte) (model.MediaInfo, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(raw, &probe); err != nil {
		return model.MediaInfo{}, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}
	if probe.Format.Duration == "" {
		return model.MediaInfo{}, fmt.Errorf("duration not found in ffprobe output")
	}
	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return model.MediaInfo{}, fmt.Errorf("failed to parse duration %q: %w", probe.Format.Duration, err)
	}
	info := model.MediaInfo{Duration: duration, Format: probe.Format.FormatName}
	if probe.Format.Size != "" {
		info.FileSize, _ = strconv.ParseInt(probe.Format.Size, 10, 64)
	}
	for _, s := range probe.Streams {
		if s.CodecType == "video" && s.Width > 0 {
			info.Width, info.Height = s.Width, s.Height
			break
		}
	}
	return info, nil
}

// GenerateThumbnails 在区间内均匀抽取 count 帧，时间取每段中点，返回的 Time 相对于片段起点
func (f *FFmpeg) GenerateThumbnails(ctx context.Context, sourceRef string, span Span, count int) ([]model.Thumbnail, error) {
	if count <= 0 {
		return []model.Thumbnail{}, nil
	}
	path, err := f.Resolve(sourceRef)
	if err != nil {
		return nil, err
	}
	out := make([]model.Thumbnail, count)
	g, gctx := errgroup.WithContext(ctx)
	workers := f.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)
	for i := 0; i < count; i++ {
		i := i
		rel := span.Duration * (float64(i) + 0.5) / float64(count)
		g.Go(func() error {
			img, err := f.frameAt(gctx, path, span.Offset+rel)
			if err != nil {
				return err
			}
			out[i] = model.Thumbnail{Time: rel, Image: img}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *FFmpeg) frameAt(ctx context.Context, path string, at float64) ([]byte, error) {
	args := []string{
		"-v", "error",
		"-ss", strconv.FormatFloat(at, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, f.FFmpegPath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame extraction failed for %s at %.3fs: %w\nFFmpeg Error: %s", path, at, err, stderr.String())
	}
	src, err := png.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame of %s at %.3fs: %w", path, at, err)
	}
	return encodeThumbnail(src, f.ThumbWidth)
}

// encodeThumbnail 按宽度等比缩放并编码为 JPEG
func encodeThumbnail(src image.Image, width int) ([]byte, error) {
	b := src.Bounds()
	if width <= 0 || b.Dx() == 0 {
		width = b.Dx()
	}
	height := b.Dy()
	if b.Dx() > 0 {
		height = b.Dy() * width / b.Dx()
	}
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GenerateWaveform 用 ffmpeg 解码为单声道 s16le 后归约为峰值
func (f *FFmpeg) GenerateWaveform(ctx context.Context, sourceRef string, span Span) ([]float64, error) {
	path, err := f.Resolve(sourceRef)
	if err != nil {
		return nil, err
	}
	rate := f.SampleRate
	if rate <= 0 {
		rate = 8000
	}
	peaksPerSecond := f.PeaksPerSecond
	if peaksPerSecond <= 0 {
		peaksPerSecond = 20
	}
	args := []string{"-v", "error"}
	if span.Offset > 0 {
		args = append(args, "-ss", strconv.FormatFloat(span.Offset, 'f', 3, 64))
	}
	if span.Duration > 0 {
		args = append(args, "-t", strconv.FormatFloat(span.Duration, 'f', 3, 64))
	}
	args = append(args, "-i", path, "-vn", "-ac", "1", "-ar", strconv.Itoa(rate), "-f", "s16le", "pipe:1")

	cmd := exec.CommandContext(ctx, f.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg for %s: %w", path, err)
	}
	peaks, readErr := readS16LE(bufio.NewReader(stdout), newPeakReducer(rate/peaksPerSecond, 32767))
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg waveform decode failed for %s: %w\nFFmpeg Error: %s", path, err, stderr.String())
	}
	if readErr != nil {
		return nil, readErr
	}
	return peaks, nil
}

func readS16LE(r io.Reader, reducer *peakReducer) ([]float64, error) {
	var sample [2]byte
	for {
		if _, err := io.ReadFull(r, sample[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return reducer.result(), nil
			}
			return nil, err
		}
		reducer.add(int(int16(binary.LittleEndian.Uint16(sample[:]))))
	}
}
