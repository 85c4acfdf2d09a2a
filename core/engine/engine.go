package engine

import (
	"sync"

	"Cutline/config"
	"Cutline/core/keyframe"
	"Cutline/core/mixer"
	"Cutline/core/playback"
	"Cutline/core/preview"
	"Cutline/core/timeline"
	"Cutline/logger"
	"Cutline/model"

	"github.com/google/uuid"
)

// Deps 引擎的外部协作者，都可以为空
type Deps struct {
	Prober      preview.Prober
	Thumbnailer preview.Thumbnailer
	Waveform    preview.WaveformSampler
	Store       preview.Store
	NewID       func() string
}

// Engine 时间线编辑引擎。
// 所有修改在同一把锁下串行执行：先在状态副本上完成校验和修改，成功后整体替换，
// 失败时原状态不变。每次成功修改后发布一份不可变快照。
type Engine struct {
	cfg      config.EngineConfig
	snapper  timeline.Snapper
	prober   preview.Prober
	previews *preview.Cache
	newID    func() string

	mu          sync.Mutex
	st          *state
	version     uint64
	projectID   string
	projectName string
	snapping    bool
	autoPreview bool

	subs *hub
}

// New 创建空工程的引擎
func New(cfg config.EngineConfig, deps Deps) *Engine {
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	e := &Engine{
		cfg:         cfg,
		snapper:     timeline.Snapper{ThresholdPx: cfg.SnapThresholdPx},
		prober:      deps.Prober,
		newID:       deps.NewID,
		projectID:   deps.NewID(),
		projectName: "Untitled",
		snapping:    cfg.SnappingEnabled,
		autoPreview: cfg.AutoPreview,
		subs:        newHub(),
	}
	e.previews = preview.NewCache(deps.Thumbnailer, deps.Waveform, deps.Store, preview.Options{
		Workers: cfg.PreviewWorkers,
		Timeout: cfg.PreviewTimeout,
	})
	e.previews.OnUpdate(e.subs.publishPreview)
	e.st = e.newState(cfg.DefaultDuration)
	return e
}

func (e *Engine) timelineConfig() timeline.Config {
	return timeline.Config{MinClipDuration: e.cfg.MinClipDuration, MinTimelineDuration: e.cfg.MinTimelineDuration}
}

func (e *Engine) newState(configuredDuration float64) *state {
	tl := timeline.New(e.timelineConfig(), configuredDuration)
	tl.SetIDGenerator(e.newID)
	kf := keyframe.New()
	kf.SetIDGenerator(e.newID)
	mix := mixer.New()
	mix.SetIDGenerator(e.newID)
	return &state{
		tl:   tl,
		kf:   kf,
		mix:  mix,
		sel:  timeline.NewSelection(),
		play: playback.New(),
		zoom: timeline.ClampZoom(e.cfg.DefaultZoom),
	}
}

// apply 在状态副本上执行 fn，成功后提交、刷新预览并发布快照
func (e *Engine) apply(op string, fn func(s *state, fx *effects) error) (model.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.st.clone()
	fx := &effects{}
	if err := fn(next, fx); err != nil {
		logger.Debug("edit rejected", logger.String("op", op), logger.ErrorField(err))
		return e.snapshotLocked(), err
	}
	next.sel.Prune(next.tl.HasClip)
	next.play.Clamp(next.tl.Duration())

	e.st = next
	e.version++
	e.runEffectsLocked(fx)

	snap := e.snapshotLocked()
	e.subs.publish(snap)
	return snap, nil
}

// Snapshot 返回当前状态快照
func (e *Engine) Snapshot() model.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() model.Snapshot {
	s := e.st
	tracks := s.tl.Tracks()
	mix := make([]model.MixerEntry, 0, len(tracks))
	for _, t := range tracks {
		if entry, err := s.mix.Entry(t.ID); err == nil {
			mix = append(mix, entry)
		}
	}
	return model.Snapshot{
		Version:     e.version,
		Tracks:      tracks,
		Links:       s.tl.Links(),
		Markers:     s.tl.Markers(),
		Selection:   s.sel.IDs(),
		CurrentTime: s.play.Now(),
		Zoom:        s.zoom,
		Duration:    s.tl.Duration(),
		Playback:    s.play.State(),
		Mixer:       mix,
		Master:      s.mix.Master(),
		Keyframes:   s.kf.All(),
	}
}

// Subscribe 订阅状态快照。通道只保留最新一份，慢消费者会跳过中间版本。
// 订阅后立即收到当前快照。
func (e *Engine) Subscribe() (<-chan model.Snapshot, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, cancel := e.subs.subscribe()
	e.subs.send(ch, e.snapshotLocked())
	return ch, cancel
}

// SubscribePreviews 订阅预览任务完成事件
func (e *Engine) SubscribePreviews(buffer int) (<-chan model.PreviewAsset, func()) {
	return e.subs.subscribePreviews(buffer)
}

// SetSnapping 开关吸附
func (e *Engine) SetSnapping(enabled bool) {
	e.mu.Lock()
	e.snapping = enabled
	e.mu.Unlock()
}

// SetAutoPreview 开关编辑后自动生成预览
func (e *Engine) SetAutoPreview(enabled bool) {
	e.mu.Lock()
	e.autoPreview = enabled
	e.mu.Unlock()
}

// Config 返回引擎参数
func (e *Engine) Config() config.EngineConfig {
	return e.cfg
}

// Close 取消全部预览任务并关闭订阅
func (e *Engine) Close() error {
	err := e.previews.Close()
	e.subs.close()
	return err
}
