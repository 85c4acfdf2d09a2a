package preview

import (
	"context"
	"errors"
	"sync"
	"time"

	"Cutline/logger"
	"Cutline/model"

	"golang.org/x/sync/semaphore"
)

// ErrClosed 缓存已关闭
var ErrClosed = errors.New("preview cache closed")

// Options 预览缓存参数
type Options struct {
	Workers int           // 同时运行的生成任务上限
	Timeout time.Duration // 单个任务超时，0 表示不限
}

type entryKey struct {
	clipID string
	kind   model.PreviewKind
}

type entry struct {
	asset  model.PreviewAsset
	cancel context.CancelFunc
	done   chan struct{}
}

// Cache 片段预览的异步任务表。
// 同一 (clipID, kind) 同时最多一个任务；每个 key 维护单调递增的代数，
// 失效后到达的旧结果按代数丢弃。
type Cache struct {
	thumbs   Thumbnailer
	waveform WaveformSampler
	store    Store
	opts     Options
	sem      *semaphore.Weighted

	mu       sync.Mutex
	entries  map[entryKey]*entry
	gens     map[entryKey]uint64
	onUpdate func(model.PreviewAsset)
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCache 创建预览缓存。thumbs、waveform、store 都可以为空。
func NewCache(thumbs Thumbnailer, waveform WaveformSampler, store Store, opts Options) *Cache {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		thumbs:   thumbs,
		waveform: waveform,
		store:    store,
		opts:     opts,
		sem:      semaphore.NewWeighted(int64(opts.Workers)),
		entries:  make(map[entryKey]*entry),
		gens:     make(map[entryKey]uint64),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnUpdate 注册任务完成回调，回调在锁外执行
func (c *Cache) OnUpdate(fn func(model.PreviewAsset)) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// Request 请求生成预览。已有 pending/ready 条目时直接返回；
// 否则创建 pending 条目并在后台生成。failed 条目不会自动重试，需要调用方再次 Request。
func (c *Cache) Request(req Request) (model.PreviewAsset, error) {
	if !req.Kind.Valid() {
		return model.PreviewAsset{}, model.NewEditError("requestPreview", model.ErrInvalidRange, req.ClipID, "kind %q", req.Kind)
	}
	k := entryKey{req.ClipID, req.Kind}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return model.PreviewAsset{}, ErrClosed
	}
	if e, ok := c.entries[k]; ok && e.asset.Status != model.PreviewFailed {
		return e.asset, nil
	}

	c.gens[k]++
	gen := c.gens[k]
	ctx, cancel := context.WithCancel(c.ctx)
	e := &entry{
		asset:  model.PreviewAsset{ClipID: req.ClipID, Kind: req.Kind, Status: model.PreviewPending, Generation: gen},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.entries[k] = e

	c.wg.Add(1)
	go c.run(ctx, k, gen, req)
	return e.asset, nil
}

// run 排队等待工作槽位后生成预览。超时只从拿到槽位开始计算，排队时间不计入。
func (c *Cache) run(ctx context.Context, k entryKey, gen uint64, req Request) {
	defer c.wg.Done()

	if err := c.sem.Acquire(ctx, 1); err != nil {
		c.complete(k, gen, nil, err)
		return
	}
	defer c.sem.Release(1)

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	data, err := c.generate(ctx, req)
	if err == nil {
		logger.Debug("preview generated",
			logger.String("clipId", req.ClipID),
			logger.String("kind", string(req.Kind)),
			logger.Duration("elapsed", time.Since(start)))
	}
	c.complete(k, gen, data, err)
}

func (c *Cache) generate(ctx context.Context, req Request) (*model.PreviewData, error) {
	key := ContentKey(req)
	if c.store != nil {
		data, ok, err := c.store.Load(ctx, key)
		if err != nil {
			logger.Warn("preview store load failed", logger.String("key", key), logger.ErrorField(err))
		} else if ok {
			return data, nil
		}
	}

	var data *model.PreviewData
	switch req.Kind {
	case model.PreviewThumbnails:
		if c.thumbs == nil {
			return nil, errors.New("no thumbnailer configured")
		}
		thumbs, err := c.thumbs.GenerateThumbnails(ctx, req.SourceRef, req.Span, req.Count)
		if err != nil {
			return nil, err
		}
		data = &model.PreviewData{Thumbnails: thumbs}
	case model.PreviewWaveform:
		if c.waveform == nil {
			return nil, errors.New("no waveform sampler configured")
		}
		peaks, err := c.waveform.GenerateWaveform(ctx, req.SourceRef, req.Span)
		if err != nil {
			return nil, err
		}
		data = &model.PreviewData{Peaks: peaks}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.store != nil {
		if err := c.store.Save(ctx, key, data); err != nil {
			logger.Warn("preview store save failed", logger.String("key", key), logger.ErrorField(err))
		}
	}
	return data, nil
}

// complete 写回任务结果；条目已失效或代数不符时丢弃
func (c *Cache) complete(k entryKey, gen uint64, data *model.PreviewData, err error) {
	c.mu.Lock()
	e, ok := c.entries[k]
	if !ok || e.asset.Generation != gen {
		c.mu.Unlock()
		logger.Debug("stale preview result discarded",
			logger.String("clipId", k.clipID),
			logger.String("kind", string(k.kind)),
			logger.Uint64("generation", gen))
		return
	}
	if err != nil {
		e.asset.Status = model.PreviewFailed
		e.asset.Error = err.Error()
		logger.Warn("preview generation failed",
			logger.String("clipId", k.clipID),
			logger.String("kind", string(k.kind)),
			logger.ErrorField(err))
	} else {
		e.asset.Status = model.PreviewReady
		e.asset.Data = data
	}
	e.cancel()
	close(e.done)
	asset := e.asset
	fn := c.onUpdate
	c.mu.Unlock()

	if fn != nil {
		fn(asset)
	}
}

// Invalidate 丢弃片段的全部预览并取消进行中的任务
func (c *Cache) Invalidate(clipID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, kind := range []model.PreviewKind{model.PreviewThumbnails, model.PreviewWaveform} {
		k := entryKey{clipID, kind}
		c.dropLocked(k)
	}
}

func (c *Cache) dropLocked(k entryKey) {
	e, ok := c.entries[k]
	if !ok {
		return
	}
	c.gens[k]++
	e.cancel()
	if e.asset.Status == model.PreviewPending {
		close(e.done)
	}
	delete(c.entries, k)
}

// Get 返回预览条目
func (c *Cache) Get(clipID string, kind model.PreviewKind) (model.PreviewAsset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[entryKey{clipID, kind}]
	if !ok {
		return model.PreviewAsset{}, false
	}
	return e.asset, true
}

// Assets 返回片段的全部预览条目
func (c *Cache) Assets(clipID string) []model.PreviewAsset {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.PreviewAsset
	for _, kind := range []model.PreviewKind{model.PreviewThumbnails, model.PreviewWaveform} {
		if e, ok := c.entries[entryKey{clipID, kind}]; ok {
			out = append(out, e.asset)
		}
	}
	return out
}

// Generation 返回 key 当前的代数
func (c *Cache) Generation(clipID string, kind model.PreviewKind) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[entryKey{clipID, kind}]
}

// Wait 等待条目离开 pending。条目在等待期间被失效时返回 ErrNotFound，生成失败时返回 ErrPreviewFailed。
func (c *Cache) Wait(ctx context.Context, clipID string, kind model.PreviewKind) (model.PreviewAsset, error) {
	k := entryKey{clipID, kind}
	c.mu.Lock()
	e, ok := c.entries[k]
	c.mu.Unlock()
	if !ok {
		return model.PreviewAsset{}, model.NewEditError("waitPreview", model.ErrNotFound, clipID, "%s", string(kind))
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return model.PreviewAsset{}, ctx.Err()
	}

	c.mu.Lock()
	cur, ok := c.entries[k]
	c.mu.Unlock()
	if !ok || cur != e {
		return model.PreviewAsset{}, model.NewEditError("waitPreview", model.ErrNotFound, clipID, "invalidated")
	}
	asset := cur.asset
	if asset.Status == model.PreviewFailed {
		return asset, model.NewEditError("waitPreview", model.ErrPreviewFailed, clipID, "%s", asset.Error)
	}
	return asset, nil
}

// Close 取消全部任务并等待后台 goroutine 退出
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for k := range c.entries {
		c.dropLocked(k)
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}
