package engine

import (
	"context"

	"Cutline/logger"
	"Cutline/model"
)

// RequestPreview 为片段请求预览；已有未失败的条目时直接返回它
func (e *Engine) RequestPreview(clipID string, kind model.PreviewKind) (model.PreviewAsset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	clip, err := e.st.tl.Clip(clipID)
	if err != nil {
		return model.PreviewAsset{}, err
	}
	return e.previews.Request(e.previewRequest(clip, kind))
}

// WaitPreview 阻塞直到预览生成结束
func (e *Engine) WaitPreview(ctx context.Context, clipID string, kind model.PreviewKind) (model.PreviewAsset, error) {
	return e.previews.Wait(ctx, clipID, kind)
}

// Preview 返回片段当前的预览条目
func (e *Engine) Preview(clipID string, kind model.PreviewKind) (model.PreviewAsset, bool) {
	return e.previews.Get(clipID, kind)
}

// Previews 返回片段的全部预览条目
func (e *Engine) Previews(clipID string) []model.PreviewAsset {
	return e.previews.Assets(clipID)
}

// InvalidateSource 源媒体文件变化后丢弃引用它的所有片段的预览并重新生成
func (e *Engine) InvalidateSource(sourceRef string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	clips := e.st.tl.ClipsBySource(sourceRef)
	fx := &effects{}
	for _, c := range clips {
		fx.refresh(c.ID)
	}
	e.runEffectsLocked(fx)
	if len(clips) > 0 {
		logger.Info("source changed, previews invalidated",
			logger.String("sourceRef", sourceRef),
			logger.Int("clips", len(clips)))
	}
	return len(clips)
}
