package engine

import (
	"strings"

	"Cutline/core/keyframe"
	"Cutline/core/mixer"
	"Cutline/core/playback"
	"Cutline/core/timeline"
	"Cutline/logger"
	"Cutline/model"
)

// Export 导出可持久化的工程数据，不包含预览和选区等瞬时状态
func (e *Engine) Export() model.Project {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.st
	snap := e.snapshotLocked()
	return model.Project{
		ID:                 e.projectID,
		Name:               e.projectName,
		ConfiguredDuration: s.tl.ConfiguredDuration(),
		Zoom:               s.zoom,
		CurrentTime:        s.play.Now(),
		Tracks:             snap.Tracks,
		Links:              snap.Links,
		Markers:            snap.Markers,
		Keyframes:          snap.Keyframes,
		Mixer:              snap.Mixer,
		Master:             snap.Master,
	}
}

// ProjectID 当前工程 ID
func (e *Engine) ProjectID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.projectID
}

// RenameProject 修改工程名
func (e *Engine) RenameProject(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.NewEditError("renameProject", model.ErrInvalidRange, "", "empty name")
	}
	e.mu.Lock()
	e.projectName = name
	e.mu.Unlock()
	return nil
}

// Restore 用工程数据替换全部状态。先完整重建并校验，任一约束不满足时保持原状态。
func (e *Engine) Restore(p model.Project) (model.Snapshot, error) {
	next, err := e.buildState(p)
	if err != nil {
		logger.Warn("project restore rejected", logger.String("projectId", p.ID), logger.ErrorField(err))
		return e.Snapshot(), err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	old := e.st
	e.st = next
	e.version++
	if p.ID != "" {
		e.projectID = p.ID
	}
	if name := strings.TrimSpace(p.Name); name != "" {
		e.projectName = name
	}

	fx := &effects{}
	for _, t := range old.tl.Tracks() {
		for _, c := range t.Clips {
			fx.invalidate(c.ID)
		}
	}
	for _, t := range next.tl.Tracks() {
		for _, c := range t.Clips {
			fx.request(c.ID)
		}
	}
	e.runEffectsLocked(fx)

	snap := e.snapshotLocked()
	e.subs.publish(snap)
	logger.Info("project restored",
		logger.String("projectId", e.projectID),
		logger.Int("tracks", len(snap.Tracks)),
		logger.Int("keyframes", len(snap.Keyframes)))
	return snap, nil
}

// buildState 在新状态上重放工程数据，不接触引擎当前状态
func (e *Engine) buildState(p model.Project) (*state, error) {
	tl, err := timeline.Restore(e.timelineConfig(), p.ConfiguredDuration, p.Tracks, p.Links, p.Markers)
	if err != nil {
		return nil, err
	}
	tl.SetIDGenerator(e.newID)

	kfs := make([]model.Keyframe, 0, len(p.Keyframes))
	for _, kf := range p.Keyframes {
		clip, err := tl.Clip(kf.ClipID)
		if err != nil {
			return nil, model.NewEditError("restore", model.ErrNotFound, kf.ClipID, "keyframe %s references missing clip", kf.ID)
		}
		if kf.Time > clip.Duration+timeEpsilon {
			return nil, model.NewEditError("restore", model.ErrInvalidRange, kf.ClipID, "keyframe %s at %v beyond clip duration", kf.ID, kf.Time)
		}
		kf.TrackID = clip.TrackID
		kfs = append(kfs, kf)
	}
	kf := keyframe.New()
	kf.SetIDGenerator(e.newID)
	if err := kf.Load(kfs); err != nil {
		return nil, err
	}

	for _, entry := range p.Mixer {
		if _, err := tl.Track(entry.TrackID); err != nil {
			return nil, model.NewEditError("restore", model.ErrNotFound, entry.TrackID, "mixer entry references missing track")
		}
	}
	mix := mixer.New()
	mix.SetIDGenerator(e.newID)
	master := p.Master
	if len(p.Mixer) == 0 && master == (model.MasterBus{}) {
		master = mix.Master()
	}
	if err := mix.Load(p.Mixer, master); err != nil {
		return nil, err
	}
	// 混音条目为准，轨道上的音量和静音与之对齐
	for _, t := range tl.Tracks() {
		mix.Ensure(t.ID, t.VolumeOrOpacity, t.Muted)
		entry, _ := mix.Entry(t.ID)
		if err := tl.SetVolume(t.ID, entry.Gain); err != nil {
			return nil, err
		}
		if err := tl.SetMuted(t.ID, entry.Muted); err != nil {
			return nil, err
		}
	}

	play := playback.New()
	play.Seek(p.CurrentTime, tl.Duration())
	zoom := p.Zoom
	if zoom == 0 {
		zoom = e.cfg.DefaultZoom
	}
	return &state{
		tl:   tl,
		kf:   kf,
		mix:  mix,
		sel:  timeline.NewSelection(),
		play: play,
		zoom: timeline.ClampZoom(zoom),
	}, nil
}

// Reset 清空为新工程
func (e *Engine) Reset(name string) model.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	fx := &effects{}
	for _, t := range e.st.tl.Tracks() {
		for _, c := range t.Clips {
			fx.invalidate(c.ID)
		}
	}
	e.st = e.newState(e.cfg.DefaultDuration)
	e.version++
	e.projectID = e.newID()
	e.projectName = "Untitled"
	if n := strings.TrimSpace(name); n != "" {
		e.projectName = n
	}
	e.runEffectsLocked(fx)
	snap := e.snapshotLocked()
	e.subs.publish(snap)
	return snap
}
