package engine

import (
	"strconv"
	"strings"

	"Cutline/model"
)

// AddTrack 在底部追加轨道并为其创建混音条目
func (e *Engine) AddTrack(kind model.TrackKind, name string) (*model.Track, error) {
	var created *model.Track
	_, err := e.apply("addTrack", func(s *state, fx *effects) error {
		if strings.TrimSpace(name) == "" {
			name = defaultTrackName(kind, len(s.tl.TrackIDs())+1)
		}
		t := &model.Track{Kind: kind, Name: strings.TrimSpace(name), Visible: true, VolumeOrOpacity: 100}
		if err := s.tl.AddTrack(t); err != nil {
			return err
		}
		s.mix.Ensure(t.ID, t.VolumeOrOpacity, t.Muted)
		var err error
		created, err = s.tl.Track(t.ID)
		return err
	})
	return created, err
}

func defaultTrackName(kind model.TrackKind, n int) string {
	if kind == "" {
		return "Track"
	}
	return strings.ToUpper(string(kind[:1])) + string(kind[1:]) + " " + strconv.Itoa(n)
}

// RemoveTrack 删除轨道，级联删除片段、关键帧、预览、混音条目和联动
func (e *Engine) RemoveTrack(trackID string) (model.Snapshot, error) {
	return e.apply("removeTrack", func(s *state, fx *effects) error {
		t, err := s.tl.Track(trackID)
		if err != nil {
			return err
		}
		if t.Locked {
			return model.NewEditError("removeTrack", model.ErrTrackLocked, trackID, "")
		}
		if _, err := s.tl.RemoveTrack(trackID); err != nil {
			return err
		}
		for _, c := range t.Clips {
			s.kf.OnDelete(c.ID)
			s.sel.Remove(c.ID)
			fx.invalidate(c.ID)
		}
		s.mix.Remove(trackID)
		return nil
	})
}

func (e *Engine) ReorderTrack(trackID string, newIndex int) (model.Snapshot, error) {
	return e.apply("reorderTrack", func(s *state, fx *effects) error {
		return s.tl.ReorderTrack(trackID, newIndex)
	})
}

func (e *Engine) RenameTrack(trackID, name string) (model.Snapshot, error) {
	return e.apply("renameTrack", func(s *state, fx *effects) error {
		return s.tl.RenameTrack(trackID, name)
	})
}

func (e *Engine) SetTrackLocked(trackID string, locked bool) (model.Snapshot, error) {
	return e.apply("setTrackLocked", func(s *state, fx *effects) error {
		return s.tl.SetLocked(trackID, locked)
	})
}

func (e *Engine) SetTrackVisible(trackID string, visible bool) (model.Snapshot, error) {
	return e.apply("setTrackVisible", func(s *state, fx *effects) error {
		return s.tl.SetVisible(trackID, visible)
	})
}

// LinkTracks 建立轨道联动
func (e *Engine) LinkTracks(a, b string, sync model.SyncType) (model.Snapshot, error) {
	return e.apply("linkTracks", func(s *state, fx *effects) error {
		return s.tl.Link(a, b, sync)
	})
}

func (e *Engine) UnlinkTracks(a, b string, sync model.SyncType) (model.Snapshot, error) {
	return e.apply("unlinkTracks", func(s *state, fx *effects) error {
		return s.tl.Unlink(a, b, sync)
	})
}

// AddMarker 添加标记，标记参与吸附
func (e *Engine) AddMarker(at float64, label string) (model.Marker, error) {
	var created model.Marker
	_, err := e.apply("addMarker", func(s *state, fx *effects) error {
		var err error
		created, err = s.tl.AddMarker(model.Marker{Time: at, Label: label})
		return err
	})
	return created, err
}

func (e *Engine) RemoveMarker(id string) (model.Snapshot, error) {
	return e.apply("removeMarker", func(s *state, fx *effects) error {
		return s.tl.RemoveMarker(id)
	})
}

// SetConfiguredDuration 修改配置时长；派生时长仍不小于最后一个片段的结束时间
func (e *Engine) SetConfiguredDuration(d float64) (model.Snapshot, error) {
	return e.apply("setDuration", func(s *state, fx *effects) error {
		return s.tl.SetConfiguredDuration(d)
	})
}
