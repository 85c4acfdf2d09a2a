package timeline

import (
	"sort"

	"Cutline/model"
)

// Restore 从持久化的轨道数据重建时间线，逐条重放以校验全部约束：
// 片段不重叠、时长不低于最小值、ID 唯一、联动指向存在的轨道。
func Restore(cfg Config, configuredDuration float64, tracks []*model.Track, links []model.TrackLink, markers []model.Marker) (*Timeline, error) {
	tl := New(cfg, configuredDuration)

	ordered := make([]*model.Track, 0, len(tracks))
	for _, t := range tracks {
		if t != nil {
			ordered = append(ordered, t)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	for _, src := range ordered {
		t := src.Clone()
		if t.ID == "" {
			return nil, model.NewEditError("restore", model.ErrInvalidRange, "", "track without id")
		}
		locked := t.Locked
		t.Locked = false
		if err := tl.AddTrack(t); err != nil {
			return nil, err
		}
		for _, c := range src.Clips {
			if c == nil || c.ID == "" {
				return nil, model.NewEditError("restore", model.ErrInvalidRange, t.ID, "clip without id")
			}
			clip := c.Clone()
			clip.TrackID = t.ID
			if err := tl.AddClip(clip); err != nil {
				return nil, err
			}
		}
		if err := tl.SetLocked(t.ID, locked); err != nil {
			return nil, err
		}
	}
	for _, l := range links {
		if err := tl.Link(l.TrackA, l.TrackB, l.SyncType); err != nil {
			return nil, err
		}
	}
	for _, m := range markers {
		if _, err := tl.AddMarker(m); err != nil {
			return nil, err
		}
	}
	return tl, nil
}
