package timeline

import (
	"sort"

	"Cutline/model"
)

// Link 建立两条轨道间的联动，每个无序对和类型只记录一次
func (tl *Timeline) Link(a, b string, sync model.SyncType) error {
	const op = "linkTracks"
	if !sync.Valid() {
		return model.NewEditError(op, model.ErrInvalidRange, "", "sync type %q", sync)
	}
	if a == b {
		return model.NewEditError(op, model.ErrInvalidRange, a, "cannot link a track to itself")
	}
	for _, id := range []string{a, b} {
		if tl.track(id) == nil {
			return model.NewEditError(op, model.ErrNotFound, id, "")
		}
	}
	if tl.linkIndex(a, b, sync) >= 0 {
		return nil
	}
	// 规范化为 TrackA < TrackB
	if b < a {
		a, b = b, a
	}
	tl.links = append(tl.links, model.TrackLink{TrackA: a, TrackB: b, SyncType: sync})
	return nil
}

// Unlink 解除联动
func (tl *Timeline) Unlink(a, b string, sync model.SyncType) error {
	i := tl.linkIndex(a, b, sync)
	if i < 0 {
		return model.NewEditError("unlinkTracks", model.ErrNotFound, a+"/"+b, "no %s link", sync)
	}
	tl.links = append(tl.links[:i], tl.links[i+1:]...)
	return nil
}

func (tl *Timeline) linkIndex(a, b string, sync model.SyncType) int {
	for i, l := range tl.links {
		if l.SyncType != sync {
			continue
		}
		if (l.TrackA == a && l.TrackB == b) || (l.TrackA == b && l.TrackB == a) {
			return i
		}
	}
	return -1
}

// Linked 返回与 trackID 以 sync 类型直接联动的轨道，按 ID 排序
func (tl *Timeline) Linked(trackID string, sync model.SyncType) []string {
	var out []string
	for _, l := range tl.links {
		if l.SyncType == sync && l.Involves(trackID) {
			out = append(out, l.Other(trackID))
		}
	}
	sort.Strings(out)
	return out
}

// Links 返回联动关系拷贝
func (tl *Timeline) Links() []model.TrackLink {
	return append([]model.TrackLink(nil), tl.links...)
}
