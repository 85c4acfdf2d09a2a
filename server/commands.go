package server

import (
	"context"
	"encoding/json"
	"sort"

	"Cutline/core/engine"
	"Cutline/core/timeline"
	"Cutline/model"
)

// commandFunc 一条编辑命令，HTTP 和 WebSocket 共用
type commandFunc func(ctx context.Context, e *engine.Engine, args json.RawMessage) (any, error)

func decodeArgs[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, badRequest("invalid args: %v", err)
	}
	return v, nil
}

func withArgs[T any](fn func(ctx context.Context, e *engine.Engine, a T) (any, error)) commandFunc {
	return func(ctx context.Context, e *engine.Engine, raw json.RawMessage) (any, error) {
		a, err := decodeArgs[T](raw)
		if err != nil {
			return nil, err
		}
		return fn(ctx, e, a)
	}
}

func snapshotOf(s model.Snapshot, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

type trackArgs struct {
	TrackID string          `json:"trackId"`
	Kind    model.TrackKind `json:"kind"`
	Name    string          `json:"name"`
	Index   int             `json:"index"`
	Locked  bool            `json:"locked"`
	Visible bool            `json:"visible"`
	Muted   bool            `json:"muted"`
	Value   float64         `json:"value"`
}

type linkArgs struct {
	TrackA   string         `json:"trackA"`
	TrackB   string         `json:"trackB"`
	SyncType model.SyncType `json:"syncType"`
}

type clipArgs struct {
	ClipID    string        `json:"clipId"`
	TrackID   string        `json:"trackId"`
	SourceRef string        `json:"sourceRef"`
	Start     float64       `json:"start"`
	Time      float64       `json:"time"`
	At        *float64      `json:"at"`
	Edge      timeline.Edge `json:"edge"`
	Clip      model.Clip    `json:"clip"`
}

type selectionArgs struct {
	IDs      []string `json:"ids"`
	Additive bool     `json:"additive"`
}

type keyframeArgs struct {
	ID       string         `json:"id"`
	ClipID   string         `json:"clipId"`
	Property model.Property `json:"property"`
	Time     float64        `json:"time"`
	Value    float64        `json:"value"`
	Easing   model.Easing   `json:"easing"`
}

type effectArgs struct {
	TrackID  string             `json:"trackId"`
	EffectID string             `json:"effectId"`
	Type     model.EffectType   `json:"type"`
	Params   map[string]float64 `json:"params"`
	Index    int                `json:"index"`
}

type valueArgs struct {
	Value   float64 `json:"value"`
	Delta   int     `json:"delta"`
	Enabled bool    `json:"enabled"`
	Label   string  `json:"label"`
	ID      string  `json:"id"`
	Name    string  `json:"name"`
}

type previewArgs struct {
	ClipID string            `json:"clipId"`
	Kind   model.PreviewKind `json:"kind"`
}

// commands 命令表，键为命令名
var commands = map[string]commandFunc{
	// 轨道
	"addTrack": withArgs(func(_ context.Context, e *engine.Engine, a trackArgs) (any, error) {
		return e.AddTrack(a.Kind, a.Name)
	}),
	"removeTrack": withArgs(func(_ context.Context, e *engine.Engine, a trackArgs) (any, error) {
		return snapshotOf(e.RemoveTrack(a.TrackID))
	}),
	"reorderTrack": withArgs(func(_ context.Context, e *engine.Engine, a trackArgs) (any, error) {
		return snapshotOf(e.ReorderTrack(a.TrackID, a.Index))
	}),
	"renameTrack": withArgs(func(_ context.Context, e *engine.Engine, a trackArgs) (any, error) {
		return snapshotOf(e.RenameTrack(a.TrackID, a.Name))
	}),
	"setTrackLocked": withArgs(func(_ context.Context, e *engine.Engine, a trackArgs) (any, error) {
		return snapshotOf(e.SetTrackLocked(a.TrackID, a.Locked))
	}),
	"setTrackVisible": withArgs(func(_ context.Context, e *engine.Engine, a trackArgs) (any, error) {
		return snapshotOf(e.SetTrackVisible(a.TrackID, a.Visible))
	}),
	"setTrackMuted": withArgs(func(_ context.Context, e *engine.Engine, a trackArgs) (any, error) {
		return snapshotOf(e.SetTrackMuted(a.TrackID, a.Muted))
	}),
	"toggleMuted": withArgs(func(_ context.Context, e *engine.Engine, a trackArgs) (any, error) {
		return snapshotOf(e.ToggleMuted(a.TrackID))
	}),
	"setTrackVolume": withArgs(func(_ context.Context, e *engine.Engine, a trackArgs) (any, error) {
		return snapshotOf(e.SetTrackVolume(a.TrackID, a.Value))
	}),
	"linkTracks": withArgs(func(_ context.Context, e *engine.Engine, a linkArgs) (any, error) {
		return snapshotOf(e.LinkTracks(a.TrackA, a.TrackB, a.SyncType))
	}),
	"unlinkTracks": withArgs(func(_ context.Context, e *engine.Engine, a linkArgs) (any, error) {
		return snapshotOf(e.UnlinkTracks(a.TrackA, a.TrackB, a.SyncType))
	}),

	// 标记与时长
	"addMarker": withArgs(func(_ context.Context, e *engine.Engine, a valueArgs) (any, error) {
		return e.AddMarker(a.Value, a.Label)
	}),
	"removeMarker": withArgs(func(_ context.Context, e *engine.Engine, a valueArgs) (any, error) {
		return snapshotOf(e.RemoveMarker(a.ID))
	}),
	"setDuration": withArgs(func(_ context.Context, e *engine.Engine, a valueArgs) (any, error) {
		return snapshotOf(e.SetConfiguredDuration(a.Value))
	}),

	// 片段
	"addClip": withArgs(func(_ context.Context, e *engine.Engine, a clipArgs) (any, error) {
		return e.AddClip(a.TrackID, a.Clip)
	}),
	"addClipFromSource": withArgs(func(ctx context.Context, e *engine.Engine, a clipArgs) (any, error) {
		return e.AddClipFromSource(ctx, a.TrackID, a.SourceRef, a.Start)
	}),
	"moveClip": withArgs(func(_ context.Context, e *engine.Engine, a clipArgs) (any, error) {
		return snapshotOf(e.MoveClip(a.ClipID, a.Start))
	}),
	"moveClipToTrack": withArgs(func(_ context.Context, e *engine.Engine, a clipArgs) (any, error) {
		return snapshotOf(e.MoveClipToTrack(a.ClipID, a.TrackID, a.Start))
	}),
	"trimClip": withArgs(func(_ context.Context, e *engine.Engine, a clipArgs) (any, error) {
		return snapshotOf(e.TrimClip(a.ClipID, a.Edge, a.Time))
	}),
	"splitClip": withArgs(func(_ context.Context, e *engine.Engine, a clipArgs) (any, error) {
		tail, err := e.SplitClip(a.ClipID, a.Time)
		if err != nil {
			return nil, err
		}
		return map[string]string{"tailId": tail}, nil
	}),
	"deleteClip": withArgs(func(_ context.Context, e *engine.Engine, a clipArgs) (any, error) {
		return snapshotOf(e.DeleteClip(a.ClipID))
	}),
	"duplicateClip": withArgs(func(_ context.Context, e *engine.Engine, a clipArgs) (any, error) {
		return e.DuplicateClip(a.ClipID, a.At)
	}),

	// 选择
	"select": withArgs(func(_ context.Context, e *engine.Engine, a selectionArgs) (any, error) {
		return snapshotOf(e.Select(a.IDs, a.Additive))
	}),
	"deselect": withArgs(func(_ context.Context, e *engine.Engine, a selectionArgs) (any, error) {
		return snapshotOf(e.Deselect(a.IDs...))
	}),
	"clearSelection": func(_ context.Context, e *engine.Engine, _ json.RawMessage) (any, error) {
		return snapshotOf(e.ClearSelection())
	},
	"deleteSelection": func(_ context.Context, e *engine.Engine, _ json.RawMessage) (any, error) {
		return snapshotOf(e.DeleteSelection())
	},

	// 关键帧
	"setKeyframe": withArgs(func(_ context.Context, e *engine.Engine, a keyframeArgs) (any, error) {
		return e.SetKeyframe(a.ClipID, a.Property, a.Time, a.Value, a.Easing)
	}),
	"removeKeyframe": withArgs(func(_ context.Context, e *engine.Engine, a keyframeArgs) (any, error) {
		return snapshotOf(e.RemoveKeyframe(a.ID))
	}),

	// 混音
	"setGain": withArgs(func(_ context.Context, e *engine.Engine, a trackArgs) (any, error) {
		return snapshotOf(e.SetGain(a.TrackID, a.Value))
	}),
	"addEffect": withArgs(func(_ context.Context, e *engine.Engine, a effectArgs) (any, error) {
		return e.AddEffect(a.TrackID, a.Type, a.Params)
	}),
	"updateEffect": withArgs(func(_ context.Context, e *engine.Engine, a effectArgs) (any, error) {
		return snapshotOf(e.UpdateEffect(a.TrackID, a.EffectID, a.Params))
	}),
	"removeEffect": withArgs(func(_ context.Context, e *engine.Engine, a effectArgs) (any, error) {
		return snapshotOf(e.RemoveEffect(a.TrackID, a.EffectID))
	}),
	"moveEffect": withArgs(func(_ context.Context, e *engine.Engine, a effectArgs) (any, error) {
		return snapshotOf(e.MoveEffect(a.TrackID, a.EffectID, a.Index))
	}),
	"setMasterGain": withArgs(func(_ context.Context, e *engine.Engine, a valueArgs) (any, error) {
		return snapshotOf(e.SetMasterGain(a.Value))
	}),
	"toggleMasterMute": func(_ context.Context, e *engine.Engine, _ json.RawMessage) (any, error) {
		return snapshotOf(e.ToggleMasterMute())
	},

	// 播放与缩放
	"setZoom": withArgs(func(_ context.Context, e *engine.Engine, a valueArgs) (any, error) {
		return snapshotOf(e.SetZoom(a.Value))
	}),
	"zoomBy": withArgs(func(_ context.Context, e *engine.Engine, a valueArgs) (any, error) {
		return snapshotOf(e.ZoomBy(a.Delta))
	}),
	"play": func(_ context.Context, e *engine.Engine, _ json.RawMessage) (any, error) {
		return snapshotOf(e.Play())
	},
	"pause": func(_ context.Context, e *engine.Engine, _ json.RawMessage) (any, error) {
		return snapshotOf(e.Pause())
	},
	"stop": func(_ context.Context, e *engine.Engine, _ json.RawMessage) (any, error) {
		return snapshotOf(e.Stop())
	},
	"seek": withArgs(func(_ context.Context, e *engine.Engine, a valueArgs) (any, error) {
		return snapshotOf(e.Seek(a.Value))
	}),
	"tick": withArgs(func(_ context.Context, e *engine.Engine, a valueArgs) (any, error) {
		playing, err := e.Tick(a.Value)
		if err != nil {
			return nil, err
		}
		return map[string]bool{"playing": playing}, nil
	}),

	// 开关
	"setSnapping": withArgs(func(_ context.Context, e *engine.Engine, a valueArgs) (any, error) {
		e.SetSnapping(a.Enabled)
		return map[string]bool{"snapping": a.Enabled}, nil
	}),
	"setAutoPreview": withArgs(func(_ context.Context, e *engine.Engine, a valueArgs) (any, error) {
		e.SetAutoPreview(a.Enabled)
		return map[string]bool{"autoPreview": a.Enabled}, nil
	}),

	"requestPreview": withArgs(func(_ context.Context, e *engine.Engine, a previewArgs) (any, error) {
		if !a.Kind.Valid() {
			return nil, badRequest("unknown preview kind %q", a.Kind)
		}
		return e.RequestPreview(a.ClipID, a.Kind)
	}),
	"renameProject": withArgs(func(_ context.Context, e *engine.Engine, a valueArgs) (any, error) {
		if err := e.RenameProject(a.Name); err != nil {
			return nil, err
		}
		return e.Snapshot(), nil
	}),
}

// CommandNames 返回已注册的命令名
func CommandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute 执行一条命令
func Execute(ctx context.Context, e *engine.Engine, op string, args json.RawMessage) (any, error) {
	fn, ok := commands[op]
	if !ok {
		return nil, badRequest("unknown command %q", op)
	}
	return fn(ctx, e, args)
}
