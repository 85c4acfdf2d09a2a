package keyframe

import (
	"math"
	"sort"

	"Cutline/model"

	"github.com/google/uuid"
)

const epsilon = 1e-9

type key struct {
	clipID   string
	property model.Property
}

// Store 关键帧存储：每个 (片段, 属性) 一条按时间排序的列表。
// 时间相对于片段起点；片段只通过 ID 弱引用，片段变化时由调用方触发 On* 钩子做对账。
type Store struct {
	lists map[key][]model.Keyframe
	newID func() string
}

func New() *Store {
	return &Store{lists: make(map[key][]model.Keyframe), newID: uuid.NewString}
}

// SetIDGenerator 替换 ID 生成函数
func (s *Store) SetIDGenerator(fn func() string) {
	if fn != nil {
		s.newID = fn
	}
}

// Clone 深拷贝
func (s *Store) Clone() *Store {
	cp := &Store{lists: make(map[key][]model.Keyframe, len(s.lists)), newID: s.newID}
	for k, l := range s.lists {
		cp.lists[k] = append([]model.Keyframe(nil), l...)
	}
	return cp
}

func validate(op string, kf model.Keyframe) error {
	if kf.ClipID == "" {
		return model.NewEditError(op, model.ErrInvalidRange, kf.ID, "missing clip id")
	}
	if !kf.Property.Valid() {
		return model.NewEditError(op, model.ErrInvalidRange, kf.ClipID, "property %q", kf.Property)
	}
	if !kf.Easing.Valid() {
		return model.NewEditError(op, model.ErrInvalidRange, kf.ClipID, "easing %q", kf.Easing)
	}
	if math.IsNaN(kf.Time) || math.IsInf(kf.Time, 0) || kf.Time < 0 {
		return model.NewEditError(op, model.ErrInvalidRange, kf.ClipID, "time %v", kf.Time)
	}
	if math.IsNaN(kf.Value) || math.IsInf(kf.Value, 0) {
		return model.NewEditError(op, model.ErrInvalidRange, kf.ClipID, "value %v", kf.Value)
	}
	return nil
}

// Set 在 kf.Time 处插入关键帧；同一时刻已有关键帧时覆盖其取值和曲线并保留原 ID
func (s *Store) Set(kf model.Keyframe) (model.Keyframe, error) {
	if kf.Easing == "" {
		kf.Easing = model.EasingLinear
	}
	if err := validate("setKeyframe", kf); err != nil {
		return model.Keyframe{}, err
	}
	k := key{kf.ClipID, kf.Property}
	list := s.lists[k]
	i := sort.Search(len(list), func(i int) bool { return list[i].Time >= kf.Time-epsilon })
	if i < len(list) && math.Abs(list[i].Time-kf.Time) <= epsilon {
		list[i].Value = kf.Value
		list[i].Easing = kf.Easing
		list[i].TrackID = kf.TrackID
		return list[i], nil
	}
	if kf.ID == "" {
		kf.ID = s.newID()
	}
	list = append(list, model.Keyframe{})
	copy(list[i+1:], list[i:])
	list[i] = kf
	s.lists[k] = list
	return kf, nil
}

// Get 按 ID 查找关键帧
func (s *Store) Get(id string) (model.Keyframe, bool) {
	for _, list := range s.lists {
		for _, kf := range list {
			if kf.ID == id {
				return kf, true
			}
		}
	}
	return model.Keyframe{}, false
}

// Remove 按 ID 删除关键帧
func (s *Store) Remove(id string) (model.Keyframe, error) {
	for k, list := range s.lists {
		for i, kf := range list {
			if kf.ID != id {
				continue
			}
			s.put(k, append(list[:i:i], list[i+1:]...))
			return kf, nil
		}
	}
	return model.Keyframe{}, model.NewEditError("removeKeyframe", model.ErrNotFound, id, "")
}

func (s *Store) put(k key, list []model.Keyframe) {
	if len(list) == 0 {
		delete(s.lists, k)
		return
	}
	s.lists[k] = list
}

// List 返回某个片段某个属性的关键帧拷贝
func (s *Store) List(clipID string, p model.Property) []model.Keyframe {
	return append([]model.Keyframe(nil), s.lists[key{clipID, p}]...)
}

// ForClip 返回片段的全部关键帧
func (s *Store) ForClip(clipID string) []model.Keyframe {
	var out []model.Keyframe
	for k, list := range s.lists {
		if k.clipID == clipID {
			out = append(out, list...)
		}
	}
	sortKeyframes(out)
	return out
}

// All 返回全部关键帧，按片段、属性、时间排序
func (s *Store) All() []model.Keyframe {
	var out []model.Keyframe
	for _, list := range s.lists {
		out = append(out, list...)
	}
	sortKeyframes(out)
	return out
}

func sortKeyframes(kfs []model.Keyframe) {
	sort.SliceStable(kfs, func(i, j int) bool {
		a, b := kfs[i], kfs[j]
		if a.ClipID != b.ClipID {
			return a.ClipID < b.ClipID
		}
		if a.Property != b.Property {
			return a.Property < b.Property
		}
		return a.Time < b.Time
	})
}

// Sample 求 t 时刻的属性值。没有关键帧时返回 false。
func (s *Store) Sample(clipID string, p model.Property, t float64) (float64, bool) {
	list := s.lists[key{clipID, p}]
	if len(list) == 0 {
		return 0, false
	}
	return sample(list, t), true
}

// sample 使用前一个关键帧的曲线插值，首尾之外保持端点值
func sample(list []model.Keyframe, t float64) float64 {
	first, last := list[0], list[len(list)-1]
	if t <= first.Time {
		return first.Value
	}
	if t >= last.Time {
		return last.Value
	}
	i := sort.Search(len(list), func(i int) bool { return list[i].Time > t })
	prev, next := list[i-1], list[i]
	span := next.Time - prev.Time
	if span <= epsilon {
		return next.Value
	}
	return lerp(prev.Value, next.Value, Ease(prev.Easing, (t-prev.Time)/span))
}

// easingAt 返回 t 所在区间起点关键帧的曲线
func easingAt(list []model.Keyframe, t float64) model.Easing {
	e := list[0].Easing
	for _, kf := range list {
		if kf.Time > t+epsilon {
			break
		}
		e = kf.Easing
	}
	return e
}

// window 保留 [from, to] 内的关键帧并把时间平移到以 from 为零点；
// 区间外有关键帧被丢弃时，在对应边界补一个取采样值的关键帧，保证区间内的曲线不变。
func (s *Store) window(list []model.Keyframe, from, to float64) []model.Keyframe {
	if len(list) == 0 {
		return nil
	}
	var (
		out                        []model.Keyframe
		droppedBefore, droppedAfter bool
		hasFrom, hasTo             bool
	)
	for _, kf := range list {
		switch {
		case kf.Time < from-epsilon:
			droppedBefore = true
		case kf.Time > to+epsilon:
			droppedAfter = true
		default:
			if math.Abs(kf.Time-from) <= epsilon {
				hasFrom = true
			}
			if math.Abs(kf.Time-to) <= epsilon {
				hasTo = true
			}
			out = append(out, kf)
		}
	}
	tmpl := list[0]
	if droppedBefore && !hasFrom {
		b := tmpl
		b.ID, b.Time, b.Value, b.Easing = s.newID(), from, sample(list, from), easingAt(list, from)
		out = append([]model.Keyframe{b}, out...)
	}
	if droppedAfter && !hasTo {
		b := tmpl
		b.ID, b.Time, b.Value, b.Easing = s.newID(), to, sample(list, to), easingAt(list, to)
		out = append(out, b)
	}
	for i := range out {
		out[i].Time = math.Max(0, out[i].Time-from)
	}
	return out
}

func (s *Store) keysFor(clipID string) []key {
	var keys []key
	for k := range s.lists {
		if k.clipID == clipID {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].property < keys[j].property })
	return keys
}

// OnMove 片段移动后调用。时间是相对的，只需要更新所属轨道。
func (s *Store) OnMove(clipID, trackID string) {
	for _, k := range s.keysFor(clipID) {
		list := s.lists[k]
		for i := range list {
			list[i].TrackID = trackID
		}
	}
}

// OnTrim 片段修剪后调用。shift 为起点的移动量，newDuration 为新时长。
func (s *Store) OnTrim(clipID string, shift, newDuration float64) {
	for _, k := range s.keysFor(clipID) {
		s.put(k, s.window(s.lists[k], shift, shift+newDuration))
	}
}

// OnSplit 片段在相对时间 offset 处分割后调用：前半段保留，后半段迁移到 tailID 并以分割点为零点
func (s *Store) OnSplit(clipID, tailID, tailTrackID string, offset, oldDuration float64) {
	for _, k := range s.keysFor(clipID) {
		list := s.lists[k]
		head := s.window(list, 0, offset)
		tail := s.window(list, offset, oldDuration)
		for i := range tail {
			tail[i].ClipID = tailID
			tail[i].TrackID = tailTrackID
			if containsID(head, tail[i].ID) {
				tail[i].ID = s.newID()
			}
		}
		s.put(k, head)
		s.put(key{tailID, k.property}, tail)
	}
}

func containsID(list []model.Keyframe, id string) bool {
	for _, kf := range list {
		if kf.ID == id {
			return true
		}
	}
	return false
}

// OnDuplicate 复制源片段的关键帧到新片段
func (s *Store) OnDuplicate(srcID, dstID, dstTrackID string) {
	for _, k := range s.keysFor(srcID) {
		src := s.lists[k]
		dst := make([]model.Keyframe, len(src))
		for i, kf := range src {
			kf.ID = s.newID()
			kf.ClipID = dstID
			kf.TrackID = dstTrackID
			dst[i] = kf
		}
		s.put(key{dstID, k.property}, dst)
	}
}

// OnDelete 删除片段的全部关键帧，返回删除数量
func (s *Store) OnDelete(clipID string) int {
	n := 0
	for _, k := range s.keysFor(clipID) {
		n += len(s.lists[k])
		delete(s.lists, k)
	}
	return n
}

// Prune 清理引用了不存在片段的关键帧
func (s *Store) Prune(exists func(clipID string) bool) int {
	n := 0
	for k, list := range s.lists {
		if !exists(k.clipID) {
			n += len(list)
			delete(s.lists, k)
		}
	}
	return n
}

// Load 用持久化数据替换全部关键帧，拒绝非法或时间重复的条目
func (s *Store) Load(kfs []model.Keyframe) error {
	lists := make(map[key][]model.Keyframe)
	for _, kf := range kfs {
		if kf.Easing == "" {
			kf.Easing = model.EasingLinear
		}
		if err := validate("loadKeyframes", kf); err != nil {
			return err
		}
		if kf.ID == "" {
			kf.ID = s.newID()
		}
		k := key{kf.ClipID, kf.Property}
		lists[k] = append(lists[k], kf)
	}
	for k, list := range lists {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Time < list[j].Time })
		for i := 1; i < len(list); i++ {
			if list[i].Time-list[i-1].Time <= epsilon {
				return model.NewEditError("loadKeyframes", model.ErrInvalidRange, k.clipID, "duplicate %s keyframe at %.3f", k.property, list[i].Time)
			}
		}
	}
	s.lists = lists
	return nil
}
