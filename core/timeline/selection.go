package timeline

import "sort"

// Selection 选中的片段 ID 集合，与数据模型相互独立
type Selection struct {
	ids map[string]struct{}
}

func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

func (s *Selection) Clone() *Selection {
	cp := NewSelection()
	for id := range s.ids {
		cp.ids[id] = struct{}{}
	}
	return cp
}

// Set 替换选区；additive 为 true 时在原选区上追加
func (s *Selection) Set(ids []string, additive bool) {
	if !additive {
		s.ids = make(map[string]struct{}, len(ids))
	}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

func (s *Selection) Remove(ids ...string) {
	for _, id := range ids {
		delete(s.ids, id)
	}
}

func (s *Selection) Clear() {
	s.ids = make(map[string]struct{})
}

func (s *Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *Selection) Len() int {
	return len(s.ids)
}

// Prune 移除不再存在的片段
func (s *Selection) Prune(exists func(id string) bool) {
	for id := range s.ids {
		if !exists(id) {
			delete(s.ids, id)
		}
	}
}

// IDs 返回排序后的 ID 列表
func (s *Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
