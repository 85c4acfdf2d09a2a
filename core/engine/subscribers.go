package engine

import (
	"sync"

	"Cutline/model"
)

// hub 快照和预览事件的订阅表
type hub struct {
	mu       sync.Mutex
	next     int
	snaps    map[int]chan model.Snapshot
	previews map[int]chan model.PreviewAsset
	closed   bool
}

func newHub() *hub {
	return &hub{
		snaps:    make(map[int]chan model.Snapshot),
		previews: make(map[int]chan model.PreviewAsset),
	}
}

func (h *hub) subscribe() (chan model.Snapshot, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan model.Snapshot, 1)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.snaps[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.snaps[id]; ok {
				delete(h.snaps, id)
				close(ch)
			}
		})
	}
}

// send 非阻塞投递，通道满时用新快照替换旧快照
func (h *hub) send(ch chan model.Snapshot, snap model.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendLocked(ch, snap)
}

func (h *hub) sendLocked(ch chan model.Snapshot, snap model.Snapshot) {
	if h.closed {
		return
	}
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

func (h *hub) publish(snap model.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.snaps {
		h.sendLocked(ch, snap)
	}
}

func (h *hub) subscribePreviews(buffer int) (chan model.PreviewAsset, func()) {
	if buffer < 1 {
		buffer = 16
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan model.PreviewAsset, buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.previews[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.previews[id]; ok {
				delete(h.previews, id)
				close(ch)
			}
		})
	}
}

// publishPreview 预览事件缓冲满时丢弃，订阅方可随时用 Preview 查询最新状态
func (h *hub) publishPreview(asset model.PreviewAsset) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.previews {
		select {
		case ch <- asset:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.snaps {
		close(ch)
		delete(h.snaps, id)
	}
	for id, ch := range h.previews {
		close(ch)
		delete(h.previews, id)
	}
}
