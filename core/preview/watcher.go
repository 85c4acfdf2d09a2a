package preview

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"Cutline/logger"

	"github.com/fsnotify/fsnotify"
)

// SourceWatcher 监听媒体目录，源文件被改写或删除时回调对应的媒体句柄，
// 用于让引用该媒体的片段预览失效
type SourceWatcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	onChange func(sourceRef string)
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

// NewSourceWatcher 递归监听 dir。同一文件在 debounce 内的连续事件只回调一次。
func NewSourceWatcher(dir string, debounce time.Duration, onChange func(sourceRef string)) (*SourceWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	sw := &SourceWatcher{
		dir:      filepath.Clean(dir),
		watcher:  w,
		onChange: onChange,
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	err = filepath.WalkDir(sw.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if err != nil {
		w.Close()
		return nil, err
	}
	sw.wg.Add(1)
	go sw.loop()
	logger.Info("media watcher started", logger.String("dir", sw.dir))
	return sw, nil
}

func (sw *SourceWatcher) loop() {
	defer sw.wg.Done()
	for {
		select {
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			sw.handle(event)
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("media watcher error", logger.ErrorField(err))
		case <-sw.done:
			return
		}
	}
}

func (sw *SourceWatcher) handle(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := sw.watcher.Add(event.Name); err != nil {
				logger.Warn("media watcher add failed", logger.String("dir", event.Name), logger.ErrorField(err))
			}
			return
		}
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	ref, ok := SourceRefFor(sw.dir, event.Name)
	if !ok {
		return
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()
	if t, ok := sw.pending[ref]; ok {
		t.Reset(sw.debounce)
		return
	}
	sw.pending[ref] = time.AfterFunc(sw.debounce, func() {
		sw.mu.Lock()
		delete(sw.pending, ref)
		sw.mu.Unlock()
		logger.Debug("media source changed", logger.String("sourceRef", ref))
		sw.onChange(ref)
	})
}

// Close 停止监听
func (sw *SourceWatcher) Close() error {
	close(sw.done)
	err := sw.watcher.Close()
	sw.wg.Wait()
	sw.mu.Lock()
	for ref, t := range sw.pending {
		t.Stop()
		delete(sw.pending, ref)
	}
	sw.mu.Unlock()
	return err
}
