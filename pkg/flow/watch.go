package flow

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/devicelab-dev/onboard-runner/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 300 * time.Millisecond

// ChangeHandler receives a reparsed scenario, or the error that parsing it produced.
type ChangeHandler func(path string, scenario *Scenario, err error)

// Watcher reparses scenario files when they change on disk.
// Parent directories are watched so that editors which save by rename are seen.
type Watcher struct {
	paths    map[string]bool
	watcher  *fsnotify.Watcher
	handler  ChangeHandler
	debounce time.Duration

	mu       sync.Mutex
	timers   map[string]*time.Timer
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for the given scenario files.
func NewWatcher(handler ChangeHandler, paths ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	watched := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			w.Close()
			return nil, err
		}
		watched[abs] = true
	}

	return &Watcher{
		paths:    watched,
		watcher:  w,
		handler:  handler,
		debounce: DefaultDebounce,
		timers:   make(map[string]*time.Timer),
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins watching.
func (sw *Watcher) Start() error {
	dirs := make(map[string]bool)
	for p := range sw.paths {
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := sw.watcher.Add(dir); err != nil {
			return err
		}
	}

	go sw.watchLoop()
	logger.Info("scenario watcher started (%d files)", len(sw.paths))
	return nil
}

// Stop halts the watcher. Pending reloads are dropped.
func (sw *Watcher) Stop() {
	sw.stopOnce.Do(func() {
		close(sw.stopChan)
		sw.watcher.Close()

		sw.mu.Lock()
		for _, t := range sw.timers {
			t.Stop()
		}
		sw.mu.Unlock()
		logger.Info("scenario watcher stopped")
	})
}

func (sw *Watcher) watchLoop() {
	for {
		select {
		case <-sw.stopChan:
			return

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			path := filepath.Clean(event.Name)
			if !sw.paths[path] {
				continue
			}
			sw.schedule(path)

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("scenario watcher error: %v", err)
		}
	}
}

// schedule debounces reloads per file.
func (sw *Watcher) schedule(path string) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if t, ok := sw.timers[path]; ok {
		t.Stop()
	}
	sw.timers[path] = time.AfterFunc(sw.debounce, func() {
		sw.reload(path)
	})
}

func (sw *Watcher) reload(path string) {
	select {
	case <-sw.stopChan:
		return
	default:
	}

	logger.Debug("scenario changed, reparsing %s", path)
	scenario, err := ParseFile(path)
	if err != nil {
		logger.Warn("scenario reparse failed: %v", err)
	}
	sw.handler(path, scenario, err)
}
