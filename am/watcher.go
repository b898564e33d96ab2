package am

import (
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/logger"
)

// ConfigWatcher watches a configuration root for changes and triggers
// reload callbacks. fsnotify does not recurse, so every directory below the
// root is added at construction time and newly created directories are
// added as they appear.
type ConfigWatcher struct {
	root           string
	watcher        *fsnotify.Watcher
	callbacks      []ReloadCallback
	mu             sync.RWMutex
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	done           chan struct{}
	stopOnce       sync.Once
}

// ReloadCallback is called after the debounce period once changes settle
type ReloadCallback func() error

// NewConfigWatcher creates a watcher over root and all its subdirectories
func NewConfigWatcher(root string) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	cw := &ConfigWatcher{
		root:           root,
		watcher:        watcher,
		debouncePeriod: 300 * time.Millisecond,
		done:           make(chan struct{}),
	}

	if err := cw.addTree(root); err != nil {
		watcher.Close()
		return nil, err
	}

	return cw, nil
}

// SetDebounce overrides the debounce period (tests use a short one)
func (cw *ConfigWatcher) SetDebounce(d time.Duration) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.debouncePeriod = d
}

func (cw *ConfigWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := cw.watcher.Add(path); err != nil {
			return errors.Wrapf(err, "failed to watch %s", path)
		}
		return nil
	})
}

// OnReload registers a callback to be called when the root changes
func (cw *ConfigWatcher) OnReload(callback ReloadCallback) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// Start begins watching for changes
func (cw *ConfigWatcher) Start() {
	go cw.watchLoop()
}

func (cw *ConfigWatcher) watchLoop() {
	for {
		select {
		case <-cw.done:
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if isScratchFile(event.Name) {
				continue
			}

			if event.Op&fsnotify.Create == fsnotify.Create {
				// New template folders need watching too
				if err := cw.addTree(event.Name); err != nil {
					logger.Debugw("Config watcher could not add path",
						logger.FieldPath, event.Name, logger.FieldError, err)
				}
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				logger.Infow("Config watcher detected change",
					logger.FieldFile, event.Name,
					"op", event.Op.String())
				cw.scheduleReload()
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logger.Errorw("Config watcher error", logger.FieldError, err)
		}
	}
}

// scheduleReload debounces rapid file changes and triggers reload
func (cw *ConfigWatcher) scheduleReload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}

	cw.debounceTimer = time.AfterFunc(cw.debouncePeriod, cw.reload)
}

// reload calls all callbacks; one failing callback does not stop the rest
func (cw *ConfigWatcher) reload() {
	cw.mu.RLock()
	callbacks := make([]ReloadCallback, len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback(); err != nil {
			logger.Warnw("Config reload callback error",
				logger.FieldRoot, cw.root,
				logger.FieldError, err)
		}
	}
}

// Stop stops watching for changes
func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.stopOnce.Do(func() {
		close(cw.done)
		cw.mu.Lock()
		if cw.debounceTimer != nil {
			cw.debounceTimer.Stop()
		}
		cw.mu.Unlock()
		err = cw.watcher.Close()
	})
	return err
}

// isScratchFile reports editor swap files and config backups
func isScratchFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasPrefix(base, ".#") ||
		strings.HasSuffix(base, ".back1") ||
		strings.HasSuffix(base, ".back2") ||
		strings.HasSuffix(base, ".back3")
}
