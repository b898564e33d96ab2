package engine

import (
	"context"
	"time"

	"github.com/teranos/inkr/am"
	"github.com/teranos/inkr/logger"
)

// Watch reloads the engine whenever the configuration root changes, until
// ctx is done
func (e *Engine) Watch(ctx context.Context) error {
	return e.watch(ctx, 0)
}

func (e *Engine) watch(ctx context.Context, debounce time.Duration) error {
	watcher, err := am.NewConfigWatcher(e.holder.Root())
	if err != nil {
		return err
	}
	if debounce > 0 {
		watcher.SetDebounce(debounce)
	}
	watcher.OnReload(e.Reload)
	watcher.Start()

	logger.Infow("Watching configuration root", logger.FieldRoot, e.holder.Root())
	<-ctx.Done()
	return watcher.Stop()
}
