package telemetry

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/powerdock-io/powerdock/pkg/log"
)

// Watcher nudges the poll loop when the telemetry feed changes on disk, so
// fresh samples reach the display faster than the poll interval alone
// would allow. It is an accelerator only: the ticker-driven poll remains
// the source of truth and the agent works unchanged if watching fails.
type Watcher struct {
	feedFile string
	logger   log.Logger

	notify chan struct{}
}

func NewWatcher(feedFile string, logger log.Logger) *Watcher {
	return &Watcher{
		feedFile: feedFile,
		logger:   logger.WithName("watcher"),
		// Capacity 1: bursts of write events coalesce into a single
		// pending nudge.
		notify: make(chan struct{}, 1),
	}
}

// Nudges returns the channel the poll loop selects on.
func (w *Watcher) Nudges() <-chan struct{} {
	return w.notify
}

// Run watches the feed's directory until the context is cancelled. The
// directory, not the file, is watched: controllers that write via
// rename-into-place replace the inode on every update.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("file watching unavailable, relying on poll interval", "err", err.Error())
		<-ctx.Done()
		return nil
	}
	defer fw.Close()

	dir := filepath.Dir(w.feedFile)
	if err := fw.Add(dir); err != nil {
		w.logger.Warn("cannot watch feed directory, relying on poll interval",
			"dir", dir, "err", err.Error())
		<-ctx.Done()
		return nil
	}

	w.logger.Debug("watching feed directory", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Name != w.feedFile {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case w.notify <- struct{}{}:
			default:
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Debug("watch error", "err", err.Error())
		}
	}
}
