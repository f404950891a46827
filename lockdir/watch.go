package lockdir

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// releaseWatch wakes a lock waiter when anything changes in the lock's
// parent directory, typically the holder removing the lock. Polling
// remains the authority: when the watch cannot be established, or an
// event is missed, the waiter still wakes every poll interval.
type releaseWatch struct {
	fw *fsnotify.Watcher
}

func newReleaseWatch(parent string) *releaseWatch {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return &releaseWatch{}
	}
	if err := fw.Add(parent); err != nil {
		fw.Close()
		return &releaseWatch{}
	}
	return &releaseWatch{fw: fw}
}

// wait blocks until the parent directory changes, d elapses, or ctx is
// cancelled, whichever comes first.
func (w *releaseWatch) wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	if w.fw == nil {
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		return
	}

	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-w.fw.Events:
	case <-w.fw.Errors:
	}
}

func (w *releaseWatch) Close() {
	if w.fw != nil {
		w.fw.Close()
	}
}
