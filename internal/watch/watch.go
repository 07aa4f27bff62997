// Package watch turns filesystem notifications and a poll ticker into
// "file changed" signals for one monitored path.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"eve_analyst/internal/logging"
	"eve_analyst/internal/metrics"
)

type Watcher struct {
	path    string
	poll    time.Duration
	fsw     *fsnotify.Watcher
	out     chan string
	log     *logging.Logger
	metrics *metrics.Metrics
}

// New watches the directory holding path, so a file recreated by rotation
// is still seen. A poll interval of zero disables the ticker.
func New(path string, poll time.Duration, log *logging.Logger, m *metrics.Metrics) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:    abs,
		poll:    poll,
		fsw:     fsw,
		out:     make(chan string, 1),
		log:     log,
		metrics: m,
	}, nil
}

// Path is the absolute path signals refer to.
func (w *Watcher) Path() string {
	return w.path
}

// Signals delivers the monitored path whenever new data may be available.
// At most one signal is pending at a time; the channel closes when Run
// returns.
func (w *Watcher) Signals() <-chan string {
	return w.out
}

// Run forwards notifications until ctx is done. An initial signal is sent
// so data already in the file is picked up without waiting for a write.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.out)
	defer w.fsw.Close()

	var tick <-chan time.Time
	if w.poll > 0 {
		ticker := time.NewTicker(w.poll)
		defer ticker.Stop()
		tick = ticker.C
	}

	w.notify()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				w.notify()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Warn("watcher error", logging.Path(w.path), logging.Error(err))
			}
		case <-tick:
			w.notify()
		}
	}
}

// notify never blocks: a pending signal already covers every byte written
// since, so extra signals are folded into it.
func (w *Watcher) notify() {
	select {
	case w.out <- w.path:
	default:
		if w.metrics != nil {
			w.metrics.SignalsCoalesced.Inc()
		}
	}
}
