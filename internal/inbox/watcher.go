package inbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cao-dev/cao/internal/ansi"
	"github.com/cao-dev/cao/internal/provider"
)

// tailBytes bounds how much of a pipe-pane log the pre-check reads.
const tailBytes = 4096

const deliverTimeout = 30 * time.Second

type watchEntry struct {
	workerID string
	provider provider.Provider
	logPath  string
}

// Watcher watches worker pipe-pane logs and triggers mailbox delivery
// when a log write shows the agent's idle prompt. The regexp pre-check
// on the log tail keeps the watcher from running a full pane capture
// on every write event.
type Watcher struct {
	fs      *fsnotify.Watcher
	service *Service
	logger  *slog.Logger

	mu       sync.Mutex
	byPath   map[string]watchEntry
	byWorker map[string]string

	done     chan struct{}
	stopOnce sync.Once
}

func NewWatcher(service *Service, logger *slog.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:       fs,
		service:  service,
		logger:   logger,
		byPath:   make(map[string]watchEntry),
		byWorker: make(map[string]string),
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Register starts watching a worker's log. The file is created empty
// when pipe-pane has not written yet; fsnotify cannot watch a missing
// path.
func (w *Watcher) Register(workerID string, p provider.Provider, logPath string) error {
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	f.Close()

	w.mu.Lock()
	w.byPath[logPath] = watchEntry{workerID: workerID, provider: p, logPath: logPath}
	w.byWorker[workerID] = logPath
	w.mu.Unlock()

	return w.fs.Add(logPath)
}

// Unregister stops watching a worker's log. Unknown ids are a no-op.
func (w *Watcher) Unregister(workerID string) {
	w.mu.Lock()
	logPath, ok := w.byWorker[workerID]
	if ok {
		delete(w.byWorker, workerID)
		delete(w.byPath, logPath)
	}
	w.mu.Unlock()
	if ok {
		_ = w.fs.Remove(logPath)
	}
}

// Close stops the event loop and releases the fsnotify watcher.
func (w *Watcher) Close() error {
	w.stopOnce.Do(func() { close(w.done) })
	return w.fs.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Write != 0 {
				w.handleWrite(ev.Name)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("log watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleWrite(logPath string) {
	w.mu.Lock()
	entry, ok := w.byPath[logPath]
	w.mu.Unlock()
	if !ok {
		return
	}

	idle, err := tailMatches(logPath, entry.provider.IdleLogPattern())
	if err != nil {
		w.logger.Warn("log tail read failed", "worker", entry.workerID, "error", err)
		return
	}
	if !idle {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	if _, err := w.service.TryDeliver(ctx, entry.workerID); err != nil {
		w.logger.Warn("watched delivery failed", "worker", entry.workerID, "error", err)
	}
}

// tailMatches tests pattern against the control-stripped tail of the
// log file.
func tailMatches(logPath string, pattern *regexp.Regexp) (bool, error) {
	if pattern == nil {
		return false, nil
	}
	f, err := os.Open(logPath)
	if err != nil {
		return false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	offset := info.Size() - tailBytes
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return false, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return false, err
	}
	return pattern.MatchString(ansi.StripAll(string(data))), nil
}
