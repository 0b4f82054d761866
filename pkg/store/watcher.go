package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fairgov/governor/pkg/domain"
)

const debounceDuration = 100 * time.Millisecond

// Watcher republishes the policy document set whenever files in the policy
// directory change. Change bursts are debounced so one save produces one
// reload.
type Watcher struct {
	dir    string
	loader *Loader
	logger *slog.Logger

	mu          sync.Mutex
	subscribers []chan []domain.PolicyDocument

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
}

// NewWatcher starts watching the policy directory.
func NewWatcher(dir string, loader *Loader, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		dir:     dir,
		loader:  loader,
		logger:  logger,
		watcher: fsw,
		cancel:  cancel,
	}
	go w.watchLoop(ctx)

	return w, nil
}

// Subscribe returns a channel that receives the freshly loaded document set
// after each change. Slow subscribers miss intermediate sets rather than
// blocking the reload.
func (w *Watcher) Subscribe() <-chan []domain.PolicyDocument {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan []domain.PolicyDocument, 1)
	w.subscribers = append(w.subscribers, ch)
	return ch
}

// Close stops the watcher and releases the fsnotify handle.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isPolicyFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					w.reload(ctx)
				})
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("policy directory watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	documents, err := w.loader.LoadAll(ctx, w.dir)
	if err != nil {
		w.logger.Error("policy reload failed", "directory", w.dir, "error", err)
		return
	}

	w.logger.Info("policy directory changed, documents reloaded", "count", len(documents))

	w.mu.Lock()
	subscribers := make([]chan []domain.PolicyDocument, len(w.subscribers))
	copy(subscribers, w.subscribers)
	w.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- documents:
		default:
		}
	}
}

func isPolicyFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
