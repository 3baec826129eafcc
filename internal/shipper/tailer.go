package shipper

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/flowguard/flowguard/internal/ingest"
)

// defaultDebounce is the default debounce interval for file events.
const defaultDebounce = 200 * time.Millisecond

// maxConcurrentFiles limits how many changed files are consumed
// simultaneously. Prevents resource exhaustion under burst load.
const maxConcurrentFiles = 5

// maxQueueSize is the buffer size for the work queue channel. Must be
// larger than maxConcurrentFiles to absorb bursts without blocking
// the debounce flush.
const maxQueueSize = 200

// defaultPollInterval is the rescan interval when fsnotify is
// unavailable.
const defaultPollInterval = 5 * time.Second

// tailer watches the log root for new and growing files and hands
// eligible paths to the handler in near real time.
type tailer struct {
	root     string
	debounce time.Duration
	handler  func(ctx context.Context, path string)
	logger   *zap.Logger
}

// Run watches the root's known subdirectories. Blocks until ctx is
// cancelled.
func (t *tailer) Run(ctx context.Context) error {
	if t.debounce <= 0 {
		t.debounce = defaultDebounce
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("shipper: create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := t.addWatches(watcher); err != nil {
		return err
	}

	// ready collects file paths that passed debounce. A single timer
	// resets on each event; when it fires, all accumulated paths flush
	// to the work queue. Zero per-file goroutines.
	var mu sync.Mutex
	ready := make(map[string]bool)

	queue := make(chan string, maxQueueSize)

	// Fixed worker pool, the only goroutines besides the main loop.
	var wg sync.WaitGroup
	for i := 0; i < maxConcurrentFiles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range queue {
				t.handler(ctx, path)
			}
		}()
	}

	// flush moves all ready paths into the work queue.
	flush := func() {
		mu.Lock()
		batch := make([]string, 0, len(ready))
		for p := range ready {
			batch = append(batch, p)
		}
		ready = make(map[string]bool)
		mu.Unlock()

		for _, p := range batch {
			select {
			case queue <- p:
			case <-ctx.Done():
				return
			}
		}
	}

	// Single debounce timer, reset on each event. Initialized as
	// stopped; the first event starts it.
	debounceTimer := time.NewTimer(t.debounce)
	debounceTimer.Stop()

	defer func() {
		debounceTimer.Stop()
		flush()
		close(queue)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-debounceTimer.C:
			flush()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && t.watchNewDir(watcher, event.Name) {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !ingest.Eligible(filepath.Base(event.Name)) {
				continue
			}

			mu.Lock()
			ready[event.Name] = true
			mu.Unlock()

			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(t.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// addWatches registers the root and every discovered subdirectory.
// fsnotify does not recurse, so each nested directory needs its own
// watch.
func (t *tailer) addWatches(watcher *fsnotify.Watcher) error {
	if _, err := os.Stat(t.root); err != nil {
		if os.IsNotExist(err) {
			// Nothing to watch yet. Poll mode handles roots that
			// appear later; here we just idle.
			return nil
		}
		return fmt.Errorf("shipper: stat root: %w", err)
	}
	if err := watcher.Add(t.root); err != nil {
		return fmt.Errorf("shipper: watch %s: %w", t.root, err)
	}

	dirs, err := ingest.Discover(t.root)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := addRecursive(watcher, dir); err != nil {
			return err
		}
	}
	return nil
}

// watchNewDir starts watching a directory created after startup.
// Directories appearing directly under the root are picked up only
// when they belong to the known layout. Reports whether the event
// named a directory.
func (t *tailer) watchNewDir(watcher *fsnotify.Watcher, path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if filepath.Dir(path) == filepath.Clean(t.root) && !ingest.KnownSubdir(filepath.Base(path)) {
		return true
	}
	if err := addRecursive(watcher, path); err != nil {
		t.logger.Warn("watch new directory", zap.String("dir", path), zap.Error(err))
	}
	return true
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("shipper: watch %s: %w", path, err)
		}
		return nil
	})
}

// pollTailer rescans the root on a fixed interval. Fallback for
// filesystems where inotify does not deliver, NFS mounts mostly.
// Upstream offset tracking makes rescans of unchanged files cheap.
type pollTailer struct {
	root     string
	interval time.Duration
	handler  func(ctx context.Context, path string)
}

// Run polls the root. Blocks until ctx is cancelled.
func (p *pollTailer) Run(ctx context.Context) error {
	if p.interval <= 0 {
		p.interval = defaultPollInterval
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.scan(ctx)
		}
	}
}

func (p *pollTailer) scan(ctx context.Context) {
	dirs, err := ingest.Discover(p.root)
	if err != nil {
		return
	}
	for _, dir := range dirs {
		files, err := ingest.CollectFiles(dir)
		if err != nil {
			continue
		}
		for _, path := range files {
			select {
			case <-ctx.Done():
				return
			default:
			}
			p.handler(ctx, path)
		}
	}
}
