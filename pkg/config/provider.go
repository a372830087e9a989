package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/flowmatic/console/pkg/domain"
)

// MenuProvider serves point-in-time menu configuration snapshots and
// notifies subscribers when the underlying manifests change.
type MenuProvider interface {
	CurrentSnapshot() domain.Snapshot
	Subscribe() <-chan domain.Snapshot
	Close() error
}

// FileMenuProvider implements MenuProvider on top of manifest files watched
// with fsnotify. Every reload produces a fresh immutable snapshot with a
// bumped generation; consumers never see partial state.
type FileMenuProvider struct {
	menuCfg MenuConfig
	logger  *slog.Logger

	mu          sync.RWMutex
	snapshot    domain.Snapshot
	generation  int64
	subscribers []chan domain.Snapshot

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
}

// NewFileMenuProvider loads the manifests once and starts watching their
// directory for changes. A missing or unreadable manifest set is not fatal:
// the provider starts with an empty snapshot and recovers on the next
// successful reload.
func NewFileMenuProvider(menuCfg MenuConfig, logger *slog.Logger) (*FileMenuProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &FileMenuProvider{
		menuCfg: menuCfg,
		logger:  logger,
		watcher: watcher,
		cancel:  cancel,
	}

	if err := p.load(); err != nil {
		logger.Warn("Initial manifest load failed", "error", err)
	}

	watchDir := menuCfg.ManifestDir
	if watchDir == "" && menuCfg.ManifestFile != "" {
		watchDir = filepath.Dir(menuCfg.ManifestFile)
	}
	if watchDir != "" {
		if err := watcher.Add(watchDir); err != nil {
			_ = watcher.Close()
			cancel()
			return nil, fmt.Errorf("failed to watch %s: %w", watchDir, err)
		}
		go p.watchLoop(ctx)
	}

	return p, nil
}

// CurrentSnapshot returns the latest menu configuration snapshot.
func (p *FileMenuProvider) CurrentSnapshot() domain.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// Subscribe returns a channel that receives menu snapshots, starting with
// the current one.
func (p *FileMenuProvider) Subscribe() <-chan domain.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan domain.Snapshot, 1)
	p.subscribers = append(p.subscribers, ch)
	ch <- p.snapshot
	return ch
}

// Close stops the watcher and cleans up resources.
func (p *FileMenuProvider) Close() error {
	p.cancel()
	return p.watcher.Close()
}

func (p *FileMenuProvider) watchLoop(ctx context.Context) {
	var debounceTimer *time.Timer
	debounceDuration := 100 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if !p.relevant(event.Name) {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					if err := p.load(); err != nil {
						p.logger.Error("Manifest reload failed", "error", err)
					} else {
						p.logger.Info("Plugin manifests reloaded", "generation", p.CurrentSnapshot().Generation)
					}
				})
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("Watcher error", "error", err)
		}
	}
}

// relevant filters watcher events down to the manifests we actually load.
func (p *FileMenuProvider) relevant(name string) bool {
	clean := filepath.Clean(name)
	if p.menuCfg.ManifestFile != "" {
		return clean == filepath.Clean(p.menuCfg.ManifestFile)
	}
	switch strings.ToLower(filepath.Ext(clean)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (p *FileMenuProvider) load() error {
	paths, err := ManifestPaths(p.menuCfg)
	if err != nil {
		return err
	}

	raw, err := LoadManifests(paths)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.generation++
	snapshot := domain.Snapshot{
		Generation: p.generation,
		LoadedAt:   time.Now(),
		RawMenu:    raw,
	}
	p.snapshot = snapshot
	subscribers := make([]chan domain.Snapshot, len(p.subscribers))
	copy(subscribers, p.subscribers)
	p.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- snapshot:
		default:
			// Skip if channel is full (slow consumer)
		}
	}

	return nil
}
