package skills

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"pilot/pkg/logger"
)

// debounceDelay coalesces bursts of filesystem events into one reload.
const debounceDelay = 500 * time.Millisecond

// Watcher reloads the skill manager when the skills directory changes.
type Watcher struct {
	manager *Manager
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher for the manager's skills directory.
func NewWatcher(manager *Manager) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		manager: manager,
		watcher: fsw,
		done:    make(chan struct{}),
	}

	if err := w.addRecursive(manager.Dir()); err != nil {
		fsw.Close()
		return nil, err
	}

	return w, nil
}

// Start runs the watch loop until the context is cancelled or Close is
// called.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	log := logger.Component("skills")

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			// New subdirectories need watching before their SKILL.md
			// shows up.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.watcher.Add(event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(debounceDelay)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounceDelay)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			if err := w.manager.Reload(); err != nil {
				log.Error().Err(err).Msg("skill reload failed")
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("skills watcher error")
		}
	}
}

// relevant filters events down to SKILL.md changes and directory churn.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	if base == "SKILL.md" {
		return true
	}
	// Directory create/remove/rename can add or drop whole skills.
	if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
		return !strings.HasPrefix(base, ".")
	}
	return false
}

func (w *Watcher) addRecursive(dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			if err := w.watcher.Add(filepath.Join(dir, entry.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}
