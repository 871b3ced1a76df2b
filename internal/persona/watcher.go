package persona

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher re-imports persona definition files as they change on disk, so
// operators can edit YAML next to a running server and see the persona
// update without a restart.
type Watcher struct {
	store Store
	dir   string

	fsw    *fsnotify.Watcher
	stopCh chan struct{}
	doneCh chan struct{}

	mu       sync.Mutex
	pending  map[string]time.Time
	debounce time.Duration
	running  bool
}

// NewWatcher returns a watcher for the given persona directory. Start
// must be called before it does anything.
func NewWatcher(store Store, dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}

	return &Watcher{
		store:  store,
		dir:    dir,
		fsw:    fsw,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		// Editors save in bursts; half a second lets them settle.
		pending:  make(map[string]time.Time),
		debounce: 500 * time.Millisecond,
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs until Stop or
// context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	log.Info().Str("dir", w.dir).Msg("Watching persona directory")
	go w.run(ctx)
	return nil
}

// Stop halts the watcher and waits for the event loop to drain.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.fsw.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Persona watcher error")
		case <-ticker.C:
			w.importSettled(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !isPersonaFile(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// importSettled imports files whose last event is older than the
// debounce window.
func (w *Watcher) importSettled(ctx context.Context) {
	w.mu.Lock()
	var ready []string
	now := time.Now()
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		p, created, err := ImportFile(ctx, w.store, path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Persona reimport failed")
			continue
		}
		log.Info().
			Str("persona_id", p.ID).
			Str("path", path).
			Bool("created", created).
			Msg("Persona reloaded from file")
	}
}
