package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the session directory and emits a signal when the
// credential for a role disappears. It is the logout side-channel: the login
// subsystem clears the token locations, and every running screen tears
// itself down on the next signal rather than discovering the loss on a
// failed request.
type Watcher struct {
	dir      string
	role     Role
	resolver *Resolver
	logger   *slog.Logger

	// Debouncing: editors and logout flows touch files several times in
	// quick succession.
	debounce time.Duration

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending bool

	lost chan struct{}
}

// NewWatcher creates a watcher over the session directory for one role.
func NewWatcher(dir string, role Role, resolver *Resolver, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		dir:      dir,
		role:     role,
		resolver: resolver,
		logger:   logger,
		debounce: 200 * time.Millisecond,
		watcher:  fsw,
		lost:     make(chan struct{}, 1),
	}, nil
}

// CredentialLost returns the channel signalled when the role's credential
// can no longer be resolved. The channel carries at most one pending signal.
func (w *Watcher) CredentialLost() <-chan struct{} {
	return w.lost
}

// Start begins watching. It stops when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	go w.loop(ctx)

	w.logger.Debug("Session watcher started", "dir", w.dir, "role", w.role)
	return nil
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.mu.Lock()
				w.pending = true
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Session watcher error", "error", err)

		case <-ticker.C:
			w.mu.Lock()
			pending := w.pending
			w.pending = false
			w.mu.Unlock()

			if !pending {
				continue
			}
			if _, err := w.resolver.Resolve(w.role); err != nil {
				w.logger.Info("Session credential lost", "role", w.role)
				select {
				case w.lost <- struct{}{}:
				default:
				}
			}
		}
	}
}
