package waiter

import (
	"context"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"

	"sdrelay/internal/channel"
)

// Watcher polls the shared state snapshot and emits every advance of
// its sequence number. Polling at a fixed interval is the correctness
// mechanism; a filesystem watch on the shared directory only shortens
// the latency between a write and the next read.
type Watcher struct {
	store    *channel.Store
	interval time.Duration
	logger   *log.Logger
	verbose  bool

	seen    bool
	lastSeq uint64
}

// NewWatcher creates a watcher over the given store.
func NewWatcher(store *channel.Store, interval time.Duration, logger *log.Logger, verbose bool) *Watcher {
	return &Watcher{
		store:    store,
		interval: interval,
		logger:   logger,
		verbose:  verbose,
	}
}

// Run starts the polling loop and returns the channel of advancing
// snapshots. The channel closes when ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) <-chan channel.RelayState {
	updates := make(chan channel.RelayState, 16)
	go w.loop(ctx, updates)
	return updates
}

func (w *Watcher) loop(ctx context.Context, updates chan<- channel.RelayState) {
	defer close(updates)

	// Filesystem events wake the loop early; failure to set the watch
	// up just means pure polling.
	var events chan fsnotify.Event
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Printf("warning: fsnotify unavailable: %v (polling only)", err)
	} else if err := fsw.Add(w.store.Dir()); err != nil {
		w.logger.Printf("warning: cannot watch %s: %v (polling only)", w.store.Dir(), err)
		fsw.Close()
	} else {
		events = make(chan fsnotify.Event, 1)
		go forwardStateEvents(ctx, fsw, w.store.StatePath(), events)
		defer fsw.Close()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll(ctx, updates)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx, updates)
		case <-events:
			w.poll(ctx, updates)
		}
	}
}

// poll reads the snapshot and emits it when the sequence advanced.
// Read errors are tolerated as "no snapshot yet": the container side
// may not have started, or may be mid-setup.
func (w *Watcher) poll(ctx context.Context, updates chan<- channel.RelayState) {
	state, err := w.store.Read()
	if err != nil {
		if w.verbose {
			w.logger.Printf("snapshot not readable yet: %v", err)
		}
		return
	}
	if state == nil {
		return
	}
	if w.seen && state.Seq == w.lastSeq {
		return
	}
	if w.seen && state.Seq < w.lastSeq {
		// The container side restarted and its sequence began again
		// at zero. Tracking the new writer matters more than strict
		// monotonicity, or its snapshots would be suppressed until
		// the count caught up.
		w.logger.Printf("state sequence regressed (%d -> %d), following the new run", w.lastSeq, state.Seq)
	}
	w.seen = true
	w.lastSeq = state.Seq

	if w.verbose {
		w.logger.Printf("snapshot: seq=%d ready=%v status=%q terminal=%v",
			state.Seq, state.Ready, state.Status, state.Terminal)
	}

	select {
	case updates <- *state:
	case <-ctx.Done():
	}
}

// forwardStateEvents passes through events touching the snapshot path.
// The atomic-replace discipline means writes surface as renames.
func forwardStateEvents(ctx context.Context, fsw *fsnotify.Watcher, statePath string, out chan<- fsnotify.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if ev.Name != statePath {
				continue
			}
			select {
			case out <- ev:
			default: // a wakeup is already pending
			}
		case _, ok := <-fsw.Errors:
			if !ok {
				return
			}
		}
	}
}
