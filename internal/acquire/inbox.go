package acquire

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/maloquacious/backdrop/internal/logger"
)

// Handler receives each image that settles in the inbox.
type Handler func(ctx context.Context, r Result)

// Inbox watches a directory and hands every new or rewritten image file to a
// handler once writes to it have stopped for the debounce period.
type Inbox struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	dir         string
	handler     Handler
	log         logger.Logger
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewInbox creates an Inbox for dir. It does not watch until Start.
func NewInbox(dir string, handler Handler, log logger.Logger) (*Inbox, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Default
	}
	return &Inbox{
		watcher:     watcher,
		dir:         dir,
		handler:     handler,
		log:         log,
		debounceMap: make(map[string]time.Time),
		debounceDur: 300 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// SetDebounce changes how long a file must be quiet before it is handled.
func (in *Inbox) SetDebounce(d time.Duration) {
	in.mu.Lock()
	in.debounceDur = d
	in.mu.Unlock()
}

// Start creates the directory if needed and begins watching it.
// It is non-blocking.
func (in *Inbox) Start(ctx context.Context) error {
	in.mu.Lock()
	if in.running {
		in.mu.Unlock()
		return nil
	}
	in.running = true
	in.mu.Unlock()

	if err := os.MkdirAll(in.dir, 0o755); err != nil {
		return err
	}
	if err := in.watcher.Add(in.dir); err != nil {
		return err
	}
	in.log.Info("inbox: watching %s", in.dir)

	go in.run(ctx)
	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (in *Inbox) Stop() {
	in.mu.Lock()
	running := in.running
	in.running = false
	in.mu.Unlock()

	if running {
		close(in.stopCh)
		<-in.doneCh
	}
	if err := in.watcher.Close(); err != nil {
		in.log.Error("inbox: close watcher: %v", err)
	}
}

func (in *Inbox) run(ctx context.Context) {
	defer close(in.doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-in.stopCh:
			return
		case event, ok := <-in.watcher.Events:
			if !ok {
				return
			}
			in.record(event)
		case err, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
			in.log.Error("inbox: %v", err)
		case <-ticker.C:
			in.flush(ctx)
		}
	}
}

func (in *Inbox) record(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}
	if !IsImage(event.Name) {
		return
	}
	in.mu.Lock()
	in.debounceMap[event.Name] = time.Now()
	in.mu.Unlock()
}

func (in *Inbox) flush(ctx context.Context) {
	in.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range in.debounceMap {
		if now.Sub(at) >= in.debounceDur {
			settled = append(settled, path)
			delete(in.debounceMap, path)
		}
	}
	in.mu.Unlock()

	for _, path := range settled {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.Size() == 0 {
			continue
		}
		uri, err := FileURI(path)
		if err != nil {
			in.log.Error("inbox: %v", err)
			continue
		}
		in.log.Info("inbox: picked %s", path)
		in.handler(ctx, Result{URI: uri})
	}
}
