package recorder

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/model"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/sessionlog"
)

// ClipboardSource reads the current clipboard text.
type ClipboardSource interface {
	Current() (string, error)
}

// ClipboardSourceFunc adapts a function to the ClipboardSource interface.
type ClipboardSourceFunc func() (string, error)

// Current implements ClipboardSource
func (f ClipboardSourceFunc) Current() (string, error) {
	return f()
}

const defaultClipboardInterval = time.Second

// ClipboardTracker polls the clipboard and buffers content changes until
// they are flushed into the session log.
type ClipboardTracker struct {
	source   ClipboardSource
	logs     *sessionlog.Store
	interval time.Duration
	l        *zap.Logger

	mu      sync.Mutex
	events  []model.ClipboardEvent
	last    string
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// ClipboardOption customizes a ClipboardTracker
type ClipboardOption func(*ClipboardTracker)

// ClipboardInterval sets the polling interval
func ClipboardInterval(d time.Duration) ClipboardOption {
	return func(t *ClipboardTracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// ClipboardLogger sets the tracker logger
func ClipboardLogger(l *zap.Logger) ClipboardOption {
	return func(t *ClipboardTracker) {
		t.l = l
	}
}

// NewClipboardTracker builds a tracker that buffers changes from source.
func NewClipboardTracker(source ClipboardSource, logs *sessionlog.Store, opts ...ClipboardOption) *ClipboardTracker {
	t := &ClipboardTracker{
		source:   source,
		logs:     logs,
		interval: defaultClipboardInterval,
		l:        zap.NewNop(),
	}
	for _, apply := range opts {
		apply(t)
	}
	return t
}

// Start launches the polling loop. Starting a running tracker is a
// no-op.
func (t *ClipboardTracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.loop(t.stop, t.done)
}

// Stop terminates the polling loop and waits for it to exit.
func (t *ClipboardTracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	stop, done := t.stop, t.done
	t.mu.Unlock()

	close(stop)
	<-done
}

func (t *ClipboardTracker) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t.record()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.record()
		}
	}
}

// record takes one poll. Empty clipboards are skipped and only changed
// content is kept, so holding the same selection does not flood the log.
func (t *ClipboardTracker) record() {
	content, err := t.source.Current()
	if err != nil {
		t.l.Debug("clipboard read failed", zap.Error(err))
		return
	}
	if strings.TrimSpace(content) == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if content == t.last {
		return
	}
	t.last = content
	t.events = append(t.events, model.ClipboardEvent{
		Timestamp:     time.Now(),
		Content:       content,
		ContentLength: len(content),
	})
}

// Flush hands the buffered events to the session log and clears the
// buffer. Events stay buffered when persisting fails.
func (t *ClipboardTracker) Flush(ctx context.Context, participantID string, stage model.Stage) error {
	t.mu.Lock()
	events := t.events
	t.events = nil
	t.mu.Unlock()

	if len(events) == 0 {
		return nil
	}
	if err := t.logs.SaveClipboardEvents(ctx, participantID, stage, events); err != nil {
		t.mu.Lock()
		t.events = append(events, t.events...)
		t.mu.Unlock()
		return err
	}
	t.l.Debug("flushed clipboard events", zap.Int("count", len(events)))
	return nil
}
