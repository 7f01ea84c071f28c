// Package recorder captures ambient evidence of a study session: screen
// recordings plus window focus and clipboard activity.
package recorder

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/model"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/sessionlog"
)

// Sampler reports the currently focused application and window.
type Sampler interface {
	Sample() (appName, windowTitle string, err error)
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func() (string, string, error)

// Sample implements Sampler
func (f SamplerFunc) Sample() (string, string, error) {
	return f()
}

const defaultSampleInterval = 5 * time.Second

// FocusTracker periodically samples the focused window and buffers the
// events until they are flushed into the session log.
type FocusTracker struct {
	sampler  Sampler
	logs     *sessionlog.Store
	interval time.Duration
	l        *zap.Logger

	mu      sync.Mutex
	events  []model.FocusEvent
	lastApp string
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// FocusOption customizes a FocusTracker
type FocusOption func(*FocusTracker)

// FocusInterval sets the sampling interval
func FocusInterval(d time.Duration) FocusOption {
	return func(t *FocusTracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// FocusLogger sets the tracker logger
func FocusLogger(l *zap.Logger) FocusOption {
	return func(t *FocusTracker) {
		t.l = l
	}
}

// NewFocusTracker builds a tracker that buffers samples from sampler.
func NewFocusTracker(sampler Sampler, logs *sessionlog.Store, opts ...FocusOption) *FocusTracker {
	t := &FocusTracker{
		sampler:  sampler,
		logs:     logs,
		interval: defaultSampleInterval,
		l:        zap.NewNop(),
	}
	for _, apply := range opts {
		apply(t)
	}
	return t
}

// Start launches the sampling loop. Starting a running tracker is a
// no-op.
func (t *FocusTracker) Start() {
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

// Stop terminates the sampling loop and waits for it to exit.
func (t *FocusTracker) Stop() {
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

func (t *FocusTracker) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t.record(true)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.record(false)
		}
	}
}

// record takes one sample. Only focus changes are kept so a long stretch
// in the editor does not flood the log.
func (t *FocusTracker) record(initial bool) {
	app, title, err := t.sampler.Sample()
	if err != nil {
		t.l.Debug("focus sample failed", zap.Error(err))
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !initial && app == t.lastApp {
		return
	}
	t.lastApp = app
	t.events = append(t.events, model.FocusEvent{
		Timestamp:   time.Now(),
		AppName:     app,
		WindowTitle: title,
		Platform:    runtime.GOOS,
		Initial:     initial,
	})
}

// Flush hands the buffered events to the session log and clears the
// buffer. Events stay buffered when persisting fails.
func (t *FocusTracker) Flush(ctx context.Context, participantID string, stage model.Stage) error {
	t.mu.Lock()
	events := t.events
	t.events = nil
	t.mu.Unlock()

	if len(events) == 0 {
		return nil
	}
	if err := t.logs.SaveFocusEvents(ctx, participantID, stage, events); err != nil {
		t.mu.Lock()
		t.events = append(events, t.events...)
		t.mu.Unlock()
		return err
	}
	t.l.Debug("flushed focus events", zap.Int("count", len(events)))
	return nil
}
