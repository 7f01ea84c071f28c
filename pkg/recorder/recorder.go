package recorder

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/storage"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/vcs"
)

// ScreenRecorder starts and stops a screen recording session and ships
// finished recordings to an object store. Recording control shells out
// to the recording tool installed on the study VM; a missing tool
// degrades to a no-op so the study itself is never blocked.
type ScreenRecorder struct {
	bin     string
	dir     string
	exec    vcs.CommandExecutor
	fs      afero.Fs
	uploads storage.Store
	l       *zap.Logger
	mu      sync.Mutex
	active  bool
}

// RecorderOption customizes a ScreenRecorder
type RecorderOption func(*ScreenRecorder)

// RecorderBinary sets the recording control binary
func RecorderBinary(bin string) RecorderOption {
	return func(r *ScreenRecorder) {
		r.bin = bin
	}
}

// RecorderExecutor overrides subprocess execution, used by tests
func RecorderExecutor(exec vcs.CommandExecutor) RecorderOption {
	return func(r *ScreenRecorder) {
		r.exec = exec
	}
}

// RecorderFs overrides the filesystem, used by tests
func RecorderFs(fs afero.Fs) RecorderOption {
	return func(r *ScreenRecorder) {
		r.fs = fs
	}
}

// RecorderLogger sets the recorder logger
func RecorderLogger(l *zap.Logger) RecorderOption {
	return func(r *ScreenRecorder) {
		r.l = l
	}
}

// NewScreenRecorder builds a recorder writing to dir and uploading to
// uploads. A nil uploads store disables shipping.
func NewScreenRecorder(dir string, uploads storage.Store, opts ...RecorderOption) *ScreenRecorder {
	r := &ScreenRecorder{
		bin:     "obs-cmd",
		dir:     dir,
		exec:    vcs.NewExecExecutor(),
		fs:      afero.NewOsFs(),
		uploads: uploads,
		l:       zap.NewNop(),
	}
	for _, apply := range opts {
		apply(r)
	}
	return r
}

// Start begins a recording. Already recording is a no-op.
func (r *ScreenRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return nil
	}
	if err := r.control(ctx, "recording", "start"); err != nil {
		r.l.Warn("could not start screen recording", zap.Error(err))
		return err
	}
	r.active = true
	r.l.Info("screen recording started")
	return nil
}

// Stop ends the recording. Not recording is a no-op.
func (r *ScreenRecorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil
	}
	if err := r.control(ctx, "recording", "stop"); err != nil {
		r.l.Warn("could not stop screen recording", zap.Error(err))
		return err
	}
	r.active = false
	r.l.Info("screen recording stopped")
	return nil
}

// Recording reports whether a recording is in progress.
func (r *ScreenRecorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Upload ships every recording file in the recordings directory to the
// object store, keyed under the participant. Files already present on
// the store are skipped, successfully shipped files stay on disk for
// manual recovery.
func (r *ScreenRecorder) Upload(ctx context.Context, participantID string) error {
	if r.uploads == nil {
		r.l.Debug("no upload store configured, keeping recordings local")
		return nil
	}
	entries, err := afero.ReadDir(r.fs, r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var firstErr error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		key := filepath.ToSlash(filepath.Join("recordings", participantID, entry.Name()))
		has, err := r.uploads.Has(ctx, key)
		if err == nil && has {
			continue
		}
		f, err := r.fs.Open(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			firstErr = pick(firstErr, err)
			continue
		}
		err = r.uploads.Put(ctx, key, f)
		f.Close()
		if err != nil {
			r.l.Warn("uploading recording failed",
				zap.String("file", entry.Name()), zap.Error(err))
			firstErr = pick(firstErr, err)
			continue
		}
		r.l.Info("uploaded recording",
			zap.String("file", entry.Name()),
			zap.String("store", r.uploads.String()))
	}
	return firstErr
}

func (r *ScreenRecorder) control(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, r.bin, args...)
	_, err := r.exec.ExecuteWithOutput(cmd)
	return err
}

func pick(current, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
